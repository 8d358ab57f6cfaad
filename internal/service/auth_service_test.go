package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agep/exam-backend/internal/config"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret"})

	token, err := svc.GenerateToken(41, []string{RoleStudent, "grade-10"}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 41, Roles: []string{RoleStudent, "grade-10"}}, claims.Identity())
}

func TestAuthServiceRejects(t *testing.T) {
	svc := NewAuthService(&config.Config{JWTSecret: "test-secret"})
	other := NewAuthService(&config.Config{JWTSecret: "another-secret"})

	foreign, err := other.GenerateToken(41, nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expired, err := svc.GenerateToken(41, nil, -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	anonymous, err := svc.GenerateToken(0, nil, time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(anonymous)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestIdentityRoles(t *testing.T) {
	assert.False(t, Identity{}.Authenticated())
	assert.True(t, Identity{UserID: 3, Roles: []string{"Instructor"}}.IsStaff())
	assert.True(t, Identity{UserID: 3, Roles: []string{"ADMINISTRATOR"}}.IsAdministrator())
	assert.False(t, student.IsStaff())
	assert.Nil(t, (*Claims)(nil).Identity().Roles)
}
