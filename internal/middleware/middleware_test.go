package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "middleware-secret"})
}

func token(t *testing.T, auth *service.AuthService, uid int, ttl time.Duration, roles ...string) string {
	t.Helper()
	tok, err := auth.GenerateToken(uid, roles, ttl)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/me", RequireJWT(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetIdentity(c).UserID})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth, 5, -time.Minute))
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = serve(r, req)
	assert.Contains(t, w.Body.String(), "TOKEN_INVALID")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token(t, auth, 5, time.Hour))
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+token(t, auth, 6, time.Hour), nil))
	assert.JSONEq(t, `{"user_id":6}`, w.Body.String())
}

func TestRequireAnyRole(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/staff", RequireJWT(auth), RequireAnyRole("INSTRUCTOR_ACCESS_ONLY", service.RoleInstructor, service.RoleAdministrator),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth, 5, time.Hour, service.RoleStudent))
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "INSTRUCTOR_ACCESS_ONLY")

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth, 5, time.Hour, "Administrator"))
	w = serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiterPerUser(t *testing.T) {
	auth := newAuth()
	rl := NewRateLimiter(2, time.Minute, ByUser)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/submit", RequireJWT(auth), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(uid int) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, auth, uid, time.Hour))
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, call(1).Code)
	assert.Equal(t, http.StatusOK, call(1).Code)
	w := call(1)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call(2).Code)

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, call(1).Code)
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("accessible exams ", 200)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := serve(r, req)
	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, large, string(body))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "br;q=0")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "br")
	req.Header.Set("Accept", "text/event-stream")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/x", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "no-store, private", w.Header().Get("Cache-Control"))
}
