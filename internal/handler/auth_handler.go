package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/response"
)

// AuthHandler exposes the caller's token identity. Tokens are issued by the
// school's account system; this service only verifies them.
type AuthHandler struct{}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me godoc
// GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	body := gin.H{
		"user_id": claims.UserID,
		"roles":   claims.Roles,
	}
	if claims.ExpiresAt != nil {
		body["expires_at"] = claims.ExpiresAt.Time
	}
	response.Success(c, http.StatusOK, body)
}
