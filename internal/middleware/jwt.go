package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

var errTokenMissing = errors.New("authorization header or token query required")

// RequireJWT validates a bearer token from the Authorization header, or from
// ?token= for EventSource and WebSocket clients that cannot send headers.
func RequireJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		switch {
		case errors.Is(err, errTokenMissing):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		case errors.Is(err, jwt.ErrTokenExpired):
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		case err != nil:
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetIdentity returns the caller identity, the zero Identity when the
// request carries no valid token.
func GetIdentity(c *gin.Context) service.Identity {
	return GetClaims(c).Identity()
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = strings.TrimSpace(parts[1])
		}
	}

	// Fallback for EventSource (SSE) and WebSocket which cannot send headers
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, errTokenMissing
	}

	return authService.ValidateToken(tokenStr)
}
