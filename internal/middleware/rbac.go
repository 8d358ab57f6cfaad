package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agep/exam-backend/internal/response"
)

// RequireAnyRole checks that the token carries at least one of roles.
func RequireAnyRole(code response.ErrCode, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		id := claims.Identity()
		for _, role := range roles {
			if id.HasRole(role) {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, code)
	}
}
