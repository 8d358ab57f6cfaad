package middleware

import (
	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header on every response of the group.
func CacheControl(value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// NoStore keeps exam papers, drafts and results out of shared and browser
// caches.
func NoStore() gin.HandlerFunc {
	return CacheControl("no-store, private")
}
