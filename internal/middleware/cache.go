package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PrivateCache lets only the student's own browser cache the response.
// Shared caches must never keep per-token responses.
func PrivateCache(maxAge time.Duration) gin.HandlerFunc {
	value := "private, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}

// NoStore forbids caching, for state that changes every second.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
