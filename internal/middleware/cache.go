package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids any caching of the response. Test papers, answers and
// countdowns are per-taker and time-sensitive; a cached copy is always wrong.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
