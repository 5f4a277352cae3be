package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
)

// Timeout gives every request a deadline. When it passes, the client gets a
// 503 and the handler goroutine is abandoned: its writes go to a buffered
// writer and are discarded, so the request's outcome is unknown and the
// client must treat it as unresolved.
func Timeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) {
			c.Next()
		}),
		timeout.WithResponse(func(c *gin.Context) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "timeout",
				"message": "request timed out",
			})
		}),
	)
}
