package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealIP returns the client IP used for OTP rate limiting and audit rows.
// Deployments sit behind a reverse proxy, so proxy headers take precedence:
// X-Real-IP first, then the first public address in X-Forwarded-For, then
// gin's ClientIP for direct connections.
func GetRealIP(c *gin.Context) string {
	if ip := publicIP(c.Request.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For: client, proxy1, proxy2
	for _, part := range strings.Split(c.Request.Header.Get("X-Forwarded-For"), ",") {
		if ip := publicIP(part); ip != "" {
			return ip
		}
	}

	return c.ClientIP()
}

// publicIP returns the trimmed candidate when it parses as a public IP
// address, and "" otherwise.
func publicIP(candidate string) string {
	candidate = strings.TrimSpace(candidate)

	ip := net.ParseIP(candidate)
	if ip == nil || ip.IsPrivate() || ip.IsLoopback() {
		return ""
	}
	return candidate
}

// GetUserAgent returns the User-Agent header for audit rows, never empty
func GetUserAgent(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return "Unknown"
	}
	return ua
}
