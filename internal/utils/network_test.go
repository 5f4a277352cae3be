package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func requestWithHeaders(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	for k, v := range headers {
		c.Request.Header.Set(k, v)
	}
	return c
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "x-real-ip wins",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "203.0.113.7",
		},
		{
			name: "first public forwarded-for entry",
			headers: map[string]string{
				"X-Forwarded-For": "10.0.0.4, 203.0.113.7, 172.16.0.1",
			},
			want: "203.0.113.7",
		},
		{
			name:    "private x-real-ip is skipped",
			headers: map[string]string{"X-Real-IP": "192.168.1.20", "X-Forwarded-For": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "garbage headers fall through",
			headers: map[string]string{"X-Real-IP": "not-an-ip", "X-Forwarded-For": "also-not"},
			want:    "192.0.2.1", // httptest.NewRequest's RemoteAddr
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetRealIP(requestWithHeaders(tt.headers)))
		})
	}
}

func TestGetUserAgent_Empty(t *testing.T) {
	assert.Equal(t, "Unknown", GetUserAgent(requestWithHeaders(nil)))
}
