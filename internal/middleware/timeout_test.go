package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func timeoutRouter(budget time.Duration, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Timeout(budget))
	router.GET("/work", handler)
	return router
}

func TestTimeout_FastHandlerPassesThrough(t *testing.T) {
	router := timeoutRouter(100*time.Millisecond, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestTimeout_SlowHandlerGets503(t *testing.T) {
	done := make(chan struct{})
	router := timeoutRouter(20*time.Millisecond, func(c *gin.Context) {
		defer close(done)
		time.Sleep(60 * time.Millisecond)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/work", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"timeout","message":"request timed out"}`, rec.Body.String())

	// The abandoned handler finishes after the 503 is committed; its late
	// write must not reach the response.
	<-done
	assert.JSONEq(t, `{"status":"timeout","message":"request timed out"}`, rec.Body.String())
}
