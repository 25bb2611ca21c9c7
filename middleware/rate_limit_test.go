package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedRouter(perMinute, burst int) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(RateLimit(perMinute, burst))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func hit(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	router := rateLimitedRouter(5, 5)

	for i := range 5 {
		assert.Equal(t, http.StatusOK, hit(router, "192.168.1.1").Code, "request %d", i+1)
	}

	w := hit(router, "192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimitDifferentIPs(t *testing.T) {
	router := rateLimitedRouter(2, 2)

	for range 3 {
		hit(router, "10.0.0.1")
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(router, "10.0.0.2").Code, "a new IP has its own bucket")
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(120, 10)
	assert.Equal(t, rate.Limit(2), limiter.limit)
	assert.Equal(t, 10, limiter.burst)

	assert.Equal(t, 30, NewRateLimiter(30, 0).burst, "burst defaults to the per-minute rate")
	assert.Equal(t, 1, NewRateLimiter(0, 0).burst)
}

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
	assert.Len(t, limiter.clients, 2)
}
