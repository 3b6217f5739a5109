package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meruscrap/pimapos/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTests()
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), NewRateLimiter(cfg))
	r.POST("/recover", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"status": "recovery_started"})
	})
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/recover", nil)
	req.RemoteAddr = "10.0.0.7:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	r := newLimitedRouter(RateLimitConfig{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusAccepted, hit(r).Code)
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	r := newLimitedRouter(RateLimitConfig{Limit: 2, Window: time.Minute})

	hit(r)
	hit(r)
	w := hit(r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	r := newLimitedRouter(RateLimitConfig{Limit: 1, Window: time.Minute})

	assert.Equal(t, http.StatusAccepted, hit(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r).Code)

	req := httptest.NewRequest("POST", "/recover", nil)
	req.RemoteAddr = "10.0.0.8:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(1, 100) // refills fast enough to observe in a test

	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "pos-shell-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "pos-shell-42", w.Header().Get("X-Request-ID"))
}
