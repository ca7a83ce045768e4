package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiterAllow(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.allow("10.0.0.1", start)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
	}

	allowed, retryAfter := limiter.allow("10.0.0.1", start.Add(30*time.Second))
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, retryAfter)

	// Another client is counted independently.
	allowed, _ = limiter.allow("10.0.0.2", start)
	assert.True(t, allowed)

	// A new window starts once the old one has elapsed.
	allowed, _ = limiter.allow("10.0.0.1", start.Add(time.Minute))
	assert.True(t, allowed)
}

func TestLoginRateLimiterRetryAfterFloor(t *testing.T) {
	limiter := NewLoginRateLimiter(1, time.Minute)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	limiter.allow("10.0.0.1", start)
	_, retryAfter := limiter.allow("10.0.0.1", start.Add(time.Minute-time.Millisecond))
	assert.Equal(t, time.Second, retryAfter)
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/accounts/login", nil)
		req.RemoteAddr = "192.0.2.1:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
