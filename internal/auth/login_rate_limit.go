package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"payment-platform/internal/observability"
)

// LoginRateLimiter throttles login attempts per client IP over a fixed
// window. Purely in-memory; each instance counts only its own traffic.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	windows   map[string]*hitWindow
	maxMemory int
}

type hitWindow struct {
	startedAt time.Time
	hits      int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		windows:   make(map[string]*hitWindow),
		maxMemory: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(observability.ClientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.windows[ip]
	if window == nil || now.Sub(window.startedAt) >= l.window {
		if len(l.windows) > l.maxMemory {
			l.evictStale(now)
		}
		l.windows[ip] = &hitWindow{startedAt: now, hits: 1}
		return true, 0
	}

	window.hits++
	if window.hits > l.maxHits {
		retryAfter := window.startedAt.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	return true, 0
}

func (l *LoginRateLimiter) evictStale(now time.Time) {
	threshold := now.Add(-l.window)
	for key, window := range l.windows {
		if window.startedAt.Before(threshold) {
			delete(l.windows, key)
		}
	}
}
