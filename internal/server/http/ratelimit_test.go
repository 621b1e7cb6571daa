package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDiscardLogger(), metrics.Noop{})
	defer rl.Stop()

	h := rl.Middleware("login")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5001"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:5000"))
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDiscardLogger(), metrics.Noop{})
	defer rl.Stop()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.get("10.0.0.1")
	now = now.Add(rl.cleanupInterval)
	rl.get("10.0.0.2")

	now = now.Add(rl.cleanupInterval + time.Second)
	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.NotContains(t, rl.clients, "10.0.0.1")
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRateLimiterStopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.NewDiscardLogger(), metrics.Noop{})
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 1, (&RateLimiter{limit: 5}).retryAfter())
	assert.Equal(t, 4, (&RateLimiter{limit: 0.25}).retryAfter())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
