package http

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"golang.org/x/time/rate"
)

const defaultCleanupInterval = 5 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests per client address. Idle clients are
// dropped by a background loop that runs until Stop.
type RateLimiter struct {
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	logger          logging.Logger
	metrics         metrics.Recorder

	mu      sync.RWMutex
	clients map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRateLimiter starts a limiter allowing perSecond requests per client
// with the given burst.
func NewRateLimiter(perSecond float64, burst int, l logging.Logger, m metrics.Recorder) *RateLimiter {
	rl := &RateLimiter{
		limit:           rate.Limit(perSecond),
		burst:           burst,
		cleanupInterval: defaultCleanupInterval,
		logger:          l,
		metrics:         m,
		clients:         make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429. route labels the
// rejection in metrics and logs.
func (rl *RateLimiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.get(ip).Allow() {
				rl.metrics.RateLimited(route)
				rl.logger.Warn(r.Context(), "rate limit exceeded", "ip", ip, "route", route)
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				writeError(w, rateLimited, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Clients is the number of tracked client addresses.
func (rl *RateLimiter) Clients() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.RLock()
	cl, ok := rl.clients[ip]
	rl.mu.RUnlock()

	if ok {
		rl.mu.Lock()
		cl.lastAccess = rl.now()
		rl.mu.Unlock()
		return cl.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.clients[ip]; ok {
		cl.lastAccess = rl.now()
		return cl.limiter
	}
	cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst), lastAccess: rl.now()}
	rl.clients[ip] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops clients idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup() {
	ttl := rl.cleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.clients, ip)
		}
	}
}

// retryAfter is the number of seconds until one token is refilled.
func (rl *RateLimiter) retryAfter() int {
	secs := int(math.Ceil(1.0 / float64(rl.limit)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// clientIP is the request's remote address without the port. When the
// router trusts proxy headers, chi's RealIP has already rewritten it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
