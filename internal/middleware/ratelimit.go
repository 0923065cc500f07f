package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prn-tf/harper-profiles/internal/auth"
	"github.com/prn-tf/harper-profiles/internal/metrics"
)

// limiterIdleTTL is how long an untouched per-subject limiter survives
// before the cleanup loop drops it.
const limiterIdleTTL = 10 * time.Minute

// RateLimiterConfig holds rate limiting settings.
type RateLimiterConfig struct {
	// Rate is the token refill rate per subject (requests per second).
	Rate rate.Limit

	// Burst is the bucket capacity per subject.
	Burst int

	// CleanupInterval is how often idle limiters are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns the default rate limiting settings.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            10,
		Burst:           30,
		CleanupInterval: 5 * time.Minute,
	}
}

// subjectLimiter pairs a limiter with its last access time for eviction.
type subjectLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per authenticated subject.
// Unauthenticated requests are bucketed by remote address.
type RateLimiter struct {
	config   RateLimiterConfig
	mu       sync.Mutex
	limiters map[string]*subjectLimiter
	stopCh   chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*subjectLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Middleware returns the rate limiting middleware. It must run after the
// auth middleware so the subject identity is available.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if identity := auth.IdentityFrom(r.Context()); identity != nil && identity.Subject != "" {
				key = identity.Subject
			}

			if !rl.limiterFor(key).Allow() {
				metrics.RateLimited.Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limiterFor returns the limiter for key, creating it on first use.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &subjectLimiter{
			limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		}
		rl.limiters[key] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter
}

// cleanupLoop evicts limiters that have been idle past the TTL.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterIdleTTL)
			rl.mu.Lock()
			for key, entry := range rl.limiters {
				if entry.lastAccess.Before(cutoff) {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}
