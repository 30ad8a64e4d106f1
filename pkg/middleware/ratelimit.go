package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/mediapruner/queue/internal/common"
)

// tokenBucket is one caller's allowance, refilled continuously at rate
// tokens per second up to burst capacity.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter is a per-key token bucket limiter. The zero value is not
// usable; use NewRateLimiter.
type RateLimiter struct {
	mu      sync.Mutex
	rate    int
	burst   int
	buckets map[string]*tokenBucket
}

// NewRateLimiter builds a limiter allowing rate requests per second per
// key, with a burst capacity of burst.
func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*tokenBucket),
	}
}

// Allow reports whether the caller identified by key may proceed,
// consuming one token if so.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &tokenBucket{tokens: float64(l.burst) - 1, lastRefill: now}
		l.buckets[key] = bucket
		return true
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens += elapsed * float64(l.rate)
	if bucket.tokens > float64(l.burst) {
		bucket.tokens = float64(l.burst)
	}
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// RateLimit is the general-purpose HTTP middleware built from a
// RateLimiter, keyed by remote address.
func RateLimit(rps, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr) {
				common.WriteError(w, http.StatusTooManyRequests, common.ErrTooManyRequests("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
