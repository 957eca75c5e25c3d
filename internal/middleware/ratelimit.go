// Package middleware provides HTTP middleware for the explorer API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxBuckets is the maximum number of tracked keys to prevent memory exhaustion.
const maxBuckets = 100_000

// KeyFunc selects the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address. c.ClientIP() cannot be
// spoofed through X-Forwarded-For because the router trusts no proxies.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByProduct counts requests per product path parameter, so one product
// cannot be refreshed over and over whoever asks.
func ByProduct(c *gin.Context) string {
	return c.Param("name")
}

// RateLimiter implements a token bucket rate limiter per key.
type RateLimiter struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	rate    float64
	burst   int
	key     KeyFunc
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

func (rl *RateLimiter) allow(b *bucket, now time.Time) bool {
	b.tokens += now.Sub(b.lastFill).Seconds() * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}

	b.lastFill = now

	if b.tokens >= 1 {
		b.tokens--

		return true
	}

	return false
}

// NewRateLimiter creates a RateLimiter allowing ratePerSec requests per
// second with the given burst, per key. It starts a background goroutine to
// evict stale buckets, which stops when ctx is cancelled.
func NewRateLimiter(ctx context.Context, ratePerSec float64, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    ratePerSec,
		burst:   burst,
		key:     key,
	}
	go rl.startCleanup(ctx)

	return rl
}

// startCleanup periodically evicts stale buckets.
func (rl *RateLimiter) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	const maxAge = 10 * time.Minute

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for k, b := range rl.buckets {
				if now.Sub(b.lastFill) > maxAge {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Handler returns Gin middleware that applies the rate limit.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		k := rl.key(c)
		now := time.Now()

		rl.mu.Lock()
		b, ok := rl.buckets[k]
		if !ok {
			if len(rl.buckets) >= maxBuckets {
				rl.mu.Unlock()
				respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")

				return
			}

			b = &bucket{tokens: float64(rl.burst), lastFill: now}
			rl.buckets[k] = b
		}

		allowed := rl.allow(b, now)
		rl.mu.Unlock()

		if !allowed {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")

			return
		}

		c.Next()
	}
}
