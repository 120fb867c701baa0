package api

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Analysis Throttling
//
//   one token bucket per client IP, refilled at ratePerMin/60 tokens a second
//   empty bucket → 429 {"detail"} plus Retry-After in whole seconds
//
// Only the request rate is throttled; concurrent jobs are not bounded.
// Buckets idle longer than idleTTL are swept on the request path, at most
// once per idleTTL, so the limiter owns no goroutine.

const idleTTL = 10 * time.Minute

type bucket struct {
	mu     sync.Mutex
	tokens float64
	seen   time.Time
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	perSec   float64
	capacity float64
	limit    string
	now      func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter allows ratePerMin requests a minute per IP with bursts of
// up to burst requests.
func NewRateLimiter(ratePerMin, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perSec:   float64(ratePerMin) / 60,
		capacity: float64(burst),
		limit:    fmt.Sprintf("%d requests/minute per IP", ratePerMin),
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// allow takes a token for ip, or reports how long until one is available.
func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	if rl.lastSweep.IsZero() {
		rl.lastSweep = now
	} else if now.Sub(rl.lastSweep) >= idleTTL {
		rl.sweepLocked(now.Add(-idleTTL))
		rl.lastSweep = now
	}
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.capacity, seen: now}
		rl.buckets[ip] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(rl.capacity, b.tokens+now.Sub(b.seen).Seconds()*rl.perSec)
	b.seen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / rl.perSec * float64(time.Second))
}

// Middleware rejects requests from IPs whose bucket is empty.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		seconds := int(wait.Seconds()) + 1
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail": fmt.Sprintf("Rate limit exceeded (%s). Retry in %ds.", rl.limit, seconds),
		})
	}
}

// sweep drops buckets last seen before cutoff.
func (rl *RateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepLocked(cutoff)
}

func (rl *RateLimiter) sweepLocked(cutoff time.Time) {
	for ip, b := range rl.buckets {
		b.mu.Lock()
		idle := b.seen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(rl.buckets, ip)
		}
	}
}
