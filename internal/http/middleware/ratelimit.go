// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the edge throttle: an in-memory token bucket per
// caller that caps raw request rate before any datastore work happens. It
// complements the persistent per-operation quotas (see quota.go), which are
// exact and shared across instances but cost a query per request.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Buckets keyed by resolved identity, falling back to client IP
//   - Opportunistic eviction of idle buckets to bound memory
//   - Idempotent replays bypass the throttle
package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-pickup-backend/internal/services"
)

// keyFunc selects the bucket for a request.
type keyFunc func(*gin.Context) string

// KeyByIdentityOrIP buckets registered users, guests and anonymous clients
// in separate namespaces ("user:<id>", "guest:<id>", "ip:<addr>").
func KeyByIdentityOrIP() keyFunc {
	return func(c *gin.Context) string {
		id := GetIdentity(c)
		switch {
		case id.UserID != "":
			return "user:" + id.UserID
		case id.IsGuest():
			return "guest:" + id.GuestID
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	onError  ErrorWriter
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	sweepN   uint64
	sweepMax uint64
	now      func() time.Time
}

// NewRateLimiter builds a throttle refilling rps tokens per second with the
// given burst (coerced to at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, onError ErrorWriter) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIdentityOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		onError:  onError,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		sweepMax: 5000,
		now:      time.Now,
	}
}

// getVisitor returns the bucket for key, creating it on first use. Every
// sweepMax lookups idle buckets are evicted; the sweep runs before the
// lookup so a stale bucket is not refreshed by the request that finds it.
func (rl *RateLimiter) getVisitor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepN++
	if rl.sweepN >= rl.sweepMax {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.sweepN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator excused this request
// from throttling.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler throttles requests. A rejected request gets 429 with Retry-After
// set to the time until its next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		lim := rl.getVisitor(rl.keyFn(c), now)
		res := lim.ReserveN(now, 1)
		if !res.OK() {
			abortWith(c, rl.onError, services.ErrRateLimited.WithRetryAfter(time.Second))
			return
		}
		delay := res.DelayFrom(now)
		if delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)
		if delay < time.Second {
			delay = time.Second
		}
		abortWith(c, rl.onError, services.ErrRateLimited.WithRetryAfter(delay))
	}
}

