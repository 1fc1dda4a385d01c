// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of mutating requests and
// annotates the request context so downstream code can:
//   - read the normalized key (GetIdempotencyKey)
//   - detect requests that will be served from a stored response (IsReplay)
//   - skip rate limiting for those replays (IsRateBypass)
//
// Storing and replaying responses is the service layer's job; this
// middleware only looks.
package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed marks responses served from a stored result.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a completed result already exists for this
// caller, operation and key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// OnError renders rejected keys. Nil uses the compact envelope.
	OnError ErrorWriter
}

// IdempotencyLookup reports whether (function, identity, key) has a live
// completed result.
type IdempotencyLookup func(ctx context.Context, function, identity, key string) bool

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyValidator validates the header for one operation. A missing
// header is a no-op; a malformed one is a 400. When lookup finds a completed
// result for the resolved caller the request is marked as a replay and
// excused from rate limiting.
func IdempotencyValidator(function string, opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortWith(c, opts.OnError, apperr.Validation("invalid Idempotency-Key").
				WithDetail("max_length", maxLen))
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if id := GetIdentity(c); lookup != nil && !id.IsZero() {
			if lookup(c.Request.Context(), function, id.ID(), key) {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
