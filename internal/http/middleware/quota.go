package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pickup-backend/internal/services"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// QuotaChecker decides whether identity may call function now.
type QuotaChecker interface {
	Check(ctx context.Context, function, identity string) services.Decision
}

// Quota enforces the per-operation quota of function for the resolved
// caller and reports it in the X-RateLimit-* headers. Anonymous requests
// and idempotent replays are not counted.
func Quota(checker QuotaChecker, function string, onError ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if checker == nil || id.IsZero() || IsRateBypass(c) {
			c.Next()
			return
		}

		d := checker.Check(c.Request.Context(), function, id.ID())
		if d.Limit > 0 {
			h := c.Writer.Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
			if !d.ResetAt.IsZero() {
				h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
			}
		}
		if !d.Allowed {
			LoggerFrom(c).Warn().
				Str("function", function).
				Str("identity", id.ID()).
				Dur("retry_after", d.RetryAfter).
				Msg("quota exceeded")
			abortWith(c, onError, d.Err())
			return
		}
		c.Next()
	}
}
