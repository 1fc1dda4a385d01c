package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// Rate-limited function names.
const (
	FnCreateOrder        = "create_order"
	FnChangeOrderStatus  = "change_order_status"
	FnGeneratePickupCode = "generate_pickup_code"
	FnMigrateGuestData   = "migrate_guest_data"
	FnReportUser         = "report_user"
)

// Limit is the budget of one function: Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// Limits is an immutable function→Limit table.
type Limits struct {
	m map[string]Limit
}

// NewLimits copies in; later changes to in do not affect the table.
func NewLimits(in map[string]Limit) Limits {
	m := make(map[string]Limit, len(in))
	for k, v := range in {
		m[k] = v
	}
	return Limits{m: m}
}

// DefaultLimits returns the production budgets.
func DefaultLimits() Limits {
	return NewLimits(map[string]Limit{
		FnCreateOrder:        {Max: 10, Window: time.Minute},
		FnChangeOrderStatus:  {Max: 20, Window: time.Minute},
		FnGeneratePickupCode: {Max: 5, Window: time.Minute},
		FnMigrateGuestData:   {Max: 1, Window: time.Hour},
		FnReportUser:         {Max: 3, Window: 24 * time.Hour},
	})
}

// Lookup returns the limit for function.
func (l Limits) Lookup(function string) (Limit, bool) {
	v, ok := l.m[function]
	return v, ok
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Rate limiter decision outcomes (metrics labels).
const (
	rlAllowed  = "allowed"
	rlLimited  = "limited"
	rlFailOpen = "fail_open"
	rlUnknown  = "unlimited"
)

// RateLimiter is a persistent sliding-window limiter. Every counted request
// is a row, so the window is exact and shared by every instance using the
// same datastore.
//
// Counting and recording are two statements; a burst of concurrent requests
// from one identity can overshoot Max by the number of requests in flight.
type RateLimiter struct {
	DB     *gorm.DB
	Limits Limits

	now func() time.Time
}

// NewRateLimiter builds a limiter over limits.
func NewRateLimiter(db *gorm.DB, limits Limits) *RateLimiter {
	return &RateLimiter{DB: db, Limits: limits, now: repo.Now}
}

// Check decides whether identity may call function now and, if so, records
// the request. Datastore errors allow the request.
func (l *RateLimiter) Check(ctx context.Context, function, identity string) Decision {
	ctx, span := observability.StartSpan(ctx, "services/RateLimiter", "Check",
		attribute.String("ratelimit.function", function),
	)
	defer span.End()

	lim, ok := l.Limits.Lookup(function)
	if !ok || lim.Max <= 0 {
		observability.RateLimitDecision(function, rlUnknown)
		return Decision{Allowed: true}
	}

	now := l.clock()
	count, oldest, err := repo.RateLimitWindow(ctx, l.DB, function, identity, now.Add(-lim.Window))
	if err != nil {
		log.Warn().Err(err).Str("function", function).Str("identity", identity).Msg("rate limit check failed; allowing request")
		observability.RateLimitDecision(function, rlFailOpen)
		return Decision{Allowed: true, Limit: lim.Max, Remaining: lim.Max}
	}

	if count >= int64(lim.Max) {
		reset := oldest.Add(lim.Window)
		retry := reset.Sub(now)
		retry = (retry + time.Second - 1).Truncate(time.Second)
		if retry < time.Second {
			retry = time.Second
		}
		span.SetAttributes(attribute.Bool("ratelimit.allowed", false))
		observability.RateLimitDecision(function, rlLimited)
		return Decision{Allowed: false, Limit: lim.Max, Remaining: 0, RetryAfter: retry, ResetAt: now.Add(retry)}
	}

	if err := repo.RecordRateLimitRequest(ctx, l.DB, function, identity, now); err != nil {
		log.Warn().Err(err).Str("function", function).Str("identity", identity).Msg("record rate limit request failed")
	}
	resetAt := now.Add(lim.Window)
	if count > 0 {
		resetAt = oldest.Add(lim.Window)
	}
	observability.RateLimitDecision(function, rlAllowed)
	return Decision{
		Allowed:   true,
		Limit:     lim.Max,
		Remaining: lim.Max - int(count) - 1,
		ResetAt:   resetAt,
	}
}

// Cleanup deletes counted requests older than retention.
func (l *RateLimiter) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return repo.DeleteRateLimitRequestsBefore(ctx, l.DB, l.clock().Add(-retention))
}

// Err converts a denied decision into ErrRateLimited with its retry hint.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return ErrRateLimited.WithRetryAfter(d.RetryAfter).WithDetail("limit", d.Limit)
}

func (l *RateLimiter) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return repo.Now()
}
