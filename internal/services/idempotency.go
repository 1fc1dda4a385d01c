package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

// MaxIdempotencyKeyLen bounds caller-supplied keys.
const MaxIdempotencyKeyLen = 200

// Default lifetimes of idempotency records.
const (
	DefaultIdempotencyTTL           = 24 * time.Hour
	DefaultIdempotencyProcessingTTL = 5 * time.Minute
)

// Check outcomes (metrics labels).
const (
	idemNew        = "new"
	idemReplay     = "replay"
	idemInProgress = "in_progress"
	idemReclaimed  = "reclaimed"
	idemFailOpen   = "fail_open"
)

// Outcome tells the caller what to do after Check.
type Outcome struct {
	// Replay is set when a completed response exists; Response holds it
	// verbatim and the operation must not run again.
	Replay   bool
	Response datatypes.JSON
}

// IdempotencyCache deduplicates mutating calls by (function, identity, key).
//
// Check claims the key by inserting a processing record; the unique index
// makes that claim atomic. The operation then ends with Store (success) or
// MarkFailed (the next attempt may run again).
type IdempotencyCache struct {
	DB            *gorm.DB
	TTL           time.Duration
	ProcessingTTL time.Duration

	now func() time.Time
}

// NewIdempotencyCache builds a cache. Non-positive TTLs take the defaults.
func NewIdempotencyCache(db *gorm.DB, ttl, processingTTL time.Duration) *IdempotencyCache {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if processingTTL <= 0 {
		processingTTL = DefaultIdempotencyProcessingTTL
	}
	return &IdempotencyCache{DB: db, TTL: ttl, ProcessingTTL: processingTTL, now: repo.Now}
}

// RequestHash fingerprints a request body: sha256 over its JSON encoding.
// encoding/json writes struct fields in declaration order and map keys
// sorted, so equal values hash equally.
func RequestHash(body any) string {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte{}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Check claims key for the call or reports how an earlier call ended.
// Datastore failures other than the ones below let the call proceed.
//
//   - no live record: a processing record is inserted, Outcome{} returned
//   - completed and unexpired: Outcome{Replay: true}
//   - processing and unexpired: ErrRequestInProgress
//   - failed or expired: the record is reclaimed and Outcome{} returned
func (c *IdempotencyCache) Check(ctx context.Context, function, identity, key string, body any) (out Outcome, err error) {
	ctx, span := observability.StartSpan(ctx, "services/IdempotencyCache", "Check",
		attribute.String("idempotency.function", function),
	)
	defer func() { observability.EndSpan(span, err) }()

	now := c.clock()
	hash := RequestHash(body)
	rec := &domain.IdempotencyRecord{
		ID:           uuid.NewString(),
		FunctionName: function,
		Key:          key,
		Identity:     identity,
		RequestHash:  hash,
		Status:       domain.IdemProcessing,
		ExpiresAt:    now.Add(c.ProcessingTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	cerr := repo.CreateIdempotency(ctx, c.DB, rec)
	if cerr == nil {
		observability.IdempotencyOutcome(function, idemNew)
		return Outcome{}, nil
	}
	if !errors.Is(cerr, repo.ErrDuplicate) {
		c.failOpen(function, identity, cerr)
		return Outcome{}, nil
	}

	existing, gerr := repo.GetIdempotency(ctx, c.DB, function, identity, key)
	if gerr != nil {
		if errors.Is(gerr, repo.ErrNotFound) {
			// Purged between the insert and the read.
			observability.IdempotencyOutcome(function, idemInProgress)
			return Outcome{}, ErrRequestInProgress
		}
		c.failOpen(function, identity, gerr)
		return Outcome{}, nil
	}

	live := !existing.Expired(now)
	switch {
	case live && existing.Status == domain.IdemCompleted:
		if existing.RequestHash != hash {
			log.Warn().
				Str("function", function).
				Str("identity", identity).
				Msg("idempotency key reused with a different request body; replaying stored response")
		}
		observability.IdempotencyOutcome(function, idemReplay)
		return Outcome{Replay: true, Response: existing.Response}, nil

	case live && existing.Status == domain.IdemProcessing:
		observability.IdempotencyOutcome(function, idemInProgress)
		return Outcome{}, ErrRequestInProgress
	}

	rerr := repo.ReclaimIdempotency(ctx, c.DB, existing, hash, now.Add(c.ProcessingTTL), now)
	switch {
	case rerr == nil:
		observability.IdempotencyOutcome(function, idemReclaimed)
		return Outcome{}, nil
	case errors.Is(rerr, repo.ErrConflict):
		observability.IdempotencyOutcome(function, idemInProgress)
		return Outcome{}, ErrRequestInProgress
	default:
		c.failOpen(function, identity, rerr)
		return Outcome{}, nil
	}
}

// Store completes the record with response and extends it to the full TTL.
func (c *IdempotencyCache) Store(ctx context.Context, function, identity, key string, response any) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return errors.Wrap(err, "encode idempotent response")
	}
	now := c.clock()
	return repo.CompleteIdempotency(ctx, c.DB, function, identity, key, raw, now.Add(c.TTL), now)
}

// MarkFailed releases the key so the next attempt runs the operation.
func (c *IdempotencyCache) MarkFailed(ctx context.Context, function, identity, key string, cause error) error {
	reason := "failed"
	if cause != nil {
		reason = cause.Error()
	}
	return repo.FailIdempotency(ctx, c.DB, function, identity, key, reason, c.clock())
}

// Completed reports whether a live completed record exists, i.e. whether a
// call with this key would be replayed. Lookup errors count as false.
func (c *IdempotencyCache) Completed(ctx context.Context, function, identity, key string) bool {
	if c == nil || key == "" {
		return false
	}
	rec, err := repo.GetIdempotency(ctx, c.DB, function, identity, key)
	if err != nil {
		return false
	}
	return rec.Status == domain.IdemCompleted && !rec.Expired(c.clock())
}

// Purge deletes expired records.
func (c *IdempotencyCache) Purge(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredIdempotency(ctx, c.DB, c.clock())
}

func (c *IdempotencyCache) failOpen(function, identity string, err error) {
	log.Warn().Err(err).Str("function", function).Str("identity", identity).Msg("idempotency check failed; proceeding without deduplication")
	observability.IdempotencyOutcome(function, idemFailOpen)
}

func (c *IdempotencyCache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return repo.Now()
}

// validateIdempotencyKey checks an optional key's length.
func validateIdempotencyKey(key string) error {
	if len(key) > MaxIdempotencyKeyLen {
		return apperr.Validation("idempotency key must be at most 200 characters")
	}
	return nil
}

// runIdempotent wraps fn with the cache. An empty key or a nil cache runs fn
// directly. A replayed response is decoded into T.
func runIdempotent[T any](ctx context.Context, c *IdempotencyCache, function, identity, key string, body any, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || key == "" {
		return fn(ctx)
	}

	out, err := c.Check(ctx, function, identity, key, body)
	if err != nil {
		return zero, err
	}
	if out.Replay {
		var v T
		if uerr := json.Unmarshal(out.Response, &v); uerr != nil {
			log.Error().Err(uerr).Str("function", function).Msg("stored idempotent response is unreadable")
			return zero, apperr.Internal
		}
		return v, nil
	}

	res, err := fn(ctx)
	if err != nil {
		if merr := c.MarkFailed(ctx, function, identity, key, err); merr != nil {
			log.Warn().Err(merr).Str("function", function).Msg("mark idempotency record failed")
		}
		return zero, err
	}
	if serr := c.Store(ctx, function, identity, key, res); serr != nil {
		log.Warn().Err(serr).Str("function", function).Msg("store idempotent response")
	}
	return res, nil
}
