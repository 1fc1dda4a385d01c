package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

func newTestCache(t *testing.T) (*IdempotencyCache, *fixedClock) {
	t.Helper()
	c := NewIdempotencyCache(newSvcDB(t), 24*time.Hour, 5*time.Minute)
	clock := newClock()
	c.now = clock.Now
	return c, clock
}

type payload struct {
	A string `json:"a"`
	N int    `json:"n"`
}

func TestIdempotencyCache_Lifecycle(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()
	body := payload{A: "x", N: 1}

	out, err := c.Check(ctx, "fn", "u1", "k1", body)
	require.NoError(t, err)
	assert.False(t, out.Replay, "first call runs")

	_, err = c.Check(ctx, "fn", "u1", "k1", body)
	assert.ErrorIs(t, err, ErrRequestInProgress, "second call while processing")

	require.NoError(t, c.Store(ctx, "fn", "u1", "k1", map[string]string{"id": "o1"}))

	out, err = c.Check(ctx, "fn", "u1", "k1", body)
	require.NoError(t, err)
	require.True(t, out.Replay)
	assert.JSONEq(t, `{"id":"o1"}`, string(out.Response))

	// A different body under the same key still replays.
	out, err = c.Check(ctx, "fn", "u1", "k1", payload{A: "y"})
	require.NoError(t, err)
	assert.True(t, out.Replay)

	// After the TTL the key is free again.
	clock.Advance(24*time.Hour + time.Second)
	out, err = c.Check(ctx, "fn", "u1", "k1", body)
	require.NoError(t, err)
	assert.False(t, out.Replay)
}

func TestIdempotencyCache_ScopedByFunctionAndIdentity(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Check(ctx, "fn", "u1", "k1", nil)
	require.NoError(t, err)

	_, err = c.Check(ctx, "other_fn", "u1", "k1", nil)
	assert.NoError(t, err)
	_, err = c.Check(ctx, "fn", "u2", "k1", nil)
	assert.NoError(t, err)
}

func TestIdempotencyCache_FailedAndStaleRecordsAreReclaimed(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	_, err := c.Check(ctx, "fn", "u1", "k1", nil)
	require.NoError(t, err)
	require.NoError(t, c.MarkFailed(ctx, "fn", "u1", "k1", errors.New("boom")))

	out, err := c.Check(ctx, "fn", "u1", "k1", nil)
	require.NoError(t, err, "failed records let the next attempt run")
	assert.False(t, out.Replay)

	// Abandoned while processing: blocked until the processing TTL lapses.
	_, err = c.Check(ctx, "fn", "u1", "k1", nil)
	assert.ErrorIs(t, err, ErrRequestInProgress)
	clock.Advance(5*time.Minute + time.Second)
	_, err = c.Check(ctx, "fn", "u1", "k1", nil)
	assert.NoError(t, err)

	rec, err := repo.GetIdempotency(ctx, c.DB, "fn", "u1", "k1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdemProcessing, rec.Status)
	assert.True(t, rec.ExpiresAt.Equal(clock.Now().Add(5*time.Minute)))
}

func TestIdempotencyCache_FailsOpen(t *testing.T) {
	c := NewIdempotencyCache(newSvcDB(t, &domain.User{}), 0, 0)
	for i := 0; i < 2; i++ {
		out, err := c.Check(context.Background(), "fn", "u1", "k1", nil)
		require.NoError(t, err)
		assert.False(t, out.Replay)
	}
	assert.Equal(t, DefaultIdempotencyTTL, c.TTL)
	assert.Equal(t, DefaultIdempotencyProcessingTTL, c.ProcessingTTL)
}

func TestIdempotencyCache_Purge(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	_, _ = c.Check(ctx, "fn", "u1", "old", nil)
	clock.Advance(time.Hour)
	_, _ = c.Check(ctx, "fn", "u1", "new", nil)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetIdempotency(ctx, c.DB, "fn", "u1", "new")
	assert.NoError(t, err)
}

func TestRequestHash(t *testing.T) {
	a := RequestHash(payload{A: "x", N: 1})
	assert.Len(t, a, 64)
	assert.Equal(t, a, RequestHash(payload{A: "x", N: 1}))
	assert.NotEqual(t, a, RequestHash(payload{A: "x", N: 2}))
	assert.Equal(t, RequestHash(map[string]int{"a": 1, "b": 2}), RequestHash(map[string]int{"b": 2, "a": 1}))
}

func TestRunIdempotent(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (*payload, error) {
		calls++
		return &payload{A: "result", N: calls}, nil
	}

	first, err := runIdempotent(ctx, c, "fn", "u1", "k1", nil, op)
	require.NoError(t, err)
	second, err := runIdempotent(ctx, c, "fn", "u1", "k1", nil, op)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	// No key means no caching.
	_, _ = runIdempotent(ctx, c, "fn", "u1", "", nil, op)
	_, _ = runIdempotent(ctx, c, "fn", "u1", "", nil, op)
	assert.Equal(t, 3, calls)

	// Failures release the key.
	boom := errors.New("boom")
	_, err = runIdempotent(ctx, c, "fn", "u1", "k2", nil, func(context.Context) (*payload, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	got, err := runIdempotent(ctx, c, "fn", "u1", "k2", nil, op)
	require.NoError(t, err)
	assert.Equal(t, 4, got.N)

	rec, err := repo.GetIdempotency(ctx, c.DB, "fn", "u1", "k2")
	require.NoError(t, err)
	var stored payload
	require.NoError(t, json.Unmarshal(rec.Response, &stored))
	assert.Equal(t, *got, stored)
}

func TestIdempotencyCache_Completed(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	assert.False(t, c.Completed(ctx, "fn", "u1", "k1"))
	_, err := c.Check(ctx, "fn", "u1", "k1", nil)
	require.NoError(t, err)
	assert.False(t, c.Completed(ctx, "fn", "u1", "k1"), "still processing")

	require.NoError(t, c.Store(ctx, "fn", "u1", "k1", "ok"))
	assert.True(t, c.Completed(ctx, "fn", "u1", "k1"))
	assert.False(t, c.Completed(ctx, "fn", "u2", "k1"))

	clock.Advance(25 * time.Hour)
	assert.False(t, c.Completed(ctx, "fn", "u1", "k1"), "expired")

	var nilCache *IdempotencyCache
	assert.False(t, nilCache.Completed(ctx, "fn", "u1", "k1"))
}
