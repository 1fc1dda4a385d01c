package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-pickup-backend/internal/services"
)

// job is a periodic maintenance task.
type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int64, error)
}

// loop runs j every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (j job) loop(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.tick(ctx)
		}
	}
}

func (j job) tick(ctx context.Context) {
	start := time.Now()
	n, err := j.run(ctx)
	if err != nil {
		log.Error().Err(err).Str("job", j.name).Msg("background job failed")
		return
	}
	log.Debug().
		Str("job", j.name).
		Int64("deleted", n).
		Dur("took", time.Since(start)).
		Msg("background job done")
}

func rateLimitCleanup(l *services.RateLimiter, every, retention time.Duration) job {
	return job{
		name:     "rate_limit_cleanup",
		interval: every,
		run: func(ctx context.Context) (int64, error) {
			return l.Cleanup(ctx, retention)
		},
	}
}

func idempotencyPurge(c *services.IdempotencyCache, every time.Duration) job {
	return job{
		name:     "idempotency_purge",
		interval: every,
		run:      c.Purge,
	}
}
