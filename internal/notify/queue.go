// Package notify runs post-commit side effects (system chat messages,
// notifications) outside the request path.
//
// Services hand work to an Effects runner after their transaction commits.
// Queue is the production runner: a bounded buffer drained by a fixed
// errgroup of workers, each task bounded by a timeout and guarded against
// panics. Enqueue never blocks; when the buffer is full the task is dropped
// and logged. A failed or dropped effect never changes the outcome of the
// operation that produced it.
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Task is one deferred side effect.
type Task func(ctx context.Context) error

// Effects accepts side effects to run after a commit.
type Effects interface {
	Enqueue(name string, fn Task)
}

// Outcomes reported to an Observer.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
	OutcomeDropped = "dropped"
)

// Observer is notified once per task with its final outcome.
type Observer func(name, outcome string)

type job struct {
	name string
	fn   Task
}

// Queue is a bounded asynchronous Effects runner.
type Queue struct {
	tasks   chan job
	workers int
	timeout time.Duration
	observe Observer

	mu     sync.RWMutex
	closed bool
}

// NewQueue builds a queue holding up to buffer pending tasks, drained by
// workers goroutines once Run is called. Each task gets timeout.
func NewQueue(workers, buffer int, timeout time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Queue{
		tasks:   make(chan job, buffer),
		workers: workers,
		timeout: timeout,
		observe: func(string, string) {},
	}
}

// WithObserver sets the outcome callback (metrics). Call before Run.
func (q *Queue) WithObserver(o Observer) *Queue {
	if o != nil {
		q.observe = o
	}
	return q
}

// Enqueue schedules fn without blocking. A full or closed queue drops it.
func (q *Queue) Enqueue(name string, fn Task) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		log.Warn().Str("effect", name).Msg("effects queue closed; dropping task")
		q.observe(name, OutcomeDropped)
		return
	}
	select {
	case q.tasks <- job{name: name, fn: fn}:
	default:
		log.Warn().Str("effect", name).Int("capacity", cap(q.tasks)).Msg("effects queue full; dropping task")
		q.observe(name, OutcomeDropped)
	}
}

// Pending returns the number of queued tasks.
func (q *Queue) Pending() int { return len(q.tasks) }

// Close stops accepting tasks. Workers drain what is already queued and
// Run returns once they are done.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Run starts the workers and blocks until Close has been called and the
// buffer is drained. ctx is the parent of every task context; cancelling it
// aborts in-flight tasks but queued ones are still taken off the buffer.
func (q *Queue) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for j := range q.tasks {
				q.execute(ctx, j)
			}
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) execute(parent context.Context, j job) {
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()

	outcome := OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			log.Error().
				Str("effect", j.name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("effect panicked")
		}
		q.observe(j.name, outcome)
	}()

	if err := j.fn(ctx); err != nil {
		outcome = OutcomeError
		log.Warn().Err(err).Str("effect", j.name).Msg("effect failed")
	}
}

// Inline runs every task synchronously on Enqueue. Failures are logged and
// swallowed exactly like Queue does.
type Inline struct{}

// Enqueue runs fn immediately with a background context.
func (Inline) Enqueue(name string, fn Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("effect", name).Str("panic", fmt.Sprint(r)).Msg("effect panicked")
		}
	}()
	if err := fn(context.Background()); err != nil {
		log.Warn().Err(err).Str("effect", name).Msg("effect failed")
	}
}
