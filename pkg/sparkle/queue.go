package sparkle

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// Operation is one queued unit of work.
type Operation func(ctx context.Context) error

// Queue runs at most limit operations at once, keyed by bundle id.
// CancelAll only affects operations that have not started yet.
type Queue struct {
	sem    *semaphore.Weighted
	limit  int
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	gen    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// NewQueue creates a queue. limit is clamped to [1, MaxSparkleOperations].
func NewQueue(limit int) *Queue {
	if limit <= 0 || limit > config.MaxSparkleOperations {
		limit = config.MaxSparkleOperations
	}
	gen, cancel := context.WithCancel(context.Background())
	return &Queue{
		sem:    semaphore.NewWeighted(int64(limit)),
		limit:  limit,
		logger: logging.GetLogger("sparkle.queue"),
		active: make(map[string]struct{}),
		gen:    gen,
		cancel: cancel,
	}
}

// Limit is the concurrency cap.
func (q *Queue) Limit() int { return q.limit }

// Enqueue schedules op for bundleID. done, if set, receives the outcome
// after the entry has left the queue. ctx is handed to op once it runs.
func (q *Queue) Enqueue(ctx context.Context, bundleID string, op Operation, done func(error)) error {
	gen, ok := q.add(bundleID)
	if !ok {
		return errors.Newf(errors.ErrAlreadyQueued, "%s is already queued", bundleID)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		err := q.execute(ctx, gen, bundleID, op)
		q.remove(bundleID)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func (q *Queue) execute(ctx, gen context.Context, bundleID string, op Operation) error {
	if err := q.sem.Acquire(gen, 1); err != nil {
		return errors.Wrapf(err, errors.ErrCanceled, "%s canceled before start", bundleID)
	}
	defer q.sem.Release(1)

	if gen.Err() != nil {
		return errors.Wrapf(gen.Err(), errors.ErrCanceled, "%s canceled before start", bundleID)
	}
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), errors.ErrCanceled, "%s canceled before start", bundleID)
	}

	q.logger.Debug().Str("bundleId", bundleID).Msg("Operation started")
	return op(ctx)
}

// Contains reports whether bundleID is queued or running.
func (q *Queue) Contains(bundleID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.active[bundleID]
	return ok
}

// Len is the number of queued and running operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// CancelAll cancels every operation that has not started. Operations
// enqueued afterwards run normally.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancel()
	q.gen, q.cancel = context.WithCancel(context.Background())
	q.logger.Info().Int("pending", len(q.active)).Msg("Canceled queued updates")
}

// Wait blocks until every enqueued operation has finished.
func (q *Queue) Wait() { q.wg.Wait() }

func (q *Queue) add(bundleID string) (context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.active[bundleID]; ok {
		return nil, false
	}
	q.active[bundleID] = struct{}{}
	return q.gen, true
}

func (q *Queue) remove(bundleID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, bundleID)
}
