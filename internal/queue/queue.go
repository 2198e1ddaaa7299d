// Package queue serializes every operation on one database connection.
//
// A Queue owns a single worker goroutine. Jobs run strictly one at a time in
// FIFO order with a settle delay between them. Transient failures are retried
// with bounded exponential backoff. A caller may stop waiting for a job, but a
// job that has started always runs to completion.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hlop3z/xpdb/internal/alerr"
)

// ErrClosed is returned by Do after Close has been called.
var ErrClosed = errors.New("queue: closed")

// Job is one unit of work. The context it receives is never cancelled by the
// caller abandoning the job.
type Job func(ctx context.Context) error

// Backoff bounds the retries of a transient failure.
type Backoff struct {
	Attempts int           // total attempts, including the first
	Base     time.Duration // delay before the first retry
	Max      time.Duration // upper bound of any single delay
}

// DefaultBackoff is used when Options.Backoff is zero.
var DefaultBackoff = Backoff{Attempts: 4, Base: 25 * time.Millisecond, Max: time.Second}

// Delay returns the wait before retry n (0-based): Base * 2^n, capped at Max.
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	for i := 0; i < n; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Options configures a Queue.
type Options struct {
	// Settle is the pause after each job before the next one is dispatched.
	Settle time.Duration
	// Backoff bounds retries. The zero value means DefaultBackoff.
	Backoff Backoff
	// Transient reports whether an error should be retried. Nil means never.
	Transient func(error) bool
	// Logger receives retry warnings. Nil means slog.Default().
	Logger *slog.Logger
}

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Queue runs jobs one at a time on a single worker goroutine.
type Queue struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pending []*request
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

// New starts a queue and its worker.
func New(opts Options) *Queue {
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff
	}
	if opts.Backoff.Attempts < 1 {
		opts.Backoff.Attempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		opts:    opts,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Do enqueues job and waits for its result.
//
// If ctx ends before the job starts, the job is skipped. If ctx ends while the
// job runs, Do returns ctx.Err() at once and the job's result is discarded.
func (q *Queue) Do(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := &request{ctx: ctx, job: job, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, r)
	q.mu.Unlock()
	q.signal()

	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting jobs, lets the queued ones finish and waits for the
// worker to exit. It is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()

	<-q.stopped
	return nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------
// Worker
// -----------------------------------------------------------------------------

func (q *Queue) loop() {
	defer close(q.stopped)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		r := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := r.ctx.Err(); err != nil {
			r.done <- err
			continue
		}

		r.done <- q.run(r)

		if q.opts.Settle > 0 {
			time.Sleep(q.opts.Settle)
		}
	}
}

// run executes one job with retries. Retries stop early once the caller has
// abandoned the job, since nobody will read the result.
func (q *Queue) run(r *request) error {
	ctx := context.WithoutCancel(r.ctx)
	b := q.opts.Backoff

	for attempt := 1; ; attempt++ {
		err := safeCall(ctx, r.job)
		if err == nil {
			return nil
		}
		if q.opts.Transient == nil || !q.opts.Transient(err) {
			return err
		}
		if attempt >= b.Attempts {
			return alerr.Wrap(alerr.ErrTransientExhausted, err, "transient failure persisted").
				With("attempts", attempt)
		}
		if r.ctx.Err() != nil {
			return err
		}

		delay := b.Delay(attempt - 1)
		q.logger.Warn("retrying transient failure",
			"attempt", attempt, "max_attempts", b.Attempts, "delay", delay, "error", err)
		time.Sleep(delay)
	}
}

func safeCall(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = alerr.New(alerr.EInternalError, fmt.Sprintf("queued job panicked: %v", p))
		}
	}()
	return job(ctx)
}
