package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/testutil"
)

var errBusy = errors.New("database is locked")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func newQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	q := New(opts)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Attempts: 5, Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}

	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 50 * time.Millisecond},
		{10, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.n); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}

	unbounded := Backoff{Base: time.Millisecond}
	if got := unbounded.Delay(3); got != 8*time.Millisecond {
		t.Errorf("unbounded Delay(3) = %v", got)
	}
}

func TestDoRunsInFIFOOrder(t *testing.T) {
	q := newQueue(t, Options{})

	var (
		mu    sync.Mutex
		order []int
	)
	release := make(chan struct{})

	// Block the worker so the next jobs queue up behind it.
	started := make(chan struct{})
	go q.Do(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// wait until job i is queued before enqueueing i+1
		for q.Len() != i+1 {
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want 0..4", order)
		}
	}
}

func TestDoNeverOverlaps(t *testing.T) {
	q := newQueue(t, Options{Settle: time.Millisecond})

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning.Load() != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", maxRunning.Load())
	}
}

func TestDoReturnsJobError(t *testing.T) {
	q := newQueue(t, Options{Transient: isBusy})
	boom := errors.New("syntax error")

	var calls atomic.Int32
	err := q.Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() = %v, want %v", err, boom)
	}
	if calls.Load() != 1 {
		t.Errorf("non-transient error retried %d times", calls.Load()-1)
	}
}

func TestDoRetriesTransient(t *testing.T) {
	q := newQueue(t, Options{
		Backoff:   Backoff{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond},
		Transient: isBusy,
	})

	var calls atomic.Int32
	err := q.Do(context.Background(), func(context.Context) error {
		if calls.Add(1) < 3 {
			return errBusy
		}
		return nil
	})
	testutil.AssertNoError(t, err)
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestDoTransientExhausted(t *testing.T) {
	q := newQueue(t, Options{
		Backoff:   Backoff{Attempts: 2, Base: time.Millisecond},
		Transient: isBusy,
	})

	var calls atomic.Int32
	err := q.Do(context.Background(), func(context.Context) error {
		calls.Add(1)
		return errBusy
	})
	testutil.AssertError(t, err, alerr.ErrTransientExhausted)
	if !errors.Is(err, errBusy) {
		t.Error("exhausted error should wrap the last failure")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDoSkipsCancelledJob(t *testing.T) {
	q := newQueue(t, Options{})

	release := make(chan struct{})
	started := make(chan struct{})
	go q.Do(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(ctx, func(context.Context) error {
			ran.Store(true)
			return nil
		})
	}()
	for q.Len() != 1 {
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	close(release)

	// a later job proves the worker moved past the skipped one
	testutil.AssertNoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))
	if ran.Load() {
		t.Error("cancelled job should not have run")
	}
}

func TestDoAbandonedJobRunsToCompletion(t *testing.T) {
	q := newQueue(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	finished := make(chan error, 1)

	errc := make(chan error, 1)
	go func() {
		errc <- q.Do(ctx, func(jobCtx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished <- jobCtx.Err()
			return nil
		})
	}()

	<-started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	if err := <-finished; err != nil {
		t.Errorf("job context was cancelled: %v", err)
	}
}

func TestDoRecoversPanic(t *testing.T) {
	q := newQueue(t, Options{})

	err := q.Do(context.Background(), func(context.Context) error { panic("boom") })
	testutil.AssertError(t, err, alerr.EInternalError)

	testutil.AssertNoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestCloseDrainsQueue(t *testing.T) {
	q := New(Options{})

	release := make(chan struct{})
	started := make(chan struct{})
	go q.Do(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	var done atomic.Int32
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Do(context.Background(), func(context.Context) error { return nil }) == nil {
				done.Add(1)
			}
		}()
	}
	for q.Len() != 3 {
		time.Sleep(time.Millisecond)
	}

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	close(release)
	<-closed
	wg.Wait()

	if done.Load() != 3 {
		t.Errorf("drained %d jobs, want 3", done.Load())
	}
	if err := q.Do(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Do() after Close = %v, want ErrClosed", err)
	}
	testutil.AssertNoError(t, q.Close())
}
