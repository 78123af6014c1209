package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// callTracker counts in-flight calls on a connectionless transport and
// aborts them on shutdown.
type callTracker struct {
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	draining bool
	calls    sync.WaitGroup
	inFlight atomic.Int64
}

func newCallTracker() *callTracker {
	base, cancel := context.WithCancel(context.Background())
	return &callTracker{base: base, cancel: cancel}
}

// begin registers a call and returns a context that is cancelled when
// either ctx is done or the tracker shuts down. It returns false once the
// tracker is draining.
func (t *callTracker) begin(ctx context.Context) (context.Context, func(), bool) {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return nil, nil, false
	}
	t.calls.Add(1)
	t.inFlight.Add(1)
	t.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.base, cancel)

	done := func() {
		stop()
		cancel()
		t.inFlight.Add(-1)
		t.calls.Done()
	}
	return callCtx, done, true
}

// aborted reports whether calls were cancelled by shutdown.
func (t *callTracker) aborted() bool {
	return t.base.Err() != nil
}

// count returns the number of in-flight calls.
func (t *callTracker) count() int64 {
	return t.inFlight.Load()
}

// shutdown refuses new calls, cancels the running ones and waits up to
// timeout for them to return. It reports whether all calls returned.
func (t *callTracker) shutdown(timeout time.Duration) bool {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()
	t.cancel()

	done := make(chan struct{})
	go func() {
		t.calls.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
