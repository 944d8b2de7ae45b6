package outbox

import (
	"context"
	"sync"
	"time"
)

// WaitOutcome tells the dispatcher why Wait returned.
type WaitOutcome int

const (
	// WaitSignaled means a writer enqueued new work since the last wake.
	WaitSignaled WaitOutcome = iota
	// WaitTimedOut means the fallback interval elapsed with no signal.
	WaitTimedOut
	// WaitClosed means the notifier was closed or the context canceled.
	WaitClosed
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitSignaled:
		return "signaled"
	case WaitTimedOut:
		return "timed_out"
	case WaitClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notifier is the in-process wake-up channel between writers and the
// dispatcher. Signals coalesce: any number of Notify calls between two waits
// collapse into a single wake, which is enough because the dispatcher drains
// by batch, not by signal.
type Notifier struct {
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewNotifier() *Notifier {
	return &Notifier{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Notify wakes the dispatcher if it is waiting. Never blocks: when a signal
// is already buffered the call is dropped, and after Close it is a no-op.
func (n *Notifier) Notify() {
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.signal <- struct{}{}:
	default:
	}
}

// Wait blocks until a signal arrives, the timeout elapses, the notifier is
// closed, or ctx is canceled. Cancellation reports WaitClosed so the
// dispatcher treats both shutdown paths the same way.
func (n *Notifier) Wait(ctx context.Context, timeout time.Duration) WaitOutcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.signal:
		return WaitSignaled
	case <-timer.C:
		return WaitTimedOut
	case <-n.done:
		return WaitClosed
	case <-ctx.Done():
		return WaitClosed
	}
}

// Close releases current and future waiters. Safe to call more than once.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.done)
	})
}
