// Package poll provides the single suspension primitive used by every
// pipeline stage that waits on the external generation UI.
package poll

import (
	"context"
	"time"
)

// Result reports how a wait ended.
type Result int

const (
	// Ready means the predicate observed the condition.
	Ready Result = iota
	// TimedOut means the timeout elapsed before the condition held.
	TimedOut
	// Cancelled means the context was cancelled mid-wait.
	Cancelled
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WaitUntil repeatedly evaluates predicate at interval spacing until it
// returns true, timeout elapses, or ctx is cancelled. The predicate must be a
// side-effect-free probe of externally observable state. Cancellation is
// honoured within one poll interval; the loop never spins without sleeping.
func WaitUntil(ctx context.Context, predicate func() bool, timeout, interval time.Duration) Result {
	if interval <= 0 {
		interval = time.Second
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return Cancelled
	}
	if predicate() {
		return Ready
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Cancelled
		case <-deadline.C:
			return TimedOut
		case <-ticker.C:
			if ctx.Err() != nil {
				return Cancelled
			}
			if predicate() {
				return Ready
			}
		}
	}
}
