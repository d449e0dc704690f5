package poll_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/poll"
)

func TestWaitUntilReadyImmediately(t *testing.T) {
	var calls atomic.Int32
	result := poll.WaitUntil(context.Background(), func() bool {
		calls.Add(1)
		return true
	}, time.Second, 10*time.Millisecond)

	if result != poll.Ready {
		t.Fatalf("expected ready, got %s", result)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single probe, got %d", calls.Load())
	}
}

func TestWaitUntilBecomesReady(t *testing.T) {
	var calls atomic.Int32
	result := poll.WaitUntil(context.Background(), func() bool {
		return calls.Add(1) >= 3
	}, time.Second, 5*time.Millisecond)

	if result != poll.Ready {
		t.Fatalf("expected ready, got %s", result)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 probes, got %d", calls.Load())
	}
}

func TestWaitUntilTimesOut(t *testing.T) {
	start := time.Now()
	result := poll.WaitUntil(context.Background(), func() bool { return false }, 30*time.Millisecond, 5*time.Millisecond)

	if result != poll.TimedOut {
		t.Fatalf("expected timeout, got %s", result)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("returned before timeout elapsed")
	}
}

func TestWaitUntilHonoursCancellationWithinOneInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	interval := 20 * time.Millisecond

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result := poll.WaitUntil(ctx, func() bool { return false }, time.Minute, interval)

	if result != poll.Cancelled {
		t.Fatalf("expected cancelled, got %s", result)
	}
	if time.Since(start) > interval+50*time.Millisecond {
		t.Fatalf("cancellation took longer than one interval: %s", time.Since(start))
	}
}

func TestWaitUntilCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := poll.WaitUntil(ctx, func() bool {
		t.Fatal("predicate must not run after cancellation")
		return false
	}, time.Second, time.Millisecond)

	if result != poll.Cancelled {
		t.Fatalf("expected cancelled, got %s", result)
	}
}
