package clock

import (
	"context"
	"sync"
	"time"
)

// RealSleeper blocks for the requested duration, or until the context is
// done.
type RealSleeper struct{}

// Sleep waits for d or for ctx, whichever ends first.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FakeSleeper records requested delays without waiting, for retry tests.
type FakeSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

// Sleep records the delay and returns immediately.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slept = append(f.slept, d)
	return nil
}

// Slept returns the delays requested so far.
func (f *FakeSleeper) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}
