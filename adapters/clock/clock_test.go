package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/schemarest/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestFake_FrozenUntilMoved(t *testing.T) {
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	for i := 0; i < 3; i++ {
		if got := c.Now(); !got.Equal(start) {
			t.Errorf("call %d: Now() = %v, want %v", i, got, start)
		}
	}

	c.Advance(90 * time.Minute)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("after Advance: Now() = %v", got)
	}

	jump := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(jump)
	if got := c.Now(); !got.Equal(jump) {
		t.Errorf("after Set: Now() = %v, want %v", got, jump)
	}
}

func TestFake_AdvanceBackwards(t *testing.T) {
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	c.Advance(-time.Hour)
	if got := c.Now(); !got.Equal(start.Add(-time.Hour)) {
		t.Errorf("Now() = %v, want %v", got, start.Add(-time.Hour))
	}
}

func TestFake_ConcurrentAccess(t *testing.T) {
	c := clock.NewFake(time.Now())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = c.Now()
				c.Advance(time.Millisecond)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestRealSleeper_Sleeps(t *testing.T) {
	start := time.Now()
	if err := (clock.RealSleeper{}).Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("returned after %v, want >= 10ms", elapsed)
	}
}

func TestRealSleeper_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := (clock.RealSleeper{}).Sleep(ctx, time.Hour)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v, should return immediately", elapsed)
	}
}

func TestFakeSleeper_RecordsWithoutWaiting(t *testing.T) {
	s := &clock.FakeSleeper{}

	for _, d := range []time.Duration{time.Second, 2 * time.Second} {
		if err := s.Sleep(context.Background(), d); err != nil {
			t.Fatalf("Sleep(%v): %v", d, err)
		}
	}

	slept := s.Slept()
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("Slept() = %v, want [1s 2s]", slept)
	}
}

func TestFakeSleeper_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &clock.FakeSleeper{}
	if err := s.Sleep(ctx, time.Second); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(s.Slept()) != 0 {
		t.Errorf("canceled sleep must not be recorded, got %v", s.Slept())
	}
}
