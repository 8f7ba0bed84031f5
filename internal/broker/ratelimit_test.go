package broker

import (
	"testing"
	"time"
)

func TestPaceLimiterFirstCallDoesNotWait(t *testing.T) {
	t.Parallel()

	l := NewPaceLimiter(10 * time.Second)
	base := time.Unix(1000, 0)
	l.now = func() time.Time { return base }

	var slept time.Duration
	l.sleep = func(d time.Duration) { slept += d }

	l.Wait()
	if slept != 0 {
		t.Fatalf("first call slept %v", slept)
	}
}

func TestPaceLimiterEnforcesGlobalSpacing(t *testing.T) {
	t.Parallel()

	l := NewPaceLimiter(10 * time.Second)
	base := time.Unix(1000, 0)
	clock := base
	l.now = func() time.Time { return clock }

	var slept []time.Duration
	l.sleep = func(d time.Duration) { slept = append(slept, d) }

	// Account A at t=0, account B immediately after: B must be pushed a
	// full interval past A regardless of which account is calling.
	l.Wait()
	l.Wait()

	if len(slept) != 1 || slept[0] != 10*time.Second {
		t.Fatalf("second caller slept %v, want [10s]", slept)
	}
}

func TestPaceLimiterQueuesConsecutiveCallers(t *testing.T) {
	t.Parallel()

	l := NewPaceLimiter(10 * time.Second)
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	var total time.Duration
	l.sleep = func(d time.Duration) { total += d }

	l.Wait() // t=1000, no wait
	l.Wait() // slot 1010, waits 10s
	l.Wait() // slot 1020, waits 20s from now=1000

	if total != 30*time.Second {
		t.Fatalf("cumulative wait %v, want 30s", total)
	}
}

func TestPaceLimiterNoWaitAfterIntervalElapsed(t *testing.T) {
	t.Parallel()

	l := NewPaceLimiter(10 * time.Second)
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	var slept time.Duration
	l.sleep = func(d time.Duration) { slept += d }

	l.Wait()
	clock = clock.Add(15 * time.Second)
	l.Wait()

	if slept != 0 {
		t.Fatalf("slept %v after interval already elapsed", slept)
	}
}
