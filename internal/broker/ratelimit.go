package broker

import (
	"sync"
	"time"
)

// PaceLimiter enforces a minimum interval between consecutive signed calls
// across the whole process. One instance is shared by every account: the
// exchange bans by IP, so per-account throttling is not enough.
//
// Wait is uncancellable by design. Pressure is shed upstream by the trigger
// engine simply not admitting more work.
type PaceLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time

	sleep func(time.Duration) // overridable in tests
	now   func() time.Time
}

// NewPaceLimiter creates a limiter with the given minimum spacing.
func NewPaceLimiter(interval time.Duration) *PaceLimiter {
	return &PaceLimiter{
		interval: interval,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous caller's Wait returned. The slot is claimed before sleeping, so
// concurrent callers queue behind each other instead of re-racing; the lock
// itself is released during the sleep.
func (l *PaceLimiter) Wait() {
	l.mu.Lock()
	now := l.now()
	earliest := l.lastCall.Add(l.interval)
	var wait time.Duration
	if l.lastCall.IsZero() || !now.Before(earliest) {
		l.lastCall = now
	} else {
		wait = earliest.Sub(now)
		l.lastCall = earliest
	}
	l.mu.Unlock()

	if wait > 0 {
		l.sleep(wait)
	}
}
