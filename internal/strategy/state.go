package strategy

import (
	"sync"
	"time"

	"alpha-arena/pkg/types"
)

// state is the in-memory scheduling state for one account. The persisted
// StrategyConfig is mirrored here; tick counting and the single-flight flag
// exist only in memory and reset on restart.
type state struct {
	mu          sync.Mutex
	account     types.Account
	cfg         types.StrategyConfig
	running     bool
	tickCounter int
}

// apply merges a refreshed account and config into the state. A mode change
// discards any accumulated tick count so the new policy starts clean.
func (s *state) apply(account types.Account, cfg types.StrategyConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Mode != cfg.Mode {
		s.tickCounter = 0
	}
	s.account = account
	s.cfg = cfg
}

// markTriggered records a committed trigger in memory. Ticks accumulated up
// to the commit are spent here; an abandoned round never reaches this, so
// its batch stays armed and the next event retries.
func (s *state) markTriggered(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at.UTC()
	s.cfg.LastTriggerAt = &t
	s.tickCounter = 0
}

// finish releases the single-flight slot.
func (s *state) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}
