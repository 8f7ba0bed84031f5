// Package strategy maps price events to decision rounds. Each active
// account carries a trigger policy (realtime, interval, or tick_batch); the
// manager evaluates every published event against each policy and runs at
// most one decision round per account at a time.
package strategy

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alpha-arena/internal/decision"
	"alpha-arena/pkg/types"
)

// MinRealtimeInterval spaces realtime triggers so a burst of near-simultaneous
// events cannot fan out into a burst of oracle calls.
const MinRealtimeInterval = time.Second

// refreshEvery bounds how often accounts and policies are reloaded from the
// database on the event path.
const refreshEvery = time.Minute

// Store is the persistence slice the manager needs.
type Store interface {
	ActiveAccounts() ([]types.Account, error)
	GetStrategyConfig(accountID int64) (types.StrategyConfig, error)
	UpsertStrategyConfig(cfg types.StrategyConfig) error
	TouchLastTrigger(accountID int64, at time.Time) error
}

// Pipeline produces one validated decision per trigger.
type Pipeline interface {
	Decide(ctx context.Context, account types.Account) (*types.Decision, *types.Portfolio, error)
	PrevPortion(portfolio *types.Portfolio, d *types.Decision) float64
}

// Executor carries decisions to the exchange and the decision log.
type Executor interface {
	Execute(ctx context.Context, account types.Account, d *types.Decision, prevPortion, totalBalance float64, at time.Time)
	RecordInvalid(account types.Account, d *types.Decision, totalBalance float64, reason string, at time.Time)
}

// Manager holds per-account scheduling state and dispatches decision rounds.
type Manager struct {
	store    Store
	pipeline Pipeline
	executor Executor
	logger   *slog.Logger

	mu          sync.Mutex
	states      map[int64]*state
	lastRefresh time.Time
	stopped     bool

	// rounds tracks in-flight decision rounds so Stop can drain them.
	rounds sync.WaitGroup

	// now is overridable in tests.
	now func() time.Time
}

func NewManager(store Store, pipeline Pipeline, executor Executor, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		pipeline: pipeline,
		executor: executor,
		logger:   logger.With("component", "strategy"),
		states:   make(map[int64]*state),
		now:      time.Now,
	}
}

// HandlePriceEvent is the bus subscriber. It refreshes account state at most
// once per minute, then evaluates every account's policy against the event.
// Decision rounds run on their own goroutines; the bus dispatch never waits
// on the oracle.
func (m *Manager) HandlePriceEvent(ev types.PriceEvent) {
	m.refreshIfStale()

	for _, st := range m.snapshot() {
		if !m.shouldTrigger(st, ev.EventTime) {
			continue
		}
		if !m.claim(st) {
			continue
		}
		go m.runRound(st, ev)
	}
}

// Stop refuses new decision rounds and waits for in-flight ones to complete,
// so shutdown never severs a round between order submission and its log row.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.rounds.Wait()
}

// Refresh forces an immediate reload of accounts and trigger policies.
func (m *Manager) Refresh() {
	m.mu.Lock()
	m.lastRefresh = time.Time{}
	m.mu.Unlock()
	m.refreshIfStale()
}

func (m *Manager) refreshIfStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now().Sub(m.lastRefresh) < refreshEvery {
		return
	}
	m.lastRefresh = m.now()

	accounts, err := m.store.ActiveAccounts()
	if err != nil {
		m.logger.Error("account refresh failed", "error", err)
		return
	}

	seen := make(map[int64]bool, len(accounts))
	for _, account := range accounts {
		seen[account.ID] = true
		cfg, err := m.loadOrCreateConfig(account)
		if err != nil {
			m.logger.Error("strategy config load failed", "account_id", account.ID, "error", err)
			continue
		}
		if st, ok := m.states[account.ID]; ok {
			st.apply(account, cfg)
			continue
		}
		m.states[account.ID] = &state{account: account, cfg: cfg}
	}

	for id := range m.states {
		if !seen[id] {
			delete(m.states, id)
		}
	}
}

// loadOrCreateConfig returns the account's persisted policy, creating the
// default one (realtime, enabled only when auto-trading is on) the first
// time an active account is seen without a row.
func (m *Manager) loadOrCreateConfig(account types.Account) (types.StrategyConfig, error) {
	cfg, err := m.store.GetStrategyConfig(account.ID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.StrategyConfig{}, err
	}

	cfg = types.StrategyConfig{
		AccountID: account.ID,
		Mode:      types.TriggerRealtime,
		Enabled:   account.AutoTrading,
	}
	if err := m.store.UpsertStrategyConfig(cfg); err != nil {
		return types.StrategyConfig{}, err
	}
	m.logger.Info("default strategy config created",
		"account_id", account.ID, "enabled", cfg.Enabled)
	return cfg, nil
}

func (m *Manager) snapshot() []*state {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*state, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out
}

// shouldTrigger evaluates one account's policy against the event's exchange
// timestamp. Trigger spacing is anchored to event time, not wall clock, so
// oracle latency never drifts the next interval slot. tick_batch only counts
// here; the counter resets when a trigger commits, so a batch that hits while
// a round is in flight keeps retrying on later events until the slot frees.
func (m *Manager) shouldTrigger(st *state, at time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.cfg.Enabled || !st.cfg.Mode.Valid() {
		return false
	}

	switch st.cfg.Mode {
	case types.TriggerRealtime:
		return elapsedLocked(st, at, MinRealtimeInterval)
	case types.TriggerInterval:
		interval := time.Duration(st.cfg.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		return elapsedLocked(st, at, interval)
	case types.TriggerTickBatch:
		size := st.cfg.TickBatchSize
		if size <= 0 {
			size = 1
		}
		st.tickCounter++
		return st.tickCounter >= size
	}
	return false
}

func elapsedLocked(st *state, at time.Time, minimum time.Duration) bool {
	if st.cfg.LastTriggerAt == nil {
		return true
	}
	return at.Sub(*st.cfg.LastTriggerAt) >= minimum
}

// claim takes the single-flight slot for the account and registers the round
// with the drain group. Refused once Stop has been called.
func (m *Manager) claim(st *state) bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.rounds.Add(1)
	m.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.running {
		m.rounds.Done()
		return false
	}
	st.running = true
	return true
}

// runRound executes one full decision round for an account. The trigger
// timestamp is the triggering event's exchange time and is committed only
// after the oracle produced a decision, so a dead oracle does not silently
// consume interval slots.
func (m *Manager) runRound(st *state, ev types.PriceEvent) {
	defer m.rounds.Done()
	defer st.finish()

	st.mu.Lock()
	account := st.account
	st.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m.logger.Info("decision round triggered",
		"account_id", account.ID, "symbol", ev.Symbol, "price", ev.Price)

	d, portfolio, err := m.pipeline.Decide(ctx, account)
	if d == nil {
		m.logger.Warn("decision round abandoned", "account_id", account.ID, "error", err)
		return
	}

	triggeredAt := ev.EventTime.UTC()
	st.markTriggered(triggeredAt)
	if terr := m.store.TouchLastTrigger(account.ID, triggeredAt); terr != nil {
		m.logger.Error("last trigger persist failed", "account_id", account.ID, "error", terr)
	}
	now := m.now().UTC()

	prevPortion := m.pipeline.PrevPortion(portfolio, d)

	var verr *decision.ValidationError
	if errors.As(err, &verr) {
		m.executor.RecordInvalid(account, d, portfolio.TotalAssets, verr.Reason, now)
		return
	}
	if err != nil {
		m.logger.Warn("decision round abandoned", "account_id", account.ID, "error", err)
		return
	}

	m.executor.Execute(ctx, account, d, prevPortion, portfolio.TotalAssets, now)
}
