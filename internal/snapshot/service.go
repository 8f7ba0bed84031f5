// Package snapshot maintains per-account asset snapshots: on each price
// event it revalues every active account, persists a snapshot row with
// retention, refreshes the asset-curve cache, and publishes an aggregate
// arena update when live subscribers exist.
package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"alpha-arena/internal/decision"
	"alpha-arena/pkg/types"
)

// Store is the persistence slice the service needs. This component is the
// only writer of asset snapshots.
type Store interface {
	ActiveAccounts() ([]types.Account, error)
	InsertSnapshot(snap types.AssetSnapshot) error
	SweepSnapshots(retention time.Duration, now time.Time) (int64, error)
	SnapshotsSince(accountID int64, since time.Time) ([]types.AssetSnapshot, error)
}

// Config tunes snapshot retention.
type Config struct {
	Retention time.Duration
	Venue     string
}

// Service consumes price events through its own bus subscription. The bus
// handler only enqueues; valuation runs on the service's worker so a slow
// broker call never stalls the event dispatch.
type Service struct {
	store    Store
	balances decision.BalanceSource
	prices   decision.PriceSource
	events   chan<- types.StreamEvent
	hasSubs  func() bool
	cfg      Config
	logger   *slog.Logger

	pending chan types.PriceEvent
	curves  *curveCache
}

// NewService wires the snapshot service. hasSubs reports whether any live
// subscriber exists; arena updates are skipped entirely when none do.
func NewService(store Store, balances decision.BalanceSource, prices decision.PriceSource, events chan<- types.StreamEvent, hasSubs func() bool, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		balances: balances,
		prices:   prices,
		events:   events,
		hasSubs:  hasSubs,
		cfg:      cfg,
		logger:   logger.With("component", "snapshot"),
		pending:  make(chan types.PriceEvent, 1),
		curves:   newCurveCache(),
	}
}

// HandlePriceEvent is the bus subscriber. Latest-wins: if the worker is
// still busy with the previous event, the older pending one is replaced.
func (s *Service) HandlePriceEvent(ev types.PriceEvent) {
	for {
		select {
		case s.pending <- ev:
			return
		default:
			select {
			case <-s.pending:
			default:
			}
		}
	}
}

// Run processes queued price events until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("snapshot service started", "retention", s.cfg.Retention)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot service stopped")
			return
		case ev := <-s.pending:
			s.publish(ctx, ev)
		}
	}
}

// publish writes one snapshot row per active account, sweeps expired rows,
// and pushes an arena update when anyone is listening. A persistence error
// for one account skips that account and leaves its curve cache untouched.
func (s *Service) publish(ctx context.Context, ev types.PriceEvent) {
	accounts, err := s.store.ActiveAccounts()
	if err != nil {
		s.logger.Error("load accounts failed", "error", err)
		return
	}

	update := types.ArenaUpdate{
		GeneratedAt: time.Now().UTC(),
		Symbols:     make(map[string]float64),
	}

	for _, account := range accounts {
		if !account.HasExchangeKeys() {
			continue
		}
		snap, positions, err := s.valueAccount(ctx, account, ev)
		if err != nil {
			s.logger.Warn("account valuation failed", "account_id", account.ID, "error", err)
			continue
		}
		if err := s.store.InsertSnapshot(snap); err != nil {
			s.logger.Error("snapshot write failed", "account_id", account.ID, "error", err)
			continue
		}
		s.curves.invalidate(account.ID)

		for symbol, value := range positions {
			update.Symbols[symbol] += value
		}
		update.Totals.AvailableCash += snap.Cash
		update.Totals.PositionsValue += snap.PositionsValue
		update.Totals.TotalAssets += snap.TotalAssets
		update.Accounts = append(update.Accounts, types.ArenaAccountTotals{
			AccountID:      account.ID,
			AccountName:    account.Name,
			Model:          account.Model,
			AvailableCash:  snap.Cash,
			PositionsValue: snap.PositionsValue,
			TotalAssets:    snap.TotalAssets,
		})
	}

	if removed, err := s.store.SweepSnapshots(s.cfg.Retention, time.Now()); err != nil {
		s.logger.Error("snapshot sweep failed", "error", err)
	} else if removed > 0 {
		s.logger.Debug("snapshot rows swept", "removed", removed)
	}

	if s.hasSubs != nil && s.hasSubs() && len(update.Accounts) > 0 {
		s.pushArena(update)
	}
}

// valueAccount prices every position of one account at current market
// prices. Positions with no current price are skipped, never invented.
func (s *Service) valueAccount(ctx context.Context, account types.Account, ev types.PriceEvent) (types.AssetSnapshot, map[string]float64, error) {
	cash, positions, err := s.balances.GetBalanceAndPositions(ctx, account)
	if err != nil {
		return types.AssetSnapshot{}, nil, err
	}

	values := make(map[string]float64, len(positions))
	positionsValue := 0.0
	for _, pos := range positions {
		symbol := strings.ToUpper(pos.Symbol)
		price, ok := s.prices.Get(symbol, s.cfg.Venue)
		if !ok {
			continue
		}
		qty, _ := pos.Quantity.Float64()
		value := qty * price
		values[symbol] = value
		positionsValue += value
	}

	return types.AssetSnapshot{
		AccountID:      account.ID,
		Cash:           cash,
		PositionsValue: positionsValue,
		TotalAssets:    cash + positionsValue,
		TriggerSymbol:  ev.Symbol,
		TriggerVenue:   ev.Venue,
		EventTime:      ev.EventTime,
	}, values, nil
}

func (s *Service) pushArena(update types.ArenaUpdate) {
	if s.events == nil {
		return
	}
	ev := types.StreamEvent{
		Kind:      types.StreamArena,
		Timestamp: update.GeneratedAt,
		Payload:   update,
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("arena update dropped")
	}
}
