// Package trader turns validated oracle decisions into exchange orders:
// sizing, affordability checks, submission through the broker, best-effort
// post-trade verification, the decision log, and live-stream publication.
package trader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"alpha-arena/internal/decision"
	"alpha-arena/pkg/types"
)

// Broker is the slice of the exchange adapter the executor needs.
type Broker interface {
	GetBalanceAndPositions(ctx context.Context, account types.Account) (float64, []types.Position, error)
	ExecuteOrder(ctx context.Context, account types.Account, symbol string, side types.Side, qty, refPrice float64, orderType types.OrderType) (*types.Order, error)
	InvalidateBalance(accountID int64)
}

// DecisionStore persists decision log rows.
type DecisionStore interface {
	InsertDecision(d types.DecisionRecord) (int64, error)
}

// Config sets the commission model for affordability checks.
type Config struct {
	CommissionRate float64 // fraction of notional
	MinCommission  float64 // floor in quote units
}

// Executor carries out one decision at a time per calling task. It never
// imports the broadcaster; live updates go out through a typed non-blocking
// channel the broadcaster consumes.
type Executor struct {
	broker Broker
	prices decision.PriceSource
	store  DecisionStore
	events chan<- types.StreamEvent
	venue  string
	cfg    Config
	logger *slog.Logger
}

func NewExecutor(broker Broker, prices decision.PriceSource, store DecisionStore, events chan<- types.StreamEvent, venue string, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{
		broker: broker,
		prices: prices,
		store:  store,
		events: events,
		venue:  venue,
		cfg:    cfg,
		logger: logger.With("component", "executor"),
	}
}

// Execute carries out a validated decision and writes exactly one decision
// log row. Broker failures and local sizing rejections are recorded as
// unexecuted; they never propagate.
func (e *Executor) Execute(ctx context.Context, account types.Account, d *types.Decision, prevPortion, totalBalance float64, at time.Time) {
	switch d.Operation {
	case types.OpHold:
		e.recordHold(account, d, prevPortion, totalBalance, at)
	case types.OpBuy:
		e.executeBuy(ctx, account, d, totalBalance, at)
	case types.OpSell, types.OpClose:
		e.executeSell(ctx, account, d, prevPortion, totalBalance, at)
	default:
		e.logger.Warn("unexecutable operation", "account_id", account.ID, "operation", d.Operation)
	}
}

// RecordInvalid logs a decision that parsed but failed validation.
func (e *Executor) RecordInvalid(account types.Account, d *types.Decision, totalBalance float64, reason string, at time.Time) {
	e.logger.Warn("invalid decision", "account_id", account.ID, "operation", d.Operation, "reason", reason)
	e.record(account, types.DecisionRecord{
		AccountID:     account.ID,
		DecisionTime:  at,
		Operation:     d.Operation,
		Symbol:        d.Symbol,
		TargetPortion: d.TargetPortion,
		TotalBalance:  totalBalance,
		Executed:      false,
		Reason:        joinReason(d.Reason, reason),
	}, d)
}

func (e *Executor) recordHold(account types.Account, d *types.Decision, prevPortion, totalBalance float64, at time.Time) {
	e.record(account, types.DecisionRecord{
		AccountID:    account.ID,
		DecisionTime: at,
		Operation:    types.OpHold,
		PrevPortion:  prevPortion,
		TotalBalance: totalBalance,
		Executed:     true,
		Reason:       d.Reason,
	}, d)
}

func (e *Executor) executeBuy(ctx context.Context, account types.Account, d *types.Decision, totalBalance float64, at time.Time) {
	rec := types.DecisionRecord{
		AccountID:     account.ID,
		DecisionTime:  at,
		Operation:     types.OpBuy,
		Symbol:        d.Symbol,
		TargetPortion: d.TargetPortion,
		TotalBalance:  totalBalance,
		Reason:        d.Reason,
	}

	cash, _, err := e.broker.GetBalanceAndPositions(ctx, account)
	if err != nil {
		rec.Reason = joinReason(d.Reason, fmt.Sprintf("balance fetch failed: %v", err))
		e.record(account, rec, d)
		return
	}

	price, ok := e.prices.Get(d.Symbol, e.venue)
	if !ok || price <= 0 {
		rec.Reason = joinReason(d.Reason, "no current price for "+d.Symbol)
		e.record(account, rec, d)
		return
	}

	orderValue := cash * d.TargetPortion
	qty := roundQty(orderValue / price)
	if qty <= 0 {
		rec.Reason = joinReason(d.Reason, "computed quantity is zero")
		e.record(account, rec, d)
		return
	}

	commission := math.Max(orderValue*e.cfg.CommissionRate, e.cfg.MinCommission)
	if orderValue+commission > cash {
		rec.Reason = joinReason(d.Reason, fmt.Sprintf("insufficient cash: need %.2f incl. commission, have %.2f", orderValue+commission, cash))
		e.record(account, rec, d)
		e.logger.Warn("buy rejected: insufficient cash",
			"account_id", account.ID, "symbol", d.Symbol, "needed", orderValue+commission, "cash", cash)
		return
	}

	order, err := e.broker.ExecuteOrder(ctx, account, d.Symbol, types.BUY, qty, price, types.OrderMarket)
	if err != nil {
		rec.Reason = joinReason(d.Reason, err.Error())
		e.record(account, rec, d)
		return
	}

	rec.Executed = true
	rec.OrderID = order.OrderID
	e.record(account, rec, d)
	e.afterFill(ctx, account, d.Symbol, types.BUY, qty, price, order.OrderID, 0)
}

func (e *Executor) executeSell(ctx context.Context, account types.Account, d *types.Decision, prevPortion, totalBalance float64, at time.Time) {
	rec := types.DecisionRecord{
		AccountID:     account.ID,
		DecisionTime:  at,
		Operation:     d.Operation,
		Symbol:        d.Symbol,
		PrevPortion:   prevPortion,
		TargetPortion: d.TargetPortion,
		TotalBalance:  totalBalance,
		Reason:        d.Reason,
	}

	_, positions, err := e.broker.GetBalanceAndPositions(ctx, account)
	if err != nil {
		rec.Reason = joinReason(d.Reason, fmt.Sprintf("balance fetch failed: %v", err))
		e.record(account, rec, d)
		return
	}

	pos, found := findPosition(positions, d.Symbol)
	if !found {
		rec.Reason = joinReason(d.Reason, "no position in "+d.Symbol)
		e.record(account, rec, d)
		return
	}

	// sell and close size identically: the oracle states the fraction of the
	// current position to exit.
	available, _ := pos.Available.Float64()
	qty := math.Max(1e-6, available*d.TargetPortion)
	if qty > available {
		qty = available
	}

	price, _ := e.prices.Get(d.Symbol, e.venue)

	order, err := e.broker.ExecuteOrder(ctx, account, d.Symbol, types.SELL, qty, price, types.OrderMarket)
	if err != nil {
		rec.Reason = joinReason(d.Reason, err.Error())
		e.record(account, rec, d)
		return
	}

	rec.Executed = true
	rec.OrderID = order.OrderID
	e.record(account, rec, d)
	e.afterFill(ctx, account, d.Symbol, types.SELL, qty, price, order.OrderID, available)
}

// afterFill publishes trade and position updates and runs the best-effort
// verification. Nothing here can fail the execution.
func (e *Executor) afterFill(ctx context.Context, account types.Account, symbol string, side types.Side, qty, price float64, orderID string, priorAvailable float64) {
	e.publish(types.StreamEvent{
		Kind:      types.StreamTrade,
		AccountID: account.ID,
		Timestamp: time.Now().UTC(),
		Payload: types.TradeUpdate{
			AccountID: account.ID,
			Symbol:    symbol,
			Side:      side,
			Quantity:  qty,
			Price:     price,
			OrderID:   orderID,
		},
	})

	e.broker.InvalidateBalance(account.ID)
	_, positions, err := e.broker.GetBalanceAndPositions(ctx, account)
	if err != nil {
		e.logger.Warn("post-trade verification skipped", "account_id", account.ID, "order_id", orderID, "error", err)
		return
	}

	e.publish(types.StreamEvent{
		Kind:      types.StreamPosition,
		AccountID: account.ID,
		Timestamp: time.Now().UTC(),
		Payload:   types.PositionUpdate{AccountID: account.ID, Positions: positions},
	})

	e.verify(account, positions, symbol, side, qty, orderID, priorAvailable)
}

// verify compares post-trade positions against the submitted quantity with
// a 5% slippage tolerance. Mismatches warn; the trade stays executed.
func (e *Executor) verify(account types.Account, positions []types.Position, symbol string, side types.Side, qty float64, orderID string, priorAvailable float64) {
	pos, found := findPosition(positions, symbol)
	held := 0.0
	if found {
		held, _ = pos.Quantity.Float64()
	}

	switch side {
	case types.BUY:
		if held < qty*0.95 {
			e.logger.Warn("buy verification mismatch",
				"account_id", account.ID, "order_id", orderID, "symbol", symbol,
				"expected_at_least", qty*0.95, "held", held)
		}
	case types.SELL:
		if found && held > priorAvailable-qty+qty*0.05 {
			e.logger.Warn("sell verification mismatch",
				"account_id", account.ID, "order_id", orderID, "symbol", symbol,
				"prior", priorAvailable, "sold", qty, "held", held)
		}
	}
}

// record writes the decision log row and publishes the decision update.
func (e *Executor) record(account types.Account, rec types.DecisionRecord, d *types.Decision) {
	if d != nil {
		rec.PromptSnapshot = d.PromptSnapshot
		rec.ReasoningSnapshot = d.ReasoningSnapshot
		rec.DecisionSnapshot = d.RawSnapshot
	}

	id, err := e.store.InsertDecision(rec)
	if err != nil {
		e.logger.Error("decision log write failed", "account_id", account.ID, "error", err)
		return
	}

	e.publish(types.StreamEvent{
		Kind:      types.StreamDecision,
		AccountID: account.ID,
		Timestamp: time.Now().UTC(),
		Payload: types.DecisionUpdate{
			ID:            id,
			AccountID:     account.ID,
			AccountName:   account.Name,
			Model:         account.Model,
			DecisionTime:  rec.DecisionTime,
			Operation:     string(rec.Operation),
			Symbol:        rec.Symbol,
			Reason:        rec.Reason,
			PrevPortion:   rec.PrevPortion,
			TargetPortion: rec.TargetPortion,
			TotalBalance:  rec.TotalBalance,
			Executed:      rec.Executed,
			OrderID:       rec.OrderID,
		},
	})
}

// publish is non-blocking: a full or absent channel drops the event rather
// than stalling the trading path.
func (e *Executor) publish(ev types.StreamEvent) {
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("stream event dropped", "kind", ev.Kind, "account_id", ev.AccountID)
	}
}

// roundQty rounds a buy quantity down to 6 decimals, flooring at the
// exchange's smallest expressible quantity when the raw value was positive.
func roundQty(q float64) float64 {
	rounded := math.Floor(q*1e6) / 1e6
	if rounded == 0 && q > 0 {
		return 1e-6
	}
	return rounded
}

func findPosition(positions []types.Position, symbol string) (types.Position, bool) {
	for _, p := range positions {
		if strings.EqualFold(p.Symbol, symbol) {
			return p, true
		}
	}
	return types.Position{}, false
}

func joinReason(reason, detail string) string {
	if reason == "" {
		return detail
	}
	return reason + " | " + detail
}
