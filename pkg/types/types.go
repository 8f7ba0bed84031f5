// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the trading engine — accounts,
// positions, decisions, price events, and the payloads broadcast to live
// subscribers. It has no dependencies on internal packages, so it can be
// imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// OrderType enumerates supported exchange order types.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// Operation is the action an oracle decision requests.
type Operation string

const (
	OpBuy   Operation = "buy"
	OpSell  Operation = "sell"
	OpHold  Operation = "hold"
	OpClose Operation = "close"
)

// TriggerMode selects how price events are mapped to oracle invocations.
type TriggerMode string

const (
	// TriggerRealtime fires on every event, spaced at least one second apart.
	TriggerRealtime TriggerMode = "realtime"
	// TriggerInterval fires when interval_seconds have elapsed since the last trigger.
	TriggerInterval TriggerMode = "interval"
	// TriggerTickBatch fires on every Nth published event.
	TriggerTickBatch TriggerMode = "tick_batch"
)

// Valid reports whether m is one of the three recognised modes.
func (m TriggerMode) Valid() bool {
	switch m {
	case TriggerRealtime, TriggerInterval, TriggerTickBatch:
		return true
	}
	return false
}

// ————————————————————————————————————————————————————————————————————————
// Accounts and strategy configuration
// ————————————————————————————————————————————————————————————————————————

// Account is an autonomous trading agent. It owns both the exchange
// credentials used for order flow and the oracle endpoint consulted for
// decisions. An Account is the unit of isolation: no component blends
// decisions, balances, or triggers across accounts.
type Account struct {
	ID          int64
	Name        string
	Active      bool
	AutoTrading bool

	// Oracle (LLM) endpoint configuration.
	Model   string
	BaseURL string
	APIKey  string

	// Exchange credentials.
	ExchangeAPIKey string
	ExchangeSecret string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasExchangeKeys reports whether the account can place signed exchange calls.
func (a Account) HasExchangeKeys() bool {
	return a.ExchangeAPIKey != "" && a.ExchangeSecret != ""
}

// StrategyConfig is the persisted per-account trigger policy. Exactly one row
// exists per account. Fields not selected by Mode are retained but ignored
// for scheduling.
type StrategyConfig struct {
	AccountID       int64
	Mode            TriggerMode
	IntervalSeconds int
	TickBatchSize   int
	Enabled         bool
	LastTriggerAt   *time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// PriceEvent is published by the market stream for every successful tick
// fetch. EventTime is the authoritative timestamp used by the trigger engine
// and the snapshot service.
type PriceEvent struct {
	Symbol    string    `json:"symbol"`
	Venue     string    `json:"venue"`
	Price     float64   `json:"price"`
	EventTime time.Time `json:"event_time"`
}

// PricePoint is one entry in a symbol's rolling price history.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Tick is a persisted market tick row, retained for a rolling window.
type Tick struct {
	Symbol    string
	Venue     string
	Price     float64
	EventTime time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Portfolio
// ————————————————————————————————————————————————————————————————————————

// Position is one non-quote asset held on the exchange. AvgCost is zero when
// the exchange does not report it; consumers substitute the current price.
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Available decimal.Decimal `json:"available_quantity"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
}

// PortfolioPosition is a position valued at current market price, as
// presented to the oracle.
type PortfolioPosition struct {
	Quantity     float64 `json:"quantity"`
	AvgCost      float64 `json:"avg_cost"`
	CurrentValue float64 `json:"current_value"`
}

// Portfolio is the coherent account snapshot assembled before each oracle
// call: live cash plus positions valued at current prices.
type Portfolio struct {
	Cash        float64                      `json:"cash"`
	FrozenCash  float64                      `json:"frozen_cash"`
	Positions   map[string]PortfolioPosition `json:"positions"`
	TotalAssets float64                      `json:"total_assets"`
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is an exchange order as reported by the broker adapter. Symbol is the
// internal symbol (base asset), not the exchange pair.
type Order struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	OrderType OrderType `json:"order_type,omitempty"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price,omitempty"`
	Cost      float64   `json:"cost,omitempty"`
	Status    string    `json:"status"`
	CloseTime int64     `json:"close_time,omitempty"`
}

// ————————————————————————————————————————————————————————————————————————
// Decisions
// ————————————————————————————————————————————————————————————————————————

// Decision is a parsed, not-yet-validated oracle reply plus the audit
// snapshots attached by the pipeline.
type Decision struct {
	Operation     Operation `json:"operation"`
	Symbol        string    `json:"symbol"`
	TargetPortion float64   `json:"target_portion_of_balance"`
	Reason        string    `json:"reason"`
	Strategy      string    `json:"trading_strategy"`

	// Audit snapshots; never sent back to the oracle.
	PromptSnapshot    string `json:"-"`
	ReasoningSnapshot string `json:"-"`
	RawSnapshot       string `json:"-"`
}

// DecisionRecord is one persisted row of the append-only decision log.
type DecisionRecord struct {
	ID            int64
	AccountID     int64
	DecisionTime  time.Time
	Operation     Operation
	Symbol        string // empty for hold
	PrevPortion   float64
	TargetPortion float64
	TotalBalance  float64
	Executed      bool
	OrderID       string // exchange order id, empty if not executed
	Reason        string

	PromptSnapshot    string
	ReasoningSnapshot string
	DecisionSnapshot  string
}

// ————————————————————————————————————————————————————————————————————————
// Snapshots and prompts
// ————————————————————————————————————————————————————————————————————————

// AssetSnapshot is one persisted (cash, positions_value, total) tuple for an
// account at an event time. Used only for curve rendering; never read back on
// the trading path.
type AssetSnapshot struct {
	ID             int64
	AccountID      int64
	Cash           float64
	PositionsValue float64
	TotalAssets    float64
	TriggerSymbol  string
	TriggerVenue   string
	EventTime      time.Time
}

// PromptTemplate carries a current template text and the immutable factory
// default kept for restore.
type PromptTemplate struct {
	ID          int64
	Key         string
	Name        string
	Description string
	Text        string
	SystemText  string
}

// ————————————————————————————————————————————————————————————————————————
// Stream events (engine → broadcaster)
// ————————————————————————————————————————————————————————————————————————

// StreamEventKind discriminates StreamEvent payloads.
type StreamEventKind string

const (
	StreamTrade    StreamEventKind = "trade_update"
	StreamPosition StreamEventKind = "position_update"
	StreamDecision StreamEventKind = "decision_update"
	StreamAccount  StreamEventKind = "account_update"
	StreamArena    StreamEventKind = "arena_update"
)

// StreamEvent is the typed envelope the executor and snapshot service publish
// for live subscribers. AccountID is zero for arena-wide events.
type StreamEvent struct {
	Kind      StreamEventKind `json:"kind"`
	AccountID int64           `json:"account_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   any             `json:"payload"`
}

// TradeUpdate is pushed after a successful fill.
type TradeUpdate struct {
	AccountID int64   `json:"account_id"`
	Symbol    string  `json:"symbol"`
	Side      Side    `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	OrderID   string  `json:"order_id"`
}

// PositionUpdate carries the account's positions after a fill.
type PositionUpdate struct {
	AccountID int64      `json:"account_id"`
	Positions []Position `json:"positions"`
}

// DecisionUpdate mirrors a decision log row for live subscribers.
type DecisionUpdate struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	AccountName   string    `json:"account_name"`
	Model         string    `json:"model"`
	DecisionTime  time.Time `json:"decision_time"`
	Operation     string    `json:"operation"`
	Symbol        string    `json:"symbol,omitempty"`
	Reason        string    `json:"reason"`
	PrevPortion   float64   `json:"prev_portion"`
	TargetPortion float64   `json:"target_portion"`
	TotalBalance  float64   `json:"total_balance"`
	Executed      bool      `json:"executed"`
	OrderID       string    `json:"order_id,omitempty"`
}

// ArenaUpdate is the aggregate cross-account view published by the snapshot
// service when live subscribers exist.
type ArenaUpdate struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Totals      ArenaTotals          `json:"totals"`
	Symbols     map[string]float64   `json:"symbols"`
	Accounts    []ArenaAccountTotals `json:"accounts"`
}

// ArenaTotals sums cash and position value across all accounts.
type ArenaTotals struct {
	AvailableCash  float64 `json:"available_cash"`
	PositionsValue float64 `json:"positions_value"`
	TotalAssets    float64 `json:"total_assets"`
}

// ArenaAccountTotals is one account's line in an arena update.
type ArenaAccountTotals struct {
	AccountID      int64   `json:"account_id"`
	AccountName    string  `json:"account_name"`
	Model          string  `json:"model"`
	AvailableCash  float64 `json:"available_cash"`
	PositionsValue float64 `json:"positions_value"`
	TotalAssets    float64 `json:"total_assets"`
}
