package trader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpha-arena/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBroker struct {
	mu           sync.Mutex
	cash         float64
	positions    []types.Position
	orderErr     error
	orders       []submittedOrder
	invalidated  int
	balanceCalls int
}

type submittedOrder struct {
	symbol string
	side   types.Side
	qty    float64
}

func (f *fakeBroker) GetBalanceAndPositions(_ context.Context, _ types.Account) (float64, []types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.cash, f.positions, nil
}

func (f *fakeBroker) ExecuteOrder(_ context.Context, _ types.Account, symbol string, side types.Side, qty, _ float64, _ types.OrderType) (*types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, submittedOrder{symbol, side, qty})
	return &types.Order{OrderID: "oid-1", Symbol: symbol, Side: side, Quantity: qty, Status: "FILLED"}, nil
}

func (f *fakeBroker) InvalidateBalance(_ int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type fakeDecisionStore struct {
	mu      sync.Mutex
	records []types.DecisionRecord
}

func (f *fakeDecisionStore) InsertDecision(d types.DecisionRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, d)
	return int64(len(f.records)), nil
}

func (f *fakeDecisionStore) last(t *testing.T) types.DecisionRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatal("no decision records written")
	}
	return f.records[len(f.records)-1]
}

type stubPrices struct {
	prices map[string]float64
}

func (s stubPrices) Get(symbol, _ string) (float64, bool) {
	p, ok := s.prices[symbol]
	return p, ok
}

func (s stubPrices) History(_, _ string) []types.PricePoint { return nil }

func newTestExecutor(broker *fakeBroker, store *fakeDecisionStore, prices stubPrices) (*Executor, chan types.StreamEvent) {
	events := make(chan types.StreamEvent, 16)
	ex := NewExecutor(broker, prices, store, events, "binance", Config{CommissionRate: 0.001, MinCommission: 0.1}, testLogger())
	return ex, events
}

func account() types.Account {
	return types.Account{ID: 3, Name: "alpha", Model: "gpt-4o"}
}

func TestExecuteHold(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	store := &fakeDecisionStore{}
	ex, events := newTestExecutor(broker, store, stubPrices{})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpHold, Reason: "wait"}, 0.1, 1000, time.Now())

	rec := store.last(t)
	if !rec.Executed || rec.Operation != types.OpHold || rec.Symbol != "" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.PrevPortion != 0.1 {
		t.Fatalf("prev portion = %v", rec.PrevPortion)
	}
	if len(broker.orders) != 0 {
		t.Fatal("hold must not reach the broker")
	}
	ev := <-events
	if ev.Kind != types.StreamDecision {
		t.Fatalf("event kind = %s", ev.Kind)
	}
}

func TestExecuteBuySuccess(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{cash: 1000}
	store := &fakeDecisionStore{}
	ex, events := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"BTC": 50000}})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 0.5}, 0, 1000, time.Now())

	if len(broker.orders) != 1 {
		t.Fatalf("orders = %+v", broker.orders)
	}
	// order_value 500 at 50000 = 0.01 BTC.
	if broker.orders[0].qty != 0.01 || broker.orders[0].side != types.BUY {
		t.Fatalf("order = %+v", broker.orders[0])
	}
	rec := store.last(t)
	if !rec.Executed || rec.OrderID != "oid-1" {
		t.Fatalf("record = %+v", rec)
	}
	if broker.invalidated == 0 {
		t.Fatal("balance cache must be invalidated after a fill")
	}

	kinds := map[types.StreamEventKind]bool{}
	for len(events) > 0 {
		kinds[(<-events).Kind] = true
	}
	for _, want := range []types.StreamEventKind{types.StreamTrade, types.StreamPosition, types.StreamDecision} {
		if !kinds[want] {
			t.Fatalf("missing %s event (got %v)", want, kinds)
		}
	}
}

func TestExecuteBuyInsufficientCash(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{cash: 100}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"BTC": 50000}})

	// portion 1.0: order value 100 plus commission exceeds cash.
	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 1}, 0, 100, time.Now())

	rec := store.last(t)
	if rec.Executed {
		t.Fatalf("record = %+v", rec)
	}
	if len(broker.orders) != 0 {
		t.Fatal("unaffordable buy must not reach the broker")
	}
}

func TestExecuteBuyBrokerError(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{cash: 1000, orderErr: errors.New("notional_below_min: order value 2 below minimum 10")}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"BTC": 50000}})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpBuy, Symbol: "BTC", TargetPortion: 0.9}, 0, 1000, time.Now())

	rec := store.last(t)
	if rec.Executed || rec.OrderID != "" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestExecuteSellPortion(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{
		cash: 100,
		positions: []types.Position{{
			Symbol:    "ETH",
			Quantity:  decimal.NewFromInt(2),
			Available: decimal.NewFromInt(2),
		}},
	}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"ETH": 3000}})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpSell, Symbol: "eth", TargetPortion: 0.5}, 0.9, 6100, time.Now())

	if len(broker.orders) != 1 || broker.orders[0].qty != 1 || broker.orders[0].side != types.SELL {
		t.Fatalf("orders = %+v", broker.orders)
	}
	rec := store.last(t)
	if !rec.Executed || rec.PrevPortion != 0.9 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestExecuteCloseSizesByPortion(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{
		positions: []types.Position{{
			Symbol:    "DOGE",
			Quantity:  decimal.NewFromInt(10),
			Available: decimal.NewFromInt(10),
		}},
	}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"DOGE": 0.2}})

	// close exits the stated fraction of the position, exactly like sell.
	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpClose, Symbol: "DOGE", TargetPortion: 0.5}, 0.5, 1000, time.Now())

	if len(broker.orders) != 1 || broker.orders[0].qty != 5 {
		t.Fatalf("orders = %+v", broker.orders)
	}
}

func TestExecuteCloseFullPosition(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{
		positions: []types.Position{{
			Symbol:    "DOGE",
			Quantity:  decimal.NewFromInt(500),
			Available: decimal.NewFromInt(500),
		}},
	}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{prices: map[string]float64{"DOGE": 0.2}})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpClose, Symbol: "DOGE", TargetPortion: 1}, 1, 1000, time.Now())

	if len(broker.orders) != 1 || broker.orders[0].qty != 500 {
		t.Fatalf("orders = %+v", broker.orders)
	}
}

func TestExecuteSellNoPosition(t *testing.T) {
	t.Parallel()

	broker := &fakeBroker{}
	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(broker, store, stubPrices{})

	ex.Execute(context.Background(), account(), &types.Decision{Operation: types.OpSell, Symbol: "SOL", TargetPortion: 1}, 0, 100, time.Now())

	rec := store.last(t)
	if rec.Executed {
		t.Fatalf("record = %+v", rec)
	}
	if len(broker.orders) != 0 {
		t.Fatal("sell without a position must not reach the broker")
	}
}

func TestRecordInvalid(t *testing.T) {
	t.Parallel()

	store := &fakeDecisionStore{}
	ex, _ := newTestExecutor(&fakeBroker{}, store, stubPrices{})

	d := &types.Decision{Operation: types.OpBuy, Symbol: "SHIB", TargetPortion: 0.5, Reason: "ape in"}
	ex.RecordInvalid(account(), d, 1000, "unsupported symbol", time.Now())

	rec := store.last(t)
	if rec.Executed || rec.Symbol != "SHIB" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	events := make(chan types.StreamEvent, 1)
	ex := NewExecutor(&fakeBroker{}, stubPrices{}, &fakeDecisionStore{}, events, "binance", Config{}, testLogger())

	ex.publish(types.StreamEvent{Kind: types.StreamTrade})
	ex.publish(types.StreamEvent{Kind: types.StreamTrade}) // must not block
}
