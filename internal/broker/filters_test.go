package broker

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantizeQtyRoundsDownToStep(t *testing.T) {
	t.Parallel()

	// 0.000237 BTC at 50000 = 11.85 USDT notional; step 0.00001.
	qty, err := quantizeQty("BTC", decimal.RequireFromString("0.000237"), decimal.NewFromInt(50000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qty.String() != "0.00023" {
		t.Fatalf("qty = %s, want 0.00023", qty.String())
	}
}

func TestQuantizeQtyNotionalBelowMin(t *testing.T) {
	t.Parallel()

	// $1000 cash, portion 0.002 at BTC 50000: qty 0.00004, notional 2 USDT.
	qty, err := quantizeQty("BTC", decimal.RequireFromString("0.00004"), decimal.NewFromInt(50000))
	if err == nil {
		t.Fatalf("expected error, got qty %s", qty.String())
	}
	if err.Kind != KindNotionalBelowMin {
		t.Fatalf("kind = %s, want %s", err.Kind, KindNotionalBelowMin)
	}
}

func TestQuantizeQtyLotSizeUnsatisfiable(t *testing.T) {
	t.Parallel()

	// 0.000006 BTC rounds to zero at step 0.00001; one step is 0.5 USDT,
	// still below the 10 USDT minimum.
	qty, err := quantizeQty("BTC", decimal.RequireFromString("0.000006"), decimal.NewFromInt(50000))
	if err == nil {
		t.Fatalf("expected error, got qty %s", qty.String())
	}
	if err.Kind != KindLotSizeUnsatisfiable {
		t.Fatalf("kind = %s, want %s", err.Kind, KindLotSizeUnsatisfiable)
	}
}

func TestQuantizeQtyZeroRescuedByOneStep(t *testing.T) {
	t.Parallel()

	// 0.6 XRP rounds to zero at step 1; one step at 20 USDT clears the
	// minimum, so the order is bumped up rather than rejected.
	qty, err := quantizeQty("XRP", decimal.RequireFromString("0.6"), decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qty.String() != "1" {
		t.Fatalf("qty = %s, want 1", qty.String())
	}
}

func TestQuantizeQtyRoundDownRescue(t *testing.T) {
	t.Parallel()

	// 1.05 SOL at 10 USDT: requested notional 10.5 meets the minimum, but
	// rounding to step 0.01 keeps 1.05 — verify the law holds.
	qty, err := quantizeQty("SOL", decimal.RequireFromString("1.05"), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkLotLaw(t, "SOL", qty, decimal.NewFromInt(10))
}

// checkLotLaw asserts the quantization invariant: the result is a step
// multiple and its notional meets the minimum.
func checkLotLaw(t *testing.T, symbol string, qty, price decimal.Decimal) {
	t.Helper()
	f := filterFor(symbol)
	if !qty.Mod(f.StepSize).IsZero() {
		t.Fatalf("qty %s is not a multiple of step %s", qty.String(), f.StepSize.String())
	}
	if qty.Mul(price).LessThan(f.MinNotional) {
		t.Fatalf("notional %s below minimum %s", qty.Mul(price).String(), f.MinNotional.String())
	}
}

func TestQuantizeQtyLawAcrossSymbols(t *testing.T) {
	t.Parallel()

	cases := []struct {
		symbol string
		qty    string
		price  int64
	}{
		{"BTC", "0.00123456", 50000},
		{"ETH", "0.034567", 3000},
		{"SOL", "0.5551", 150},
		{"BNB", "0.123456", 600},
		{"DOGE", "150.7", 1},
	}
	for _, tc := range cases {
		qty, err := quantizeQty(tc.symbol, decimal.RequireFromString(tc.qty), decimal.NewFromInt(tc.price))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.symbol, err)
		}
		checkLotLaw(t, tc.symbol, qty, decimal.NewFromInt(tc.price))
	}
}

func TestExchangePair(t *testing.T) {
	t.Parallel()

	pair, ok := exchangePair("btc")
	if !ok || pair != "BTCUSDT" {
		t.Fatalf("exchangePair(btc) = %s %v", pair, ok)
	}
	if _, ok := exchangePair("SHIB"); ok {
		t.Fatal("SHIB should be unknown")
	}
}

func TestFormatDecimal(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"0.00023000", "0.00023"},
		{"1.000", "1"},
		{"0.1", "0.1"},
		{"12", "12"},
	}
	for _, tc := range cases {
		if got := formatDecimal(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("formatDecimal(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
