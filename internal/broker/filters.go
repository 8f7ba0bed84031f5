package broker

import (
	"strings"

	"github.com/shopspring/decimal"
)

// symbolFilter mirrors the exchange's LOT_SIZE and MIN_NOTIONAL filters for
// one symbol. Values for unknown symbols default to the most conservative
// entry in the table.
type symbolFilter struct {
	StepSize    decimal.Decimal
	MinNotional decimal.Decimal
}

var defaultFilter = symbolFilter{
	StepSize:    decimal.RequireFromString("0.00001"),
	MinNotional: decimal.NewFromInt(10),
}

var symbolFilters = map[string]symbolFilter{
	"BTC":  {StepSize: decimal.RequireFromString("0.00001"), MinNotional: decimal.NewFromInt(10)},
	"ETH":  {StepSize: decimal.RequireFromString("0.0001"), MinNotional: decimal.NewFromInt(10)},
	"SOL":  {StepSize: decimal.RequireFromString("0.01"), MinNotional: decimal.NewFromInt(10)},
	"BNB":  {StepSize: decimal.RequireFromString("0.001"), MinNotional: decimal.NewFromInt(10)},
	"XRP":  {StepSize: decimal.NewFromInt(1), MinNotional: decimal.NewFromInt(10)},
	"DOGE": {StepSize: decimal.NewFromInt(1), MinNotional: decimal.NewFromInt(10)},
}

// supportedSymbols is the set the engine will map to an exchange pair.
var supportedSymbols = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "BNB": true, "XRP": true, "DOGE": true,
}

// SupportedSymbol reports whether symbol maps to a known exchange pair.
func SupportedSymbol(symbol string) bool {
	return supportedSymbols[strings.ToUpper(symbol)]
}

// exchangePair maps an internal symbol to the exchange trading pair.
func exchangePair(symbol string) (string, bool) {
	upper := strings.ToUpper(symbol)
	if !supportedSymbols[upper] {
		return "", false
	}
	return upper + "USDT", true
}

func filterFor(symbol string) symbolFilter {
	if f, ok := symbolFilters[strings.ToUpper(symbol)]; ok {
		return f
	}
	return defaultFilter
}

// quantizeQty applies the exchange's lot-size and min-notional rules to a
// desired quantity at a reference price:
//
//  1. Round the quantity down to the step size.
//  2. If rounding produced zero, step back up once; if even one step is
//     below the minimum notional, the order is unsatisfiable at this price.
//  3. Otherwise reject quantities whose requested notional never met the
//     minimum, and rescue those where only the rounding dropped it under by
//     adding one step.
//
// The returned quantity always satisfies qty mod step == 0 and
// qty * refPrice >= minNotional.
func quantizeQty(symbol string, qty, refPrice decimal.Decimal) (decimal.Decimal, *Error) {
	f := filterFor(symbol)

	steps := qty.Div(f.StepSize).Floor()
	rounded := steps.Mul(f.StepSize)

	if rounded.IsZero() {
		rounded = f.StepSize
		if rounded.Mul(refPrice).LessThan(f.MinNotional) {
			return decimal.Zero, newError(KindLotSizeUnsatisfiable,
				"quantity %s rounds to zero at step %s and one step is worth %s, below minimum %s",
				qty.String(), f.StepSize.String(), rounded.Mul(refPrice).String(), f.MinNotional.String())
		}
		return rounded, nil
	}

	if qty.Mul(refPrice).LessThan(f.MinNotional) {
		return decimal.Zero, newError(KindNotionalBelowMin,
			"order value %s below minimum %s", qty.Mul(refPrice).String(), f.MinNotional.String())
	}

	// The requested notional met the minimum, so if rounding down dropped it
	// under, a single step restores it.
	if rounded.Mul(refPrice).LessThan(f.MinNotional) {
		rounded = rounded.Add(f.StepSize)
	}
	return rounded, nil
}

// formatDecimal renders a quantity or price as a plain fixed-point string
// with trailing zeros trimmed. The exchange rejects scientific notation.
func formatDecimal(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
