// Package decision implements the oracle pipeline: portfolio context
// assembly, prompt rendering, the OpenAI-compatible oracle call with retry
// and endpoint fallback, reply parsing, and validation.
package decision

import (
	"context"
	"fmt"
	"strings"

	"alpha-arena/pkg/types"
)

// BalanceSource provides live exchange balances. Implemented by the broker
// client; its short cache makes repeat reads inside one cycle cheap.
type BalanceSource interface {
	GetBalanceAndPositions(ctx context.Context, account types.Account) (float64, []types.Position, error)
}

// PriceSource serves current prices. Implemented by the market price cache.
type PriceSource interface {
	Get(symbol, venue string) (float64, bool)
	History(symbol, venue string) []types.PricePoint
}

// BuildPortfolio assembles the account snapshot the oracle reasons over:
// live cash plus every position valued at its current market price.
//
// The exchange does not report cost basis, so avg_cost falls back to the
// current price and unrealized PnL renders as zero. total_assets is always
// cash plus the sum of current values; a held symbol with no current price
// is valued at its (fallback) avg cost rather than dropped.
func BuildPortfolio(ctx context.Context, balances BalanceSource, prices PriceSource, venue string, account types.Account) (*types.Portfolio, error) {
	cash, positions, err := balances.GetBalanceAndPositions(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}

	portfolio := &types.Portfolio{
		Cash:      cash,
		Positions: make(map[string]types.PortfolioPosition, len(positions)),
	}
	total := cash
	for _, pos := range positions {
		symbol := strings.ToUpper(pos.Symbol)
		qty, _ := pos.Quantity.Float64()
		avgCost, _ := pos.AvgCost.Float64()

		price, ok := prices.Get(symbol, venue)
		if !ok {
			price = avgCost
		}
		if avgCost == 0 {
			avgCost = price
		}

		value := qty * price
		portfolio.Positions[symbol] = types.PortfolioPosition{
			Quantity:     qty,
			AvgCost:      avgCost,
			CurrentValue: value,
		}
		total += value
	}
	portfolio.TotalAssets = total
	return portfolio, nil
}

// portionOf returns the share of total assets currently held in symbol,
// used as prev_portion on sell and hold decisions.
func portionOf(p *types.Portfolio, symbol string) float64 {
	if p == nil || p.TotalAssets <= 0 {
		return 0
	}
	pos, ok := p.Positions[strings.ToUpper(symbol)]
	if !ok {
		return 0
	}
	return pos.CurrentValue / p.TotalAssets
}
