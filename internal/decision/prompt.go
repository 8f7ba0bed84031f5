package decision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"alpha-arena/pkg/types"
)

// promptKeys is the closed set of placeholders a template may reference.
// Anything the context cannot supply renders literally as "N/A"; rendering
// never fails.
var promptKeys = []string{
	"session_context",
	"market_snapshot",
	"account_state",
	"decision_task",
	"output_format",
	"prices_json",
	"portfolio_json",
	"portfolio_positions_json",
	"news_section",
	"account_name",
	"model_name",
}

// RenderPrompt substitutes {key} placeholders from the context into the
// template text.
func RenderPrompt(templateText string, context map[string]string) string {
	out := templateText
	for _, key := range promptKeys {
		value, ok := context[key]
		if !ok || value == "" {
			value = "N/A"
		}
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

// BuildContext assembles the substitution map for one account's decision.
func BuildContext(account types.Account, portfolio *types.Portfolio, prices PriceSource, venue string, symbols []string, news string) map[string]string {
	ctx := map[string]string{
		"account_name":    account.Name,
		"model_name":      account.Model,
		"session_context": fmt.Sprintf("UTC time: %s. Venue: %s spot, USDT quote.", time.Now().UTC().Format(time.RFC3339), venue),
		"decision_task":   decisionTask,
		"output_format":   outputFormat,
		"news_section":    news,
	}

	current := make(map[string]float64, len(symbols))
	var lines []string
	for _, symbol := range symbols {
		price, ok := prices.Get(symbol, venue)
		if !ok {
			continue
		}
		current[symbol] = price
		lines = append(lines, fmt.Sprintf("%s: %.6g USDT", symbol, price))
	}
	if pricesJSON, err := json.Marshal(current); err == nil {
		ctx["prices_json"] = string(pricesJSON)
	}
	ctx["market_snapshot"] = strings.Join(lines, "\n")

	if portfolio != nil {
		if portfolioJSON, err := json.Marshal(portfolio); err == nil {
			ctx["portfolio_json"] = string(portfolioJSON)
		}
		if positionsJSON, err := json.Marshal(portfolio.Positions); err == nil {
			ctx["portfolio_positions_json"] = string(positionsJSON)
		}
		ctx["account_state"] = fmt.Sprintf(
			"Cash: %.2f USDT. Positions: %d. Total assets: %.2f USDT.",
			portfolio.Cash, len(portfolio.Positions), portfolio.TotalAssets)
	}
	return ctx
}

const decisionTask = `Decide the single best action for this account right now: ` +
	`buy a position, sell part or all of one, close one out, or hold. ` +
	`Respond with exactly one decision.`

// outputFormat is the fixed reply schema embedded in every prompt.
const outputFormat = `Reply with a single JSON object and nothing else:
{
  "operation": "buy|sell|hold|close",
  "symbol": "BTC|ETH|SOL|BNB|XRP|DOGE",
  "target_portion_of_balance": 0.0,
  "reason": "short explanation, at most 150 characters",
  "trading_strategy": "the strategy you are following"
}
For hold, set symbol to null and target_portion_of_balance to 0.
For buy, target_portion_of_balance is the fraction of available cash to spend.
For sell and close, it is the fraction of the position to liquidate.`
