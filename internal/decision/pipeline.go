package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"alpha-arena/pkg/types"
)

// TemplateStore resolves the prompt template an account is bound to.
type TemplateStore interface {
	TemplateKeyForAccount(accountID int64) (string, error)
	GetPromptTemplate(key string) (types.PromptTemplate, error)
}

// demoAPIKeys are placeholder credentials shipped in example configs.
// Accounts still carrying one are skipped instead of burning a cycle on a
// call that can only fail.
var demoAPIKeys = map[string]bool{
	"":                  true,
	"demo":              true,
	"sk-demo":           true,
	"your-api-key":      true,
	"your-api-key-here": true,
	"sk-xxx":            true,
}

// IsDemoAccount reports whether the account's oracle credential is a known
// placeholder.
func IsDemoAccount(account types.Account) bool {
	return demoAPIKeys[strings.TrimSpace(account.APIKey)]
}

const systemText = "You are an autonomous trading agent. Analyse the provided market and account state, then reply with a single JSON decision object and nothing else."

// Pipeline runs one full decision: portfolio assembly, prompt rendering,
// the oracle call, parsing, and validation.
type Pipeline struct {
	balances  BalanceSource
	prices    PriceSource
	templates TemplateStore
	oracle    *Oracle
	news      *NewsFetcher
	venue     string
	symbols   func() []string
	logger    *slog.Logger
}

// NewPipeline wires the pipeline. symbols is consulted per decision so
// runtime changes to the tracked set are picked up immediately.
func NewPipeline(balances BalanceSource, prices PriceSource, templates TemplateStore, oracle *Oracle, news *NewsFetcher, venue string, symbols func() []string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		balances:  balances,
		prices:    prices,
		templates: templates,
		oracle:    oracle,
		news:      news,
		venue:     venue,
		symbols:   symbols,
		logger:    logger.With("component", "decision"),
	}
}

// Decide produces a validated decision for the account, or:
//
//   - (nil, nil, err) when the oracle had nothing usable to say — transport
//     exhaustion or an unparseable reply; no decision log should be written;
//   - (decision, portfolio, *ValidationError) when the reply parsed but
//     violates the contract; the caller logs it unexecuted.
//
// The returned decision carries the prompt, reasoning, and raw reply
// snapshots for the audit trail.
func (p *Pipeline) Decide(ctx context.Context, account types.Account) (*types.Decision, *types.Portfolio, error) {
	if IsDemoAccount(account) {
		return nil, nil, fmt.Errorf("account %d has placeholder oracle credentials", account.ID)
	}

	portfolio, err := BuildPortfolio(ctx, p.balances, p.prices, p.venue, account)
	if err != nil {
		return nil, nil, fmt.Errorf("build portfolio: %w", err)
	}

	template, err := p.resolveTemplate(account)
	if err != nil {
		return nil, nil, err
	}

	news := newsFallback
	if p.news != nil {
		news = p.news.Fetch(ctx)
	}

	promptCtx := BuildContext(account, portfolio, p.prices, p.venue, p.symbols(), news)
	prompt := RenderPrompt(template.Text, promptCtx)

	raw, reasoning, err := p.oracle.Call(ctx, account, systemText, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle call: %w", err)
	}

	d, err := ParseDecision(raw)
	if err != nil {
		return nil, nil, err
	}
	if reasoning == "" {
		reasoning = ExtractReasoning(raw)
	}
	d.PromptSnapshot = prompt
	d.ReasoningSnapshot = reasoning
	d.RawSnapshot = raw

	p.logger.Info("decision received",
		"account_id", account.ID, "operation", d.Operation,
		"symbol", d.Symbol, "portion", d.TargetPortion)

	if err := Validate(d); err != nil {
		return d, portfolio, err
	}
	return d, portfolio, nil
}

// PrevPortion returns the account's pre-decision exposure to the decision's
// symbol, recorded on sell and hold rows.
func (p *Pipeline) PrevPortion(portfolio *types.Portfolio, d *types.Decision) float64 {
	if d == nil || d.Symbol == "" {
		return 0
	}
	return portionOf(portfolio, d.Symbol)
}

func (p *Pipeline) resolveTemplate(account types.Account) (types.PromptTemplate, error) {
	key, err := p.templates.TemplateKeyForAccount(account.ID)
	if err != nil {
		return types.PromptTemplate{}, fmt.Errorf("resolve template binding: %w", err)
	}
	template, err := p.templates.GetPromptTemplate(key)
	if err != nil && key != "default" {
		// A dangling binding falls back to the default template.
		template, err = p.templates.GetPromptTemplate("default")
	}
	if err != nil {
		return types.PromptTemplate{}, fmt.Errorf("load prompt template %q: %w", key, err)
	}
	return template, nil
}
