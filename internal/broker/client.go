// Package broker implements the signed REST adapter for a Binance-compatible
// spot exchange.
//
// The client presents a uniform, synchronous interface and hides:
//   - request signing (HMAC-SHA256 over the ordered query string),
//   - process-wide call pacing (one limiter shared by every account),
//   - quantity quantization against lot-size and min-notional filters,
//   - a short per-account TTL cache over balance reads.
//
// All failures come back as *Error with a Kind from the taxonomy in
// errors.go; callers branch on Kind, never on message text.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"alpha-arena/pkg/types"
)

// Config tunes the broker adapter.
type Config struct {
	BaseURL      string
	RateInterval time.Duration // minimum spacing between signed calls
	CacheTTL     time.Duration // balance cache lifetime
	Timeout      time.Duration
}

// Client is the exchange REST adapter. One instance serves every account;
// per-account state is limited to the balance cache keyed by account id.
type Client struct {
	http    *resty.Client
	limiter *PaceLimiter
	cache   *balanceCache
	logger  *slog.Logger
}

// NewClient creates the adapter with its process-wide pacing limiter.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout)

	return &Client{
		http:    httpClient,
		limiter: NewPaceLimiter(cfg.RateInterval),
		cache:   newBalanceCache(cfg.CacheTTL),
		logger:  logger.With("component", "broker"),
	}
}

// InvalidateBalance drops the cached balance for an account, forcing the
// next read to hit the exchange.
func (c *Client) InvalidateBalance(accountID int64) {
	c.cache.invalidate(accountID)
}

// quote currencies summed into spendable cash.
var quoteAssets = map[string]bool{"USDT": true, "BUSD": true}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// GetBalanceAndPositions returns the spendable quote cash and every
// non-quote asset with a positive total. Results are cached for a short TTL
// per account; the cache is dropped on any signed-call error so a failure is
// never masked by a stale success.
func (c *Client) GetBalanceAndPositions(ctx context.Context, account types.Account) (float64, []types.Position, error) {
	if cash, positions, ok := c.cache.get(account.ID); ok {
		return cash, positions, nil
	}

	var result accountResponse
	if err := c.signedCall(ctx, account, http.MethodGet, "/api/v3/account", nil, &result); err != nil {
		c.cache.invalidate(account.ID)
		return 0, nil, err
	}

	cash := decimal.Zero
	var positions []types.Position
	for _, b := range result.Balances {
		free, err1 := decimal.NewFromString(b.Free)
		locked, err2 := decimal.NewFromString(b.Locked)
		if err1 != nil || err2 != nil {
			c.cache.invalidate(account.ID)
			return 0, nil, newError(KindMalformedResponse, "balance %s: bad amounts %q/%q", b.Asset, b.Free, b.Locked)
		}
		total := free.Add(locked)
		if quoteAssets[b.Asset] {
			cash = cash.Add(total)
			continue
		}
		if total.IsPositive() {
			positions = append(positions, types.Position{
				Symbol:    b.Asset,
				Quantity:  total,
				Available: free,
				AvgCost:   decimal.Zero, // the exchange does not report cost basis
			})
		}
	}

	cashF, _ := cash.Float64()
	c.cache.set(account.ID, cashF, positions)
	return cashF, positions, nil
}

type orderResponse struct {
	OrderID             int64  `json:"orderId"`
	Symbol              string `json:"symbol"`
	Side                string `json:"side"`
	Type                string `json:"type"`
	Status              string `json:"status"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	UpdateTime          int64  `json:"updateTime"`
}

// GetOpenOrders lists the account's not-yet-terminal orders.
func (c *Client) GetOpenOrders(ctx context.Context, account types.Account) ([]types.Order, error) {
	var result []orderResponse
	if err := c.signedCall(ctx, account, http.MethodGet, "/api/v3/openOrders", nil, &result); err != nil {
		c.cache.invalidate(account.ID)
		return nil, err
	}

	orders := make([]types.Order, 0, len(result))
	for _, o := range result {
		orders = append(orders, convertOrder(o))
	}
	return orders, nil
}

// GetClosedOrders lists filled and partially-filled orders across the
// supported symbols, newest first, capped at limit. One signed call per
// symbol; each call respects the pacing limiter.
func (c *Client) GetClosedOrders(ctx context.Context, account types.Account, limit int) ([]types.Order, error) {
	symbols := make([]string, 0, len(supportedSymbols))
	for s := range supportedSymbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var orders []types.Order
	for _, symbol := range symbols {
		pair, _ := exchangePair(symbol)
		params := []param{
			{"symbol", pair},
			{"limit", strconv.Itoa(limit)},
		}
		var result []orderResponse
		if err := c.signedCall(ctx, account, http.MethodGet, "/api/v3/allOrders", params, &result); err != nil {
			c.cache.invalidate(account.ID)
			return nil, err
		}
		for _, o := range result {
			if o.Status != "FILLED" && o.Status != "PARTIALLY_FILLED" {
				continue
			}
			orders = append(orders, convertOrder(o))
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CloseTime > orders[j].CloseTime })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// ExecuteOrder submits a market or limit order after quantization. On
// success the balance cache for the account is invalidated and the exchange
// order id is returned.
func (c *Client) ExecuteOrder(ctx context.Context, account types.Account, symbol string, side types.Side, qty, refPrice float64, orderType types.OrderType) (*types.Order, error) {
	pair, ok := exchangePair(symbol)
	if !ok {
		return nil, newError(KindUnknownSymbol, "no exchange pair for %q", symbol)
	}

	quantized, qerr := quantizeQty(symbol, decimal.NewFromFloat(qty), decimal.NewFromFloat(refPrice))
	if qerr != nil {
		return nil, qerr
	}

	params := []param{
		{"symbol", pair},
		{"side", string(side)},
		{"type", string(orderType)},
		{"quantity", formatDecimal(quantized)},
	}
	if orderType == types.OrderLimit {
		params = append(params,
			param{"price", formatDecimal(decimal.NewFromFloat(refPrice))},
			param{"timeInForce", "GTC"},
		)
	}

	var result orderResponse
	if err := c.signedCall(ctx, account, http.MethodPost, "/api/v3/order", params, &result); err != nil {
		c.cache.invalidate(account.ID)
		return nil, err
	}

	c.cache.invalidate(account.ID)
	order := convertOrder(result)
	order.Symbol = strings.ToUpper(symbol)
	c.logger.Info("order submitted",
		"account_id", account.ID, "symbol", symbol, "side", side,
		"qty", formatDecimal(quantized), "order_id", order.OrderID)
	return &order, nil
}

// CancelOrder cancels an order by exchange id. When the caller does not know
// the trading pair it is resolved from the open orders, then from recent
// closed orders.
func (c *Client) CancelOrder(ctx context.Context, account types.Account, orderID, symbol string) error {
	pair := ""
	if symbol != "" {
		p, ok := exchangePair(symbol)
		if !ok {
			return newError(KindUnknownSymbol, "no exchange pair for %q", symbol)
		}
		pair = p
	} else {
		p, err := c.lookupOrderPair(ctx, account, orderID)
		if err != nil {
			return err
		}
		pair = p
	}

	params := []param{
		{"symbol", pair},
		{"orderId", orderID},
	}
	var result orderResponse
	if err := c.signedCall(ctx, account, http.MethodDelete, "/api/v3/order", params, &result); err != nil {
		c.cache.invalidate(account.ID)
		return err
	}

	c.cache.invalidate(account.ID)
	c.logger.Info("order cancelled", "account_id", account.ID, "order_id", orderID, "pair", pair)
	return nil
}

func (c *Client) lookupOrderPair(ctx context.Context, account types.Account, orderID string) (string, error) {
	open, err := c.GetOpenOrders(ctx, account)
	if err != nil {
		return "", err
	}
	for _, o := range open {
		if o.OrderID == orderID {
			return o.Symbol, nil
		}
	}
	closed, err := c.GetClosedOrders(ctx, account, 50)
	if err != nil {
		return "", err
	}
	for _, o := range closed {
		if o.OrderID == orderID {
			return o.Symbol, nil
		}
	}
	return "", newError(KindExchangeRejected, "order %s not found in open or recent orders", orderID)
}

// exchangeError is the exchange's application error envelope.
type exchangeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// signedCall performs one signed request. It blocks on the pacing limiter,
// signs the query, and decodes either the success payload or the exchange
// error envelope.
func (c *Client) signedCall(ctx context.Context, account types.Account, method, path string, params []param, out any) error {
	if !account.HasExchangeKeys() {
		return newError(KindCredentialMissing, "account %d has no exchange credentials", account.ID)
	}

	c.limiter.Wait()

	query := signedQuery(params, account.ExchangeSecret, time.Now())
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", account.ExchangeAPIKey)

	resp, err := req.Execute(method, path+"?"+query)
	if err != nil {
		return newError(KindNetwork, "%s %s: %v", method, path, err)
	}

	if resp.StatusCode() != http.StatusOK {
		kind := kindForStatus(resp.StatusCode())
		var envelope exchangeError
		if json.Unmarshal(resp.Body(), &envelope) == nil && envelope.Msg != "" {
			if kind == KindUnauthorized || kind == KindForbidden {
				c.logger.Error("exchange rejected credentials",
					"account_id", account.ID, "status", resp.StatusCode(), "msg", envelope.Msg)
			}
			return newError(kind, "%s", envelope.Msg)
		}
		return newError(kind, "status %d: %s", resp.StatusCode(), resp.String())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return newError(KindMalformedResponse, "%s %s: %v", method, path, err)
		}
	}
	return nil
}

func convertOrder(o orderResponse) types.Order {
	qty, _ := strconv.ParseFloat(o.ExecutedQty, 64)
	if qty == 0 {
		qty, _ = strconv.ParseFloat(o.OrigQty, 64)
	}
	price, _ := strconv.ParseFloat(o.Price, 64)
	cost, _ := strconv.ParseFloat(o.CummulativeQuoteQty, 64)
	return types.Order{
		OrderID:   strconv.FormatInt(o.OrderID, 10),
		Symbol:    strings.TrimSuffix(o.Symbol, "USDT"),
		Side:      types.Side(o.Side),
		OrderType: types.OrderType(o.Type),
		Quantity:  qty,
		Price:     price,
		Cost:      cost,
		Status:    o.Status,
		CloseTime: o.UpdateTime,
	}
}
