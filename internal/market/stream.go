package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"alpha-arena/pkg/types"
)

// TickStore persists market ticks with retention. Implemented by the
// storage layer.
type TickStore interface {
	InsertTick(tick types.Tick, retention time.Duration) error
}

// StreamConfig tunes the market stream poller.
type StreamConfig struct {
	BaseURL       string        // exchange REST base for the public ticker
	Venue         string        // venue label stamped on events
	Symbols       []string      // initial symbol set
	PollInterval  time.Duration // cadence of a full symbol sweep
	TickRetention time.Duration // rolling window for persisted ticks
}

// Stream is the single background poller that fetches the last price for
// each tracked symbol, records it in the cache, persists a tick row, and
// publishes a PriceEvent. Transient errors are logged and never break the
// iteration or change the cadence.
type Stream struct {
	http   *resty.Client
	cache  *PriceCache
	bus    *Bus
	ticks  TickStore
	cfg    StreamConfig
	logger *slog.Logger

	mu      sync.Mutex
	symbols []string
}

// NewStream creates the poller. It does not start polling until Run.
func NewStream(cfg StreamConfig, cache *PriceCache, bus *Bus, ticks TickStore, logger *slog.Logger) *Stream {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second)

	symbols := make([]string, len(cfg.Symbols))
	copy(symbols, cfg.Symbols)

	return &Stream{
		http:    httpClient,
		cache:   cache,
		bus:     bus,
		ticks:   ticks,
		cfg:     cfg,
		logger:  logger.With("component", "market_stream"),
		symbols: symbols,
	}
}

// SetSymbols replaces the tracked symbol set. Takes effect on the next sweep.
func (s *Stream) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append([]string(nil), symbols...)
}

// Symbols returns a copy of the current symbol set.
func (s *Stream) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

// Run polls until ctx is cancelled. One sweep fetches every symbol in order;
// each success flows cache → tick store → bus so subscribers always observe
// a price the cache can already serve.
func (s *Stream) Run(ctx context.Context) {
	s.logger.Info("market stream started", "symbols", s.Symbols(), "interval", s.cfg.PollInterval)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market stream stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Stream) sweep(ctx context.Context) {
	for _, symbol := range s.Symbols() {
		if ctx.Err() != nil {
			return
		}
		price, err := s.fetchPrice(ctx, symbol)
		if err != nil {
			s.logger.Warn("price fetch failed", "symbol", symbol, "error", err)
			continue
		}
		s.publish(symbol, price)
	}
}

func (s *Stream) publish(symbol string, price float64) {
	eventTime := time.Now().UTC()
	s.cache.Set(symbol, s.cfg.Venue, price, eventTime)

	if s.ticks != nil {
		tick := types.Tick{Symbol: symbol, Venue: s.cfg.Venue, Price: price, EventTime: eventTime}
		if err := s.ticks.InsertTick(tick, s.cfg.TickRetention); err != nil {
			s.logger.Warn("tick persist failed", "symbol", symbol, "error", err)
		}
	}

	s.bus.Publish(types.PriceEvent{
		Symbol:    symbol,
		Venue:     s.cfg.Venue,
		Price:     price,
		EventTime: eventTime,
	})
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// fetchPrice reads the last price for one symbol from the public ticker.
func (s *Stream) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	var result tickerPriceResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol+"USDT").
		SetResult(&result).
		Get("/api/v3/ticker/price")
	if err != nil {
		return 0, fmt.Errorf("ticker price: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("ticker price: status %d: %s", resp.StatusCode(), resp.String())
	}

	price, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker price: parse %q: %w", result.Price, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("ticker price: non-positive price %v", price)
	}
	return price, nil
}
