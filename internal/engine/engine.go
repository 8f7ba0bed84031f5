// Package engine assembles and runs the full trading system: market stream,
// event bus, broker adapter, decision pipeline, trigger engine, snapshot
// service, and the live-stream broadcaster.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"alpha-arena/internal/api"
	"alpha-arena/internal/broker"
	"alpha-arena/internal/config"
	"alpha-arena/internal/decision"
	"alpha-arena/internal/market"
	"alpha-arena/internal/snapshot"
	"alpha-arena/internal/store"
	"alpha-arena/internal/strategy"
	"alpha-arena/internal/trader"
	"alpha-arena/pkg/types"
)

// Engine owns every long-running component and their shared event plumbing.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *store.Store
	broker   *broker.Client
	cache    *market.PriceCache
	bus      *market.Bus
	stream   *market.Stream
	pipeline *decision.Pipeline
	executor *trader.Executor
	manager  *strategy.Manager
	snaps    *snapshot.Service
	hub      *api.Hub
	ws       *api.WSHandler

	events chan types.StreamEvent

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the engine. Nothing starts until Start.
func New(cfg *config.Config, db *store.Store, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		store:  db,
		events: make(chan types.StreamEvent, 256),
	}

	e.broker = broker.NewClient(broker.Config{
		BaseURL:      cfg.Broker.BaseURL,
		RateInterval: cfg.Broker.RateInterval,
		CacheTTL:     cfg.Broker.CacheTTL,
		Timeout:      cfg.Broker.Timeout,
	}, logger)

	e.cache = market.NewPriceCache(cfg.Market.CacheTTL, cfg.Market.HistoryWindow)
	e.bus = market.NewBus(logger)
	e.stream = market.NewStream(market.StreamConfig{
		BaseURL:       cfg.Broker.BaseURL,
		Venue:         cfg.Market.Venue,
		Symbols:       cfg.Market.Symbols,
		PollInterval:  cfg.Market.PollInterval,
		TickRetention: cfg.Market.TickRetention,
	}, e.cache, e.bus, db, logger)

	oracle := decision.NewOracle(decision.OracleConfig{
		Timeout:     cfg.Oracle.Timeout,
		RetryCount:  cfg.Oracle.RetryCount,
		BackoffBase: cfg.Oracle.BackoffBase,
		Temperature: cfg.Oracle.Temperature,
		SSLVerify:   cfg.Oracle.SSLVerify,
	}, logger)
	news := decision.NewNewsFetcher(decision.NewsConfig{
		FeedURL:  cfg.News.FeedURL,
		Timeout:  cfg.News.Timeout,
		MaxChars: cfg.News.MaxChars,
	}, logger)
	e.pipeline = decision.NewPipeline(e.broker, e.cache, db, oracle, news,
		cfg.Market.Venue, e.stream.Symbols, logger)

	e.executor = trader.NewExecutor(e.broker, e.cache, db, e.events,
		cfg.Market.Venue, trader.Config{
			CommissionRate: cfg.Trading.CommissionRate,
			MinCommission:  cfg.Trading.MinCommission,
		}, logger)

	e.manager = strategy.NewManager(db, e.pipeline, e.executor, logger)

	e.hub = api.NewHub(e.accountSnapshot, cfg.Snapshot.PushInterval, logger)
	e.ws = api.NewWSHandler(e.hub, logger)

	e.snaps = snapshot.NewService(db, e.broker, e.cache, e.events, e.hub.HasSubscribers,
		snapshot.Config{
			Retention: cfg.Snapshot.Retention,
			Venue:     cfg.Market.Venue,
		}, logger)

	return e
}

// Start seeds prompt templates, subscribes the consumers, and launches every
// background loop.
func (e *Engine) Start(ctx context.Context) error {
	for _, t := range decision.FactoryTemplates() {
		if err := e.store.SeedPromptTemplate(t); err != nil {
			return fmt.Errorf("seed prompt templates: %w", err)
		}
	}

	e.manager.Refresh()

	e.bus.Subscribe("snapshot", e.snaps.HandlePriceEvent)
	e.bus.Subscribe("strategy", e.manager.HandlePriceEvent)

	ctx, e.cancel = context.WithCancel(ctx)

	e.run(ctx, "market stream", e.stream.Run)
	e.run(ctx, "snapshot service", e.snaps.Run)
	e.run(ctx, "broadcaster", func(ctx context.Context) { e.hub.Run(ctx, e.events) })

	e.logger.Info("engine started",
		"symbols", e.stream.Symbols(), "venue", e.cfg.Market.Venue)
	return nil
}

// Stop cancels every loop, lets in-flight decision rounds complete, and
// waits for everything to drain.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.manager.Stop()
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

// Handler returns the HTTP surface: the live-stream WebSocket endpoint.
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws/{account_id}", e.ws)
	return mux
}

func (e *Engine) run(ctx context.Context, name string, fn func(context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.logger.Debug("loop starting", "loop", name)
		fn(ctx)
	}()
}

// accountSnapshot builds the periodic per-account portfolio push for live
// subscribers.
func (e *Engine) accountSnapshot(accountID int64) (any, error) {
	account, err := e.store.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if !account.HasExchangeKeys() {
		return nil, fmt.Errorf("account %d has no exchange keys", accountID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	portfolio, err := decision.BuildPortfolio(ctx, e.broker, e.cache, e.cfg.Market.Venue, account)
	if err != nil {
		return nil, err
	}

	return types.StreamEvent{
		Kind:      types.StreamAccount,
		AccountID: accountID,
		Timestamp: time.Now().UTC(),
		Payload:   portfolio,
	}, nil
}
