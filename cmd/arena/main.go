// Alpha Arena — an autonomous LLM-driven spot trading engine running
// multiple model-backed accounts against a Binance-compatible exchange.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: wires stream → bus → strategy → decision → trader
//	market/stream.go     — background poller publishing a price event per symbol sweep
//	market/pricecache.go — TTL price cache with rolling per-symbol history
//	strategy/manager.go  — maps price events to decision rounds per account trigger policy
//	decision/pipeline.go — portfolio + prompt + oracle call + parse + validate
//	trader/executor.go   — turns validated decisions into exchange orders, decision log
//	broker/client.go     — signed REST adapter: balances, orders, pace limiting
//	snapshot/service.go  — per-account asset snapshots and the aggregate arena feed
//	api/hub.go           — WebSocket broadcaster with per-account subscriber sets
//	store/store.go       — SQLite persistence: accounts, configs, decisions, snapshots
//
// How it trades:
//
//	Each account is bound to an LLM endpoint. Price events trigger decision
//	rounds according to the account's policy; the pipeline assembles the
//	portfolio and market context into a prompt, the model replies with one
//	JSON decision (buy/sell/hold/close with a target portion), and the
//	executor sizes and submits the order, logging every decision either way.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alpha-arena/internal/config"
	"alpha-arena/internal/engine"
	"alpha-arena/internal/store"
)

func main() {
	// .env is optional; real deployments use environment variables directly.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARENA_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}
	defer db.Close()

	eng := engine.New(cfg, db, logger)
	if err := eng.Start(context.Background()); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: eng.Handler(),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("live stream server failed", "error", err)
		}
	}()

	logger.Info("alpha arena started",
		"addr", cfg.Server.Addr,
		"symbols", cfg.Market.Symbols,
		"venue", cfg.Market.Venue,
		"db", cfg.Store.Path,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to stop live stream server", "error", err)
	}

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
