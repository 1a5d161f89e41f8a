// coinbase-lob — a real-time level-3 limit-order-book maintainer.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go     — orchestrator: single core goroutine wiring stream → decoder → books
//	book/book.go         — per-product state machine applying received/open/done/match/change
//	book/ladder.go       — red-black-tree price ladders with FIFO queues per level
//	book/reconcile.go    — snapshot/stream splicing: buffer, fetch, replay, gap retries
//	book/manager.go      — routes events to per-product books, lazy init, reconnect resets
//	feed/decoder.go      — raw JSON frames → typed events with exact decimals
//	exchange/client.go   — REST client for level-3 snapshots and product metadata
//	exchange/ws.go       — streaming connection with signed subscribe and auto-reconnect
//	exchange/auth.go     — HMAC-SHA256 request and subscription signing
//	health/monitor.go    — heartbeat staleness and parked-book alerts
//	api/server.go        — HTTP surface: /health, /api/book/{product}, /metrics
//
// The maintainer mirrors the venue's book per order: it bootstraps each
// product from a level-3 snapshot, then applies the event stream in
// strict sequence order, detecting gaps and re-bootstrapping when the
// stream and snapshot cannot be spliced.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coinbase-lob/internal/api"
	"coinbase-lob/internal/config"
	"coinbase-lob/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("CB_CONFIG"); p != "" {
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

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng.Manager(), logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop api server", "error", err)
		}
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
