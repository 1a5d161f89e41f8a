// Package engine is the central orchestrator of the book maintainer.
//
// It wires together all subsystems:
//
//  1. The exchange Feed delivers raw stream frames and heartbeats.
//  2. The core goroutine decodes frames and routes events through the
//     book Manager, which owns one state machine per product.
//  3. Snapshot fetches complete asynchronously and are spliced back in
//     on the same goroutine, so every book has exactly one owner.
//  4. The health monitor raises operator alerts for stalled feeds and
//     parked books.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"coinbase-lob/internal/book"
	"coinbase-lob/internal/config"
	"coinbase-lob/internal/exchange"
	"coinbase-lob/internal/feed"
	"coinbase-lob/internal/health"
)

// Engine owns the lifecycle of all goroutines and the core event loop.
type Engine struct {
	cfg     config.Config
	client  *exchange.Client
	stream  *exchange.Feed
	manager *book.Manager
	monitor *health.Monitor
	metrics *Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth := exchange.NewAuth(cfg.API)
	client := exchange.NewClient(cfg, auth, logger)
	stream := exchange.NewFeed(cfg.API.WSURL, auth, logger)

	metrics := NewMetrics()
	obs := book.MultiObserver{
		&book.LogObserver{
			Logger:        logger,
			LargeNotional: decimal.NewFromFloat(cfg.Feed.LargeNotional),
		},
		metrics,
	}

	manager := book.NewManager(client, stream, obs, book.ManagerConfig{
		SnapshotTimeout: cfg.Feed.SnapshotTimeout,
		MaxRetries:      cfg.Feed.MaxRetries,
		ReplayBufferCap: cfg.Feed.ReplayBufferCap,
		Strict:          cfg.Feed.Strict,
	}, logger)

	monitor := health.NewMonitor(manager, stream, cfg.Feed.HeartbeatTimeout, 5*time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:     cfg,
		client:  client,
		stream:  stream,
		manager: manager,
		monitor: monitor,
		metrics: metrics,
		logger:  logger.With("component", "engine"),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Manager exposes the book manager for the HTTP layer.
func (e *Engine) Manager() *book.Manager { return e.manager }

// Start validates the configured products, launches the stream and the
// health monitor, registers the configured products, then starts the core
// loop.
func (e *Engine) Start() error {
	e.validateProducts()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.stream.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("stream error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.monitor.Run(e.ctx)
	}()

	for _, id := range e.cfg.Feed.Products {
		if err := e.manager.Init(id); err != nil {
			return err
		}
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()

	e.logger.Info("book maintainer started", "products", e.cfg.Feed.Products)
	return nil
}

// Stop shuts down: cancels all goroutines, waits, and closes the stream.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	e.wg.Wait()
	e.stream.Close()
	e.logger.Info("shutdown complete")
}

// run is the core loop. It is the only goroutine that mutates book
// state: it serially consumes decoded stream frames, snapshot-fetch
// completions, reconnect signals, and health alerts. Applying a single
// event never suspends.
func (e *Engine) run() {
	for {
		select {
		case <-e.ctx.Done():
			return

		case raw := <-e.stream.Frames():
			ev, err := feed.Decode(raw)
			if err != nil {
				e.logger.Warn("dropping undecodable frame", "error", err)
				e.metrics.DecodeError()
				continue
			}
			e.manager.OnEvent(e.ctx, ev)

		case <-e.stream.Resets():
			e.manager.ResetAll()

		case res := <-e.manager.Snapshots():
			e.manager.OnSnapshot(e.ctx, res)

		case alert := <-e.monitor.Alerts():
			e.logger.Error("health alert",
				"reason", alert.Reason,
				"product", alert.ProductID,
			)
			e.metrics.Alert()
			e.metrics.SetFailedBooks(len(e.manager.FailedBooks()))
		}
	}
}

// validateProducts cross-checks the configured products against the
// venue's product list. Failures are non-fatal: the venue may be
// unreachable at boot and the reconciler retries cover it.
func (e *Engine) validateProducts() {
	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()

	products, err := e.client.Products(ctx)
	if err != nil {
		e.logger.Warn("could not validate products", "error", err)
		return
	}

	known := make(map[string]bool, len(products))
	for _, p := range products {
		known[p.ID] = true
	}
	for _, id := range e.cfg.Feed.Products {
		if !known[id] {
			e.logger.Warn("configured product not listed by venue", "product", id)
		}
	}
}
