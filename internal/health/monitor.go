// Package health watches the feed and the books for operator-visible
// trouble.
//
// The monitor runs as a standalone goroutine and periodically checks:
//
//   - Heartbeat staleness: the venue sends HEARTBEAT frames; silence
//     beyond the configured timeout means the stream is stalled even if
//     the TCP connection looks healthy.
//   - Parked books: a book whose reconciliation retries are exhausted
//     needs an operator; it will not recover on its own until the feed
//     reconnects.
//
// Alerts are emitted on Alerts(); the engine logs them and raises the
// matching metrics.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// BookStates reports which books are parked. Implemented by the book manager.
type BookStates interface {
	FailedBooks() []string
}

// HeartbeatSource reports feed liveness. Implemented by the exchange feed.
type HeartbeatSource interface {
	LastHeartbeat() time.Time
}

// Alert is one operator-visible condition.
type Alert struct {
	Reason    string
	ProductID string // empty for feed-wide conditions
	Time      time.Time
}

// Monitor periodically inspects feed and book health.
type Monitor struct {
	books     BookStates
	heartbeat HeartbeatSource
	timeout   time.Duration
	interval  time.Duration

	alerts   chan Alert
	reported map[string]bool // products already alerted as failed

	logger *slog.Logger
}

// NewMonitor creates a monitor checking every interval, alarming when
// the heartbeat is older than timeout.
func NewMonitor(books BookStates, heartbeat HeartbeatSource, timeout, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		books:     books,
		heartbeat: heartbeat,
		timeout:   timeout,
		interval:  interval,
		alerts:    make(chan Alert, 16),
		reported:  make(map[string]bool),
		logger:    logger.With("component", "health"),
	}
}

// Alerts returns the channel the engine reads operator alerts from.
func (m *Monitor) Alerts() <-chan Alert {
	return m.alerts
}

// Run starts the monitoring loop. Blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

func (m *Monitor) check() {
	if last := m.heartbeat.LastHeartbeat(); !last.IsZero() {
		if age := time.Since(last); age > m.timeout {
			m.emit(Alert{
				Reason: fmt.Sprintf("no heartbeat for %s", age.Truncate(time.Second)),
				Time:   time.Now(),
			})
		}
	}

	failed := make(map[string]bool)
	for _, id := range m.books.FailedBooks() {
		failed[id] = true
		if m.reported[id] {
			continue
		}
		m.reported[id] = true
		m.emit(Alert{
			Reason:    "book parked after exhausting reconciliation retries",
			ProductID: id,
			Time:      time.Now(),
		})
	}
	// Books that recovered (feed reconnect resets them) can alert again.
	for id := range m.reported {
		if !failed[id] {
			delete(m.reported, id)
		}
	}
}

func (m *Monitor) emit(a Alert) {
	select {
	case m.alerts <- a:
	default:
		m.logger.Warn("alert channel full, dropping alert", "reason", a.Reason)
	}
}
