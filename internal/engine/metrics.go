package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"coinbase-lob/internal/book"
	"coinbase-lob/pkg/types"
)

// Metrics is a book.Observer that exports event counters, plus a few
// engine-level series the core loop drives directly. Registered on the
// default registry and served by the dashboard's /metrics endpoint.
type Metrics struct {
	events       *prometheus.CounterVec
	trades       *prometheus.CounterVec
	decodeErrors prometheus.Counter
	alerts       prometheus.Counter
	failedBooks  prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_events_applied_total",
			Help: "Feed events applied to a book, by product and event type.",
		}, []string{"product", "type"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lob_trades_total",
			Help: "Match events observed, by product.",
		}, []string{"product"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lob_decode_errors_total",
			Help: "Frames dropped because they could not be decoded.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lob_health_alerts_total",
			Help: "Operator-visible health alerts raised.",
		}),
		failedBooks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lob_failed_books",
			Help: "Books parked after exhausting reconciliation retries.",
		}),
	}
	prometheus.MustRegister(m.events, m.trades, m.decodeErrors, m.alerts, m.failedBooks)
	return m
}

func (m *Metrics) OnReceived(_ *types.Order, ev types.Received) {
	m.events.WithLabelValues(ev.ProductID, "received").Inc()
}

func (m *Metrics) OnAdd(_ *types.Order, ev types.Open) {
	m.events.WithLabelValues(ev.ProductID, "open").Inc()
}

func (m *Metrics) OnRemove(_ *types.Order, ev types.Done) {
	m.events.WithLabelValues(ev.ProductID, "done").Inc()
}

func (m *Metrics) OnMatch(_ *types.Order, ev types.Match) {
	m.events.WithLabelValues(ev.ProductID, "match").Inc()
	m.trades.WithLabelValues(ev.ProductID).Inc()
}

func (m *Metrics) OnChange(_ *types.Order, ev types.Change) {
	m.events.WithLabelValues(ev.ProductID, "change").Inc()
}

// DecodeError counts an undecodable frame.
func (m *Metrics) DecodeError() { m.decodeErrors.Inc() }

// Alert counts a health alert.
func (m *Metrics) Alert() { m.alerts.Inc() }

// SetFailedBooks records how many books are currently parked.
func (m *Metrics) SetFailedBooks(n int) { m.failedBooks.Set(float64(n)) }

var _ book.Observer = (*Metrics)(nil)
