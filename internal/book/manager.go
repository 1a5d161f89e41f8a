package book

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coinbase-lob/pkg/types"
)

// Subscriber requests stream delivery for products. Implemented by the
// exchange feed.
type Subscriber interface {
	Subscribe(productIDs []string) error
}

// ManagerConfig bounds the reconciliation protocol.
type ManagerConfig struct {
	SnapshotTimeout time.Duration // per-fetch deadline
	MaxRetries      int           // reconciliation attempts before parking a book
	ReplayBufferCap int           // max events buffered while a snapshot is in flight
	Strict          bool          // drop events for products never initialized
}

type slot struct {
	book *Book
	rec  *Reconciler
}

// Manager routes decoded events to per-product books and owns their
// reconcilers. Mutations happen only on the core goroutine; the RWMutex
// makes the read-only accessors safe for the HTTP layer.
type Manager struct {
	mu    sync.RWMutex
	slots map[string]*slot

	fetch   SnapshotFetcher
	sub     Subscriber
	obs     Observer
	cfg     ManagerConfig
	results chan SnapshotResult
	logger  *slog.Logger
}

// NewManager creates an empty book manager.
func NewManager(fetch SnapshotFetcher, sub Subscriber, obs Observer, cfg ManagerConfig, logger *slog.Logger) *Manager {
	return &Manager{
		slots:   make(map[string]*slot),
		fetch:   fetch,
		sub:     sub,
		obs:     obs,
		cfg:     cfg,
		results: make(chan SnapshotResult, 16),
		logger:  logger.With("component", "book_manager"),
	}
}

// Snapshots is the completion queue for asynchronous snapshot fetches.
// The owning goroutine must drain it through OnSnapshot.
func (m *Manager) Snapshots() <-chan SnapshotResult { return m.results }

// Init registers a product and subscribes its stream. The book starts in
// ModeFresh; the first delivered event triggers reconciliation.
func (m *Manager) Init(productID string) error {
	m.mu.Lock()
	if _, ok := m.slots[productID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("product %s already initialized", productID)
	}
	m.addLocked(productID)
	m.mu.Unlock()

	return m.sub.Subscribe([]string{productID})
}

func (m *Manager) addLocked(productID string) *slot {
	b := New(productID, m.obs, m.logger)
	s := &slot{
		book: b,
		rec:  NewReconciler(b, m.fetch, m.results, m.cfg.SnapshotTimeout, m.cfg.MaxRetries, m.cfg.ReplayBufferCap, m.logger),
	}
	m.slots[productID] = s
	return s
}

// OnEvent routes one decoded event to its product's book. Products never
// seen before are lazily created unless strict routing is on.
func (m *Manager) OnEvent(ctx context.Context, ev types.Event) {
	productID := ev.Head().ProductID
	if productID == "" {
		return
	}

	m.mu.RLock()
	s, ok := m.slots[productID]
	m.mu.RUnlock()

	if !ok {
		if m.cfg.Strict {
			m.logger.Debug("dropping event for unregistered product", "product", productID)
			return
		}
		m.mu.Lock()
		if s, ok = m.slots[productID]; !ok {
			s = m.addLocked(productID)
			m.logger.Info("lazily created book", "product", productID)
		}
		m.mu.Unlock()
	}

	s.rec.OnEvent(ctx, ev)
}

// OnSnapshot routes one fetch completion to its product's reconciler.
func (m *Manager) OnSnapshot(ctx context.Context, res SnapshotResult) {
	m.mu.RLock()
	s, ok := m.slots[res.ProductID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	s.rec.OnSnapshot(ctx, res)
}

// ResetAll returns every book to ModeFresh. Called after the stream
// reconnects: the continuity of buffered events cannot be trusted and
// in-flight snapshot responses are invalidated by the generation bump.
func (m *Manager) ResetAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.slots {
		s.rec.Reset()
	}
	m.logger.Info("all books reset", "count", len(m.slots))
}

// Book returns the state machine for one product.
func (m *Manager) Book(productID string) (*Book, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[productID]
	if !ok {
		return nil, false
	}
	return s.book, true
}

// Products lists every registered product id.
func (m *Manager) Products() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.slots))
	for id := range m.slots {
		out = append(out, id)
	}
	return out
}

// FailedBooks lists products whose reconciliation retries are exhausted.
func (m *Manager) FailedBooks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.slots {
		if s.book.Mode() == ModeFailed {
			out = append(out, id)
		}
	}
	return out
}

// Summary returns a top-of-book view for the HTTP layer.
func (m *Manager) Summary(productID string, depth int) (types.BookSummary, bool) {
	m.mu.RLock()
	s, ok := m.slots[productID]
	m.mu.RUnlock()
	if !ok {
		return types.BookSummary{}, false
	}
	return s.book.Summary(depth), true
}
