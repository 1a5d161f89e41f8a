package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinbase-lob/internal/config"
	"coinbase-lob/pkg/types"
)

// BookProvider is the read-only view the HTTP layer needs from the book
// manager.
type BookProvider interface {
	Products() []string
	Summary(productID string, depth int) (types.BookSummary, bool)
}

// Handlers implements the HTTP endpoints.
type Handlers struct {
	provider BookProvider
	cfg      config.DashboardConfig
	started  time.Time
	logger   *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(provider BookProvider, cfg config.DashboardConfig, logger *slog.Logger) *Handlers {
	return &Handlers{
		provider: provider,
		cfg:      cfg,
		started:  time.Now(),
		logger:   logger.With("component", "api_handlers"),
	}
}

// HandleHealth responds to GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(h.started).Truncate(time.Second).String(),
		"products": h.provider.Products(),
	})
}

// HandleBook responds to GET /api/book/{product}?depth=N with the top
// levels of the live book.
func (h *Handlers) HandleBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := strings.TrimPrefix(r.URL.Path, "/api/book/")
	if productID == "" {
		http.Error(w, "missing product id", http.StatusBadRequest)
		return
	}

	depth := h.cfg.Depth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad depth", http.StatusBadRequest)
			return
		}
		depth = n
	}

	summary, ok := h.provider.Summary(productID, depth)
	if !ok {
		http.Error(w, "unknown product", http.StatusNotFound)
		return
	}
	h.writeJSON(w, summary)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}
