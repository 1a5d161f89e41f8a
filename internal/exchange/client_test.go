package exchange

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"coinbase-lob/internal/config"
)

func newTestClient(ts *httptest.Server) *Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Config{API: config.APIConfig{RESTBaseURL: ts.URL}}
	return NewClient(cfg, newTestAuth(), logger)
}

func TestBookSnapshot(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/ETH-USD/book" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("level") != "3" {
			t.Errorf("level = %q, want 3", r.URL.Query().Get("level"))
		}
		for _, h := range []string{"CB-ACCESS-SIGN", "CB-ACCESS-TIMESTAMP", "CB-ACCESS-KEY", "CB-ACCESS-PASSPHRASE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"sequence": 3,
			"bids": [["295.96", "4.39088265", "da863862-25f4-4868-ac41-005d11ab0a5f"]],
			"asks": [["295.97", "25.23542881", "8b99b139-58f2-4ab2-8e7a-c11c846e3022"],
			         ["295.98", "0.01", "8d34f3a4-e7f0-4a74-bd32-0ee1cf1ad21b"]]
		}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	snap, err := c.BookSnapshot(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("BookSnapshot: %v", err)
	}

	if snap.ProductID != "ETH-USD" || snap.Sequence != 3 {
		t.Errorf("snapshot header = %+v", snap)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 2 {
		t.Fatalf("rows = %d/%d, want 1/2", len(snap.Bids), len(snap.Asks))
	}
	if !snap.Bids[0].Price.Equal(decimal.RequireFromString("295.96")) {
		t.Errorf("bid price = %s", snap.Bids[0].Price)
	}
	if !snap.Bids[0].Size.Equal(decimal.RequireFromString("4.39088265")) {
		t.Errorf("bid size = %s", snap.Bids[0].Size)
	}
	if snap.Bids[0].OrderID != "da863862-25f4-4868-ac41-005d11ab0a5f" {
		t.Errorf("bid order_id = %s", snap.Bids[0].OrderID)
	}
}

func TestBookSnapshotHTTPError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "NotFound", http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.BookSnapshot(context.Background(), "NO-SUCH"); err == nil {
		t.Error("expected error on 404")
	}
}

func TestBookSnapshotMalformedRow(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sequence": 3, "bids": [["295.96", "1.0"]], "asks": []}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.BookSnapshot(context.Background(), "ETH-USD"); err == nil {
		t.Error("expected error on short row")
	}
}

func TestBookSnapshotBadDecimal(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sequence": 3, "bids": [], "asks": [["oops", "1.0", "id"]]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	if _, err := c.BookSnapshot(context.Background(), "ETH-USD"); err == nil {
		t.Error("expected error on undecodable price")
	}
}

func TestProducts(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "ETH-USD", "base_currency": "ETH", "quote_currency": "USD", "status": "online"},
			{"id": "BTC-USD", "base_currency": "BTC", "quote_currency": "USD", "status": "online"}
		]`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 2 || products[0].ID != "ETH-USD" {
		t.Errorf("products = %+v", products)
	}
}
