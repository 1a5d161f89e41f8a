// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the book maintainer — sides,
// orders, decoded feed events, and snapshot payloads. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order. The wire values are the
// lowercase strings the exchange sends.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide converts a wire string into a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy":
		return Buy, true
	case "sell":
		return Sell, true
	default:
		return "", false
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the order lifecycles the exchange reports.
// Market orders never rest on the book; they appear only as received
// events followed by match/done chains.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Order is the book's view of a single venue order.
//
// Price, Size and Funds are pointers because the exchange omits them in
// well-defined cases: market orders have no price, funds-denominated
// market orders have no size, and limit orders have no funds. For orders
// resting on a ladder, Price and Size are always non-nil with Size > 0.
type Order struct {
	OrderID   string
	ProductID string
	Side      Side
	OrderType OrderType
	Price     *decimal.Decimal // nil for market orders
	Size      *decimal.Decimal // remaining size, nil when the venue only reported funds
	Funds     *decimal.Decimal // quote-currency budget for market orders
	Time      time.Time        // zero before the first confirmed receipt
	Sequence  int64            // venue-assigned, monotone within a product
}

// ————————————————————————————————————————————————————————————————————————
// Decoded feed events
// ————————————————————————————————————————————————————————————————————————
// The decoder turns raw JSON frames into exactly one of these. Every
// event carries a Header; the book state machine switches on the
// concrete type.

// Header is the envelope shared by every decoded event.
type Header struct {
	ProductID string
	Sequence  int64
	Time      time.Time
}

// Head returns the event envelope. Embedding Header makes the concrete
// event types satisfy Event.
func (h Header) Head() Header { return h }

// Event is a decoded feed frame.
type Event interface {
	Head() Header
}

// Received announces that the venue accepted an order. The order is not
// yet on the book; market orders never will be.
type Received struct {
	Header
	OrderID   string
	OrderType OrderType
	Side      Side
	Price     *decimal.Decimal
	Size      *decimal.Decimal
	Funds     *decimal.Decimal
}

// Open announces that a limit order is now resting on the book.
type Open struct {
	Header
	OrderID       string
	Side          Side
	Price         decimal.Decimal
	RemainingSize decimal.Decimal
}

// Done announces that an order left the book (filled or canceled).
// Price is nil for market takers, which never rested.
type Done struct {
	Header
	OrderID       string
	Side          Side
	Price         *decimal.Decimal
	RemainingSize *decimal.Decimal
	Reason        string
}

// Match announces a trade between a resting maker and an incoming taker.
// Side is the maker's side.
type Match struct {
	Header
	TradeID      int64
	MakerOrderID string
	TakerOrderID string
	Side         Side
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Change announces an in-place size update of a resting order.
type Change struct {
	Header
	OrderID string
	Side    Side
	Price   decimal.Decimal
	OldSize decimal.Decimal
	NewSize decimal.Decimal
}

// Unknown carries a frame whose type field is not one of the five known
// kinds. The state machine ignores it silently.
type Unknown struct {
	Header
	Type string
}

// ————————————————————————————————————————————————————————————————————————
// Snapshots
// ————————————————————————————————————————————————————————————————————————

// SnapshotEntry is one resting order row from a level-3 book snapshot.
type SnapshotEntry struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	OrderID string
}

// BookSnapshot is a point-in-time dump of one product's full book at a
// known sequence, as returned by GET /products/{id}/book?level=3.
type BookSnapshot struct {
	ProductID string
	Sequence  int64
	Bids      []SnapshotEntry
	Asks      []SnapshotEntry
}

// ————————————————————————————————————————————————————————————————————————
// Read-only views
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is an aggregated view of one ladder level, used by the
// HTTP snapshot endpoint.
type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Orders int             `json:"orders"`
}

// BookSummary is a top-of-book view of one product, safe to serialize.
type BookSummary struct {
	ProductID string       `json:"product_id"`
	Sequence  int64        `json:"sequence"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
}

// ————————————————————————————————————————————————————————————————————————
// Outbound frames
// ————————————————————————————————————————————————————————————————————————

// SubscribeMsg is the signed subscription frame sent after connecting to
// the feed. Signature covers timestamp + "GET" + "/users/self" with the
// base64-decoded API secret (see exchange.Auth).
type SubscribeMsg struct {
	Type       string   `json:"type"` // always "subscribe"
	ProductIDs []string `json:"product_ids"`
	Signature  string   `json:"signature"`
	Timestamp  string   `json:"timestamp"`
	Key        string   `json:"key"`
	Passphrase string   `json:"passphrase"`
}

// Product is one row of GET /products, used to validate configured
// product ids at startup.
type Product struct {
	ID            string `json:"id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	Status        string `json:"status"`
}
