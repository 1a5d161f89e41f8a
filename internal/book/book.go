package book

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"coinbase-lob/pkg/types"
)

// Mode is the lifecycle state of a Book.
type Mode int

const (
	ModeFresh            Mode = iota // created, no snapshot requested yet
	ModeAwaitingSnapshot             // snapshot in flight, stream events buffering
	ModeLive                         // snapshot applied, events apply directly
	ModeInvalid                      // sequence gap detected, awaiting re-bootstrap
	ModeFailed                       // reconciliation retries exhausted
)

func (m Mode) String() string {
	switch m {
	case ModeFresh:
		return "fresh"
	case ModeAwaitingSnapshot:
		return "awaiting_snapshot"
	case ModeLive:
		return "live"
	case ModeInvalid:
		return "invalid"
	case ModeFailed:
		return "failed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrBookInvalid is returned by Apply once a gap has been detected, until
// the reconciler re-bootstraps the book from a fresh snapshot.
var ErrBookInvalid = errors.New("book invalid, awaiting re-bootstrap")

// GapError reports a hole in the venue sequence stream.
type GapError struct {
	Expected int64
	Got      int64
}

func (e *GapError) Error() string {
	return fmt.Sprintf("missing sequences: expected %d, got %d", e.Expected, e.Got)
}

// Book maintains the L3 order book for a single product: two price
// ladders, the resting/pending indices, and the sequence cursor.
//
// A Book is owned by exactly one goroutine; the RWMutex only makes the
// read-only view methods (Summary, BestBid, BestAsk) safe for the HTTP
// layer.
type Book struct {
	mu      sync.RWMutex
	product string
	bids    *Ladder
	asks    *Ladder
	idx     *Index
	lastSeq int64
	mode    Mode
	obs     Observer
	logger  *slog.Logger
}

// New creates an empty book in ModeFresh with lastSeq = -1.
func New(productID string, obs Observer, logger *slog.Logger) *Book {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Book{
		product: productID,
		bids:    NewLadder(types.Buy),
		asks:    NewLadder(types.Sell),
		idx:     NewIndex(),
		lastSeq: -1,
		mode:    ModeFresh,
		obs:     obs,
		logger:  logger.With("component", "book", "product", productID),
	}
}

// ProductID returns the product this book mirrors.
func (b *Book) ProductID() string { return b.product }

// Mode returns the current lifecycle state.
func (b *Book) Mode() Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

func (b *Book) setMode(m Mode) {
	b.mu.Lock()
	b.mode = m
	b.mu.Unlock()
}

// LastSeq returns the sequence cursor (-1 before the first snapshot).
func (b *Book) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeq
}

// ApplySnapshot resets the ladders and the resting index to the snapshot
// contents and moves the sequence cursor to the snapshot sequence. The
// pending index is deliberately left alone: entries that predate the
// snapshot are reconciled by the subsequent replay.
func (b *Book) ApplySnapshot(snap *types.BookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids.Reset()
	b.asks.Reset()
	b.idx.ResetResting()

	for _, row := range snap.Bids {
		b.restoreLocked(row, types.Buy, snap.Sequence)
	}
	for _, row := range snap.Asks {
		b.restoreLocked(row, types.Sell, snap.Sequence)
	}

	b.lastSeq = snap.Sequence
	b.mode = ModeLive

	b.logger.Info("snapshot applied",
		"sequence", snap.Sequence,
		"bids", len(snap.Bids),
		"asks", len(snap.Asks),
	)
}

func (b *Book) restoreLocked(row types.SnapshotEntry, side types.Side, seq int64) {
	price := row.Price
	size := row.Size
	order := &types.Order{
		OrderID:   row.OrderID,
		ProductID: b.product,
		Side:      side,
		OrderType: types.OrderTypeLimit,
		Price:     &price,
		Size:      &size,
		Sequence:  seq,
	}
	b.ladder(side).InsertTail(order)
	b.idx.InsertResting(order)
}

// Apply runs one decoded event through the state machine.
//
// Sequence discipline: events at or below the cursor are discarded as
// snapshot overlap; the next expected sequence applies and advances the
// cursor atomically-on-success; anything beyond that is a gap, which
// marks the book invalid and is returned as a *GapError. Once invalid,
// Apply refuses everything with ErrBookInvalid until re-bootstrap.
func (b *Book) Apply(ev types.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeInvalid || b.mode == ModeFailed {
		return ErrBookInvalid
	}

	if _, ok := ev.(types.Unknown); ok {
		return nil
	}

	seq := ev.Head().Sequence
	switch {
	case seq <= b.lastSeq:
		return nil
	case seq > b.lastSeq+1:
		b.mode = ModeInvalid
		return &GapError{Expected: b.lastSeq + 1, Got: seq}
	}

	switch e := ev.(type) {
	case types.Received:
		b.applyReceived(e)
	case types.Open:
		b.applyOpen(e)
	case types.Done:
		b.applyDone(e)
	case types.Match:
		b.applyMatch(e)
	case types.Change:
		b.applyChange(e)
	}

	b.lastSeq = seq
	return nil
}

func (b *Book) ladder(side types.Side) *Ladder {
	if side == types.Buy {
		return b.bids
	}
	return b.asks
}

// applyReceived tracks the order as pending. Ladders are untouched: for
// market orders this is usually the only event before the venue resolves
// them via match/done.
func (b *Book) applyReceived(ev types.Received) {
	order := &types.Order{
		OrderID:   ev.OrderID,
		ProductID: ev.ProductID,
		Side:      ev.Side,
		OrderType: ev.OrderType,
		Price:     ev.Price,
		Size:      ev.Size,
		Funds:     ev.Funds,
		Time:      ev.Time,
		Sequence:  ev.Sequence,
	}
	b.idx.InsertPending(order)
	b.obs.OnReceived(order, ev)
}

// applyOpen promotes the pending order onto a ladder, or synthesizes one
// when the receipt was never observed (snapshot boundary).
func (b *Book) applyOpen(ev types.Open) {
	price := ev.Price
	size := ev.RemainingSize

	order, ok := b.idx.Pending(ev.OrderID)
	if ok {
		order.Time = ev.Time
		order.Sequence = ev.Sequence
		order.Size = &size
		b.idx.RemovePending(ev.OrderID)
	} else {
		order = &types.Order{
			OrderID:   ev.OrderID,
			ProductID: ev.ProductID,
			Side:      ev.Side,
			OrderType: types.OrderTypeLimit,
			Price:     &price,
			Size:      &size,
			Time:      ev.Time,
			Sequence:  ev.Sequence,
		}
	}
	if order.Price == nil {
		order.Price = &price
	}

	b.ladder(order.Side).InsertTail(order)
	b.idx.InsertResting(order)
	b.obs.OnAdd(order, ev)
}

// applyDone removes a resting order from its ladder, or drops a pending
// order that finished without ever resting (market takers, or limit
// orders cancelled before their open was observed).
func (b *Book) applyDone(ev types.Done) {
	order, loc := b.idx.Lookup(ev.OrderID)
	switch loc {
	case Absent:
		b.logger.Warn("done for unknown order",
			"order_id", ev.OrderID,
			"reason", ev.Reason,
		)
		return
	case Pending:
		b.idx.RemovePending(ev.OrderID)
		b.obs.OnRemove(order, ev)
		return
	}

	if ev.Side != order.Side {
		b.logger.Error("done side disagrees with resting order",
			"order_id", ev.OrderID,
			"done_side", ev.Side,
			"known_side", order.Side,
		)
	}
	if ev.Price != nil && order.Price != nil && !ev.Price.Equal(*order.Price) {
		b.logger.Error("done price disagrees with resting order",
			"order_id", ev.OrderID,
			"done_price", ev.Price,
			"known_price", order.Price,
		)
	}

	// A maker fully consumed by match has already left the ladder; the
	// follow-up done then only clears the index.
	b.ladder(order.Side).RemoveByID(*order.Price, ev.OrderID)
	b.idx.RemoveResting(ev.OrderID)
	b.obs.OnRemove(order, ev)
}

// applyMatch consumes size from the resting maker at the head of its
// level and drains the taker's pending entry. The maker stays in the
// resting index even when fully consumed — the venue confirms removal
// with a follow-up done.
func (b *Book) applyMatch(ev types.Match) {
	maker, ok := b.idx.Resting(ev.MakerOrderID)
	if !ok {
		b.logger.Warn("match maker not resting",
			"maker_order_id", ev.MakerOrderID,
			"trade_id", ev.TradeID,
		)
	}

	if taker, ok := b.idx.Pending(ev.TakerOrderID); ok {
		if taker.Size != nil {
			left := taker.Size.Sub(ev.Size)
			taker.Size = &left
			if !left.IsPositive() {
				b.idx.RemovePending(ev.TakerOrderID)
			}
		} else {
			// Funds-denominated taker with no tracked size.
			b.idx.RemovePending(ev.TakerOrderID)
		}
	} else {
		b.logger.Warn("match taker not pending",
			"taker_order_id", ev.TakerOrderID,
			"trade_id", ev.TradeID,
		)
	}

	if err := b.ladder(ev.Side).MatchHead(ev.Price, ev.MakerOrderID, ev.Size); err != nil {
		b.logger.Error("inconsistent match", "error", err, "trade_id", ev.TradeID)
	}

	b.obs.OnMatch(maker, ev)
}

// applyChange updates a resting order's size in place. Ladder membership
// and queue position are unchanged. Changes for orders the book never
// saw open are possible around snapshot boundaries and are dropped.
func (b *Book) applyChange(ev types.Change) {
	order, ok := b.idx.Resting(ev.OrderID)
	if !ok {
		b.logger.Warn("change for unknown order", "order_id", ev.OrderID)
		return
	}
	if order.Size != nil && !order.Size.Equal(ev.OldSize) {
		b.logger.Error("change old_size disagrees with resting order",
			"order_id", ev.OrderID,
			"old_size", ev.OldSize,
			"known_size", order.Size,
		)
	}
	newSize := ev.NewSize
	order.Size = &newSize
	b.obs.OnChange(order, ev)
}

// ————————————————————————————————————————————————————————————————————————
// Read-only views
// ————————————————————————————————————————————————————————————————————————

// BestBid returns the highest bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bids.Best()
}

// BestAsk returns the lowest ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.asks.Best()
}

// Summary aggregates the top depth levels of both ladders.
// depth <= 0 returns every level.
func (b *Book) Summary(depth int) types.BookSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return types.BookSummary{
		ProductID: b.product,
		Sequence:  b.lastSeq,
		Bids:      b.bids.Levels(depth),
		Asks:      b.asks.Levels(depth),
	}
}
