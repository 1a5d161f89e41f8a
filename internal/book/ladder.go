// Package book implements the L3 order-book core: sorted price ladders
// holding FIFO queues of resting orders, per-order indices, the
// event-application state machine, and the snapshot/stream reconciler.
//
// All mutation happens on the engine's core goroutine; a Book's RWMutex
// exists only so the HTTP layer can take read-only views concurrently.
package book

import (
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/shopspring/decimal"

	"coinbase-lob/pkg/types"
)

func decimalComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

// Bids sort descending so the tree's leftmost node is always best.
func reverseDecimalComparator(a, b interface{}) int {
	return b.(decimal.Decimal).Cmp(a.(decimal.Decimal))
}

// Ladder is one side of the book: a red-black tree keyed by price, each
// node holding the FIFO queue of orders resting at that price. Queue
// order is venue time priority. Empty queues are never stored — the key
// is removed when the last order leaves a level.
type Ladder struct {
	side types.Side
	tree *redblacktree.Tree // decimal.Decimal → []*types.Order
}

// NewLadder creates an empty ladder for the given side. The bid ladder
// uses a reversed comparator so Best is the max key; asks the min key.
func NewLadder(side types.Side) *Ladder {
	cmp := decimalComparator
	if side == types.Buy {
		cmp = reverseDecimalComparator
	}
	return &Ladder{side: side, tree: redblacktree.NewWith(cmp)}
}

// Side returns which side of the book this ladder holds.
func (l *Ladder) Side() types.Side { return l.side }

// InsertTail appends the order to the queue at its price, creating the
// level if absent.
func (l *Ladder) InsertTail(order *types.Order) {
	price := *order.Price
	if queue, found := l.tree.Get(price); found {
		l.tree.Put(price, append(queue.([]*types.Order), order))
		return
	}
	l.tree.Put(price, []*types.Order{order})
}

// RemoveByID removes the first order with the given id from the queue at
// price, dropping the level if the queue becomes empty. Returns false if
// the level or the order does not exist.
func (l *Ladder) RemoveByID(price decimal.Decimal, orderID string) bool {
	v, found := l.tree.Get(price)
	if !found {
		return false
	}
	queue := v.([]*types.Order)
	for i, o := range queue {
		if o.OrderID != orderID {
			continue
		}
		queue = append(queue[:i], queue[i+1:]...)
		if len(queue) == 0 {
			l.tree.Remove(price)
		} else {
			l.tree.Put(price, queue)
		}
		return true
	}
	return false
}

// MatchHead consumes size from the head order at price. The head must be
// the expected maker; a mismatch is reported as an error and nothing is
// consumed. When the head's remaining size reaches zero (or the match
// overshoots it) the head is popped and the level evicted if emptied.
func (l *Ladder) MatchHead(price decimal.Decimal, makerID string, size decimal.Decimal) error {
	v, found := l.tree.Get(price)
	if !found {
		return fmt.Errorf("no %s level at %s", l.side, price)
	}
	queue := v.([]*types.Order)
	head := queue[0]
	if head.OrderID != makerID {
		return fmt.Errorf("head at %s is %s, expected maker %s", price, head.OrderID, makerID)
	}

	remaining := head.Size.Sub(size)
	switch {
	case remaining.IsPositive():
		head.Size = &remaining
		return nil
	case remaining.IsZero():
		head.Size = &remaining
		l.popHead(price, queue)
		return nil
	default:
		// Malformed input: the venue matched more than the head holds.
		// Best effort is to drop the exhausted head.
		zero := decimal.Zero
		orig := size.Add(remaining)
		head.Size = &zero
		l.popHead(price, queue)
		return fmt.Errorf("match size %s exceeds head size %s at %s", size, orig, price)
	}
}

func (l *Ladder) popHead(price decimal.Decimal, queue []*types.Order) {
	if len(queue) <= 1 {
		l.tree.Remove(price)
		return
	}
	l.tree.Put(price, queue[1:])
}

// Best returns the best price on this ladder: max for bids, min for asks.
func (l *Ladder) Best() (decimal.Decimal, bool) {
	node := l.tree.Left()
	if node == nil {
		return decimal.Decimal{}, false
	}
	return node.Key.(decimal.Decimal), true
}

// Level returns the FIFO queue resting at price, or nil. The slice is
// shared with the ladder; callers must not mutate it.
func (l *Ladder) Level(price decimal.Decimal) []*types.Order {
	if v, found := l.tree.Get(price); found {
		return v.([]*types.Order)
	}
	return nil
}

// Depth returns the number of populated price levels.
func (l *Ladder) Depth() int { return l.tree.Size() }

// Reset discards every level.
func (l *Ladder) Reset() { l.tree.Clear() }

// Levels walks the ladder best-first and aggregates up to limit levels.
// limit <= 0 means all levels.
func (l *Ladder) Levels(limit int) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, l.tree.Size())
	it := l.tree.Iterator()
	for it.Next() {
		queue := it.Value().([]*types.Order)
		total := decimal.Zero
		for _, o := range queue {
			total = total.Add(*o.Size)
		}
		out = append(out, types.PriceLevel{
			Price:  it.Key().(decimal.Decimal),
			Size:   total,
			Orders: len(queue),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
