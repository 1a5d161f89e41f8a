package book

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"coinbase-lob/pkg/types"
)

// Observer receives side-effect-only callbacks as events are applied.
// Implementations MUST NOT mutate book state; callbacks run synchronously
// on the goroutine that owns the book, in venue sequence order.
type Observer interface {
	OnReceived(order *types.Order, ev types.Received)
	OnAdd(order *types.Order, ev types.Open)
	OnRemove(order *types.Order, ev types.Done)
	OnMatch(maker *types.Order, ev types.Match)
	OnChange(order *types.Order, ev types.Change)
}

// NopObserver is an Observer that does nothing. Embed it to implement
// only the callbacks you care about.
type NopObserver struct{}

func (NopObserver) OnReceived(*types.Order, types.Received) {}
func (NopObserver) OnAdd(*types.Order, types.Open)          {}
func (NopObserver) OnRemove(*types.Order, types.Done)       {}
func (NopObserver) OnMatch(*types.Order, types.Match)       {}
func (NopObserver) OnChange(*types.Order, types.Change)     {}

// MultiObserver fans callbacks out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnReceived(o *types.Order, ev types.Received) {
	for _, obs := range m {
		obs.OnReceived(o, ev)
	}
}

func (m MultiObserver) OnAdd(o *types.Order, ev types.Open) {
	for _, obs := range m {
		obs.OnAdd(o, ev)
	}
}

func (m MultiObserver) OnRemove(o *types.Order, ev types.Done) {
	for _, obs := range m {
		obs.OnRemove(o, ev)
	}
}

func (m MultiObserver) OnMatch(maker *types.Order, ev types.Match) {
	for _, obs := range m {
		obs.OnMatch(maker, ev)
	}
}

func (m MultiObserver) OnChange(o *types.Order, ev types.Change) {
	for _, obs := range m {
		obs.OnChange(o, ev)
	}
}

// LogObserver logs book activity. Adds and removals whose notional
// exceeds LargeNotional are promoted from debug to info so unusually
// large orders stand out in the logs.
type LogObserver struct {
	Logger        *slog.Logger
	LargeNotional decimal.Decimal // zero disables the large-order promotion
}

func (l *LogObserver) notional(order *types.Order) decimal.Decimal {
	if order.Price == nil || order.Size == nil {
		return decimal.Zero
	}
	return order.Price.Mul(*order.Size)
}

func (l *LogObserver) OnReceived(order *types.Order, ev types.Received) {
	l.Logger.Debug("order received",
		"product", ev.ProductID,
		"order_id", order.OrderID,
		"order_type", order.OrderType,
		"side", order.Side,
	)
}

func (l *LogObserver) OnAdd(order *types.Order, ev types.Open) {
	log := l.Logger.Debug
	if !l.LargeNotional.IsZero() && l.notional(order).GreaterThan(l.LargeNotional) {
		log = l.Logger.Info
	}
	log("order resting",
		"product", ev.ProductID,
		"order_id", order.OrderID,
		"side", order.Side,
		"price", ev.Price,
		"size", ev.RemainingSize,
	)
}

func (l *LogObserver) OnRemove(order *types.Order, ev types.Done) {
	log := l.Logger.Debug
	if !l.LargeNotional.IsZero() && l.notional(order).GreaterThan(l.LargeNotional) {
		log = l.Logger.Info
	}
	log("order removed",
		"product", ev.ProductID,
		"order_id", ev.OrderID,
		"reason", ev.Reason,
	)
}

func (l *LogObserver) OnMatch(maker *types.Order, ev types.Match) {
	l.Logger.Info("trade",
		"product", ev.ProductID,
		"side", ev.Side,
		"price", ev.Price,
		"size", ev.Size,
		"trade_id", ev.TradeID,
		"maker", ev.MakerOrderID,
		"taker", ev.TakerOrderID,
	)
}

func (l *LogObserver) OnChange(order *types.Order, ev types.Change) {
	l.Logger.Debug("order changed",
		"product", ev.ProductID,
		"order_id", ev.OrderID,
		"old_size", ev.OldSize,
		"new_size", ev.NewSize,
	)
}
