package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coinbase-lob/pkg/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecodeReceivedLimit(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "received",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"sequence": 10,
		"order_id": "d50ec984-77a8-460a-b958-66f114b0de9b",
		"size": "1.34",
		"price": "502.1",
		"side": "buy",
		"order_type": "limit"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	recv, ok := ev.(types.Received)
	if !ok {
		t.Fatalf("event type = %T, want types.Received", ev)
	}
	if recv.ProductID != "BTC-USD" || recv.Sequence != 10 {
		t.Errorf("header = %+v", recv.Header)
	}
	want := time.Date(2014, 11, 7, 8, 19, 27, 28459000, time.UTC)
	if !recv.Time.Equal(want) {
		t.Errorf("time = %v, want %v", recv.Time, want)
	}
	if recv.OrderID != "d50ec984-77a8-460a-b958-66f114b0de9b" {
		t.Errorf("order_id = %q", recv.OrderID)
	}
	if recv.OrderType != types.OrderTypeLimit || recv.Side != types.Buy {
		t.Errorf("order_type/side = %s/%s", recv.OrderType, recv.Side)
	}
	if recv.Price == nil || !recv.Price.Equal(d("502.1")) {
		t.Errorf("price = %v, want 502.1", recv.Price)
	}
	if recv.Size == nil || !recv.Size.Equal(d("1.34")) {
		t.Errorf("size = %v, want 1.34", recv.Size)
	}
	if recv.Funds != nil {
		t.Errorf("funds = %v, want nil for limit order", recv.Funds)
	}
}

func TestDecodeReceivedMarket(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "received",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"sequence": 12,
		"order_id": "dddec984-77a8-460a-b958-66f114b0de9b",
		"funds": "3000.00",
		"side": "buy",
		"order_type": "market"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	recv := ev.(types.Received)
	if recv.OrderType != types.OrderTypeMarket {
		t.Errorf("order_type = %s, want market", recv.OrderType)
	}
	if recv.Price != nil || recv.Size != nil {
		t.Errorf("price/size = %v/%v, want nil/nil", recv.Price, recv.Size)
	}
	if recv.Funds == nil || !recv.Funds.Equal(d("3000.00")) {
		t.Errorf("funds = %v, want 3000.00", recv.Funds)
	}
}

func TestDecodeOpen(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "open",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"sequence": 10,
		"order_id": "d50ec984-77a8-460a-b958-66f114b0de9b",
		"price": "200.2",
		"remaining_size": "1.00",
		"side": "sell"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	open, ok := ev.(types.Open)
	if !ok {
		t.Fatalf("event type = %T, want types.Open", ev)
	}
	if open.Side != types.Sell || !open.Price.Equal(d("200.2")) || !open.RemainingSize.Equal(d("1.00")) {
		t.Errorf("open = %+v", open)
	}
}

func TestDecodeDoneWithPrice(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "done",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"sequence": 10,
		"price": "200.2",
		"order_id": "d50ec984-77a8-460a-b958-66f114b0de9b",
		"reason": "filled",
		"side": "sell",
		"remaining_size": "0"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	done := ev.(types.Done)
	if done.Reason != "filled" {
		t.Errorf("reason = %q", done.Reason)
	}
	if done.Price == nil || !done.Price.Equal(d("200.2")) {
		t.Errorf("price = %v, want 200.2", done.Price)
	}
	if done.RemainingSize == nil || !done.RemainingSize.Equal(d("0")) {
		t.Errorf("remaining_size = %v, want 0", done.RemainingSize)
	}
}

func TestDecodeDoneMarketTakerNoPrice(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "done",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"sequence": 11,
		"order_id": "dddec984-77a8-460a-b958-66f114b0de9b",
		"reason": "filled",
		"side": "buy",
		"remaining_size": "0"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	done := ev.(types.Done)
	if done.Price != nil {
		t.Errorf("price = %v, want nil (market taker)", done.Price)
	}
}

func TestDecodeMatch(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "match",
		"trade_id": 10,
		"sequence": 50,
		"maker_order_id": "ac928c66-ca53-498f-9c13-a110027a60e8",
		"taker_order_id": "132fb6ae-456b-4654-b4e0-d681ac05cea1",
		"time": "2014-11-07T08:19:27.028459Z",
		"product_id": "BTC-USD",
		"size": "5.23512",
		"price": "400.23",
		"side": "sell"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	match, ok := ev.(types.Match)
	if !ok {
		t.Fatalf("event type = %T, want types.Match", ev)
	}
	if match.TradeID != 10 {
		t.Errorf("trade_id = %d, want 10", match.TradeID)
	}
	if match.MakerOrderID != "ac928c66-ca53-498f-9c13-a110027a60e8" {
		t.Errorf("maker = %q", match.MakerOrderID)
	}
	if match.TakerOrderID != "132fb6ae-456b-4654-b4e0-d681ac05cea1" {
		t.Errorf("taker = %q", match.TakerOrderID)
	}
	if match.Side != types.Sell || !match.Price.Equal(d("400.23")) || !match.Size.Equal(d("5.23512")) {
		t.Errorf("match = %+v", match)
	}
}

func TestDecodeChange(t *testing.T) {
	t.Parallel()
	frame := []byte(`{
		"type": "change",
		"time": "2014-11-07T08:19:27.028459Z",
		"sequence": 80,
		"order_id": "ac928c66-ca53-498f-9c13-a110027a60e8",
		"product_id": "BTC-USD",
		"new_size": "5.23512",
		"old_size": "12.234412",
		"price": "400.23",
		"side": "sell"
	}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	change, ok := ev.(types.Change)
	if !ok {
		t.Fatalf("event type = %T, want types.Change", ev)
	}
	if !change.OldSize.Equal(d("12.234412")) || !change.NewSize.Equal(d("5.23512")) {
		t.Errorf("sizes = %s → %s", change.OldSize, change.NewSize)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	t.Parallel()
	frame := []byte(`{"type": "activate", "product_id": "BTC-USD", "sequence": 5}`)

	ev, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	unknown, ok := ev.(types.Unknown)
	if !ok {
		t.Fatalf("event type = %T, want types.Unknown", ev)
	}
	if unknown.Type != "activate" {
		t.Errorf("type = %q, want activate", unknown.Type)
	}
	if unknown.ProductID != "BTC-USD" || unknown.Sequence != 5 {
		t.Errorf("header = %+v", unknown.Header)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `HEARTBEA`},
		{"bad time", `{"type":"open","time":"2014-11-07 08:19:27","sequence":1}`},
		{"bad side", `{"type":"open","side":"hold","price":"1","remaining_size":"1"}`},
		{"bad price", `{"type":"open","side":"buy","price":"abc","remaining_size":"1"}`},
		{"bad match size", `{"type":"match","side":"buy","price":"1","size":"x"}`},
		{"bad change old_size", `{"type":"change","side":"buy","price":"1","old_size":"x","new_size":"1"}`},
		{"bad received funds", `{"type":"received","side":"buy","order_type":"market","funds":"?"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode([]byte(tt.frame)); err == nil {
				t.Errorf("Decode(%s) succeeded, want error", tt.frame)
			}
		})
	}
}
