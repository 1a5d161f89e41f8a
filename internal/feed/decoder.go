// Package feed decodes raw stream frames into typed events.
//
// The exchange sends every numeric field as a string to preserve decimal
// precision; the decoder parses them into exact decimals and ISO-8601
// timestamps into UTC instants. Frames with an unrecognized type decode
// to types.Unknown, which the book state machine ignores.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinbase-lob/pkg/types"
)

// timeLayout matches the venue's timestamps: microsecond fraction, Z suffix.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type envelope struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Sequence  int64  `json:"sequence"`
	Time      string `json:"time"`
}

type receivedMsg struct {
	OrderID   string `json:"order_id"`
	OrderType string `json:"order_type"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Funds     string `json:"funds"`
}

type openMsg struct {
	OrderID       string `json:"order_id"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	RemainingSize string `json:"remaining_size"`
}

type doneMsg struct {
	OrderID       string `json:"order_id"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	RemainingSize string `json:"remaining_size"`
	Reason        string `json:"reason"`
}

type matchMsg struct {
	TradeID      int64  `json:"trade_id"`
	MakerOrderID string `json:"maker_order_id"`
	TakerOrderID string `json:"taker_order_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Size         string `json:"size"`
}

type changeMsg struct {
	OrderID string `json:"order_id"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	OldSize string `json:"old_size"`
	NewSize string `json:"new_size"`
}

// Decode parses one JSON text frame into a typed event.
func Decode(data []byte) (types.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	header := types.Header{
		ProductID: env.ProductID,
		Sequence:  env.Sequence,
	}
	if env.Time != "" {
		ts, err := time.Parse(timeLayout, env.Time)
		if err != nil {
			return nil, fmt.Errorf("decode time %q: %w", env.Time, err)
		}
		header.Time = ts
	}

	switch env.Type {
	case "received":
		return decodeReceived(data, header)
	case "open":
		return decodeOpen(data, header)
	case "done":
		return decodeDone(data, header)
	case "match":
		return decodeMatch(data, header)
	case "change":
		return decodeChange(data, header)
	default:
		return types.Unknown{Header: header, Type: env.Type}, nil
	}
}

func decodeReceived(data []byte, header types.Header) (types.Event, error) {
	var msg receivedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode received: %w", err)
	}
	side, ok := types.ParseSide(msg.Side)
	if !ok {
		return nil, fmt.Errorf("decode received: bad side %q", msg.Side)
	}
	price, err := optDecimal(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("decode received price: %w", err)
	}
	size, err := optDecimal(msg.Size)
	if err != nil {
		return nil, fmt.Errorf("decode received size: %w", err)
	}
	funds, err := optDecimal(msg.Funds)
	if err != nil {
		return nil, fmt.Errorf("decode received funds: %w", err)
	}
	return types.Received{
		Header:    header,
		OrderID:   msg.OrderID,
		OrderType: types.OrderType(msg.OrderType),
		Side:      side,
		Price:     price,
		Size:      size,
		Funds:     funds,
	}, nil
}

func decodeOpen(data []byte, header types.Header) (types.Event, error) {
	var msg openMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode open: %w", err)
	}
	side, ok := types.ParseSide(msg.Side)
	if !ok {
		return nil, fmt.Errorf("decode open: bad side %q", msg.Side)
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("decode open price: %w", err)
	}
	size, err := decimal.NewFromString(msg.RemainingSize)
	if err != nil {
		return nil, fmt.Errorf("decode open remaining_size: %w", err)
	}
	return types.Open{
		Header:        header,
		OrderID:       msg.OrderID,
		Side:          side,
		Price:         price,
		RemainingSize: size,
	}, nil
}

func decodeDone(data []byte, header types.Header) (types.Event, error) {
	var msg doneMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode done: %w", err)
	}
	side, ok := types.ParseSide(msg.Side)
	if !ok {
		return nil, fmt.Errorf("decode done: bad side %q", msg.Side)
	}
	// Market takers carry no price.
	price, err := optDecimal(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("decode done price: %w", err)
	}
	size, err := optDecimal(msg.RemainingSize)
	if err != nil {
		return nil, fmt.Errorf("decode done remaining_size: %w", err)
	}
	return types.Done{
		Header:        header,
		OrderID:       msg.OrderID,
		Side:          side,
		Price:         price,
		RemainingSize: size,
		Reason:        msg.Reason,
	}, nil
}

func decodeMatch(data []byte, header types.Header) (types.Event, error) {
	var msg matchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	side, ok := types.ParseSide(msg.Side)
	if !ok {
		return nil, fmt.Errorf("decode match: bad side %q", msg.Side)
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("decode match price: %w", err)
	}
	size, err := decimal.NewFromString(msg.Size)
	if err != nil {
		return nil, fmt.Errorf("decode match size: %w", err)
	}
	return types.Match{
		Header:       header,
		TradeID:      msg.TradeID,
		MakerOrderID: msg.MakerOrderID,
		TakerOrderID: msg.TakerOrderID,
		Side:         side,
		Price:        price,
		Size:         size,
	}, nil
}

func decodeChange(data []byte, header types.Header) (types.Event, error) {
	var msg changeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	side, ok := types.ParseSide(msg.Side)
	if !ok {
		return nil, fmt.Errorf("decode change: bad side %q", msg.Side)
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("decode change price: %w", err)
	}
	oldSize, err := decimal.NewFromString(msg.OldSize)
	if err != nil {
		return nil, fmt.Errorf("decode change old_size: %w", err)
	}
	newSize, err := decimal.NewFromString(msg.NewSize)
	if err != nil {
		return nil, fmt.Errorf("decode change new_size: %w", err)
	}
	return types.Change{
		Header:  header,
		OrderID: msg.OrderID,
		Side:    side,
		Price:   price,
		OldSize: oldSize,
		NewSize: newSize,
	}, nil
}

// optDecimal parses a numeric string the venue may omit. Absent fields
// stay nil rather than becoming zero.
func optDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
