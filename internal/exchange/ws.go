// ws.go implements the streaming feed that delivers raw order-event
// frames.
//
// The feed auto-reconnects with exponential backoff (1s → 30s max) and
// re-subscribes to all tracked products on reconnection. A read deadline
// detects silent server failures. Raw frames are posted onto the core
// goroutine's queue (the Frames channel) rather than handled inline, so
// the book state machines stay single-owner. The venue's HEARTBEAT
// frames are absorbed here and only update the staleness clock.
package exchange

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readTimeout      = 90 * time.Second // ~2 missed heartbeats triggers reconnect
	maxReconnectWait = 30 * time.Second // cap on exponential backoff
	writeTimeout     = 10 * time.Second // deadline for outgoing messages
	frameBufferSize  = 1024             // core queue depth for inbound frames
)

var heartbeatFrame = []byte("HEARTBEAT")

// Feed manages the streaming connection: lifecycle, signed subscriptions,
// heartbeat tracking, and automatic reconnection.
type Feed struct {
	url    string
	auth   *Auth
	conn   *websocket.Conn
	connMu sync.Mutex // protects conn reads/writes

	// Track subscriptions for automatic re-subscribe on reconnect
	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	frames chan []byte   // raw non-heartbeat frames, drained by the core goroutine
	resets chan struct{} // one signal per (re)connection, capacity 1

	lastHeartbeat atomic.Int64 // unix nanos of the last HEARTBEAT frame

	logger *slog.Logger
}

// NewFeed creates a streaming feed. Run must be called to connect.
func NewFeed(wsURL string, auth *Auth, logger *slog.Logger) *Feed {
	return &Feed{
		url:        wsURL,
		auth:       auth,
		subscribed: make(map[string]bool),
		frames:     make(chan []byte, frameBufferSize),
		resets:     make(chan struct{}, 1),
		logger:     logger.With("component", "ws_feed"),
	}
}

// Frames is the core goroutine's inbound queue of raw frames.
func (f *Feed) Frames() <-chan []byte { return f.frames }

// Resets signals each established connection. The consumer must reset
// all book state: continuity across a reconnect cannot be trusted.
func (f *Feed) Resets() <-chan struct{} { return f.resets }

// LastHeartbeat returns when the venue last confirmed liveness.
// Zero time before the first heartbeat.
func (f *Feed) LastHeartbeat() time.Time {
	ns := f.lastHeartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run connects and maintains the connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		// Exponential backoff: 1s, 2s, 4s, 8s, ..., 30s max
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe adds products to the tracked set and, when connected, sends
// a signed subscribe frame. Before the first connect it only records the
// ids; the initial subscription goes out with the connection.
func (f *Feed) Subscribe(productIDs []string) error {
	f.subscribedMu.Lock()
	for _, id := range productIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	f.connMu.Lock()
	connected := f.conn != nil
	f.connMu.Unlock()
	if !connected {
		return nil
	}

	msg, err := f.auth.SubscribeMsg(productIDs)
	if err != nil {
		return err
	}
	return f.writeJSON(msg)
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	// Tell the consumer continuity is broken before any frame from this
	// connection is delivered. Capacity-1 channel coalesces signals.
	select {
	case f.resets <- struct{}{}:
	default:
	}

	if err := f.sendInitialSubscription(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "url", f.url)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if bytes.Equal(msg, heartbeatFrame) {
			f.lastHeartbeat.Store(time.Now().UnixNano())
			continue
		}

		// Block rather than drop: a lost frame is a sequence gap, which
		// forces a snapshot refetch. Backpressure on the read loop is
		// the cheaper failure mode.
		select {
		case f.frames <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feed) sendInitialSubscription() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	if len(ids) == 0 {
		return nil
	}

	msg, err := f.auth.SubscribeMsg(ids)
	if err != nil {
		return err
	}
	return f.writeJSON(msg)
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}
