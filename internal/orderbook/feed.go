package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Feed is a websocket client consuming depth and trade streams from the
// network backend and applying them to a MarketBooks instance.
type Feed struct {
	url            string
	symbols        []string
	books          *MarketBooks
	logger         *zap.Logger
	conn           *websocket.Conn
	connected      bool
	connectedMu    sync.RWMutex
	done           chan struct{}
	reconnectDelay time.Duration
}

// feedMessage is the wire envelope of the stream.
type feedMessage struct {
	Topic  string          `json:"topic"`
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

type depthPayload struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

type tradePayload struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// NewFeed creates a stream client for the given symbols.
func NewFeed(url string, symbols []string, books *MarketBooks, logger *zap.Logger) *Feed {
	return &Feed{
		url:            url,
		symbols:        symbols,
		books:          books,
		logger:         logger,
		done:           make(chan struct{}),
		reconnectDelay: 5 * time.Second,
	}
}

// Connect establishes the websocket connection and subscribes to the depth
// and trade topics for all configured symbols.
func (f *Feed) Connect(ctx context.Context) error {
	f.logger.Info("orderbook_feed.connecting", zap.String("url", f.url))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}

	f.conn = conn
	f.setConnected(true)

	if err := f.subscribe(); err != nil {
		_ = conn.Close()
		f.setConnected(false)
		return err
	}

	go f.readLoop(ctx)

	f.logger.Info("orderbook_feed.connected", zap.Int("symbols", len(f.symbols)))
	return nil
}

func (f *Feed) subscribe() error {
	sub := map[string]any{
		"op":      "subscribe",
		"topics":  []string{"orderbook", "trade"},
		"symbols": f.symbols,
	}
	return f.conn.WriteJSON(sub)
}

// Close terminates the connection and stops the read loop.
func (f *Feed) Close() error {
	close(f.done)
	f.setConnected(false)
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// IsConnected reports the connection state.
func (f *Feed) IsConnected() bool {
	f.connectedMu.RLock()
	defer f.connectedMu.RUnlock()
	return f.connected
}

func (f *Feed) setConnected(connected bool) {
	f.connectedMu.Lock()
	f.connected = connected
	f.connectedMu.Unlock()
}

func (f *Feed) readLoop(ctx context.Context) {
	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := f.conn.ReadMessage()
		if err != nil {
			f.setConnected(false)
			f.logger.Warn("orderbook_feed.read_failed", zap.Error(err))
			f.reconnect(ctx)
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Warn("orderbook_feed.bad_message", zap.Error(err))
			continue
		}
		f.apply(&msg)
	}
}

func (f *Feed) apply(msg *feedMessage) {
	switch msg.Topic {
	case "orderbook":
		var depth depthPayload
		if err := json.Unmarshal(msg.Data, &depth); err != nil {
			f.logger.Warn("orderbook_feed.bad_depth", zap.String("symbol", msg.Symbol), zap.Error(err))
			return
		}
		f.books.UpdateBook(&Book{Symbol: msg.Symbol, Bids: depth.Bids, Asks: depth.Asks})
	case "trade":
		var trades []tradePayload
		if err := json.Unmarshal(msg.Data, &trades); err != nil {
			f.logger.Warn("orderbook_feed.bad_trade", zap.String("symbol", msg.Symbol), zap.Error(err))
			return
		}
		if len(trades) > 0 {
			f.books.SetLastPrice(msg.Symbol, trades[0].Price)
		}
	}
}

func (f *Feed) reconnect(ctx context.Context) {
	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}

		if err := f.Connect(ctx); err != nil {
			f.logger.Warn("orderbook_feed.reconnect_failed", zap.Error(err))
			continue
		}
		return
	}
}
