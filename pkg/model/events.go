package model

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to NATS.
const (
	EventQuoteIssued   = "quicktrade.quote.issued"
	EventTradeExecuted = "quicktrade.trade.executed"
	EventConfigUpdated = "quicktrade.config.updated"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	EventType     string    `json:"event_type"`
	CorrelationID uuid.UUID `json:"correlation_id"`
	UserID        int64     `json:"user_id,omitempty"`
	Symbol        string    `json:"symbol,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload,omitempty"`
}

// QuoteIssuedEvent is emitted when an authenticated caller receives an
// execution token.
type QuoteIssuedEvent struct {
	Symbol string    `json:"symbol"`
	Side   TradeSide `json:"side"`
	Type   string    `json:"type"`
	Expiry time.Time `json:"expiry"`
}

// TradeExecutedEvent is emitted after a token is redeemed successfully.
type TradeExecutedEvent struct {
	OrderID string    `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    TradeSide `json:"side"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
}
