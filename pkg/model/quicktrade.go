package model

import "time"

// TradeSide is the direction of a trade relative to the base asset of a symbol.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// QuickTradeType selects the pricing path for a configured market.
type QuickTradeType string

const (
	QuickTradeBroker  QuickTradeType = "broker"
	QuickTradePro     QuickTradeType = "pro"
	QuickTradeNetwork QuickTradeType = "network"
)

// Valid reports whether t is one of the supported pricing types.
func (t QuickTradeType) Valid() bool {
	switch t {
	case QuickTradeBroker, QuickTradePro, QuickTradeNetwork:
		return true
	}
	return false
}

// Intent types stored in the token store. Pro quotes are executed as plain
// market orders, so their intents carry the "market" type.
const (
	IntentMarket  = "market"
	IntentBroker  = "broker"
	IntentNetwork = "network"
)

// QuickTradeConfig is the per-symbol quick trade configuration.
// Symbol is the canonical "base-quote" pair string.
type QuickTradeConfig struct {
	Symbol string         `json:"symbol"`
	Type   QuickTradeType `json:"type"`
	Active bool           `json:"active"`
}

// BrokerPair describes a market filled directly by a designated broker account.
type BrokerPair struct {
	Symbol  string  `json:"symbol"`
	UserID  int64   `json:"user_id"`
	Paused  bool    `json:"paused"`
	MinSize float64 `json:"min_size"`
	MaxSize float64 `json:"max_size"`
}

// User is the exchange-side account record. NetworkID is the identity on the
// settlement network; zero means the user is not registered there.
type User struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	NetworkID         int64   `json:"network_id"`
	VerificationLevel int     `json:"verification_level"`
	Discount          float64 `json:"discount"`
}

// TierFees holds per-symbol maker/taker fee percentages for one tier.
type TierFees struct {
	Maker map[string]float64 `json:"maker"`
	Taker map[string]float64 `json:"taker"`
}

// Tier is a verification-level based fee schedule.
type Tier struct {
	Level int      `json:"level"`
	Name  string   `json:"name"`
	Fees  TierFees `json:"fees"`
}

// FeeStructure is the maker/taker fee pair attached to an order or trade.
type FeeStructure struct {
	Maker float64 `json:"maker"`
	Taker float64 `json:"taker"`
}

// QuoteRequest is a quick trade pricing request. Exactly one of
// SpendingAmount/ReceivingAmount is set by the caller.
type QuoteRequest struct {
	SpendingCurrency  string   `json:"spending_currency"`
	ReceivingCurrency string   `json:"receiving_currency"`
	SpendingAmount    *float64 `json:"spending_amount,omitempty"`
	ReceivingAmount   *float64 `json:"receiving_amount,omitempty"`
}

// QuoteResponse is the priced quote returned to the caller. Token and Expiry
// are only present for authenticated callers.
type QuoteResponse struct {
	SpendingCurrency  string     `json:"spending_currency"`
	ReceivingCurrency string     `json:"receiving_currency"`
	SpendingAmount    *float64   `json:"spending_amount,omitempty"`
	ReceivingAmount   *float64   `json:"receiving_amount,omitempty"`
	Type              string     `json:"type"`
	Token             string     `json:"token,omitempty"`
	Expiry            *time.Time `json:"expiry,omitempty"`
}

// QuoteIntent is the payload serialized into the token store at quote time and
// redeemed exactly once at execution time. Network intents omit price/size.
type QuoteIntent struct {
	UserID int64     `json:"user_id"`
	Symbol string    `json:"symbol"`
	Side   TradeSide `json:"side,omitempty"`
	Price  float64   `json:"price,omitempty"`
	Size   float64   `json:"size,omitempty"`
	Type   string    `json:"type"`
}

// ExecutionResult is the outcome of redeeming an execution token.
type ExecutionResult struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Side      TradeSide    `json:"side"`
	Price     float64      `json:"price"`
	Size      float64      `json:"size"`
	Filled    float64      `json:"filled,omitempty"`
	Status    string       `json:"status"`
	Fee       FeeStructure `json:"fee_structure"`
	Type      string       `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// BrokerQuote is the externally managed quote issued by the broker service.
type BrokerQuote struct {
	Token           string    `json:"token"`
	Expiry          time.Time `json:"expiry"`
	Price           float64   `json:"price"`
	SpendingAmount  *float64  `json:"spending_amount,omitempty"`
	ReceivingAmount *float64  `json:"receiving_amount,omitempty"`
}

// NetworkQuote is the quote issued by the settlement network backend.
type NetworkQuote struct {
	Token           string    `json:"token"`
	Expiry          time.Time `json:"expiry"`
	SpendingAmount  float64   `json:"spending_amount"`
	ReceivingAmount float64   `json:"receiving_amount"`
}

// PublicTrade is one entry of a symbol's recent public trade history.
type PublicTrade struct {
	Symbol    string    `json:"symbol"`
	Side      TradeSide `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
