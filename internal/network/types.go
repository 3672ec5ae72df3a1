package network

import "github.com/openexchange-hq/quicktrade/pkg/model"

// createOrderRequest is the order placement payload for the network backend.
type createOrderRequest struct {
	UserID int64              `json:"user_id"`
	Symbol string             `json:"symbol"`
	Side   model.TradeSide    `json:"side"`
	Size   float64            `json:"size"`
	Type   string             `json:"type"`
	Price  float64            `json:"price"`
	Fees   model.FeeStructure `json:"fee_structure"`
}

// brokerTradeRequest settles a trade between a broker (maker) and a user
// (taker) atomically on the network.
type brokerTradeRequest struct {
	Symbol  string             `json:"symbol"`
	Side    model.TradeSide    `json:"side"`
	Price   float64            `json:"price"`
	Size    float64            `json:"size"`
	MakerID int64              `json:"maker_id"`
	TakerID int64              `json:"taker_id"`
	Fees    model.FeeStructure `json:"fee_structure"`
}

// executeQuoteRequest redeems a network-issued quote token.
type executeQuoteRequest struct {
	Token  string  `json:"token"`
	UserID int64   `json:"user_id"`
	Fee    float64 `json:"fee"`
}

// settleFeesRequest triggers fee settlement for an account.
type settleFeesRequest struct {
	UserID int64 `json:"user_id"`
}

type publicTradesResponse struct {
	Trades map[string][]model.PublicTrade `json:"trades"`
}
