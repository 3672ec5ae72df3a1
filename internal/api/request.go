package api

// ExecuteRequest is the payload for redeeming an execution token.
type ExecuteRequest struct {
	Token string `json:"token"`
}

// OrderCreateRequest defines a direct order creation payload.
type OrderCreateRequest struct {
	Symbol string  `json:"symbol" example:"btc-usdt"`
	Side   string  `json:"side" example:"buy"`
	Size   float64 `json:"size" example:"0.5"`
	Type   string  `json:"type" example:"market"`
	Price  float64 `json:"price,omitempty" example:"20000.00"`
}

// ConfigUpdateRequest is the admin payload for changing a pair's quick trade
// configuration.
type ConfigUpdateRequest struct {
	Symbol string `json:"symbol" example:"btc-usdt"`
	Type   string `json:"type" example:"pro"`
	Active bool   `json:"active"`
}
