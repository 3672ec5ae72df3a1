package api

import (
	"fmt"
	"strings"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// quoteQuery is the parsed /quote query string.
type quoteQuery struct {
	SpendingCurrency  string
	ReceivingCurrency string
	SpendingAmount    *float64
	ReceivingAmount   *float64
}

func (q quoteQuery) Validate() error {
	if strings.TrimSpace(q.SpendingCurrency) == "" {
		return fmt.Errorf("spending_currency is required")
	}
	if strings.TrimSpace(q.ReceivingCurrency) == "" {
		return fmt.Errorf("receiving_currency is required")
	}
	if strings.EqualFold(q.SpendingCurrency, q.ReceivingCurrency) {
		return fmt.Errorf("spending_currency and receiving_currency must differ")
	}
	if q.SpendingAmount == nil && q.ReceivingAmount == nil {
		return fmt.Errorf("one of spending_amount or receiving_amount is required")
	}
	if q.SpendingAmount != nil && q.ReceivingAmount != nil {
		return fmt.Errorf("only one of spending_amount or receiving_amount may be set")
	}
	if q.SpendingAmount != nil && *q.SpendingAmount <= 0 {
		return fmt.Errorf("spending_amount must be greater than 0")
	}
	if q.ReceivingAmount != nil && *q.ReceivingAmount <= 0 {
		return fmt.Errorf("receiving_amount must be greater than 0")
	}
	return nil
}

func (r ExecuteRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

func (r OrderCreateRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	side := strings.ToLower(strings.TrimSpace(r.Side))
	if side != "buy" && side != "sell" {
		return fmt.Errorf("side must be 'buy' or 'sell'")
	}
	if r.Size <= 0 {
		return fmt.Errorf("size must be greater than 0")
	}
	orderType := strings.ToLower(strings.TrimSpace(r.Type))
	if orderType != "market" && orderType != "limit" {
		return fmt.Errorf("type must be 'market' or 'limit'")
	}
	if orderType == "limit" && r.Price <= 0 {
		return fmt.Errorf("price must be greater than 0 for limit orders")
	}
	return nil
}

func (r ConfigUpdateRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !model.QuickTradeType(strings.ToLower(strings.TrimSpace(r.Type))).Valid() {
		return fmt.Errorf("type must be one of 'pro', 'broker', 'network'")
	}
	return nil
}
