package broker

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/httpclient"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

const rateLimitKey = "broker"

// QuoteRequest is the pricing request forwarded to the broker service. The
// caller's bearer token and IP travel along so the broker can apply per-user
// pricing; exactly one of the amounts is set.
type QuoteRequest struct {
	Symbol            string          `json:"symbol"`
	Side              model.TradeSide `json:"side"`
	SpendingCurrency  string          `json:"spending_currency"`
	ReceivingCurrency string          `json:"receiving_currency"`
	SpendingAmount    *float64        `json:"spending_amount,omitempty"`
	ReceivingAmount   *float64        `json:"receiving_amount,omitempty"`
}

// Client talks to the broker quote service. Broker tokens and expiries are
// managed by the broker itself, never by the local token store.
type Client struct {
	baseURL string
	exec    *httpclient.Executor
	logger  *zap.Logger
}

func NewClient(logger *zap.Logger, baseURL string, exec *httpclient.Executor) *Client {
	return &Client{
		baseURL: baseURL,
		exec:    exec,
		logger:  logger,
	}
}

// FetchQuote requests a broker-priced quote for the pair.
func (c *Client) FetchQuote(ctx context.Context, bearerToken, ip string, qr QuoteRequest) (*model.BrokerQuote, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/quote", qr)
	if err != nil {
		return nil, err
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	var quote model.BrokerQuote
	if err := c.exec.DoJSON(ctx, req, rateLimitKey, &quote); err != nil {
		return nil, fmt.Errorf("broker quote: %w", err)
	}
	return &quote, nil
}

// ReferencePrice returns the broker's live reference price for a symbol.
func (c *Client) ReferencePrice(ctx context.Context, symbol string) (float64, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, c.baseURL+"/reference-price?symbol="+url.QueryEscape(symbol), nil)
	if err != nil {
		return 0, err
	}

	var res struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	if err := c.exec.DoJSON(ctx, req, rateLimitKey, &res); err != nil {
		return 0, fmt.Errorf("broker reference price: %w", err)
	}
	if res.Price <= 0 {
		return 0, fmt.Errorf("broker reference price unavailable for %s", symbol)
	}
	return res.Price, nil
}

// IsFairPrice checks a previously quoted price against the broker's live
// reference price. maxDeviation is a fraction of the reference, e.g. 0.05.
func (c *Client) IsFairPrice(ctx context.Context, symbol string, quotedPrice, maxDeviation float64) (bool, error) {
	ref, err := c.ReferencePrice(ctx, symbol)
	if err != nil {
		return false, err
	}
	return math.Abs(quotedPrice-ref) <= ref*maxDeviation, nil
}
