package network

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/httpclient"
	"github.com/openexchange-hq/quicktrade/pkg/model"
	"github.com/openexchange-hq/quicktrade/pkg/secrets"
)

const rateLimitKey = "network"

// Client talks to the settlement network backend: order placement, broker
// trades, network quoting and account passthroughs. All calls are
// rate-limited and retried by the shared executor.
type Client struct {
	baseURL string
	creds   secrets.APICredentials
	exec    *httpclient.Executor
	logger  *zap.Logger
}

func NewClient(logger *zap.Logger, baseURL string, creds secrets.APICredentials, exec *httpclient.Executor) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		exec:    exec,
		logger:  logger,
	}
}

// sign authorizes a request with the HMAC scheme the network expects:
// HMAC-SHA256(secret, method + path + expires).
func (c *Client) sign(req *http.Request) {
	expires := strconv.FormatInt(time.Now().Add(60*time.Second).Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(req.Method + req.URL.Path + expires))

	req.Header.Set("api-key", c.creds.APIKey)
	req.Header.Set("api-expires", expires)
	req.Header.Set("api-signature", hex.EncodeToString(mac.Sum(nil)))
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	req, err := httpclient.NewJSONRequest(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	c.sign(req)
	return c.exec.DoJSON(ctx, req, rateLimitKey, out)
}

// CreateOrder places an order for a network account.
func (c *Client) CreateOrder(ctx context.Context, networkID int64, symbol string, side model.TradeSide, size float64, orderType string, price float64, fees model.FeeStructure) (*model.ExecutionResult, error) {
	body := createOrderRequest{
		UserID: networkID,
		Symbol: symbol,
		Side:   side,
		Size:   size,
		Type:   orderType,
		Price:  price,
		Fees:   fees,
	}
	var res model.ExecutionResult
	if err := c.do(ctx, http.MethodPost, "/orders", body, &res); err != nil {
		return nil, fmt.Errorf("network create order: %w", err)
	}
	return &res, nil
}

// CreateBrokerTrade settles a broker-filled trade, crediting and debiting both
// parties atomically.
func (c *Client) CreateBrokerTrade(ctx context.Context, symbol string, side model.TradeSide, price, size float64, makerID, takerID int64, fees model.FeeStructure) (*model.ExecutionResult, error) {
	body := brokerTradeRequest{
		Symbol:  symbol,
		Side:    side,
		Price:   price,
		Size:    size,
		MakerID: makerID,
		TakerID: takerID,
		Fees:    fees,
	}
	var res model.ExecutionResult
	if err := c.do(ctx, http.MethodPost, "/broker/trades", body, &res); err != nil {
		return nil, fmt.Errorf("network broker trade: %w", err)
	}
	return &res, nil
}

// GetQuote asks the network to price a conversion. networkID may be zero for
// anonymous quoting; the backend then omits token issuance. Both amounts may
// be supplied independently.
func (c *Client) GetQuote(ctx context.Context, networkID int64, spendingCurrency string, spendingAmount *float64, receivingCurrency string, receivingAmount *float64) (*model.NetworkQuote, error) {
	q := url.Values{}
	q.Set("spending_currency", spendingCurrency)
	q.Set("receiving_currency", receivingCurrency)
	if networkID != 0 {
		q.Set("user_id", strconv.FormatInt(networkID, 10))
	}
	if spendingAmount != nil {
		q.Set("spending_amount", strconv.FormatFloat(*spendingAmount, 'f', -1, 64))
	}
	if receivingAmount != nil {
		q.Set("receiving_amount", strconv.FormatFloat(*receivingAmount, 'f', -1, 64))
	}

	var res model.NetworkQuote
	if err := c.do(ctx, http.MethodGet, "/quote?"+q.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("network quote: %w", err)
	}
	return &res, nil
}

// ExecuteQuote redeems a network-issued quote token for the given account.
func (c *Client) ExecuteQuote(ctx context.Context, token string, networkID int64, fee float64) (*model.ExecutionResult, error) {
	body := executeQuoteRequest{
		Token:  token,
		UserID: networkID,
		Fee:    fee,
	}
	var res model.ExecutionResult
	if err := c.do(ctx, http.MethodPost, "/quote/execute", body, &res); err != nil {
		return nil, fmt.Errorf("network execute quote: %w", err)
	}
	return &res, nil
}

// GetOrder fetches a single order for a network account.
func (c *Client) GetOrder(ctx context.Context, networkID int64, orderID string) (*model.ExecutionResult, error) {
	path := fmt.Sprintf("/orders/%s?user_id=%d", url.PathEscape(orderID), networkID)
	var res model.ExecutionResult
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("network get order: %w", err)
	}
	return &res, nil
}

// CancelOrder cancels an open order for a network account.
func (c *Client) CancelOrder(ctx context.Context, networkID int64, orderID string) (*model.ExecutionResult, error) {
	path := fmt.Sprintf("/orders/%s?user_id=%d", url.PathEscape(orderID), networkID)
	var res model.ExecutionResult
	if err := c.do(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, fmt.Errorf("network cancel order: %w", err)
	}
	return &res, nil
}

// GetTrades lists trades for a network account, optionally filtered by symbol.
func (c *Client) GetTrades(ctx context.Context, networkID int64, symbol string) ([]model.PublicTrade, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(networkID, 10))
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	var res struct {
		Trades []model.PublicTrade `json:"trades"`
	}
	if err := c.do(ctx, http.MethodGet, "/trades?"+q.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("network get trades: %w", err)
	}
	return res.Trades, nil
}

// SettleFees triggers fee settlement for a network account.
func (c *Client) SettleFees(ctx context.Context, networkID int64) error {
	if err := c.do(ctx, http.MethodPost, "/fees/settle", settleFeesRequest{UserID: networkID}, nil); err != nil {
		return fmt.Errorf("network settle fees: %w", err)
	}
	return nil
}

// PublicTrades fetches the recent public trade history for a symbol, newest
// first, keyed by symbol the way the backend returns it.
func (c *Client) PublicTrades(ctx context.Context, symbol string) ([]model.PublicTrade, error) {
	var res publicTradesResponse
	if err := c.do(ctx, http.MethodGet, "/public/trades?symbol="+url.QueryEscape(symbol), nil, &res); err != nil {
		return nil, fmt.Errorf("network public trades: %w", err)
	}
	return res.Trades[symbol], nil
}
