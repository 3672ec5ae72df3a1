package quicktrade

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/auth"
	"github.com/openexchange-hq/quicktrade/internal/broker"
	"github.com/openexchange-hq/quicktrade/internal/fees"
	"github.com/openexchange-hq/quicktrade/internal/orderbook"
	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/internal/store"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

func fptr(v float64) *float64 { return &v }

type fakeTokens struct {
	mu     sync.Mutex
	items  map[string]model.QuoteIntent
	ttls   map[string]time.Duration
	putErr error
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		items: make(map[string]model.QuoteIntent),
		ttls:  make(map[string]time.Duration),
	}
}

func (f *fakeTokens) PutIntent(_ context.Context, token string, intent model.QuoteIntent, ttl time.Duration) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[token] = intent
	f.ttls[token] = ttl
	return nil
}

func (f *fakeTokens) TakeIntent(_ context.Context, token string) (*model.QuoteIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.items[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.items, token)
	return &intent, nil
}

func (f *fakeTokens) DeleteIntent(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, token)
	return nil
}

type fakeRefs struct {
	mu          sync.Mutex
	brokerPairs map[string]model.BrokerPair
	users       map[int64]model.User
	userErr     error
	updateErr   error
	updated     []model.QuickTradeConfig
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{
		brokerPairs: make(map[string]model.BrokerPair),
		users:       make(map[int64]model.User),
	}
}

func (f *fakeRefs) GetBrokerPair(_ context.Context, symbol string) (*model.BrokerPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.brokerPairs[symbol]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRefs) GetUser(_ context.Context, id int64) (*model.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeRefs) UpdateQuickTradeConfig(_ context.Context, cfg model.QuickTradeConfig) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, cfg)
	return nil
}

type fakePricing struct {
	ess    orderbook.Essentials
	essErr error
	last   float64
	lastOK bool
}

func (f *fakePricing) Estimate(string, model.TradeSide, *float64, *float64) (orderbook.Essentials, error) {
	if f.essErr != nil {
		return orderbook.Essentials{}, f.essErr
	}
	return f.ess, nil
}

func (f *fakePricing) LastPrice(string) (float64, bool) {
	return f.last, f.lastOK
}

type networkCall struct {
	name      string
	networkID int64
	symbol    string
	side      model.TradeSide
	price     float64
	size      float64
	orderType string
	token     string
	fee       model.FeeStructure
	takerFee  float64
	makerID   int64
	takerID   int64
}

type fakeNetwork struct {
	mu       sync.Mutex
	calls    []networkCall
	quote    *model.NetworkQuote
	quoteErr error
	result   *model.ExecutionResult
	execErr  error
	trades   []model.PublicTrade
}

func (f *fakeNetwork) record(c networkCall) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeNetwork) lastCall() *networkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	c := f.calls[len(f.calls)-1]
	return &c
}

func (f *fakeNetwork) CreateOrder(_ context.Context, networkID int64, symbol string, side model.TradeSide, size float64, orderType string, price float64, fee model.FeeStructure) (*model.ExecutionResult, error) {
	f.record(networkCall{name: "CreateOrder", networkID: networkID, symbol: symbol, side: side, size: size, orderType: orderType, price: price, fee: fee})
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.result, nil
}

func (f *fakeNetwork) CreateBrokerTrade(_ context.Context, symbol string, side model.TradeSide, price, size float64, makerID, takerID int64, fee model.FeeStructure) (*model.ExecutionResult, error) {
	f.record(networkCall{name: "CreateBrokerTrade", symbol: symbol, side: side, price: price, size: size, makerID: makerID, takerID: takerID, fee: fee})
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.result, nil
}

func (f *fakeNetwork) GetQuote(_ context.Context, networkID int64, spendingCurrency string, _ *float64, receivingCurrency string, _ *float64) (*model.NetworkQuote, error) {
	f.record(networkCall{name: "GetQuote", networkID: networkID, symbol: spendingCurrency + "-" + receivingCurrency})
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeNetwork) ExecuteQuote(_ context.Context, token string, networkID int64, fee float64) (*model.ExecutionResult, error) {
	f.record(networkCall{name: "ExecuteQuote", token: token, networkID: networkID, takerFee: fee})
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.result, nil
}

func (f *fakeNetwork) GetOrder(_ context.Context, networkID int64, orderID string) (*model.ExecutionResult, error) {
	f.record(networkCall{name: "GetOrder", networkID: networkID, token: orderID})
	return f.result, nil
}

func (f *fakeNetwork) CancelOrder(_ context.Context, networkID int64, orderID string) (*model.ExecutionResult, error) {
	f.record(networkCall{name: "CancelOrder", networkID: networkID, token: orderID})
	return f.result, nil
}

func (f *fakeNetwork) GetTrades(_ context.Context, networkID int64, symbol string) ([]model.PublicTrade, error) {
	f.record(networkCall{name: "GetTrades", networkID: networkID, symbol: symbol})
	return f.trades, nil
}

func (f *fakeNetwork) SettleFees(_ context.Context, networkID int64) error {
	f.record(networkCall{name: "SettleFees", networkID: networkID})
	return nil
}

func (f *fakeNetwork) PublicTrades(_ context.Context, symbol string) ([]model.PublicTrade, error) {
	f.record(networkCall{name: "PublicTrades", symbol: symbol})
	return f.trades, nil
}

type fakeBroker struct {
	mu       sync.Mutex
	quote    *model.BrokerQuote
	quoteErr error
	fair     bool
	fairErr  error
	fetches  int
}

func (f *fakeBroker) FetchQuote(_ context.Context, _, _ string, _ broker.QuoteRequest) (*model.BrokerQuote, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeBroker) IsFairPrice(_ context.Context, _ string, _, _ float64) (bool, error) {
	if f.fairErr != nil {
		return false, f.fairErr
	}
	return f.fair, nil
}

type fakeVerifier struct {
	identity *auth.Identity
	err      error
}

func (f *fakeVerifier) Verify(context.Context, string, string) (*auth.Identity, error) {
	return f.identity, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	envelopes []*model.Envelope
}

func (f *fakePublisher) PublishEnvelope(_ context.Context, env *model.Envelope) error {
	f.mu.Lock()
	f.envelopes = append(f.envelopes, env)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) byType(eventType string) []*model.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Envelope
	for _, env := range f.envelopes {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []*model.ExecutionResult
}

func (f *fakeRecorder) RecordQuickTrade(_ context.Context, _ int64, res *model.ExecutionResult) error {
	f.mu.Lock()
	f.recorded = append(f.recorded, res)
	f.mu.Unlock()
	return nil
}

type harness struct {
	svc       *Service
	tokens    *fakeTokens
	refs      *fakeRefs
	pricing   *fakePricing
	network   *fakeNetwork
	broker    *fakeBroker
	verifier  *fakeVerifier
	publisher *fakePublisher
	recorder  *fakeRecorder
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg := registry.NewStatic(
		[]model.QuickTradeConfig{
			{Symbol: "btc-usdt", Type: model.QuickTradePro, Active: true},
			{Symbol: "eth-usdt", Type: model.QuickTradeBroker, Active: true},
			{Symbol: "xrp-usdt", Type: model.QuickTradeNetwork, Active: true},
			{Symbol: "ltc-usdt", Type: model.QuickTradePro, Active: false},
		},
		[]model.Tier{
			{Level: 1, Name: "basic", Fees: model.TierFees{
				Maker: map[string]float64{"btc-usdt": 0.1, "eth-usdt": 0.1, "xrp-usdt": 0.1},
				Taker: map[string]float64{"btc-usdt": 0.2, "eth-usdt": 0.2, "xrp-usdt": 0.2},
			}},
			{Level: 2, Name: "verified", Fees: model.TierFees{
				Maker: map[string]float64{"btc-usdt": 0.05, "eth-usdt": 0.05, "xrp-usdt": 0.05},
				Taker: map[string]float64{"btc-usdt": 0.1, "eth-usdt": 0.1, "xrp-usdt": 0.1},
			}},
		},
		[]string{"btc-usdt", "eth-usdt", "xrp-usdt"},
		model.FeeStructure{Maker: 0.01, Taker: 0.01},
	)

	h := &harness{
		tokens:    newFakeTokens(),
		refs:      newFakeRefs(),
		pricing:   &fakePricing{},
		network:   &fakeNetwork{},
		broker:    &fakeBroker{},
		verifier:  &fakeVerifier{},
		publisher: &fakePublisher{},
		recorder:  &fakeRecorder{},
		now:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	h.svc = NewService(
		zap.NewNop(),
		reg,
		fees.NewCalculator(reg),
		h.tokens,
		h.refs,
		h.pricing,
		h.network,
		h.broker,
		h.verifier,
		h.publisher,
		h.recorder,
		Options{QuoteTTL: 30 * time.Second, PriceDeviationMax: 1.5, BrokerMaxDeviation: 0.05},
	)
	h.svc.now = func() time.Time { return h.now }
	h.svc.newToken = func() string { return "tok-1" }

	return h
}
