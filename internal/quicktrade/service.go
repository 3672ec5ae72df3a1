package quicktrade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/auth"
	"github.com/openexchange-hq/quicktrade/internal/broker"
	"github.com/openexchange-hq/quicktrade/internal/fees"
	"github.com/openexchange-hq/quicktrade/internal/orderbook"
	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// TokenStore holds serialized quote intents under opaque token keys with TTL
// expiry. TakeIntent must be atomic: of two concurrent takes for one token,
// exactly one succeeds.
type TokenStore interface {
	PutIntent(ctx context.Context, token string, intent model.QuoteIntent, ttl time.Duration) error
	TakeIntent(ctx context.Context, token string) (*model.QuoteIntent, error)
	DeleteIntent(ctx context.Context, token string) error
}

// ReferenceStore provides the persistent records the engine reads and the one
// admin mutation it performs.
type ReferenceStore interface {
	GetBrokerPair(ctx context.Context, symbol string) (*model.BrokerPair, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error
}

// PricingEngine prices conversions against the live order book.
type PricingEngine interface {
	Estimate(symbol string, side model.TradeSide, source, target *float64) (orderbook.Essentials, error)
	LastPrice(symbol string) (float64, bool)
}

// NetworkBackend is the settlement network: order placement, broker trades,
// network quoting and account passthroughs.
type NetworkBackend interface {
	CreateOrder(ctx context.Context, networkID int64, symbol string, side model.TradeSide, size float64, orderType string, price float64, fee model.FeeStructure) (*model.ExecutionResult, error)
	CreateBrokerTrade(ctx context.Context, symbol string, side model.TradeSide, price, size float64, makerID, takerID int64, fee model.FeeStructure) (*model.ExecutionResult, error)
	GetQuote(ctx context.Context, networkID int64, spendingCurrency string, spendingAmount *float64, receivingCurrency string, receivingAmount *float64) (*model.NetworkQuote, error)
	ExecuteQuote(ctx context.Context, token string, networkID int64, fee float64) (*model.ExecutionResult, error)
	GetOrder(ctx context.Context, networkID int64, orderID string) (*model.ExecutionResult, error)
	CancelOrder(ctx context.Context, networkID int64, orderID string) (*model.ExecutionResult, error)
	GetTrades(ctx context.Context, networkID int64, symbol string) ([]model.PublicTrade, error)
	SettleFees(ctx context.Context, networkID int64) error
	PublicTrades(ctx context.Context, symbol string) ([]model.PublicTrade, error)
}

// BrokerBackend is the external broker quote service.
type BrokerBackend interface {
	FetchQuote(ctx context.Context, bearerToken, ip string, qr broker.QuoteRequest) (*model.BrokerQuote, error)
	IsFairPrice(ctx context.Context, symbol string, quotedPrice, maxDeviation float64) (bool, error)
}

// EventPublisher emits domain events; optional and best-effort.
type EventPublisher interface {
	PublishEnvelope(ctx context.Context, env *model.Envelope) error
}

// TradeRecorder persists executed quick trades; optional and best-effort.
type TradeRecorder interface {
	RecordQuickTrade(ctx context.Context, userID int64, res *model.ExecutionResult) error
}

// Options tunes the engine's guard rails and token lifetime.
type Options struct {
	// QuoteTTL is the validity window of issued execution tokens.
	QuoteTTL time.Duration
	// PriceDeviationMax rejects pro estimates above lastPrice * this factor.
	PriceDeviationMax float64
	// BrokerMaxDeviation is the fair-price tolerance for broker executions,
	// as a fraction of the broker's reference price.
	BrokerMaxDeviation float64
}

func (o *Options) withDefaults() {
	if o.QuoteTTL <= 0 {
		o.QuoteTTL = 30 * time.Second
	}
	if o.PriceDeviationMax <= 0 {
		o.PriceDeviationMax = 1.5
	}
	if o.BrokerMaxDeviation <= 0 {
		o.BrokerMaxDeviation = 0.05
	}
}

// Service is the quick trade engine: it prices conversions between two
// currencies, issues single-use execution tokens, and redeems them against
// the appropriate backend.
type Service struct {
	logger   *zap.Logger
	reg      *registry.Registry
	fees     *fees.Calculator
	tokens   TokenStore
	refs     ReferenceStore
	pricing  PricingEngine
	network  NetworkBackend
	broker   BrokerBackend
	verifier auth.Verifier
	events   EventPublisher
	recorder TradeRecorder
	opts     Options

	now      func() time.Time
	newToken func() string
}

// NewService wires the quick trade engine. events and recorder may be nil.
func NewService(
	logger *zap.Logger,
	reg *registry.Registry,
	feeCalc *fees.Calculator,
	tokens TokenStore,
	refs ReferenceStore,
	pricing PricingEngine,
	network NetworkBackend,
	brokerBackend BrokerBackend,
	verifier auth.Verifier,
	events EventPublisher,
	recorder TradeRecorder,
	opts Options,
) *Service {
	opts.withDefaults()
	return &Service{
		logger:   logger,
		reg:      reg,
		fees:     feeCalc,
		tokens:   tokens,
		refs:     refs,
		pricing:  pricing,
		network:  network,
		broker:   brokerBackend,
		verifier: verifier,
		events:   events,
		recorder: recorder,
		opts:     opts,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// identify resolves the optional caller identity behind bearerToken.
// Empty tokens mean anonymous; invalid tokens are an error.
func (s *Service) identify(ctx context.Context, bearerToken, ip string) (*auth.Identity, error) {
	if bearerToken == "" {
		return nil, nil
	}
	return s.verifier.Verify(ctx, bearerToken, ip)
}

// emit publishes a domain event, best-effort.
func (s *Service) emit(ctx context.Context, eventType string, userID int64, symbol string, payload any) {
	if s.events == nil {
		return
	}
	env := &model.Envelope{
		EventType:     eventType,
		CorrelationID: uuid.New(),
		UserID:        userID,
		Symbol:        symbol,
		Timestamp:     s.now().UTC(),
		Payload:       payload,
	}
	if err := s.events.PublishEnvelope(ctx, env); err != nil {
		s.logger.Warn("quicktrade.event_publish_failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
