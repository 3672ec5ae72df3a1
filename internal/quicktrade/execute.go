package quicktrade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/metrics"
	"github.com/openexchange-hq/quicktrade/internal/store"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// ExecuteOrder redeems a quote token for userID and dispatches the stored
// intent to the matching backend. The token is consumed atomically up front,
// so a second redemption of the same token fails with ErrTokenExpired no
// matter how the first one ends.
func (s *Service) ExecuteOrder(ctx context.Context, userID int64, token string) (*model.ExecutionResult, error) {
	intent, err := s.tokens.TakeIntent(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.IncRedemption("unknown", "expired")
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	if intent.UserID != userID {
		metrics.IncRedemption(intent.Type, "expired")
		return nil, ErrTokenExpired
	}
	if intent.Size < 0 {
		metrics.IncRedemption(intent.Type, "rejected")
		return nil, ErrInvalidSize
	}
	if intent.Price < 0 {
		metrics.IncRedemption(intent.Type, "rejected")
		return nil, ErrInvalidPrice
	}

	var res *model.ExecutionResult
	switch intent.Type {
	case model.IntentMarket:
		res, err = s.executeMarket(ctx, userID, intent)
	case model.IntentBroker:
		res, err = s.executeBroker(ctx, userID, intent)
	case model.IntentNetwork:
		res, err = s.executeNetwork(ctx, userID, token, intent)
	default:
		err = ErrTypeNotSupported
	}
	if err != nil {
		metrics.IncRedemption(intent.Type, "error")
		s.logger.Warn("quicktrade.execute.failed",
			zap.Int64("user_id", userID),
			zap.String("symbol", intent.Symbol),
			zap.String("type", intent.Type),
			zap.Error(err))
		return nil, err
	}

	// The intent is already consumed; this only clears any straggler state
	// and is safe to ignore on miss.
	_ = s.tokens.DeleteIntent(ctx, token)

	res.Type = intent.Type
	metrics.IncRedemption(intent.Type, "ok")

	if s.recorder != nil {
		if err := s.recorder.RecordQuickTrade(ctx, userID, res); err != nil {
			s.logger.Warn("quicktrade.record_failed",
				zap.Int64("user_id", userID),
				zap.String("symbol", res.Symbol),
				zap.Error(err))
		}
	}
	s.emit(ctx, model.EventTradeExecuted, userID, res.Symbol, model.TradeExecutedEvent{
		OrderID: res.ID,
		Symbol:  res.Symbol,
		Side:    res.Side,
		Price:   res.Price,
		Size:    res.Size,
		Type:    intent.Type,
		Status:  res.Status,
	})

	return res, nil
}

// lookupUser resolves a user id, mapping only a genuine miss to
// ErrUserNotFound. Store failures propagate as-is so an outage is not
// mistaken for an unknown user.
func (s *Service) lookupUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.refs.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}

// executeMarket places a plain market order for the quoted size. The quoted
// price is indicative only; the order fills at the book.
func (s *Service) executeMarket(ctx context.Context, userID int64, intent *model.QuoteIntent) (*model.ExecutionResult, error) {
	return s.CreateUserOrder(ctx, userID, intent.Symbol, intent.Side, intent.Size, "market", 0)
}

// executeBroker settles the quoted trade directly between the broker account
// and the caller. Broker pair state and price fairness are re-checked at
// redemption time, not trusted from quote time.
func (s *Service) executeBroker(ctx context.Context, userID int64, intent *model.QuoteIntent) (*model.ExecutionResult, error) {
	pair, err := s.refs.GetBrokerPair(ctx, intent.Symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBrokerNotFound
		}
		return nil, err
	}
	if pair.Paused {
		return nil, ErrBrokerPaused
	}
	if intent.Size < pair.MinSize || intent.Size > pair.MaxSize {
		return nil, ErrBrokerSizeExceeded
	}

	fair, err := s.broker.IsFairPrice(ctx, intent.Symbol, intent.Price, s.opts.BrokerMaxDeviation)
	if err != nil {
		return nil, err
	}
	if !fair {
		return nil, ErrFairPriceBroker
	}

	maker, err := s.lookupUser(ctx, pair.UserID)
	if err != nil {
		return nil, err
	}
	taker, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if maker.NetworkID == 0 || taker.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}

	// Broker trades are settled at the quoted price; no discount applies.
	makerFees, err := s.fees.OrderFeeData(maker.VerificationLevel, intent.Symbol, 0)
	if err != nil {
		return nil, err
	}
	takerFees, err := s.fees.OrderFeeData(taker.VerificationLevel, intent.Symbol, 0)
	if err != nil {
		return nil, err
	}
	fee := model.FeeStructure{Maker: makerFees.Maker, Taker: takerFees.Taker}

	return s.network.CreateBrokerTrade(ctx, intent.Symbol, intent.Side,
		intent.Price, intent.Size, maker.NetworkID, taker.NetworkID, fee)
}

// executeNetwork redeems the backend-issued token on the settlement network.
// The token doubles as the network quote id.
func (s *Service) executeNetwork(ctx context.Context, userID int64, token string, intent *model.QuoteIntent) (*model.ExecutionResult, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}

	fees, err := s.fees.OrderFeeData(user.VerificationLevel, intent.Symbol, 0)
	if err != nil {
		return nil, err
	}

	return s.network.ExecuteQuote(ctx, token, user.NetworkID, fees.Taker)
}

// CreateUserOrder places an order on the settlement network on behalf of
// userID, attaching the user's tier fees with their personal discount.
func (s *Service) CreateUserOrder(ctx context.Context, userID int64, symbol string, side model.TradeSide, size float64, orderType string, price float64) (*model.ExecutionResult, error) {
	if !s.reg.SubscribedToPair(symbol) {
		return nil, ErrInvalidSymbol
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}

	fee, err := s.fees.OrderFeeData(user.VerificationLevel, symbol, user.Discount)
	if err != nil {
		return nil, err
	}

	return s.network.CreateOrder(ctx, user.NetworkID, symbol, side, size, orderType, price, fee)
}

// GetUserOrder fetches a single order of the user from the network.
func (s *Service) GetUserOrder(ctx context.Context, userID int64, orderID string) (*model.ExecutionResult, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}
	return s.network.GetOrder(ctx, user.NetworkID, orderID)
}

// CancelUserOrder cancels an open order of the user on the network.
func (s *Service) CancelUserOrder(ctx context.Context, userID int64, orderID string) (*model.ExecutionResult, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}
	return s.network.CancelOrder(ctx, user.NetworkID, orderID)
}

// GetUserTrades lists the user's trades on the network, optionally filtered
// by symbol.
func (s *Service) GetUserTrades(ctx context.Context, userID int64, symbol string) ([]model.PublicTrade, error) {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.NetworkID == 0 {
		return nil, ErrUserNotRegisteredOnNetwork
	}
	return s.network.GetTrades(ctx, user.NetworkID, symbol)
}

// SettleUserFees triggers fee settlement for the user on the network.
func (s *Service) SettleUserFees(ctx context.Context, userID int64) error {
	user, err := s.lookupUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.NetworkID == 0 {
		return ErrUserNotRegisteredOnNetwork
	}
	return s.network.SettleFees(ctx, user.NetworkID)
}

// UpdateQuickTradeConfig persists a pair's quick trade configuration and
// refreshes the in-memory registry so the change takes effect immediately.
func (s *Service) UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error {
	if !cfg.Type.Valid() {
		return ErrTypeNotSupported
	}

	if err := s.refs.UpdateQuickTradeConfig(ctx, cfg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConfigNotFound
		}
		return err
	}
	s.reg.SetQuickTradeConfig(cfg)

	s.logger.Info("quicktrade.config_updated",
		zap.String("symbol", cfg.Symbol),
		zap.String("type", string(cfg.Type)),
		zap.Bool("active", cfg.Active))

	s.emit(ctx, model.EventConfigUpdated, 0, cfg.Symbol, cfg)
	return nil
}
