package quicktrade

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/broker"
	"github.com/openexchange-hq/quicktrade/internal/metrics"
	"github.com/openexchange-hq/quicktrade/internal/store"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// GetQuote prices a conversion between two currencies. The configured market
// for the pair selects the pricing strategy. Authenticated callers also
// receive a single-use execution token valid for Options.QuoteTTL.
func (s *Service) GetQuote(ctx context.Context, req model.QuoteRequest, bearerToken, ip string) (*model.QuoteResponse, error) {
	if (req.SpendingAmount != nil && *req.SpendingAmount < 0) ||
		(req.ReceivingAmount != nil && *req.ReceivingAmount < 0) {
		return nil, ErrAmountNegative
	}

	symbol, side, cfg, err := s.ResolvePair(req.SpendingCurrency, req.ReceivingCurrency)
	if err != nil {
		return nil, err
	}
	if !cfg.Active {
		return nil, ErrTypeNotSupported
	}

	start := time.Now()
	var resp *model.QuoteResponse
	switch cfg.Type {
	case model.QuickTradeBroker:
		resp, err = s.quoteBroker(ctx, req, symbol, side, bearerToken, ip)
	case model.QuickTradePro:
		resp, err = s.quotePro(ctx, req, symbol, side, bearerToken, ip)
	case model.QuickTradeNetwork:
		resp, err = s.quoteNetwork(ctx, req, symbol, bearerToken, ip)
	default:
		// unknown types are rejected at config load; this is a safety net
		err = ErrTypeNotSupported
	}
	metrics.ObserveDuration(metrics.QuoteDuration, start, string(cfg.Type))

	if err != nil {
		metrics.IncQuote(string(cfg.Type), "error")
		s.logger.Warn("quicktrade.quote.failed",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.String("strategy", string(cfg.Type)),
			zap.Error(err))
		return nil, err
	}

	metrics.IncQuote(string(cfg.Type), "ok")
	return resp, nil
}

// quoteBroker prices against a designated broker account. The broker service
// issues the token and expiry; for authenticated callers the token is
// mirrored into the local store (with the quoted price and size) so
// redemption goes through the same at-most-once bookkeeping as pro quotes.
func (s *Service) quoteBroker(ctx context.Context, req model.QuoteRequest, symbol string, side model.TradeSide, bearerToken, ip string) (*model.QuoteResponse, error) {
	pair, err := s.refs.GetBrokerPair(ctx, symbol)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBrokerNotFound
		}
		return nil, err
	}
	if pair.Paused {
		return nil, ErrBrokerPaused
	}

	quote, err := s.broker.FetchQuote(ctx, bearerToken, ip, broker.QuoteRequest{
		Symbol:            symbol,
		Side:              side,
		SpendingCurrency:  req.SpendingCurrency,
		ReceivingCurrency: req.ReceivingCurrency,
		SpendingAmount:    req.SpendingAmount,
		ReceivingAmount:   req.ReceivingAmount,
	})
	if err != nil {
		return nil, err
	}

	resp := &model.QuoteResponse{
		SpendingCurrency:  req.SpendingCurrency,
		ReceivingCurrency: req.ReceivingCurrency,
		Type:              model.IntentBroker,
	}
	if req.SpendingAmount != nil {
		resp.SpendingAmount = req.SpendingAmount
		resp.ReceivingAmount = quote.ReceivingAmount
	} else {
		resp.ReceivingAmount = req.ReceivingAmount
		resp.SpendingAmount = quote.SpendingAmount
	}
	if resp.SpendingAmount == nil || resp.ReceivingAmount == nil {
		return nil, ErrPriceNotFound
	}
	if *resp.SpendingAmount < 0 || *resp.ReceivingAmount < 0 {
		return nil, ErrPriceNotFound
	}

	// The base asset leg must stay within the broker pair bounds.
	baseSize := *resp.SpendingAmount
	if side == model.SideBuy {
		baseSize = *resp.ReceivingAmount
	}
	if baseSize < pair.MinSize || baseSize > pair.MaxSize {
		return nil, ErrBrokerSizeExceeded
	}

	identity, err := s.identify(ctx, bearerToken, ip)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		intent := model.QuoteIntent{
			UserID: identity.UserID,
			Symbol: symbol,
			Side:   side,
			Price:  quote.Price,
			Size:   baseSize,
			Type:   model.IntentBroker,
		}
		if err := s.tokens.PutIntent(ctx, quote.Token, intent, s.opts.QuoteTTL); err != nil {
			return nil, err
		}

		expiry := quote.Expiry
		resp.Token = quote.Token
		resp.Expiry = &expiry

		s.emit(ctx, model.EventQuoteIssued, identity.UserID, symbol, model.QuoteIssuedEvent{
			Symbol: symbol,
			Side:   side,
			Type:   model.IntentBroker,
			Expiry: expiry,
		})
	}

	return resp, nil
}

// quotePro prices against the live order book. Authenticated callers get a
// locally issued token holding a market-order intent.
func (s *Service) quotePro(ctx context.Context, req model.QuoteRequest, symbol string, side model.TradeSide, bearerToken, ip string) (*model.QuoteResponse, error) {
	if !s.reg.SubscribedToPair(symbol) {
		return nil, ErrInvalidSymbol
	}

	ess, err := s.pricing.Estimate(symbol, side, req.SpendingAmount, req.ReceivingAmount)
	if err != nil {
		return nil, ErrOrderCannotBeFilled
	}
	if ess.EstimatedPrice == 0 {
		return nil, ErrOrderCannotBeFilled
	}
	if ess.SourceAmount == 0 || ess.TargetAmount == 0 {
		return nil, ErrValueTooSmall
	}

	resp := &model.QuoteResponse{
		SpendingCurrency:  req.SpendingCurrency,
		ReceivingCurrency: req.ReceivingCurrency,
		Type:              model.IntentMarket,
	}
	if req.SpendingAmount != nil {
		resp.SpendingAmount = req.SpendingAmount
		resp.ReceivingAmount = &ess.TargetAmount
	} else {
		resp.ReceivingAmount = req.ReceivingAmount
		resp.SpendingAmount = &ess.SourceAmount
	}

	// Guard against a stale or manipulated book: reject estimates far above
	// the most recent public trade.
	if last, ok := s.lastPrice(ctx, symbol); ok {
		if ess.EstimatedPrice > last*s.opts.PriceDeviationMax {
			return nil, ErrCurrentPriceDeviates
		}
	}

	identity, err := s.identify(ctx, bearerToken, ip)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		// The intent size is always the base asset leg.
		size := *resp.SpendingAmount
		if side == model.SideBuy {
			size = *resp.ReceivingAmount
		}

		token := s.newToken()
		intent := model.QuoteIntent{
			UserID: identity.UserID,
			Symbol: symbol,
			Side:   side,
			Price:  ess.EstimatedPrice,
			Size:   size,
			Type:   model.IntentMarket,
		}
		if err := s.tokens.PutIntent(ctx, token, intent, s.opts.QuoteTTL); err != nil {
			return nil, err
		}

		expiry := s.now().Add(s.opts.QuoteTTL)
		resp.Token = token
		resp.Expiry = &expiry

		s.emit(ctx, model.EventQuoteIssued, identity.UserID, symbol, model.QuoteIssuedEvent{
			Symbol: symbol,
			Side:   side,
			Type:   model.IntentMarket,
			Expiry: expiry,
		})
	}

	return resp, nil
}

// quoteNetwork delegates pricing and token issuance to the settlement
// network. For authenticated callers the backend token is additionally
// tracked in the local store so redemption goes through the same
// at-most-once bookkeeping as pro quotes.
func (s *Service) quoteNetwork(ctx context.Context, req model.QuoteRequest, symbol, bearerToken, ip string) (*model.QuoteResponse, error) {
	identity, err := s.identify(ctx, bearerToken, ip)
	if err != nil {
		return nil, err
	}

	var networkID int64
	if identity != nil {
		networkID = identity.NetworkID
	}

	quote, err := s.network.GetQuote(ctx, networkID,
		req.SpendingCurrency, req.SpendingAmount,
		req.ReceivingCurrency, req.ReceivingAmount)
	if err != nil {
		return nil, err
	}
	if quote.SpendingAmount < 0 || quote.ReceivingAmount < 0 {
		return nil, ErrPriceNotFound
	}
	if quote.SpendingAmount == 0 || quote.ReceivingAmount == 0 {
		return nil, ErrValueTooSmall
	}

	resp := &model.QuoteResponse{
		SpendingCurrency:  req.SpendingCurrency,
		ReceivingCurrency: req.ReceivingCurrency,
		SpendingAmount:    &quote.SpendingAmount,
		ReceivingAmount:   &quote.ReceivingAmount,
		Type:              model.IntentNetwork,
	}

	if identity != nil {
		intent := model.QuoteIntent{
			UserID: identity.UserID,
			Symbol: symbol,
			Type:   model.IntentNetwork,
		}
		if err := s.tokens.PutIntent(ctx, quote.Token, intent, s.opts.QuoteTTL); err != nil {
			return nil, err
		}
		expiry := quote.Expiry
		resp.Token = quote.Token
		resp.Expiry = &expiry

		s.emit(ctx, model.EventQuoteIssued, identity.UserID, symbol, model.QuoteIssuedEvent{
			Symbol: symbol,
			Type:   model.IntentNetwork,
			Expiry: expiry,
		})
	}

	return resp, nil
}

// lastPrice returns the most recent public trade price for symbol, preferring
// the live feed cache and falling back to the backend's trade history.
func (s *Service) lastPrice(ctx context.Context, symbol string) (float64, bool) {
	if p, ok := s.pricing.LastPrice(symbol); ok {
		return p, true
	}
	trades, err := s.network.PublicTrades(ctx, symbol)
	if err != nil || len(trades) == 0 {
		return 0, false
	}
	return trades[0].Price, trades[0].Price > 0
}
