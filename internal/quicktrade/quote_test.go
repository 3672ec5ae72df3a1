package quicktrade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openexchange-hq/quicktrade/internal/auth"
	"github.com/openexchange-hq/quicktrade/internal/orderbook"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

func TestGetQuote_NegativeAmount(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(-1),
	}, "", "")
	require.ErrorIs(t, err, ErrAmountNegative)
}

func TestGetQuote_UnknownPair(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "doge",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestGetQuote_InactiveConfig(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "ltc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.ErrorIs(t, err, ErrTypeNotSupported)
}

func TestGetQuote_Pro_AuthenticatedSell(t *testing.T) {
	h := newHarness(t)
	h.pricing.ess = orderbook.Essentials{EstimatedPrice: 19950, SourceAmount: 1, TargetAmount: 19950}
	h.pricing.last, h.pricing.lastOK = 20000, true
	h.verifier.identity = &auth.Identity{UserID: 7, NetworkID: 77}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "Bearer abc", "10.0.0.1")
	require.NoError(t, err)

	require.Equal(t, model.IntentMarket, resp.Type)
	require.Equal(t, 1.0, *resp.SpendingAmount)
	require.Equal(t, 19950.0, *resp.ReceivingAmount)
	require.Equal(t, "tok-1", resp.Token)
	require.NotNil(t, resp.Expiry)
	require.Equal(t, h.now.Add(30*time.Second), *resp.Expiry)

	intent, ok := h.tokens.items["tok-1"]
	require.True(t, ok)
	require.Equal(t, int64(7), intent.UserID)
	require.Equal(t, "btc-usdt", intent.Symbol)
	require.Equal(t, model.SideSell, intent.Side)
	require.Equal(t, 19950.0, intent.Price)
	require.Equal(t, 1.0, intent.Size)
	require.Equal(t, model.IntentMarket, intent.Type)
	require.Equal(t, 30*time.Second, h.tokens.ttls["tok-1"])

	require.Len(t, h.publisher.byType(model.EventQuoteIssued), 1)
}

func TestGetQuote_Pro_AnonymousGetsNoToken(t *testing.T) {
	h := newHarness(t)
	h.pricing.ess = orderbook.Essentials{EstimatedPrice: 19950, SourceAmount: 1, TargetAmount: 19950}
	h.pricing.last, h.pricing.lastOK = 20000, true

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.NoError(t, err)

	require.Empty(t, resp.Token)
	require.Nil(t, resp.Expiry)
	require.Empty(t, h.tokens.items)
	require.Empty(t, h.publisher.byType(model.EventQuoteIssued))
}

func TestGetQuote_Pro_BuySizesBaseLeg(t *testing.T) {
	h := newHarness(t)
	// Buying 0.5 btc with usdt; spending leg is the quote asset.
	h.pricing.ess = orderbook.Essentials{EstimatedPrice: 20100, SourceAmount: 10050, TargetAmount: 0.5}
	h.pricing.last, h.pricing.lastOK = 20000, true
	h.verifier.identity = &auth.Identity{UserID: 7}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "usdt",
		ReceivingCurrency: "btc",
		ReceivingAmount:   fptr(0.5),
	}, "Bearer abc", "")
	require.NoError(t, err)

	require.Equal(t, 10050.0, *resp.SpendingAmount)
	require.Equal(t, 0.5, *resp.ReceivingAmount)

	intent := h.tokens.items["tok-1"]
	require.Equal(t, model.SideBuy, intent.Side)
	require.Equal(t, 0.5, intent.Size)
}

func TestGetQuote_Pro_PriceDeviation(t *testing.T) {
	h := newHarness(t)
	h.pricing.ess = orderbook.Essentials{EstimatedPrice: 35000, SourceAmount: 1, TargetAmount: 35000}
	h.pricing.last, h.pricing.lastOK = 20000, true

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.ErrorIs(t, err, ErrCurrentPriceDeviates)
}

func TestGetQuote_Pro_LastPriceFallsBackToPublicTrades(t *testing.T) {
	h := newHarness(t)
	h.pricing.ess = orderbook.Essentials{EstimatedPrice: 35000, SourceAmount: 1, TargetAmount: 35000}
	h.pricing.lastOK = false
	h.network.trades = []model.PublicTrade{{Symbol: "btc-usdt", Price: 20000}}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.ErrorIs(t, err, ErrCurrentPriceDeviates)
	require.Equal(t, "PublicTrades", h.network.lastCall().name)
}

func TestGetQuote_Pro_InsufficientDepth(t *testing.T) {
	h := newHarness(t)
	h.pricing.ess = orderbook.Essentials{}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(500),
	}, "", "")
	require.ErrorIs(t, err, ErrOrderCannotBeFilled)
}

func TestGetQuote_Pro_NoBook(t *testing.T) {
	h := newHarness(t)
	h.pricing.essErr = orderbook.ErrNoBook

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "btc",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(1),
	}, "", "")
	require.ErrorIs(t, err, ErrOrderCannotBeFilled)
}

func TestGetQuote_Broker_AuthenticatedMirrorsIntent(t *testing.T) {
	h := newHarness(t)
	h.verifier.identity = &auth.Identity{UserID: 7, NetworkID: 77}
	h.refs.brokerPairs["eth-usdt"] = model.BrokerPair{
		Symbol: "eth-usdt", UserID: 99, MinSize: 0.1, MaxSize: 10,
	}
	expiry := h.now.Add(time.Minute)
	h.broker.quote = &model.BrokerQuote{
		Token:           "br-tok",
		Expiry:          expiry,
		Price:           2000,
		ReceivingAmount: fptr(4000),
	}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(2),
	}, "Bearer abc", "")
	require.NoError(t, err)

	require.Equal(t, model.IntentBroker, resp.Type)
	require.Equal(t, "br-tok", resp.Token)
	require.Equal(t, expiry, *resp.Expiry)
	require.Equal(t, 2.0, *resp.SpendingAmount)
	require.Equal(t, 4000.0, *resp.ReceivingAmount)

	// The broker token is tracked locally so redemption can find it.
	intent, ok := h.tokens.items["br-tok"]
	require.True(t, ok)
	require.Equal(t, int64(7), intent.UserID)
	require.Equal(t, "eth-usdt", intent.Symbol)
	require.Equal(t, model.SideSell, intent.Side)
	require.Equal(t, 2000.0, intent.Price)
	require.Equal(t, 2.0, intent.Size)
	require.Equal(t, model.IntentBroker, intent.Type)
	require.Equal(t, 30*time.Second, h.tokens.ttls["br-tok"])

	require.Len(t, h.publisher.byType(model.EventQuoteIssued), 1)
}

func TestGetQuote_Broker_AnonymousPriceOnly(t *testing.T) {
	h := newHarness(t)
	h.refs.brokerPairs["eth-usdt"] = model.BrokerPair{
		Symbol: "eth-usdt", UserID: 99, MinSize: 0.1, MaxSize: 10,
	}
	h.broker.quote = &model.BrokerQuote{
		Token:           "br-tok",
		Expiry:          h.now.Add(time.Minute),
		Price:           2000,
		ReceivingAmount: fptr(4000),
	}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(2),
	}, "", "")
	require.NoError(t, err)

	require.Empty(t, resp.Token)
	require.Nil(t, resp.Expiry)
	require.Equal(t, 2.0, *resp.SpendingAmount)
	require.Equal(t, 4000.0, *resp.ReceivingAmount)
	require.Empty(t, h.tokens.items)
}

func TestGetQuote_Broker_PausedSkipsBrokerCall(t *testing.T) {
	h := newHarness(t)
	h.refs.brokerPairs["eth-usdt"] = model.BrokerPair{
		Symbol: "eth-usdt", UserID: 99, Paused: true, MinSize: 0.1, MaxSize: 10,
	}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(2),
	}, "", "")
	require.ErrorIs(t, err, ErrBrokerPaused)
	require.Zero(t, h.broker.fetches)
}

func TestGetQuote_Broker_PairMissing(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(2),
	}, "", "")
	require.ErrorIs(t, err, ErrBrokerNotFound)
}

func TestGetQuote_Broker_SizeOutsideBounds(t *testing.T) {
	h := newHarness(t)
	h.refs.brokerPairs["eth-usdt"] = model.BrokerPair{
		Symbol: "eth-usdt", UserID: 99, MinSize: 0.1, MaxSize: 10,
	}
	h.broker.quote = &model.BrokerQuote{
		Token:           "br-tok",
		Expiry:          h.now.Add(time.Minute),
		ReceivingAmount: fptr(100000),
	}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(50),
	}, "", "")
	require.ErrorIs(t, err, ErrBrokerSizeExceeded)
}

func TestGetQuote_Broker_MissingOppositeAmount(t *testing.T) {
	h := newHarness(t)
	h.refs.brokerPairs["eth-usdt"] = model.BrokerPair{
		Symbol: "eth-usdt", UserID: 99, MinSize: 0.1, MaxSize: 10,
	}
	h.broker.quote = &model.BrokerQuote{Token: "br-tok", Expiry: h.now.Add(time.Minute)}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "eth",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(2),
	}, "", "")
	require.ErrorIs(t, err, ErrPriceNotFound)
}

func TestGetQuote_Network_AuthenticatedStoresBackendToken(t *testing.T) {
	h := newHarness(t)
	h.verifier.identity = &auth.Identity{UserID: 7, NetworkID: 77}
	expiry := h.now.Add(25 * time.Second)
	h.network.quote = &model.NetworkQuote{
		Token:           "net-tok",
		Expiry:          expiry,
		SpendingAmount:  100,
		ReceivingAmount: 52,
	}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "xrp",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(100),
	}, "Bearer abc", "")
	require.NoError(t, err)

	require.Equal(t, model.IntentNetwork, resp.Type)
	require.Equal(t, "net-tok", resp.Token)
	require.Equal(t, expiry, *resp.Expiry)
	require.Equal(t, 100.0, *resp.SpendingAmount)
	require.Equal(t, 52.0, *resp.ReceivingAmount)

	intent, ok := h.tokens.items["net-tok"]
	require.True(t, ok)
	require.Equal(t, int64(7), intent.UserID)
	require.Equal(t, "xrp-usdt", intent.Symbol)
	require.Equal(t, model.IntentNetwork, intent.Type)
}

func TestGetQuote_Network_AnonymousPriceOnly(t *testing.T) {
	h := newHarness(t)
	h.network.quote = &model.NetworkQuote{
		Token:           "net-tok",
		Expiry:          h.now.Add(25 * time.Second),
		SpendingAmount:  100,
		ReceivingAmount: 52,
	}

	resp, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "xrp",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(100),
	}, "", "")
	require.NoError(t, err)

	require.Empty(t, resp.Token)
	require.Nil(t, resp.Expiry)
	require.Empty(t, h.tokens.items)
}

func TestGetQuote_Network_ZeroAmount(t *testing.T) {
	h := newHarness(t)
	h.network.quote = &model.NetworkQuote{Token: "net-tok", SpendingAmount: 100, ReceivingAmount: 0}

	_, err := h.svc.GetQuote(context.Background(), model.QuoteRequest{
		SpendingCurrency:  "xrp",
		ReceivingCurrency: "usdt",
		SpendingAmount:    fptr(100),
	}, "", "")
	require.ErrorIs(t, err, ErrValueTooSmall)
}
