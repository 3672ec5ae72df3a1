package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

type fakeStore struct {
	configs []model.QuickTradeConfig
	tiers   []model.Tier
	pairs   []string
	minFees model.FeeStructure
}

func (f *fakeStore) PutIntent(context.Context, string, model.QuoteIntent, time.Duration) error {
	return nil
}
func (f *fakeStore) TakeIntent(context.Context, string) (*model.QuoteIntent, error) { return nil, nil }
func (f *fakeStore) DeleteIntent(context.Context, string) error                     { return nil }
func (f *fakeStore) GetBrokerPair(context.Context, string) (*model.BrokerPair, error) {
	return nil, nil
}
func (f *fakeStore) GetUser(context.Context, int64) (*model.User, error) { return nil, nil }
func (f *fakeStore) LoadQuickTradeConfigs(context.Context) ([]model.QuickTradeConfig, error) {
	return f.configs, nil
}
func (f *fakeStore) UpdateQuickTradeConfig(context.Context, model.QuickTradeConfig) error {
	return nil
}
func (f *fakeStore) LoadTiers(context.Context) ([]model.Tier, error) { return f.tiers, nil }
func (f *fakeStore) LoadDefaultFees(context.Context) (model.FeeStructure, error) {
	return f.minFees, nil
}
func (f *fakeStore) LoadTradingPairs(context.Context) ([]string, error) { return f.pairs, nil }
func (f *fakeStore) HealthCheck(context.Context) error                  { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func TestLoad_Snapshot(t *testing.T) {
	st := &fakeStore{
		configs: []model.QuickTradeConfig{{Symbol: "BTC-USDT", Type: model.QuickTradePro, Active: true}},
		tiers:   []model.Tier{{Level: 1, Name: "basic"}},
		pairs:   []string{"BTC-USDT", "eth-usdt"},
		minFees: model.FeeStructure{Maker: 0.01, Taker: 0.02},
	}

	r := New()
	require.NoError(t, r.Load(context.Background(), st, zap.NewNop()))

	cfg, ok := r.QuickTradeConfig("btc-usdt")
	require.True(t, ok)
	require.Equal(t, model.QuickTradePro, cfg.Type)

	_, ok = r.Tier(1)
	require.True(t, ok)

	require.True(t, r.SubscribedToPair("BTC-USDT"))
	require.True(t, r.SubscribedToPair("eth-usdt"))
	require.False(t, r.SubscribedToPair("doge-usdt"))

	require.Equal(t, 0.01, r.MinFees().Maker)
}

func TestLoad_RejectsUnknownType(t *testing.T) {
	st := &fakeStore{
		configs: []model.QuickTradeConfig{{Symbol: "btc-usdt", Type: "oracle", Active: true}},
	}

	r := New()
	err := r.Load(context.Background(), st, zap.NewNop())
	require.ErrorContains(t, err, "unsupported type")
}

func TestLoad_FailureKeepsPreviousSnapshot(t *testing.T) {
	good := &fakeStore{
		configs: []model.QuickTradeConfig{{Symbol: "btc-usdt", Type: model.QuickTradePro, Active: true}},
	}
	r := New()
	require.NoError(t, r.Load(context.Background(), good, zap.NewNop()))

	bad := &fakeStore{
		configs: []model.QuickTradeConfig{{Symbol: "btc-usdt", Type: "oracle", Active: true}},
	}
	require.Error(t, r.Load(context.Background(), bad, zap.NewNop()))

	_, ok := r.QuickTradeConfig("btc-usdt")
	require.True(t, ok)
}

func TestSetQuickTradeConfig(t *testing.T) {
	r := NewStatic([]model.QuickTradeConfig{
		{Symbol: "btc-usdt", Type: model.QuickTradePro, Active: true},
	}, nil, nil, model.FeeStructure{})

	r.SetQuickTradeConfig(model.QuickTradeConfig{Symbol: "BTC-USDT", Type: model.QuickTradeBroker, Active: false})

	cfg, ok := r.QuickTradeConfig("btc-usdt")
	require.True(t, ok)
	require.Equal(t, model.QuickTradeBroker, cfg.Type)
	require.False(t, cfg.Active)
}
