package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/store"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// Registry is the in-memory snapshot of exchange reference data the quote path
// reads on every request: quick trade configs, tier fee schedules, subscribed
// trading pairs and the exchange minimum fees. It is refreshed as a whole;
// readers always see a consistent snapshot.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]model.QuickTradeConfig
	tiers   map[int]model.Tier
	pairs   map[string]struct{}
	minFees model.FeeStructure
}

func New() *Registry {
	return &Registry{
		configs: make(map[string]model.QuickTradeConfig),
		tiers:   make(map[int]model.Tier),
		pairs:   make(map[string]struct{}),
	}
}

// Load replaces the snapshot with fresh data from the store. Unknown quick
// trade types are rejected here so the per-request path only ever dispatches
// on valid variants. On error the previous snapshot stays in place.
func (r *Registry) Load(ctx context.Context, st store.Store, logger *zap.Logger) error {
	configs, err := st.LoadQuickTradeConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load quick trade configs: %w", err)
	}
	for _, c := range configs {
		if !c.Type.Valid() {
			return fmt.Errorf("quick trade config %q has unsupported type %q", c.Symbol, c.Type)
		}
	}

	tiers, err := st.LoadTiers(ctx)
	if err != nil {
		return fmt.Errorf("load tiers: %w", err)
	}

	pairs, err := st.LoadTradingPairs(ctx)
	if err != nil {
		return fmt.Errorf("load trading pairs: %w", err)
	}

	minFees, err := st.LoadDefaultFees(ctx)
	if err != nil {
		return fmt.Errorf("load default fees: %w", err)
	}

	configMap := make(map[string]model.QuickTradeConfig, len(configs))
	for _, c := range configs {
		configMap[strings.ToLower(c.Symbol)] = c
	}
	tierMap := make(map[int]model.Tier, len(tiers))
	for _, t := range tiers {
		tierMap[t.Level] = t
	}
	pairSet := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		pairSet[strings.ToLower(p)] = struct{}{}
	}

	r.mu.Lock()
	r.configs = configMap
	r.tiers = tierMap
	r.pairs = pairSet
	r.minFees = minFees
	r.mu.Unlock()

	logger.Info("registry.loaded",
		zap.Int("quick_trade_configs", len(configMap)),
		zap.Int("tiers", len(tierMap)),
		zap.Int("pairs", len(pairSet)),
	)
	return nil
}

// NewStatic builds a registry from fixed data, bypassing the store. Intended
// for wiring tests and tools.
func NewStatic(configs []model.QuickTradeConfig, tiers []model.Tier, pairs []string, minFees model.FeeStructure) *Registry {
	r := New()
	for _, c := range configs {
		r.configs[strings.ToLower(c.Symbol)] = c
	}
	for _, t := range tiers {
		r.tiers[t.Level] = t
	}
	for _, p := range pairs {
		r.pairs[strings.ToLower(p)] = struct{}{}
	}
	r.minFees = minFees
	return r
}

// QuickTradeConfig returns the config for a symbol, if any.
func (r *Registry) QuickTradeConfig(symbol string) (model.QuickTradeConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[strings.ToLower(symbol)]
	return c, ok
}

// SetQuickTradeConfig applies an admin update to the live snapshot.
func (r *Registry) SetQuickTradeConfig(cfg model.QuickTradeConfig) {
	r.mu.Lock()
	r.configs[strings.ToLower(cfg.Symbol)] = cfg
	r.mu.Unlock()
}

// Tier returns the fee schedule for a verification level.
func (r *Registry) Tier(level int) (model.Tier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tiers[level]
	return t, ok
}

// SubscribedToPair reports whether symbol is an active order book pair.
func (r *Registry) SubscribedToPair(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pairs[strings.ToLower(symbol)]
	return ok
}

// MinFees returns the exchange-wide minimum maker/taker fees.
func (r *Registry) MinFees() model.FeeStructure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minFees
}
