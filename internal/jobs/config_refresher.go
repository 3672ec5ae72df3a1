package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/internal/store"
)

// ConfigRefresher periodically reloads the reference data registry from the
// store so out-of-band database changes (new pairs, tier edits) reach the
// quote path without a restart.
type ConfigRefresher struct {
	logger   *zap.Logger
	reg      *registry.Registry
	store    store.Store
	interval time.Duration
	stopCh   chan struct{}
}

// NewConfigRefresher constructs a background job that runs periodically.
func NewConfigRefresher(logger *zap.Logger, reg *registry.Registry, st store.Store, interval time.Duration) *ConfigRefresher {
	return &ConfigRefresher{
		logger:   logger,
		reg:      reg,
		store:    st,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the refresh loop.
func (r *ConfigRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("config_refresher.started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("config_refresher.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("config_refresher.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the refresher.
func (r *ConfigRefresher) Stop() {
	close(r.stopCh)
}

// runOnce executes one refresh cycle. A failed load keeps the previous
// snapshot in place.
func (r *ConfigRefresher) runOnce(ctx context.Context) {
	start := time.Now()

	if err := r.reg.Load(ctx, r.store, r.logger); err != nil {
		r.logger.Error("config_refresher.reload_failed", zap.Error(err))
		return
	}

	r.logger.Info("config_refresher.success",
		zap.Duration("duration", time.Since(start)))
}
