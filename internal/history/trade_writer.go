package history

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// TradeWriter persists executed quick trades into trading.quick_trade_history.
type TradeWriter struct {
	db     *pgxpool.Pool
	logger *zap.Logger
	source string
}

// NewTradeWriter constructs a writer for the quick trade history table.
// source identifies the service writing the record.
func NewTradeWriter(db *pgxpool.Pool, logger *zap.Logger, source string) *TradeWriter {
	return &TradeWriter{
		db:     db,
		logger: logger,
		source: source,
	}
}

// RecordQuickTrade inserts or updates the history record for an execution.
// Re-recording the same order id only refreshes its mutable columns, so the
// writer is safe to call from retry paths.
func (w *TradeWriter) RecordQuickTrade(ctx context.Context, userID int64, res *model.ExecutionResult) error {
	if res == nil {
		return nil
	}

	const query = `
		INSERT INTO trading.quick_trade_history (
			order_id,
			user_id,
			symbol,
			side,
			price,
			size,
			filled,
			status,
			maker_fee,
			taker_fee,
			trade_type,
			source,
			executed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (order_id)
		DO UPDATE SET
			price = EXCLUDED.price,
			filled = EXCLUDED.filled,
			status = EXCLUDED.status,
			executed_at = EXCLUDED.executed_at;
	`

	_, err := w.db.Exec(ctx, query,
		res.ID,
		userID,
		res.Symbol,
		string(res.Side),
		res.Price,
		res.Size,
		res.Filled,
		res.Status,
		res.Fee.Maker,
		res.Fee.Taker,
		res.Type,
		w.source,
		res.CreatedAt,
	)
	if err != nil {
		w.logger.Error("history.trade_write_failed",
			zap.String("order_id", res.ID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("history.trade_recorded",
		zap.String("order_id", res.ID),
		zap.Int64("user_id", userID),
		zap.String("symbol", res.Symbol),
		zap.String("status", res.Status),
	)

	return nil
}
