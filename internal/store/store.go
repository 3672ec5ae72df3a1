package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// ErrNotFound is returned when a requested record or token does not exist.
var ErrNotFound = errors.New("store: not found")

// Locally issued quote intents are namespaced so they can never collide with
// keys written by other services sharing the same redis.
const intentKeyPrefix = "qt:intent:"

// Store defines the contract for the token store and the persistent
// reference data the quick trade engine depends on.
type Store interface {
	PutIntent(ctx context.Context, token string, intent model.QuoteIntent, ttl time.Duration) error
	TakeIntent(ctx context.Context, token string) (*model.QuoteIntent, error)
	DeleteIntent(ctx context.Context, token string) error

	GetBrokerPair(ctx context.Context, symbol string) (*model.BrokerPair, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	LoadQuickTradeConfigs(ctx context.Context) ([]model.QuickTradeConfig, error)
	UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error
	LoadTiers(ctx context.Context) ([]model.Tier, error)
	LoadDefaultFees(ctx context.Context) (model.FeeStructure, error)
	LoadTradingPairs(ctx context.Context) ([]string, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore keeps short-lived quote intents in Redis and reference data in
// Postgres.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr string, redisDB int, redisPass, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       redisDB,
		Password: redisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// NewWithClients wires a store from existing connections (used by tests).
func NewWithClients(rdb *redis.Client, pg *pgxpool.Pool, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, PG: pg, logger: logger}
}

// PutIntent serializes a quote intent under the token key with the given TTL.
func (s *HybridStore) PutIntent(ctx context.Context, token string, intent model.QuoteIntent, ttl time.Duration) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, intentKeyPrefix+token, data, ttl).Err()
}

// TakeIntent atomically fetches and deletes the intent stored under token.
// Two concurrent calls for the same token yield exactly one intent; the loser
// gets ErrNotFound. Expired tokens also surface as ErrNotFound.
func (s *HybridStore) TakeIntent(ctx context.Context, token string) (*model.QuoteIntent, error) {
	data, err := s.redis.GetDel(ctx, intentKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var intent model.QuoteIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("corrupt intent for token: %w", err)
	}
	return &intent, nil
}

// DeleteIntent removes a token entry. Deleting an absent token is not an error.
func (s *HybridStore) DeleteIntent(ctx context.Context, token string) error {
	return s.redis.Del(ctx, intentKeyPrefix+token).Err()
}

func (s *HybridStore) GetBrokerPair(ctx context.Context, symbol string) (*model.BrokerPair, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	row := s.PG.QueryRow(ctx, `
		SELECT symbol, user_id, paused, min_size, max_size
		FROM trading.broker_pair
		WHERE symbol = $1
		LIMIT 1;
	`, symbol)

	var bp model.BrokerPair
	if err := row.Scan(&bp.Symbol, &bp.UserID, &bp.Paused, &bp.MinSize, &bp.MaxSize); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetBrokerPair scan failed: %w", err)
	}
	return &bp, nil
}

func (s *HybridStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	row := s.PG.QueryRow(ctx, `
		SELECT id, email, COALESCE(network_id, 0), verification_level, COALESCE(discount, 0)
		FROM accounts.users
		WHERE id = $1
		LIMIT 1;
	`, id)

	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.NetworkID, &u.VerificationLevel, &u.Discount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetUser scan failed: %w", err)
	}
	return &u, nil
}

func (s *HybridStore) LoadQuickTradeConfigs(ctx context.Context) ([]model.QuickTradeConfig, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT symbol, type, active
		FROM trading.quick_trade_config
		ORDER BY symbol;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []model.QuickTradeConfig
	for rows.Next() {
		var c model.QuickTradeConfig
		if err := rows.Scan(&c.Symbol, &c.Type, &c.Active); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// UpdateQuickTradeConfig mutates type/active for an existing symbol.
// Returns ErrNotFound when the symbol has no config row.
func (s *HybridStore) UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	tag, err := s.PG.Exec(ctx, `
		UPDATE trading.quick_trade_config
		SET type = $2, active = $3, updated_at = NOW()
		WHERE symbol = $1;
	`, cfg.Symbol, cfg.Type, cfg.Active)
	if err != nil {
		s.logger.Error("store.pg.update_config_failed", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HybridStore) LoadTiers(ctx context.Context) ([]model.Tier, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT level, name, fees
		FROM accounts.tiers
		ORDER BY level;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		var feesRaw []byte
		if err := rows.Scan(&t.Level, &t.Name, &feesRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(feesRaw, &t.Fees); err != nil {
			return nil, fmt.Errorf("corrupt fees for tier %d: %w", t.Level, err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// LoadDefaultFees returns the exchange-wide minimum maker/taker fees.
func (s *HybridStore) LoadDefaultFees(ctx context.Context) (model.FeeStructure, error) {
	var fees model.FeeStructure
	if s.PG == nil {
		return fees, fmt.Errorf("postgres unavailable")
	}
	var raw []byte
	err := s.PG.QueryRow(ctx, `
		SELECT value
		FROM trading.exchange_config
		WHERE key = 'default_fees'
		LIMIT 1;
	`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fees, ErrNotFound
		}
		return fees, err
	}
	if err := json.Unmarshal(raw, &fees); err != nil {
		return fees, fmt.Errorf("corrupt default fees: %w", err)
	}
	return fees, nil
}

// LoadTradingPairs returns the symbols subscribed on the order book engine.
func (s *HybridStore) LoadTradingPairs(ctx context.Context) ([]string, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT symbol
		FROM trading.pairs
		WHERE active = TRUE
		ORDER BY symbol;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
