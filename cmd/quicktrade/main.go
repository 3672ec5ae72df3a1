package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/openexchange-hq/quicktrade/internal/api"
	"github.com/openexchange-hq/quicktrade/internal/auth"
	"github.com/openexchange-hq/quicktrade/internal/broker"
	"github.com/openexchange-hq/quicktrade/internal/config"
	"github.com/openexchange-hq/quicktrade/internal/fees"
	"github.com/openexchange-hq/quicktrade/internal/history"
	"github.com/openexchange-hq/quicktrade/internal/httpclient"
	"github.com/openexchange-hq/quicktrade/internal/jobs"
	"github.com/openexchange-hq/quicktrade/internal/network"
	"github.com/openexchange-hq/quicktrade/internal/orderbook"
	"github.com/openexchange-hq/quicktrade/internal/publisher"
	"github.com/openexchange-hq/quicktrade/internal/quicktrade"
	"github.com/openexchange-hq/quicktrade/internal/rabbitmq"
	"github.com/openexchange-hq/quicktrade/internal/rate"
	"github.com/openexchange-hq/quicktrade/internal/registry"
	"github.com/openexchange-hq/quicktrade/internal/store"
	"github.com/openexchange-hq/quicktrade/pkg/logger"
	"github.com/openexchange-hq/quicktrade/pkg/secrets"
	"github.com/openexchange-hq/quicktrade/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [quicktrade]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- AWS Secrets Manager provider ---
	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
	}

	credCache := secrets.NewCache[secrets.APICredentials](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go credCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	networkCreds, err := loadCredentials(ctx, awsProvider, credCache, cfg.SecretsPrefix+"network")
	if err != nil {
		logg.Fatalw("failed to load network API credentials", "error", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.OutboundSubject, "QUICKTRADE_EVENTS")
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Rate limiters ---
	networkRateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.NetworkRPS,
		Burst:             cfg.NetworkBurst,
		Cooldown:          1 * time.Second,
	})
	brokerRateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.BrokerRPS,
		Burst:             cfg.BrokerBurst,
		Cooldown:          1 * time.Second,
	})

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Reference data registry ---
	reg := registry.New()
	if err := reg.Load(ctx, st, logg.Desugar()); err != nil {
		logg.Fatalw("failed to load reference data", "error", err)
	}
	feeCalc := fees.NewCalculator(reg)

	// --- Backend clients ---
	httpClient := &http.Client{Timeout: 15 * time.Second}
	networkExec := httpclient.New(logg.Desugar(), networkRateMgr, httpClient, cfg.NetworkRetryMax, "network", nil)
	brokerExec := httpclient.New(logg.Desugar(), brokerRateMgr, httpClient, 0, "broker", nil)

	networkClient := network.NewClient(logg.Desugar(), cfg.NetworkAPIURL, networkCreds, networkExec)
	brokerClient := broker.NewClient(logg.Desugar(), cfg.BrokerAPIURL, brokerExec)
	verifier := auth.NewHTTPVerifier(logg.Desugar(), cfg.NetworkAuthURL, networkExec)

	// --- Order book feed ---
	pairs, err := st.LoadTradingPairs(ctx)
	if err != nil {
		logg.Fatalw("failed to load trading pairs for feed", "error", err)
	}
	books := orderbook.NewMarketBooks()
	feed := orderbook.NewFeed(cfg.NetworkWSURL, pairs, books, logg.Desugar())
	if err := feed.Connect(ctx); err != nil {
		logg.Warnw("order book feed connect failed; pro quotes degraded until reconnect", "error", err)
	}

	// --- Trade history writer ---
	tradeWriter := history.NewTradeWriter(st.(*store.HybridStore).PG, logger.L(), cfg.ServiceName)

	// --- Quick trade engine ---
	svc := quicktrade.NewService(
		logger.L(),
		reg,
		feeCalc,
		st,
		st,
		books,
		networkClient,
		brokerClient,
		verifier,
		pub,
		tradeWriter,
		quicktrade.Options{
			QuoteTTL:           cfg.QuoteTTL,
			PriceDeviationMax:  cfg.PriceDeviationMax,
			BrokerMaxDeviation: cfg.BrokerMaxDeviation,
		},
	)

	// --- Background jobs ---
	refresher := jobs.NewConfigRefresher(logger.L(), reg, st, cfg.ConfigRefreshInterval)
	go refresher.Start(ctx)

	// --- Admin command consumer ---
	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.AdminCommandQueue, svc, logger.L())
	if err != nil {
		logg.Fatalw("failed to connect to RabbitMQ", "error", err)
	}
	if err := consumer.Start(ctx); err != nil {
		logg.Fatalw("failed to start RabbitMQ consumer", "error", err)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logger.L(), svc, verifier)
	api.RegisterRoutes(app, nc, st, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Main process stays alive until interrupted ---
	logg.Infow("[quicktrade] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"quote_ttl", cfg.QuoteTTL,
		"pairs", len(pairs))

	<-ctx.Done()
	logg.Info("shutting down [quicktrade]...")

	close(stopCleaner)
	refresher.Stop()
	if err := consumer.Close(); err != nil {
		logg.Warnw("rabbitmq.close_failed", "error", err)
	}
	if err := feed.Close(); err != nil {
		logg.Warnw("feed.close_failed", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}

// loadCredentials resolves an API key/secret pair through the in-memory cache,
// falling back to the secrets provider on a miss.
func loadCredentials(ctx context.Context, provider secrets.Provider, cache *secrets.Cache[secrets.APICredentials], key string) (secrets.APICredentials, error) {
	if creds, ok := cache.Get(key); ok {
		return creds, nil
	}

	values, err := provider.GetSecret(ctx, key)
	if err != nil {
		return secrets.APICredentials{}, err
	}
	creds, err := secrets.Credentials(values)
	if err != nil {
		return secrets.APICredentials{}, fmt.Errorf("secret %s: %w", key, err)
	}

	cache.Put(key, creds)
	return creds, nil
}
