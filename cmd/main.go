/**
 * @description
 * Entry point for the commission service.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL pool.
 * - github.com/redis/go-redis/v9: Simulation rate limiting and production cache.
 * - github.com/rabbitmq/amqp091-go (via pkg/rabbitmq): Commission and invoice events.
 */
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/temi-crm/commission-service/internal/api"
	"github.com/temi-crm/commission-service/internal/app"
	"github.com/temi-crm/commission-service/internal/commission"
	"github.com/temi-crm/commission-service/internal/config"
	"github.com/temi-crm/commission-service/internal/domain"
	"github.com/temi-crm/commission-service/internal/logging"
	"github.com/temi-crm/commission-service/internal/store"
	crmrabbit "github.com/temi-crm/commission-service/pkg/rabbitmq"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
	}

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to parse database URL")
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer dbpool.Close()
	logger.Info().Msg("database connection established")

	repository := store.NewRepository(dbpool)

	table, err := loadTierTable(ctx, repository, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid commission tier table")
	}
	engine := commission.NewEngine(table,
		commission.WithRates(cfg.Rates),
		commission.WithFallback(cfg.FallbackPolicy),
		commission.WithLogger(logger),
	)

	var (
		cache   app.ProductionCache
		limiter app.RateLimiter
	)
	if redisClient := connectRedis(cfg.RedisURL, logger); redisClient != nil {
		defer redisClient.Close()
		cache = app.NewRedisProductionCache(redisClient, cfg.RedisCachePrefix, cfg.ProductionCacheTTL())
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	var publisher crmrabbit.Publisher = &crmrabbit.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL != "" {
		if producer, err := crmrabbit.NewEventProducer(cfg.RabbitMQURL); err == nil {
			publisher = producer
		} else {
			logger.Warn().Err(err).Msg("failed to connect to RabbitMQ, using fallback publisher")
		}
	}
	defer publisher.Close()

	service := app.NewService(repository, engine, publisher, cache, limiter, app.Options{
		Exchange:                 cfg.EventsExchange,
		Timezone:                 cfg.BusinessTimezone,
		CommissionDueDays:        cfg.CommissionDueDays,
		SimulationLimitPerMinute: cfg.SimulationRateLimit,
	}, logger)

	if cfg.RabbitMQURL != "" {
		consumer, err := crmrabbit.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create RabbitMQ consumer, paid invoices will not create commissions")
		} else {
			defer consumer.Close()
			paid := app.NewInvoicePaidConsumer(service, logger)
			err = consumer.ConsumeWithBindings(cfg.EventsExchange, cfg.InvoiceEventQueue, map[string]crmrabbit.Handler{
				domain.EventInvoicePaid: paid.HandleMessage,
			})
			if err != nil {
				logger.Warn().Err(err).Msg("failed to bind invoice event queue")
			}
		}
	}

	scheduler := app.NewScheduler(app.NewJobs(service, logger), app.Schedules{
		OverdueInvoices: cfg.OverdueJobSchedule,
		TierSnapshots:   cfg.TierSnapshotSchedule,
	}, service.Location(), logger)
	scheduler.Start()

	handler := api.NewHandler(service, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		InternalAPIKey: cfg.InternalAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
		Health:         repository,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.ServerPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-sigCh
	logger.Info().Msg("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	<-scheduler.Stop().Done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

// loadTierTable reads the tier table from the database, falling back to the
// built-in brackets when none are stored.
func loadTierTable(ctx context.Context, repo *store.Repository, logger zerolog.Logger) (*commission.TierTable, error) {
	tiers, err := repo.ListTiers(ctx)
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		logger.Warn().Msg("no commission tiers stored, using default table")
		return commission.DefaultTierTable(), nil
	}
	return commission.NewTierTable(tiers)
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// service then runs without caching or rate limiting.
func connectRedis(redisURL string, logger zerolog.Logger) *redis.Client {
	if redisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; simulation rate limiting and production cache disabled")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis url parse failed; rate limiting and cache disabled")
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis ping failed; rate limiting and cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}
