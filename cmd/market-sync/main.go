package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/api"
	"github.com/trogers1052/market-sync/internal/config"
	"github.com/trogers1052/market-sync/internal/database"
	"github.com/trogers1052/market-sync/internal/ingest"
	"github.com/trogers1052/market-sync/internal/kafka"
	"github.com/trogers1052/market-sync/internal/lock"
	"github.com/trogers1052/market-sync/internal/logging"
	"github.com/trogers1052/market-sync/internal/provider"
	"github.com/trogers1052/market-sync/internal/provider/eodhd"
	"github.com/trogers1052/market-sync/internal/provider/guardian"
	"github.com/trogers1052/market-sync/internal/scheduler"
)

func main() {
	configPath := os.Getenv("MARKET_SYNC_CONFIG")
	if configPath == "" {
		configPath = "market-sync.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("market-sync stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger arbor.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Sync.Location()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return err
	}
	logger.Info().Str("db", cfg.Database.DBName).Msg("Database migrated")

	market := eodhd.NewClient(cfg.Provider.APIKey,
		eodhd.WithBaseURL(cfg.Provider.BaseURL),
		eodhd.WithExchange(cfg.Provider.Exchange),
		eodhd.WithTimeout(cfg.Provider.GetTimeout()),
		eodhd.WithRateLimit(cfg.Provider.RateLimit),
		eodhd.WithLogger(logger),
	)

	// Industry news needs the secondary provider; without a key it is skipped
	var news provider.NewsSearch
	if cfg.News.APIKey != "" {
		news = guardian.NewClient(cfg.News.APIKey,
			guardian.WithBaseURL(cfg.News.BaseURL),
			guardian.WithTimeout(cfg.News.GetTimeout()),
			guardian.WithLogger(logger),
		)
	} else {
		logger.Warn().Msg("No news API key configured, industry news disabled")
	}

	var options []ingest.Option

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer producer.Close()
		options = append(options, ingest.WithPublisher(producer))
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		options = append(options, ingest.WithLocker(lock.NewRedisLocker(client, cfg.Redis.GetLockTTL())))
	}

	engine := ingest.NewOrchestrator(db, market, news, ingest.Options{
		Location:          loc,
		LookbackYears:     cfg.Sync.LookbackYears,
		FundamentalsYears: cfg.Sync.FundamentalsYears,
		ToleranceDays:     cfg.Sync.ToleranceDays,
		Retries:           cfg.Sync.Retries,
		BaseDelay:         cfg.Sync.GetBaseDelay(),
		BatchSize:         cfg.Sync.BatchSize,
		BatchPause:        cfg.Sync.GetBatchPause(),
		CompanyNews:       cfg.News.CompanyCount,
		IndustryNews:      cfg.News.IndustryCount,
		Tickers:           cfg.Sync.Tickers,
	}, logger, options...)

	var wg sync.WaitGroup

	if cfg.Kafka.Enabled && cfg.Kafka.RequestsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.RequestsTopic, cfg.Kafka.GroupID, engine, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("Kafka consumer stopped")
			}
		}()
	}

	if cfg.Schedule.Enabled {
		sched := scheduler.New(engine, loc, logger)
		if err := sched.Register(cfg.Schedule.Prices, cfg.Schedule.News); err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.SetupRoutes(api.NewHandler(engine, db, logger)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	wg.Wait()
	logger.Info().Msg("market-sync stopped")
	return nil
}
