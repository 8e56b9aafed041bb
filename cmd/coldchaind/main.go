package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmtofork/coldchain/internal/audit"
	"github.com/farmtofork/coldchain/internal/cache"
	"github.com/farmtofork/coldchain/internal/config"
	"github.com/farmtofork/coldchain/internal/db"
	"github.com/farmtofork/coldchain/internal/feed"
	"github.com/farmtofork/coldchain/internal/kafka"
	"github.com/farmtofork/coldchain/internal/notify"
	"github.com/farmtofork/coldchain/internal/repository"
	"github.com/farmtofork/coldchain/internal/sentinel"
	"github.com/farmtofork/coldchain/internal/server"
	"github.com/farmtofork/coldchain/internal/service"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "coldchaind").Logger()

	cfg := config.LoadConfig()

	database, err := db.Connect(cfg.DSN, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to database")
	}
	defer database.Close()

	store := repository.NewStore(database)
	outbox := repository.NewPostgresAlertOutbox(database)

	dedupe, err := notify.NewStore(cfg.DedupePath, cfg.DedupeRetention)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading dedup store")
	}
	center := notify.NewCenter(dedupe, logger)

	producer, err := kafka.NewSaramaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating kafka producer")
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditor := audit.NewWorkerPool(audit.PoolConfig{
		BatchSize:   10,
		Timeout:     2 * time.Second,
		ChannelSize: 256,
	}, logger, audit.NewDBProcessor(database), audit.NewLogProcessor(logger))
	auditor.Start(ctx, 2)

	products := cache.NewProductCache(store)
	orders := cache.NewActiveOrdersCache()
	go orders.StartAutoRefresh(ctx, store, cfg.CacheInterval, logger)

	email := notify.NewEmailClient(cfg.EmailBridgeURL, logger)
	watchdog := sentinel.New(store, products, center, outbox, email, auditor, cfg.SentinelInterval, logger)
	go watchdog.Start(ctx)

	processor := notify.NewOutboxProcessor(outbox, producer, cfg.AlertTopic, cfg.OutboxInterval, 50, logger)
	go processor.Start(ctx)

	go func() {
		if err := feed.StartConsumer(ctx, cfg.KafkaBrokers, cfg.FeedGroupID, cfg.FeedTopic, store, logger); err != nil {
			logger.Error().Err(err).Msg("temperature feed stopped")
		}
	}()

	svc := service.NewOrderService(store, products, orders, center, auditor, logger)
	srv := server.NewServer(svc, center, cfg, logger)

	httpSrv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}

	cancel()
	auditor.Wait()
	logger.Info().Msg("stopped")
}
