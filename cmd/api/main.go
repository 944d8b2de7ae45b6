package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/heuristic-logix/backoffice/api/routes"
	"github.com/heuristic-logix/backoffice/internal/conduces"
	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/db"
	"github.com/heuristic-logix/backoffice/pkg/env"
	"github.com/heuristic-logix/backoffice/pkg/kafka"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/metrics"
	"github.com/heuristic-logix/backoffice/pkg/migrate"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
	"github.com/heuristic-logix/backoffice/pkg/pubsub"
	"github.com/heuristic-logix/backoffice/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	outboxMetrics := metrics.NewOutboxMetrics(registry)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	notifier := outbox.NewNotifier()
	defer notifier.Close()

	writer, err := outbox.NewWriter(dbClient, outboxRepo, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox writer", err)
		os.Exit(1)
	}

	conducesService, err := conduces.NewService(conduces.NewRepository(dbClient.DB()), writer)
	if err != nil {
		logg.Error(context.Background(), "failed to create conduces service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The sink is only needed when the dispatcher runs inside this process.
	// In standalone mode cmd/outbox-publisher owns the broker connection.
	var sink outbox.Sink
	if cfg.Outbox.Embedded {
		sink, err = newSink(ctx, cfg, logg)
		if err != nil {
			logg.Error(ctx, "failed to create event sink", err)
			os.Exit(1)
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logg.Error(context.Background(), "error closing event sink", err)
			}
		}()
	}

	deps := routes.Deps{
		Config:     cfg,
		Logger:     logg,
		Conduces:   conducesService,
		OutboxRepo: outboxRepo,
		Registry:   registry,
		DB:         dbClient,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	if sink != nil {
		deps.Sink = sink
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"embedded": cfg.Outbox.Embedded,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: routes.New(deps),
	}

	dispatcherDone := make(chan struct{})
	if cfg.Outbox.Embedded {
		dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
			Logger:           logg,
			Repository:       outboxRepo,
			Sink:             sink,
			Notifier:         notifier,
			Metrics:          outboxMetrics,
			BatchSize:        cfg.Outbox.BatchSize,
			FallbackInterval: cfg.Outbox.FallbackInterval,
			MaxAttempts:      cfg.Outbox.MaxAttempts,
			PublishTimeout:   cfg.Sink.PublishTimeout,
		})
		if err != nil {
			logg.Error(ctx, "failed to create outbox dispatcher", err)
			os.Exit(1)
		}
		go func() {
			defer close(dispatcherDone)
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "outbox dispatcher stopped unexpectedly", err)
			}
		}()
	} else {
		close(dispatcherDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	logg.Info(ctx, "starting api server")

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "error shutting down api server", err)
		}
	}

	notifier.Close()
	<-dispatcherDone
	logg.Info(context.Background(), "api server shut down gracefully")
}

func newSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Sink, error) {
	switch cfg.Sink.Normalized() {
	case config.SinkBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, err
		}
		return pubsub.NewSink(client, cfg.PubSub)
	default:
		return kafka.NewSink(cfg.Kafka, logg)
	}
}
