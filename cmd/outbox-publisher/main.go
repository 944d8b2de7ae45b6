package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heuristic-logix/backoffice/pkg/config"
	"github.com/heuristic-logix/backoffice/pkg/db"
	"github.com/heuristic-logix/backoffice/pkg/kafka"
	"github.com/heuristic-logix/backoffice/pkg/logger"
	"github.com/heuristic-logix/backoffice/pkg/metrics"
	"github.com/heuristic-logix/backoffice/pkg/migrate"
	"github.com/heuristic-logix/backoffice/pkg/outbox"
	"github.com/heuristic-logix/backoffice/pkg/pubsub"
)

// Standalone dispatcher deployment. Exactly one publisher may run against a
// given outbox table; it relies on the fallback interval to pick up work
// since producer notifications stay inside the api process.
func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sink, err := newSink(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to create event sink", err)
		os.Exit(1)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logg.Error(context.Background(), "error closing event sink", err)
		}
	}()

	registry := prometheus.NewRegistry()
	outboxMetrics := metrics.NewOutboxMetrics(registry)

	// The standalone publisher has no producer in-process, so nothing ever
	// signals this notifier. The dispatcher wakes on the fallback interval.
	notifier := outbox.NewNotifier()
	defer notifier.Close()

	dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
		Logger:           logg,
		Repository:       outbox.NewRepository(dbClient.DB()),
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

	go serveMetrics(ctx, cfg, logg, registry)

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"backend": cfg.Sink.Normalized(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
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

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
