// Command analytics runs the standalone search-analytics service.
//
// It consumes search events published by one or more searcher instances over
// Kafka, aggregates them in memory (query volume, latency percentiles, cache
// hit rate, zero-result and top queries, filter usage) and serves them at
// GET /api/v1/analytics. With Postgres enabled, periodic snapshots are stored
// and served at GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/pkg/config"
	"github.com/seniorliving/directory-search/pkg/health"
	"github.com/seniorliving/directory-search/pkg/kafka"
	"github.com/seniorliving/directory-search/pkg/logger"
	"github.com/seniorliving/directory-search/pkg/middleware"
	"github.com/seniorliving/directory-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and SP_* overrides when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka; searchers aggregate in process when it is disabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A separate group so the service sees every event, not a partition
	// share with searchers that also consume in process.
	kcfg := cfg.Kafka
	kcfg.ConsumerGroup += "-analytics"
	topic := cfg.Kafka.Topics.SearchEvents

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(kcfg, topic, analytics.HandleEvent(aggregator))
	aggregator.Consume(consumer)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", topic, "group", kcfg.ConsumerGroup)

	var history analytics.History
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if cfg.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx, analytics.Schema); err != nil {
				slog.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
		store := analytics.NewStore(pg)
		if cfg.Analytics.SnapshotInterval > 0 {
			store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
		history = store
	}

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case <-consumerDone:
			return health.ComponentHealth{Status: health.StatusDown, Message: "consumer stopped"}
		default:
		}
		processed, rejected := consumer.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("processed %d, rejected %d", processed, rejected),
		}
	})

	analyticsH := analytics.NewHandler(aggregator, history)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-consumerDone
	slog.Info("analytics service stopped")
}
