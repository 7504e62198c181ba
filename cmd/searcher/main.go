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
	"time"

	"github.com/seniorliving/directory-search/internal/analytics"
	"github.com/seniorliving/directory-search/internal/autocomplete"
	"github.com/seniorliving/directory-search/internal/autocomplete/wsserver"
	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/directory/feed"
	"github.com/seniorliving/directory-search/internal/search/cache"
	"github.com/seniorliving/directory-search/internal/search/engine"
	"github.com/seniorliving/directory-search/internal/search/handler"
	"github.com/seniorliving/directory-search/internal/search/query"
	"github.com/seniorliving/directory-search/pkg/config"
	"github.com/seniorliving/directory-search/pkg/health"
	"github.com/seniorliving/directory-search/pkg/kafka"
	"github.com/seniorliving/directory-search/pkg/logger"
	"github.com/seniorliving/directory-search/pkg/metrics"
	"github.com/seniorliving/directory-search/pkg/middleware"
	"github.com/seniorliving/directory-search/pkg/postgres"
	pkgredis "github.com/seniorliving/directory-search/pkg/redis"
	"github.com/seniorliving/directory-search/pkg/resilience"
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
	slog.Info("starting directory search service",
		"port", cfg.Server.Port,
		"text_match", cfg.Search.TextMatch,
		"sources", cfg.Feed.Sources(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		if cfg.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx, feed.Schema, analytics.Schema); err != nil {
				slog.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
	}

	sources, err := feed.NewSources(cfg.Feed, feed.Deps{
		Postgres:   pg,
		HTTPClient: &http.Client{Timeout: cfg.Feed.HTTPTimeout},
		OnBreakerChange: func(name string, from, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	if err != nil {
		slog.Error("failed to configure feed sources", "error", err)
		os.Exit(1)
	}
	provider := feed.NewProvider(sources, cfg.Feed.LoadTimeout, m)

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache only", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	queryCache := cache.New(redisClient, cfg.Redis, m)

	provider.OnRefresh(func(snap *directory.Snapshot) {
		if err := queryCache.Invalidate(context.Background()); err != nil {
			slog.Warn("cache invalidation after refresh failed", "error", err)
		}
		slog.Info("snapshot replaced",
			"version", snap.Version(),
			"cities", len(snap.Cities()),
			"facilities", len(snap.Facilities()),
		)
	})

	if snap, err := provider.Get(ctx); err != nil {
		slog.Warn("initial feed load failed, searches return 503 until a source recovers", "error", err)
	} else {
		slog.Info("snapshot loaded",
			"source", snap.Source(),
			"version", snap.Version(),
			"cities", len(snap.Cities()),
			"facilities", len(snap.Facilities()),
		)
	}
	if cfg.Feed.RefreshInterval > 0 {
		go refreshLoop(ctx, provider, cfg.Feed.RefreshInterval)
	}

	aggregator := analytics.NewAggregator()
	var publisher analytics.Publisher = aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.SearchEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		publisher = producer

		aggregator.Consume(kafka.NewConsumer(cfg.Kafka, topic, analytics.HandleEvent(aggregator)))
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics over kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)

	var history analytics.History
	if pg != nil && cfg.Analytics.SnapshotInterval > 0 {
		store := analytics.NewStore(pg)
		store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		history = store
	}
	analyticsH := analytics.NewHandler(aggregator, history)

	checker := health.NewChecker()
	checker.Register("feed", provider.Check)
	checker.Register("cache", queryCache.Check)
	if pg != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	mode, err := engine.ParseTextMode(cfg.Search.TextMatch)
	if err != nil {
		slog.Error("invalid text match mode", "error", err)
		os.Exit(1)
	}
	eng := engine.New(mode)

	searchH := handler.New(provider, eng, queryCache, collector, handler.Config{
		Limits: query.Limits{
			DefaultPageSize: cfg.Search.DefaultLimit,
			MaxPageSize:     cfg.Search.MaxLimit,
			DefaultRadius:   cfg.Search.DefaultRadius,
		},
		MinInputLength: cfg.Autocomplete.MinInputLength,
		MaxSuggestions: cfg.Autocomplete.MaxSuggestions,
		Tracing:        cfg.Tracing.Enabled,
		Metrics:        m,
	})
	ws := wsserver.New(provider, eng, collector, m, wsserver.Config{
		Session: autocomplete.Config{
			Debounce:       cfg.Autocomplete.Debounce,
			MinInputLength: cfg.Autocomplete.MinInputLength,
			MaxSuggestions: cfg.Autocomplete.MaxSuggestions,
		},
		EventsPerSec:   cfg.Autocomplete.EventsPerSec,
		EventBurst:     cfg.Autocomplete.EventBurst,
		AllowedOrigins: cfg.Server.AllowOrigins,
	})

	api := http.NewServeMux()
	searchH.Register(api)
	api.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	api.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	api.HandleFunc("GET /health/live", checker.LiveHandler())
	api.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Websocket sessions are long-lived, so they bypass the request timeout.
	root := http.NewServeMux()
	root.Handle("GET /api/v1/autocomplete/ws", ws)
	root.Handle("/", middleware.Timeout(cfg.Server.WriteTimeout)(api))

	var chain http.Handler = root
	if rl := cfg.Server.RateLimit; rl.RequestsPerSec > 0 {
		limiter := middleware.NewClientLimiter(rl.RequestsPerSec, rl.Burst, 10*time.Minute)
		go sweepLoop(ctx, limiter)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.Metrics(m)(chain)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     chain,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		ws.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	// The collector drains and flushes once ctx is cancelled.
	collector.Wait()
	slog.Info("search service stopped")
}

func refreshLoop(ctx context.Context, provider *feed.Provider, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := provider.Refresh(ctx); err != nil {
				slog.Warn("scheduled feed refresh failed, keeping current snapshot", "error", err)
			}
		}
	}
}

func sweepLoop(ctx context.Context, limiter *middleware.ClientLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			slog.Debug("rate limiter swept", "clients", limiter.Sweep())
		}
	}
}
