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

	"github.com/medicobot/medicobot/internal/analytics"
	"github.com/medicobot/medicobot/internal/chat"
	"github.com/medicobot/medicobot/internal/chat/cache"
	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/corpus/manager"
	"github.com/medicobot/medicobot/internal/server"
	"github.com/medicobot/medicobot/pkg/config"
	"github.com/medicobot/medicobot/pkg/health"
	"github.com/medicobot/medicobot/pkg/kafka"
	"github.com/medicobot/medicobot/pkg/logger"
	"github.com/medicobot/medicobot/pkg/metrics"
	"github.com/medicobot/medicobot/pkg/middleware"
	"github.com/medicobot/medicobot/pkg/postgres"
	pkgredis "github.com/medicobot/medicobot/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting medicobot service", "port", cfg.Server.Port, "corpus_source", cfg.Corpus.Source)

	m := metrics.New()

	var repo *corpus.Repository
	var pgClient *postgres.Client
	if cfg.Corpus.Source == "postgres" {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		repo = corpus.NewRepository(pgClient)
		slog.Info("corpus store connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var source manager.Source
	switch cfg.Corpus.Source {
	case "postgres":
		source = repo.List
	case "csv":
		csvPath := cfg.Corpus.CSVPath
		source = func(ctx context.Context) ([]corpus.Disease, error) {
			return corpus.LoadCSV(csvPath)
		}
	default:
		slog.Error("unknown corpus source", "source", cfg.Corpus.Source)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := manager.New(source)
	if err := mgr.Reload(ctx); err != nil {
		// The service still starts: /api/v1/match returns 503 and chat
		// falls through to its non-matcher stages until a reload succeeds.
		slog.Warn("initial corpus build failed, serving degraded", "error", err)
	} else {
		ix := mgr.Index()
		m.CorpusDiseases.Set(float64(ix.DocCount()))
		m.CorpusVocabulary.Set(float64(ix.VocabSize()))
	}

	var replyCache *cache.ReplyCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, reply caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		replyCache = cache.New(redisClient, cfg.Redis)
		slog.Info("reply cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ChatEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.ChatEvents)

	var aggregator *analytics.Aggregator
	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ChatEvents, func(ctx context.Context, key, value []byte) error {
		return analytics.HandleEvent(aggregator)(ctx, key, value)
	})
	aggregator = analytics.NewAggregator(analyticsConsumer)
	analyticsH := analytics.NewHandler(aggregator)
	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()

	updateConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusUpdated, func(ctx context.Context, key, value []byte) error {
		if err := mgr.UpdateHandler()(ctx, key, value); err != nil {
			m.CorpusRebuildsTotal.WithLabelValues("error").Inc()
			return err
		}
		m.CorpusRebuildsTotal.WithLabelValues("success").Inc()
		if ix := mgr.Index(); ix != nil {
			m.CorpusDiseases.Set(float64(ix.DocCount()))
			m.CorpusVocabulary.Set(float64(ix.VocabSize()))
		}
		if replyCache != nil {
			if err := replyCache.Invalidate(ctx); err != nil {
				slog.Warn("reply cache invalidation after reload failed", "error", err)
			}
		}
		return nil
	})
	go func() {
		if err := updateConsumer.Start(ctx); err != nil {
			slog.Error("corpus update consumer error", "error", err)
		}
	}()
	slog.Info("corpus update consumer started", "topic", cfg.Kafka.Topics.CorpusUpdated)

	updateProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusUpdated)
	defer updateProducer.Close()

	// Oracle, translator, and keyword lookup collaborators are wired by the
	// deployment; the open-source build runs the matcher-plus-default chain.
	responder := chat.New(chat.Deps{
		Index:   mgr.Index,
		Metrics: m,
	}, cfg.Chat, cfg.Matcher)

	checker := health.NewChecker()
	checker.Register("corpus_index", func(ctx context.Context) health.ComponentHealth {
		ix := mgr.Index()
		if ix == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d diseases indexed", ix.DocCount())}
	})
	if pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(mgr, responder, replyCache, collector, repo, updateProducer, cfg.Matcher, cfg.Chat, m)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", h.Chat)
	mux.HandleFunc("POST /api/v1/match", h.Match)
	mux.HandleFunc("GET /api/v1/diseases", h.ListDiseases)
	mux.HandleFunc("PUT /api/v1/diseases", h.UpsertDisease)
	mux.HandleFunc("POST /api/v1/corpus/reload", h.CorpusReload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", metrics.Handler())
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		go func() {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			metricsServer.Close()
		}()
	}

	srv := &http.Server{
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
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("medicobot service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("medicobot service stopped")
}
