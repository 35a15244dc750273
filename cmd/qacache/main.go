package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/config"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	logpkg "github.com/kailas-cloud/qacache/internal/logger"
	"github.com/kailas-cloud/qacache/internal/metrics"
	questionrepo "github.com/kailas-cloud/qacache/internal/repository/question"
	chiTransport "github.com/kailas-cloud/qacache/internal/transport/chi"
	answeruc "github.com/kailas-cloud/qacache/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
	"github.com/kailas-cloud/qacache/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting qacache API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("fast_cache_driver", cfg.FastCache.Driver),
		zap.String("curated_driver", cfg.Curated.Driver),
		zap.String("generator_provider", cfg.Generator.Provider),
	)

	ctx := context.Background()

	sqlDB, err := sqlite.Open(ctx, sqlite.Config{
		DSN:         cfg.Durable.DSN,
		BusyTimeout: time.Duration(cfg.Durable.BusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to open durable store", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()
	logger.Info("Opened durable store", zap.String("dsn", cfg.Durable.DSN))

	kv, err := openFastCache(ctx, cfg.FastCache, logger)
	if err != nil {
		logger.Fatal("Failed to open fast cache", zap.Error(err))
	}
	defer kv.Close()

	curated, err := openCurated(ctx, cfg, kv, sqlDB, logger)
	if err != nil {
		logger.Fatal("Failed to open curated index", zap.Error(err))
	}
	defer curated.Close()

	// Register metrics explicitly (no init())
	metrics.Register(prometheus.DefaultRegisterer)

	embedder, embedHealth := buildEmbedder(cfg.Embedding, kv, logger)
	generator, err := buildGenerator(cfg.Generator, cfg.Embedding.Provider, logger)
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("generator_model", generator.Model()),
	)

	questions := questionrepo.New(sqlDB)

	deps := answeruc.Deps{
		Store:     questions,
		Prior:     questions,
		Embedder:  embedder,
		Generator: generator,
	}
	// Assign only non-nil tiers: a typed nil pointer in an interface is not nil.
	if kv.cache != nil {
		deps.FastCache = kv.cache
	}
	if curated.searcher != nil {
		deps.Curated = curated.searcher
	}

	answerSvc, err := answeruc.New(deps, cfg.Pipeline.Policy(),
		answeruc.WithObserver(metrics.Pipeline{}),
		answeruc.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("Failed to create answer service", zap.Error(err))
	}

	healthOpts := []healthuc.Option{healthuc.WithEmbedding(embedHealth)}
	if kv.pinger != nil {
		healthOpts = append(healthOpts, healthuc.WithFastCache(kv.pinger))
	}
	if curated.pinger != nil {
		healthOpts = append(healthOpts, healthuc.WithCuratedIndex(curated.pinger))
	}
	healthSvc := healthuc.New(sqlDB, healthOpts...)

	server := chiTransport.NewServer(answerSvc, healthSvc, prometheus.DefaultGatherer, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
