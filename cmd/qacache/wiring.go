package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/config"
	"github.com/kailas-cloud/qacache/internal/db/badger"
	dbRedis "github.com/kailas-cloud/qacache/internal/db/redis"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/metrics"
	"github.com/kailas-cloud/qacache/internal/repository/embcache"
	"github.com/kailas-cloud/qacache/internal/repository/fastcache"
	goldrepo "github.com/kailas-cloud/qacache/internal/repository/gold"
	"github.com/kailas-cloud/qacache/internal/transport/langchain"
	openaiTransport "github.com/kailas-cloud/qacache/internal/transport/openai"
	answeruc "github.com/kailas-cloud/qacache/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/qacache/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
)

// kvStore is what the fast cache and the embedding cache need from a key-value backend.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// fastCacheHandle keeps the opened key-value backend. All fields are nil for driver "none".
type fastCacheHandle struct {
	kv     kvStore
	cache  *fastcache.Repo
	pinger healthuc.Pinger
	redis  *dbRedis.Store
	close  func()
}

func (h *fastCacheHandle) Close() {
	if h.close != nil {
		h.close()
	}
}

func openFastCache(ctx context.Context, cfg config.FastCacheConfig, logger *zap.Logger) (*fastCacheHandle, error) {
	h := &fastCacheHandle{}
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
			Flavor:   dbRedis.Flavor(cfg.Driver),
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		h.kv, h.redis, h.close = store, store, store.Close
	case config.DriverBadger:
		store, err := badger.Open(badger.Config{Path: cfg.Path, InMemory: cfg.InMemory}, logger)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		h.kv = store
		h.close = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close badger", zap.Error(err))
			}
		}
	case config.DriverNone:
		logger.Info("Fast cache disabled")
		return h, nil
	default:
		return nil, fmt.Errorf("unknown fast cache driver %q", cfg.Driver)
	}

	h.cache = fastcache.New(h.kv)
	h.pinger = h.kv
	logger.Info("Connected to fast cache", zap.String("driver", cfg.Driver))
	return h, nil
}

// curatedHandle keeps the curated index backend. searcher is nil for driver "none".
type curatedHandle struct {
	searcher answeruc.CuratedSearcher
	pinger   healthuc.Pinger
	close    func()
}

func (h *curatedHandle) Close() {
	if h.close != nil {
		h.close()
	}
}

func openCurated(
	ctx context.Context,
	cfg config.Config,
	fc *fastCacheHandle,
	sqlDB *sqlite.DB,
	logger *zap.Logger,
) (*curatedHandle, error) {
	h := &curatedHandle{}
	switch cfg.Curated.Driver {
	case config.DriverSQLite:
		repo := goldrepo.NewSQLite(sqlDB)
		h.searcher, h.pinger = repo, repo
	case config.DriverRedis, config.DriverValkey:
		store := fc.redis
		if store == nil || cfg.FastCache.Driver != cfg.Curated.Driver || !slices.Equal(cfg.FastCache.Addrs, cfg.Curated.Addrs) {
			own, err := dbRedis.NewStore(dbRedis.Config{
				Addrs:    cfg.Curated.Addrs,
				Password: cfg.Curated.Password,
				Flavor:   dbRedis.Flavor(cfg.Curated.Driver),
			})
			if err != nil {
				return nil, fmt.Errorf("create curated %s store: %w", cfg.Curated.Driver, err)
			}
			if err := own.WaitForReady(ctx, time.Duration(cfg.FastCache.ReadinessTimeout)*time.Second); err != nil {
				own.Close()
				return nil, fmt.Errorf("curated %s not ready: %w", cfg.Curated.Driver, err)
			}
			store, h.close = own, own.Close
		}
		repo := goldrepo.NewRedis(store)
		h.searcher, h.pinger = repo, repo
	case config.DriverNone:
		logger.Info("Curated index disabled")
		return h, nil
	default:
		return nil, fmt.Errorf("unknown curated driver %q", cfg.Curated.Driver)
	}
	logger.Info("Curated index ready", zap.String("driver", cfg.Curated.Driver))
	return h, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// The raw provider is returned separately for health probes.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	fc *fastCacheHandle,
	logger *zap.Logger,
) (domain.Embedder, healthuc.EmbeddingChecker) {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if fc.kv != nil && cfg.CacheTTLHour > 0 {
		ttl := time.Duration(cfg.CacheTTLHour) * time.Hour
		embedder = embcache.New(base, fc.kv, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)
	return embedder, base
}

func buildGenerator(cfg config.GeneratorConfig, providerLabel string, logger *zap.Logger) (answeruc.Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: providerLabel,
			Logger:   logger,
		}), nil
	case config.ProviderLangChain:
		g, err := langchain.New(&langchain.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create langchain generator: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}
