package qacache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/db/badger"
	dbRedis "github.com/kailas-cloud/qacache/internal/db/redis"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
	"github.com/kailas-cloud/qacache/internal/repository/embcache"
	"github.com/kailas-cloud/qacache/internal/repository/fastcache"
	goldrepo "github.com/kailas-cloud/qacache/internal/repository/gold"
	questionrepo "github.com/kailas-cloud/qacache/internal/repository/question"
	"github.com/kailas-cloud/qacache/internal/transport/langchain"
	openaiTransport "github.com/kailas-cloud/qacache/internal/transport/openai"
	answeruc "github.com/kailas-cloud/qacache/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/qacache/internal/usecase/embedding"
	golduc "github.com/kailas-cloud/qacache/internal/usecase/gold"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultBatchWorkers     = 4
)

// Internal interfaces for substitution in tests.
type answerUseCase interface {
	Resolve(ctx context.Context, question string) (resolution.Resolution, error)
	ResolveBatch(ctx context.Context, questions []string, workers int) ([]answeruc.BatchResult, error)
}

type goldUseCase interface {
	Seed(ctx context.Context, items []golduc.Item, workers int) (golduc.Report, error)
}

// kvStore is the fast-cache backend surface used by the SDK.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Client is the qacache SDK entry point. It is safe for concurrent use.
type Client struct {
	answerSvc answerUseCase
	goldSvc   goldUseCase
	healthSvc healthUseCase
	workers   int
	closers   []func()
	obs       *observer
}

// New opens the stores and assembles the answering pipeline.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		curated:      CuratedSQLite,
		batchWorkers: defaultBatchWorkers,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.sqliteDSN == "" {
		return nil, errors.New("qacache: durable store required (use WithSQLite)")
	}
	if cfg.curated == CuratedRedis && cfg.cacheDriver != "redis" && cfg.cacheDriver != "valkey" {
		return nil, errors.New("qacache: CuratedRedis requires WithRedis or WithValkey")
	}

	baseEmb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{workers: cfg.batchWorkers, obs: obs}
	if err := c.wire(ctx, cfg, baseEmb, gen); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig, baseEmb domain.Embedder, gen answeruc.Generator) error {
	sqlDB, err := sqlite.Open(ctx, sqlite.Config{DSN: cfg.sqliteDSN})
	if err != nil {
		return fmt.Errorf("qacache: open sqlite: %w", err)
	}
	c.closers = append(c.closers, func() { _ = sqlDB.Close() })

	kv, redisStore, err := c.openCache(ctx, cfg)
	if err != nil {
		return err
	}

	var embedder domain.Embedder = baseEmb
	if kv != nil && cfg.embeddingCacheTTL > 0 {
		embedder = embcache.New(baseEmb, kv, cfg.embeddingCacheTTL, nil, nil)
	}
	instrumented := embeddinguc.NewInstrumentedEmbedder(embedder, "sdk", "", nil)

	questions := questionrepo.New(sqlDB)
	deps := answeruc.Deps{
		Store:     questions,
		Prior:     questions,
		Embedder:  instrumented,
		Generator: gen,
	}
	healthOpts := []healthuc.Option{}
	if kv != nil {
		deps.FastCache = fastcache.New(kv)
		healthOpts = append(healthOpts, healthuc.WithFastCache(kv))
	}

	var curated interface {
		answeruc.CuratedSearcher
		golduc.Repository
		healthuc.Pinger
	}
	switch cfg.curated {
	case CuratedSQLite:
		curated = goldrepo.NewSQLite(sqlDB)
	case CuratedRedis:
		curated = goldrepo.NewRedis(redisStore)
	case CuratedNone:
	default:
		return fmt.Errorf("qacache: unknown curated backend %q", cfg.curated)
	}
	if curated != nil {
		deps.Curated = curated
		healthOpts = append(healthOpts, healthuc.WithCuratedIndex(curated))
		c.goldSvc = golduc.New(instrumented, curated, nil)
	}
	if hc, ok := baseEmb.(healthuc.EmbeddingChecker); ok {
		healthOpts = append(healthOpts, healthuc.WithEmbedding(hc))
	}

	policy := DefaultPolicy()
	if cfg.policy != nil {
		policy = *cfg.policy
	}
	svc, err := answeruc.New(deps, policy,
		answeruc.WithObserver(c.obs),
		answeruc.WithLogger(zap.NewNop()),
	)
	if err != nil {
		return fmt.Errorf("qacache: %w", err)
	}
	c.answerSvc = svc
	c.healthSvc = healthuc.New(sqlDB, healthOpts...)
	return nil
}

func (c *Client) openCache(ctx context.Context, cfg *clientConfig) (kvStore, *dbRedis.Store, error) {
	switch cfg.cacheDriver {
	case "":
		return nil, nil, nil
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			Flavor:   dbRedis.Flavor(cfg.cacheDriver),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("qacache: create %s store: %w", cfg.cacheDriver, err)
		}
		c.closers = append(c.closers, s.Close)
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, fmt.Errorf("qacache: %s not ready: %w", cfg.cacheDriver, err)
		}
		return s, s, nil
	case "badger":
		s, err := badger.Open(badger.Config{Path: cfg.badgerPath, InMemory: cfg.badgerPath == ""}, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("qacache: open badger: %w", err)
		}
		c.closers = append(c.closers, func() { _ = s.Close() })
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("qacache: unknown cache driver %q", cfg.cacheDriver)
	}
}

func buildEmbedder(cfg *clientConfig) (domain.Embedder, error) {
	switch {
	case cfg.embedder != nil:
		return newEmbedderAdapter(cfg.embedder), nil
	case cfg.openai != nil:
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.openai.APIKey,
			BaseURL:    cfg.openai.BaseURL,
			Model:      cfg.openai.EmbeddingModel,
			Dimensions: cfg.openai.Dimensions,
			Provider:   "openai",
		}), nil
	default:
		return nil, errors.New("qacache: embedder required (use WithEmbedder or WithOpenAI)")
	}
}

func buildGenerator(cfg *clientConfig) (answeruc.Generator, error) {
	switch {
	case cfg.generator != nil:
		return &generatorAdapter{inner: cfg.generator}, nil
	case cfg.langchain != nil:
		g, err := langchain.New(&langchain.Config{
			BaseURL:     cfg.langchain.BaseURL,
			APIKey:      cfg.langchain.APIKey,
			Model:       cfg.langchain.Model,
			Temperature: cfg.langchain.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("qacache: %w", err)
		}
		return g, nil
	case cfg.openaiGen != nil && cfg.openaiGen.GenerationModel != "":
		return newOpenAIGenerator(cfg.openaiGen), nil
	case cfg.openai != nil && cfg.openai.GenerationModel != "":
		return newOpenAIGenerator(cfg.openai), nil
	default:
		return nil, errors.New("qacache: generator required (use WithGenerator, WithLangChain or WithOpenAI)")
	}
}

func newOpenAIGenerator(cfg *OpenAIConfig) *openaiTransport.Generator {
	return openaiTransport.NewGenerator(&openaiTransport.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.GenerationModel,
		Provider: "openai",
	})
}

// Close releases all resources in reverse order of acquisition.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ask answers one question.
func (c *Client) Ask(ctx context.Context, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	res, err := c.answerSvc.Resolve(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return toAnswer(res), nil
}

// AskBatch answers questions concurrently. Per-question failures are reported in BatchAnswer.Err.
func (c *Client) AskBatch(ctx context.Context, questions []string) (out []BatchAnswer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask_batch", start, err) }()

	results, err := c.answerSvc.ResolveBatch(ctx, questions, c.workers)
	if err != nil {
		return nil, fmt.Errorf("ask batch: %w", err)
	}
	out = make([]BatchAnswer, len(results))
	for i, r := range results {
		out[i] = BatchAnswer{Question: r.Question, Err: r.Err}
		if r.Err == nil {
			out[i].Answer = toAnswer(r.Resolution)
		}
	}
	return out, nil
}

// SeedGold embeds and stores curated pairs. Items with an existing ID are replaced.
func (c *Client) SeedGold(ctx context.Context, items []GoldItem) (rep SeedReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("seed_gold", start, err) }()

	if c.goldSvc == nil {
		return SeedReport{}, errors.New("qacache: curated index disabled")
	}
	in := make([]golduc.Item, len(items))
	for i, it := range items {
		in[i] = golduc.Item{ID: it.ID, Question: it.Question, Answer: it.Answer}
	}
	report, err := c.goldSvc.Seed(ctx, in, c.workers)
	if err != nil {
		return SeedReport{}, fmt.Errorf("seed gold: %w", err)
	}
	rep = SeedReport{Seeded: report.Seeded, Failed: report.Failed, Results: make([]SeedResult, len(report.Results))}
	for i, r := range report.Results {
		rep.Results[i] = SeedResult{ID: r.ID, Err: r.Err}
	}
	return rep, nil
}

func toAnswer(res resolution.Resolution) Answer {
	return Answer{
		Text:       res.Answer(),
		Source:     Source(res.Source()),
		Similarity: res.Similarity(),
	}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func newEmbedderAdapter(e Embedder) domain.Embedder {
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: be}
	}
	return &embedderAdapter{inner: e}
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter also forwards BatchEmbed.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter wraps public Generator to satisfy the pipeline generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	text, err := a.inner.Generate(ctx, prompt)
	if err != nil {
		return domain.Completion{}, err
	}
	return domain.Completion{Text: text, Model: a.Model()}, nil
}

func (a *generatorAdapter) Model() string {
	if m, ok := a.inner.(ModelNamer); ok {
		return m.Model()
	}
	return "custom"
}
