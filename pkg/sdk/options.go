package qacache

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// CuratedBackend selects where the curated corpus lives.
type CuratedBackend string

// Curated backend constants.
const (
	// CuratedSQLite keeps the corpus in the durable SQLite store (default).
	CuratedSQLite CuratedBackend = "sqlite"
	// CuratedRedis keeps the corpus in the fast-cache Redis or Valkey as a KNN index.
	CuratedRedis CuratedBackend = "redis"
	// CuratedNone disables curated matching and RAG context.
	CuratedNone CuratedBackend = "none"
)

// OpenAIConfig configures an OpenAI-compatible endpoint for embeddings and generation.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string // empty for api.openai.com
	EmbeddingModel  string
	Dimensions      int
	GenerationModel string
}

// LangChainConfig configures a langchaingo generator against an OpenAI-compatible server.
type LangChainConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

type clientConfig struct {
	cacheDriver string // "redis", "valkey", "badger" or "" for none
	addrs       []string
	password    string
	badgerPath  string

	sqliteDSN string
	curated   CuratedBackend

	embedder  Embedder
	generator Generator
	openai    *OpenAIConfig
	openaiGen *OpenAIConfig
	langchain *LangChainConfig

	embeddingCacheTTL time.Duration
	policy            *Policy
	batchWorkers      int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis uses a Redis 8+ instance as the fast cache.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey uses a Valkey instance with valkey-search as the fast cache.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBadger uses an embedded Badger database as the fast cache.
// An empty path keeps it in memory.
func WithBadger(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheDriver = "badger"
		c.badgerPath = path
	})
}

// WithSQLite sets the durable store DSN. Required.
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sqliteDSN = dsn
	})
}

// WithCurated selects the curated corpus backend. Defaults to CuratedSQLite.
// CuratedRedis requires WithRedis or WithValkey.
func WithCurated(b CuratedBackend) Option {
	return optionFunc(func(c *clientConfig) {
		c.curated = b
	})
}

// WithEmbedder sets a custom text embedding provider. Takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets a custom answer generator. Takes precedence over WithOpenAI and WithLangChain.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithOpenAI uses an OpenAI-compatible API for embeddings and, unless overridden, generation.
func WithOpenAI(cfg OpenAIConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &cfg
	})
}

// WithOpenAIGenerator generates answers through a separate OpenAI-compatible endpoint.
// Only APIKey, BaseURL and GenerationModel are used.
func WithOpenAIGenerator(cfg OpenAIConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiGen = &cfg
	})
}

// WithLangChain generates answers through langchaingo.
func WithLangChain(cfg LangChainConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.langchain = &cfg
	})
}

// WithEmbeddingCache caches question embeddings in the fast cache for ttl.
// Zero disables (default).
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingCacheTTL = ttl
	})
}

// WithPolicy overrides DefaultPolicy. Zero timeouts fall back to defaults.
func WithPolicy(p Policy) Option {
	return optionFunc(func(c *clientConfig) {
		c.policy = &p
	})
}

// WithBatchWorkers bounds AskBatch and SeedGold concurrency. Default: 4.
func WithBatchWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchWorkers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and answer sources)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
