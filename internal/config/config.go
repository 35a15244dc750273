package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/qacache/internal/domain"
)

// Driver and provider names.
const (
	DriverRedis       = "redis"
	DriverValkey      = "valkey"
	DriverBadger      = "badger"
	DriverSQLite      = "sqlite"
	DriverNone        = "none"
	ProviderOpenAI    = "openai"
	ProviderLangChain = "langchain"
)

// Config holds the qacache server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	FastCache FastCacheConfig `yaml:"fast_cache"`
	Durable   DurableConfig   `yaml:"durable"`
	Curated   CuratedConfig   `yaml:"curated"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// FastCacheConfig selects the fingerprint cache backend.
type FastCacheConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, badger, none (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Path             string   `yaml:"path"`      // badger directory
	InMemory         bool     `yaml:"in_memory"` // badger without disk
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DurableConfig holds the relational store settings.
type DurableConfig struct {
	Driver        string `yaml:"driver"` // sqlite
	DSN           string `yaml:"dsn"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// CuratedConfig selects where the gold corpus lives.
// Redis-family drivers reuse the fast cache connection when addrs are empty.
type CuratedConfig struct {
	Driver   string   `yaml:"driver"` // redis, valkey, sqlite, none (default: sqlite)
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

// EmbeddingConfig holds the OpenAI-compatible embedding provider settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // metrics label
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	Dimensions   int    `yaml:"dimensions"`
	CacheTTLHour int    `yaml:"cache_ttl_hours"` // default 168, negative disables the embedding cache
}

// GeneratorConfig holds the answer generator settings.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"` // openai, langchain (default: openai)
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// PipelineConfig holds resolution thresholds and per-tier timeouts.
type PipelineConfig struct {
	GoldThreshold      float64 `yaml:"gold_threshold"`
	PriorThreshold     float64 `yaml:"prior_threshold"`
	ContextThreshold   float64 `yaml:"context_threshold"`
	CuratedTopK        int     `yaml:"curated_top_k"`
	CacheTTLSec        int     `yaml:"cache_ttl_sec"`
	CacheTimeoutMS     int     `yaml:"cache_timeout_ms"`
	StoreTimeoutMS     int     `yaml:"store_timeout_ms"`
	IndexTimeoutMS     int     `yaml:"index_timeout_ms"`
	EmbedTimeoutMS     int     `yaml:"embed_timeout_ms"`
	GeneratorTimeoutMS int     `yaml:"generator_timeout_ms"`
	BatchWorkers       int     `yaml:"batch_workers"`
}

// Policy converts the pipeline section to a domain policy.
func (p PipelineConfig) Policy() domain.Policy {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return domain.Policy{
		GoldThreshold:    p.GoldThreshold,
		PriorThreshold:   p.PriorThreshold,
		ContextThreshold: p.ContextThreshold,
		CuratedTopK:      p.CuratedTopK,
		CacheTTL:         time.Duration(p.CacheTTLSec) * time.Second,
		CacheTimeout:     ms(p.CacheTimeoutMS),
		StoreTimeout:     ms(p.StoreTimeoutMS),
		IndexTimeout:     ms(p.IndexTimeoutMS),
		EmbedTimeout:     ms(p.EmbedTimeoutMS),
		GeneratorTimeout: ms(p.GeneratorTimeoutMS),
	}.WithDefaults()
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.FastCache.Driver == "" {
		c.FastCache.Driver = DriverRedis
	}
	if c.FastCache.ReadinessTimeout <= 0 {
		c.FastCache.ReadinessTimeout = 10
	}
	if c.FastCache.Driver == DriverBadger && c.FastCache.Path == "" && !c.FastCache.InMemory {
		c.FastCache.Path = filepath.Join("data", "fastcache")
	}

	if c.Durable.Driver == "" {
		c.Durable.Driver = DriverSQLite
	}
	if c.Durable.DSN == "" {
		c.Durable.DSN = filepath.Join("data", "qacache.db")
	}
	if c.Durable.BusyTimeoutMS <= 0 {
		c.Durable.BusyTimeoutMS = 5000
	}

	if c.Curated.Driver == "" {
		c.Curated.Driver = DriverSQLite
	}
	if isRedisFamily(c.Curated.Driver) && len(c.Curated.Addrs) == 0 {
		c.Curated.Addrs = c.FastCache.Addrs
		if c.Curated.Password == "" {
			c.Curated.Password = c.FastCache.Password
		}
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "gemini-embedding-001"
	}

	if c.Embedding.CacheTTLHour == 0 {
		c.Embedding.CacheTTLHour = 7 * 24
	}

	if c.Generator.Provider == "" {
		c.Generator.Provider = ProviderOpenAI
	}
	if c.Generator.Provider == ProviderOpenAI && c.Generator.BaseURL == "" {
		c.Generator.BaseURL = c.Embedding.BaseURL
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.5-flash"
	}

	d := domain.DefaultPolicy()
	p := &c.Pipeline
	if p.GoldThreshold == 0 && p.PriorThreshold == 0 && p.ContextThreshold == 0 {
		p.GoldThreshold, p.PriorThreshold, p.ContextThreshold = d.GoldThreshold, d.PriorThreshold, d.ContextThreshold
	}
	if p.CuratedTopK <= 0 {
		p.CuratedTopK = d.CuratedTopK
	}
	if p.CacheTTLSec <= 0 {
		p.CacheTTLSec = int(d.CacheTTL / time.Second)
	}
	if p.BatchWorkers <= 0 {
		p.BatchWorkers = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.FastCache.Driver {
	case DriverRedis, DriverValkey:
		if len(c.FastCache.Addrs) == 0 {
			return fmt.Errorf("fast_cache.addrs is required for driver %q", c.FastCache.Driver)
		}
	case DriverBadger, DriverNone:
	default:
		return fmt.Errorf("fast_cache.driver must be redis, valkey, badger or none, got %q", c.FastCache.Driver)
	}

	if c.Durable.Driver != DriverSQLite {
		return fmt.Errorf("durable.driver must be sqlite, got %q", c.Durable.Driver)
	}

	switch c.Curated.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Curated.Addrs) == 0 {
			return fmt.Errorf("curated.addrs is required for driver %q", c.Curated.Driver)
		}
	case DriverSQLite, DriverNone:
	default:
		return fmt.Errorf("curated.driver must be redis, valkey, sqlite or none, got %q", c.Curated.Driver)
	}

	if c.Embedding.APIKey == "" {
		return errors.New("embedding.api_key is required")
	}

	switch c.Generator.Provider {
	case ProviderOpenAI:
		if c.Generator.APIKey == "" {
			return errors.New("generator.api_key is required for provider \"openai\"")
		}
	case ProviderLangChain:
		if c.Generator.BaseURL == "" {
			return errors.New("generator.base_url is required for provider \"langchain\"")
		}
	default:
		return fmt.Errorf("generator.provider must be openai or langchain, got %q", c.Generator.Provider)
	}

	if err := c.Pipeline.Policy().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func isRedisFamily(driver string) bool {
	return driver == DriverRedis || driver == DriverValkey
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
