package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/qacache/internal/config"
	qacache "github.com/kailas-cloud/qacache/pkg/sdk"
)

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

// openClient builds an SDK client from the service configuration.
func openClient(c *cli.Context, workers int) (*qacache.Client, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts, err := clientOptions(cfg, workers)
	if err != nil {
		return nil, err
	}
	opts = append(opts, qacache.WithLogger(slog.Default()))
	return qacache.New(c.Context, opts...)
}

// clientOptions maps the service configuration onto SDK options.
func clientOptions(cfg config.Config, workers int) ([]qacache.Option, error) {
	opts := []qacache.Option{
		qacache.WithSQLite(cfg.Durable.DSN),
		qacache.WithPolicy(cfg.Pipeline.Policy()),
	}

	if isRedisDriver(cfg.FastCache.Driver) && len(cfg.FastCache.Addrs) == 0 {
		return nil, fmt.Errorf("fast_cache.addrs is required for driver %q", cfg.FastCache.Driver)
	}
	switch cfg.FastCache.Driver {
	case config.DriverRedis:
		opts = append(opts, qacache.WithRedis(cfg.FastCache.Addrs[0], cfg.FastCache.Password))
	case config.DriverValkey:
		opts = append(opts, qacache.WithValkey(cfg.FastCache.Addrs[0], cfg.FastCache.Password))
	case config.DriverBadger:
		path := cfg.FastCache.Path
		if cfg.FastCache.InMemory {
			path = ""
		}
		opts = append(opts, qacache.WithBadger(path))
	case config.DriverNone:
	default:
		return nil, fmt.Errorf("unsupported fast_cache.driver %q", cfg.FastCache.Driver)
	}

	switch cfg.Curated.Driver {
	case config.DriverSQLite:
		opts = append(opts, qacache.WithCurated(qacache.CuratedSQLite))
	case config.DriverRedis, config.DriverValkey:
		if cfg.FastCache.Driver != cfg.Curated.Driver {
			return nil, fmt.Errorf("curated.driver %q must match fast_cache.driver, got %q",
				cfg.Curated.Driver, cfg.FastCache.Driver)
		}
		opts = append(opts, qacache.WithCurated(qacache.CuratedRedis))
	case config.DriverNone:
		opts = append(opts, qacache.WithCurated(qacache.CuratedNone))
	default:
		return nil, fmt.Errorf("unsupported curated.driver %q", cfg.Curated.Driver)
	}

	opts = append(opts, qacache.WithOpenAI(qacache.OpenAIConfig{
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		EmbeddingModel: cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
	}))
	if cfg.Embedding.CacheTTLHour > 0 {
		opts = append(opts, qacache.WithEmbeddingCache(time.Duration(cfg.Embedding.CacheTTLHour)*time.Hour))
	}

	switch cfg.Generator.Provider {
	case config.ProviderOpenAI:
		opts = append(opts, qacache.WithOpenAIGenerator(qacache.OpenAIConfig{
			APIKey:          cfg.Generator.APIKey,
			BaseURL:         cfg.Generator.BaseURL,
			GenerationModel: cfg.Generator.Model,
		}))
	case config.ProviderLangChain:
		opts = append(opts, qacache.WithLangChain(qacache.LangChainConfig{
			BaseURL:     cfg.Generator.BaseURL,
			APIKey:      cfg.Generator.APIKey,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
		}))
	default:
		return nil, fmt.Errorf("unsupported generator.provider %q", cfg.Generator.Provider)
	}

	if workers <= 0 {
		workers = cfg.Pipeline.BatchWorkers
	}
	opts = append(opts, qacache.WithBatchWorkers(workers))
	return opts, nil
}

func isRedisDriver(d string) bool {
	return d == config.DriverRedis || d == config.DriverValkey
}

type askOutput struct {
	Answer     string   `json:"answer"`
	Source     string   `json:"source"`
	Similarity *float64 `json:"similarity,omitempty"`
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("question argument is required")
	}

	client, err := openClient(c, 0)
	if err != nil {
		return err
	}
	defer client.Close()

	ans, err := client.Ask(c.Context, question)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(askOutput{Answer: ans.Text, Source: string(ans.Source), Similarity: ans.Similarity})
	}
	_, err = fmt.Fprintf(c.App.Writer, "[%s] %s\n", ans.Source, ans.Text)
	return err
}

func warmCommand(c *cli.Context) error {
	questions, err := loadQuestions(c.String("file"))
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return errors.New("no questions in file")
	}

	client, err := openClient(c, c.Int("workers"))
	if err != nil {
		return err
	}
	defer client.Close()

	start := time.Now()
	results, err := client.AskBatch(c.Context, questions)
	if err != nil {
		return err
	}

	bySource := make(map[string]int)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			slog.Warn("question failed", "question", r.Question, "error", r.Err)
			continue
		}
		bySource[string(r.Answer.Source)]++
	}

	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Fprintf(c.App.Writer, "%-14s %d\n", s, bySource[s])
	}
	fmt.Fprintf(c.App.Writer, "%-14s %d\n", "failed", failed)
	slog.Info("warm complete", "questions", len(questions), "failed", failed, "duration", time.Since(start))

	if failed == len(questions) {
		return fmt.Errorf("all %d questions failed", failed)
	}
	return nil
}

func goldSeedCommand(c *cli.Context) error {
	items, err := loadGoldItems(c.String("file"))
	if err != nil {
		return err
	}

	client, err := openClient(c, c.Int("workers"))
	if err != nil {
		return err
	}
	defer client.Close()

	rep, err := client.SeedGold(c.Context, items)
	if err != nil {
		return err
	}
	for _, r := range rep.Results {
		if r.Err != nil {
			slog.Warn("gold entry failed", "id", r.ID, "error", r.Err)
		}
	}
	fmt.Fprintf(c.App.Writer, "seeded %d, failed %d\n", rep.Seeded, rep.Failed)
	if rep.Seeded == 0 && rep.Failed > 0 {
		return errors.New("no entries seeded")
	}
	return nil
}

func healthCommand(c *cli.Context) error {
	client, err := openClient(c, 0)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	h := client.Health(ctx)
	names := make([]string, 0, len(h.Checks))
	for k := range h.Checks {
		names = append(names, k)
	}
	sort.Strings(names)

	fmt.Fprintf(c.App.Writer, "status: %s\n", h.Status)
	for _, k := range names {
		fmt.Fprintf(c.App.Writer, "  %-14s %s\n", k, h.Checks[k])
	}
	if h.Status == "error" {
		return errors.New("durable store unhealthy")
	}
	return nil
}

// loadQuestions reads one question per line.
func loadQuestions(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}

// loadGoldItems parses a YAML (or JSON) list of curated pairs.
func loadGoldItems(path string) ([]qacache.GoldItem, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read gold file: %w", err)
	}
	var items []qacache.GoldItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse gold file: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("gold file has no entries")
	}
	return items, nil
}
