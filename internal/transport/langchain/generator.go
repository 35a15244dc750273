// Package langchain adapts langchaingo chat models, typically local OpenAI-compatible servers,
// to the answer generator contract.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/metrics"
)

const provider = "langchain"

// Config holds the langchaingo client settings.
type Config struct {
	BaseURL     string
	APIKey      string // local servers accept any token
	Model       string
	Temperature float64
	Logger      *zap.Logger
}

// Generator implements domain.Generator on a langchaingo llms.Model.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	logger      *zap.Logger
}

// New creates a generator backed by langchaingo's OpenAI-compatible client.
func New(cfg *Config) (*Generator, error) {
	if cfg.Model == "" {
		return nil, errors.New("langchain model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{openai.WithToken(token), openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return NewWithModel(client, cfg.Model, cfg.Temperature, cfg.Logger), nil
}

// NewWithModel wraps an existing llms.Model.
func NewWithModel(client llms.Model, model string, temperature float64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, model: model, temperature: temperature, logger: logger}
}

// Model returns the configured model id.
func (g *Generator) Model() string {
	return g.model
}

// Complete sends prompt as one human message and returns the first choice.
func (g *Generator) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	start := time.Now()
	resp, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	metrics.GeneratorRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		if isRateLimited(err) {
			metrics.GeneratorRequestsTotal.WithLabelValues(provider, "rate_limited").Inc()
			return domain.Completion{}, fmt.Errorf("langchain generate: %v: %w", err, domain.ErrRateLimited)
		}
		metrics.GeneratorRequestsTotal.WithLabelValues(provider, "error").Inc()
		return domain.Completion{}, fmt.Errorf("langchain generate: %v: %w", err, domain.ErrGenerationFailed)
	}
	metrics.GeneratorRequestsTotal.WithLabelValues(provider, "success").Inc()

	if len(resp.Choices) == 0 {
		g.logger.Debug("no choices returned from model", zap.String("model", g.model))
		return domain.Completion{Model: g.model}, nil
	}
	return domain.Completion{Text: resp.Choices[0].Content, Model: g.model}, nil
}

// langchaingo surfaces the provider status only in the error text.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status code: 429") || strings.Contains(msg, "rate limit")
}
