package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/metrics"
)

// Generator produces answers through the chat completions endpoint.
type Generator struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible answer generator.
func NewGenerator(cfg *Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   newClient(cfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// Model returns the configured model id recorded with generated answers.
func (g *Generator) Model() string {
	return g.model
}

// Complete sends prompt as a single user message. Empty output is returned as empty text,
// the caller decides on a fallback.
func (g *Generator) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	metrics.GeneratorRequestDuration.WithLabelValues(g.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		perr := parseAPIError("generation", err, domain.ErrGenerationFailed)
		status := "error"
		if errors.Is(perr, domain.ErrRateLimited) {
			status = "rate_limited"
		}
		metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, status).Inc()
		return domain.Completion{}, perr
	}
	metrics.GeneratorRequestsTotal.WithLabelValues(g.provider, "success").Inc()

	model := resp.Model
	if model == "" {
		model = g.model
	}
	if len(resp.Choices) == 0 {
		g.logger.Debug("Generator returned no choices", zap.String("model", model))
		return domain.Completion{Model: model}, nil
	}
	return domain.Completion{Text: resp.Choices[0].Message.Content, Model: model}, nil
}

// HealthCheck verifies API availability via ListModels.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
