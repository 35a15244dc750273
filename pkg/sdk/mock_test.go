package qacache

import (
	"context"
	"strings"
	"sync"

	"github.com/kailas-cloud/qacache/internal/domain/resolution"
	answeruc "github.com/kailas-cloud/qacache/internal/usecase/answer"
	golduc "github.com/kailas-cloud/qacache/internal/usecase/gold"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
)

// --- answerUseCase mock ---

type mockAnswerUC struct {
	resolveFn func(ctx context.Context, q string) (resolution.Resolution, error)
	batchFn   func(ctx context.Context, qs []string, workers int) ([]answeruc.BatchResult, error)
}

func (m *mockAnswerUC) Resolve(ctx context.Context, q string) (resolution.Resolution, error) {
	return m.resolveFn(ctx, q)
}

func (m *mockAnswerUC) ResolveBatch(ctx context.Context, qs []string, workers int) ([]answeruc.BatchResult, error) {
	return m.batchFn(ctx, qs, workers)
}

// --- goldUseCase mock ---

type mockGoldUC struct {
	seedFn func(ctx context.Context, items []golduc.Item, workers int) (golduc.Report, error)
}

func (m *mockGoldUC) Seed(ctx context.Context, items []golduc.Item, workers int) (golduc.Report, error) {
	return m.seedFn(ctx, items, workers)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- public provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockGenerator struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.fn(ctx, prompt)
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type namedGenerator struct {
	mockGenerator
	model string
}

func (g *namedGenerator) Model() string { return g.model }

// keywordEmbedder maps questions mentioning a keyword to fixed axis vectors.
type keywordEmbedder struct {
	axes []string
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	vec := make([]float32, len(e.axes)+1)
	lower := strings.ToLower(text)
	for i, kw := range e.axes {
		if strings.Contains(lower, kw) {
			vec[i] = 1
			return EmbeddingResult{Embedding: vec}, nil
		}
	}
	vec[len(e.axes)] = 1
	return EmbeddingResult{Embedding: vec}, nil
}

// --- helpers ---

func testClient(answer answerUseCase, gold goldUseCase, health healthUseCase) *Client {
	return &Client{
		answerSvc: answer,
		goldSvc:   gold,
		healthSvc: health,
		workers:   defaultBatchWorkers,
	}
}
