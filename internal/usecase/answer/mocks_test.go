package answer

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/qacache/internal/domain"
	domanswer "github.com/kailas-cloud/qacache/internal/domain/answer"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
)

type cacheSet struct {
	fingerprint string
	answer      string
	ttl         time.Duration
}

type mockFastCache struct {
	mu    sync.Mutex
	getFn func(ctx context.Context, fp string) (string, error)
	setFn func(ctx context.Context, fp, answer string, ttl time.Duration) error
	sets  []cacheSet
}

func (m *mockFastCache) Get(ctx context.Context, fp string) (string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, fp)
	}
	return "", domain.ErrNotFound
}

func (m *mockFastCache) Set(ctx context.Context, fp, answer string, ttl time.Duration) error {
	m.mu.Lock()
	m.sets = append(m.sets, cacheSet{fp, answer, ttl})
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, fp, answer, ttl)
	}
	return nil
}

type mockStore struct {
	mu                  sync.Mutex
	findByFingerprintFn func(ctx context.Context, fp string) (domquestion.Question, error)
	findAnswerFn        func(ctx context.Context, questionID int64) (domanswer.Answer, error)
	insertQuestionFn    func(ctx context.Context, q domquestion.Question) (domquestion.Question, error)
	insertAnswerFn      func(ctx context.Context, a domanswer.Answer) (domanswer.Answer, error)

	questions []domquestion.Question
	answers   []domanswer.Answer
}

func (m *mockStore) FindByFingerprint(ctx context.Context, fp string) (domquestion.Question, error) {
	if m.findByFingerprintFn != nil {
		return m.findByFingerprintFn(ctx, fp)
	}
	return domquestion.Question{}, domain.ErrNotFound
}

func (m *mockStore) FindAnswer(ctx context.Context, questionID int64) (domanswer.Answer, error) {
	if m.findAnswerFn != nil {
		return m.findAnswerFn(ctx, questionID)
	}
	return domanswer.Answer{}, domain.ErrNotFound
}

func (m *mockStore) InsertQuestion(ctx context.Context, q domquestion.Question) (domquestion.Question, error) {
	if m.insertQuestionFn != nil {
		return m.insertQuestionFn(ctx, q)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := domquestion.Reconstruct(int64(len(m.questions)+1), q.Text(), q.Fingerprint(), q.Embedding(), q.CreatedAt())
	m.questions = append(m.questions, stored)
	return stored, nil
}

func (m *mockStore) InsertAnswer(ctx context.Context, a domanswer.Answer) (domanswer.Answer, error) {
	if m.insertAnswerFn != nil {
		return m.insertAnswerFn(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, a)
	return a, nil
}

type mockCurated struct {
	mu       sync.Mutex
	calls    int
	searchFn func(ctx context.Context, vec []float32, threshold float64, k int) ([]candidate.Candidate, error)
}

func (m *mockCurated) SearchCurated(
	ctx context.Context, vec []float32, threshold float64, k int,
) ([]candidate.Candidate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, vec, threshold, k)
	}
	return nil, nil
}

type mockPrior struct {
	mu       sync.Mutex
	calls    int
	searchFn func(ctx context.Context, vec []float32, threshold float64, k int) ([]candidate.Candidate, error)
}

func (m *mockPrior) SearchPriorAnswers(
	ctx context.Context, vec []float32, threshold float64, k int,
) ([]candidate.Candidate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, vec, threshold, k)
	}
	return nil, nil
}

type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

type mockGenerator struct {
	mu         sync.Mutex
	prompts    []string
	completeFn func(ctx context.Context, prompt string) (domain.Completion, error)
}

func (m *mockGenerator) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return domain.Completion{Text: "generated: " + prompt, Model: "test-model"}, nil
}

func (m *mockGenerator) Model() string { return "test-model" }

type mockObserver struct {
	mu       sync.Mutex
	resolved []resolution.Source
	degraded []string
}

func (m *mockObserver) Resolved(source resolution.Source, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, source)
}

func (m *mockObserver) Degraded(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = append(m.degraded, tier)
}

type fixture struct {
	cache    *mockFastCache
	store    *mockStore
	curated  *mockCurated
	prior    *mockPrior
	embedder *mockEmbedder
	gen      *mockGenerator
	observer *mockObserver
}

func newFixture() *fixture {
	return &fixture{
		cache:    &mockFastCache{},
		store:    &mockStore{},
		curated:  &mockCurated{},
		prior:    &mockPrior{},
		embedder: &mockEmbedder{},
		gen:      &mockGenerator{},
		observer: &mockObserver{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		FastCache: f.cache,
		Store:     f.store,
		Curated:   f.curated,
		Prior:     f.prior,
		Embedder:  f.embedder,
		Generator: f.gen,
	}
}

func curatedReturning(cs ...candidate.Candidate) func(context.Context, []float32, float64, int) ([]candidate.Candidate, error) {
	return func(context.Context, []float32, float64, int) ([]candidate.Candidate, error) {
		return cs, nil
	}
}
