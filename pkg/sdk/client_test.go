package qacache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
	answeruc "github.com/kailas-cloud/qacache/internal/usecase/answer"
	golduc "github.com/kailas-cloud/qacache/internal/usecase/gold"
	healthuc "github.com/kailas-cloud/qacache/internal/usecase/health"
)

func okGenerator(text string) *mockGenerator {
	return &mockGenerator{fn: func(_ context.Context, _ string) (string, error) { return text, nil }}
}

func TestNew_NoSQLite(t *testing.T) {
	_, err := New(context.Background(), WithEmbedder(&keywordEmbedder{}), WithGenerator(okGenerator("x")))
	if err == nil {
		t.Fatal("expected error when no durable store configured")
	}
}

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithSQLite(":memory:"), WithGenerator(okGenerator("x")))
	if err == nil {
		t.Fatal("expected error when no embedder configured")
	}
}

func TestNew_NoGenerator(t *testing.T) {
	_, err := New(context.Background(), WithSQLite(":memory:"), WithEmbedder(&keywordEmbedder{}))
	if err == nil {
		t.Fatal("expected error when no generator configured")
	}
}

func TestNew_OpenAIWithoutGenerationModel(t *testing.T) {
	_, err := New(context.Background(),
		WithSQLite(":memory:"),
		WithOpenAI(OpenAIConfig{APIKey: "k", EmbeddingModel: "m"}),
	)
	if err == nil {
		t.Fatal("expected error when OpenAI generation model is empty")
	}
}

func TestNew_CuratedRedisWithoutCache(t *testing.T) {
	_, err := New(context.Background(),
		WithSQLite(":memory:"),
		WithCurated(CuratedRedis),
		WithEmbedder(&keywordEmbedder{}),
		WithGenerator(okGenerator("x")),
	)
	if err == nil {
		t.Fatal("expected error for CuratedRedis without a Redis cache")
	}
}

func TestNew_UnknownCacheDriver(t *testing.T) {
	c := &Client{}
	_, _, err := c.openCache(context.Background(), &clientConfig{cacheDriver: "memcached"})
	if err == nil {
		t.Fatal("expected error for unknown cache driver")
	}
}

func TestNew_InvalidPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.GoldThreshold = 0.5 // below prior threshold
	_, err := New(context.Background(),
		WithSQLite(filepath.Join(t.TempDir(), "qa.db")),
		WithEmbedder(&keywordEmbedder{}),
		WithGenerator(okGenerator("x")),
		WithPolicy(p),
	)
	if err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	WithValkey("valkey:6379", "secret").apply(cfg)
	if cfg.cacheDriver != "valkey" || cfg.addrs[0] != "valkey:6379" || cfg.password != "secret" {
		t.Errorf("WithValkey: got driver=%q addrs=%v", cfg.cacheDriver, cfg.addrs)
	}
	WithRedis("redis:6379", "").apply(cfg)
	if cfg.cacheDriver != "redis" || cfg.addrs[0] != "redis:6379" {
		t.Errorf("WithRedis: got driver=%q addrs=%v", cfg.cacheDriver, cfg.addrs)
	}
	WithBadger("").apply(cfg)
	if cfg.cacheDriver != "badger" || cfg.badgerPath != "" {
		t.Errorf("WithBadger: got driver=%q path=%q", cfg.cacheDriver, cfg.badgerPath)
	}
	WithBatchWorkers(8).apply(cfg)
	if cfg.batchWorkers != 8 {
		t.Errorf("batchWorkers = %d, want 8", cfg.batchWorkers)
	}
	WithEmbeddingCache(time.Hour).apply(cfg)
	if cfg.embeddingCacheTTL != time.Hour {
		t.Errorf("embeddingCacheTTL = %v, want 1h", cfg.embeddingCacheTTL)
	}
	WithCurated(CuratedNone).apply(cfg)
	if cfg.curated != CuratedNone {
		t.Errorf("curated = %q, want none", cfg.curated)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{Embedding: []float32{1, 2, 3}, PromptTokens: 5, TotalTokens: 10}, nil
		},
	}

	adapter := newEmbedderAdapter(mock)
	if _, ok := adapter.(domain.BatchEmbedder); ok {
		t.Error("single embedder must not expose BatchEmbed")
	}
	result, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 10 {
		t.Errorf("got %+v", result)
	}
}

func TestEmbedderAdapter_Batch(t *testing.T) {
	mock := &mockBatchEmbedder{
		batchFn: func(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{float32(i)}
			}
			return BatchEmbeddingResult{Embeddings: out, TotalTokens: 7}, nil
		},
	}

	adapter := newEmbedderAdapter(mock)
	be, ok := adapter.(domain.BatchEmbedder)
	if !ok {
		t.Fatal("batch embedder must expose BatchEmbed")
	}
	res, err := be.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 7 {
		t.Errorf("got %+v", res)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}
	_, err := newEmbedderAdapter(mock).Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestGeneratorAdapter_Model(t *testing.T) {
	plain := &generatorAdapter{inner: okGenerator("a")}
	if got := plain.Model(); got != "custom" {
		t.Errorf("Model() = %q, want custom", got)
	}

	named := &generatorAdapter{inner: &namedGenerator{
		mockGenerator: mockGenerator{fn: func(_ context.Context, _ string) (string, error) { return "a", nil }},
		model:         "m-1",
	}}
	c, err := named.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Model != "m-1" || c.Text != "a" {
		t.Errorf("got %+v", c)
	}
}

func TestGeneratorAdapter_RateLimitedPassesThrough(t *testing.T) {
	g := &generatorAdapter{inner: &mockGenerator{fn: func(_ context.Context, _ string) (string, error) {
		return "", ErrRateLimited
	}}}
	_, err := g.Complete(context.Background(), "p")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestAsk_MapsResolution(t *testing.T) {
	c := testClient(&mockAnswerUC{
		resolveFn: func(_ context.Context, q string) (resolution.Resolution, error) {
			if q != "Hi?" {
				t.Errorf("question = %q", q)
			}
			return resolution.NewWithSimilarity("hello", resolution.CuratedMatch, 0.9), nil
		},
	}, nil, nil)

	ans, err := c.Ask(context.Background(), "Hi?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "hello" || ans.Source != SourceCuratedMatch {
		t.Errorf("got %+v", ans)
	}
	if ans.Similarity == nil || *ans.Similarity != 0.9 {
		t.Errorf("similarity = %v, want 0.9", ans.Similarity)
	}
}

func TestAsk_Error(t *testing.T) {
	c := testClient(&mockAnswerUC{
		resolveFn: func(_ context.Context, _ string) (resolution.Resolution, error) {
			return resolution.Resolution{}, domain.ErrInvalidInput
		},
	}, nil, nil)

	_, err := c.Ask(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAskBatch(t *testing.T) {
	c := testClient(&mockAnswerUC{
		batchFn: func(_ context.Context, qs []string, workers int) ([]answeruc.BatchResult, error) {
			if workers != defaultBatchWorkers {
				t.Errorf("workers = %d", workers)
			}
			return []answeruc.BatchResult{
				{Question: qs[0], Resolution: resolution.New("a", resolution.AI)},
				{Question: qs[1], Err: domain.ErrRateLimited},
			}, nil
		},
	}, nil, nil)

	out, err := c.AskBatch(context.Background(), []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Answer.Text != "a" || out[0].Answer.Source != SourceAI || out[0].Err != nil {
		t.Errorf("out[0] = %+v", out[0])
	}
	if !errors.Is(out[1].Err, ErrRateLimited) || out[1].Answer.Text != "" {
		t.Errorf("out[1] = %+v", out[1])
	}
}

func TestSeedGold_Disabled(t *testing.T) {
	c := testClient(nil, nil, nil)
	if _, err := c.SeedGold(context.Background(), []GoldItem{{ID: "a"}}); err == nil {
		t.Fatal("expected error when curated index is disabled")
	}
}

func TestSeedGold_MapsReport(t *testing.T) {
	c := testClient(nil, &mockGoldUC{
		seedFn: func(_ context.Context, items []golduc.Item, _ int) (golduc.Report, error) {
			if len(items) != 2 || items[1].Answer != "A2" {
				t.Errorf("items = %+v", items)
			}
			return golduc.Report{
				Results: []golduc.EntryResult{{ID: "1"}, {ID: "2", Err: domain.ErrInvalidInput}},
				Seeded:  1,
				Failed:  1,
			}, nil
		},
	}, nil)

	rep, err := c.SeedGold(context.Background(), []GoldItem{
		{ID: "1", Question: "Q1", Answer: "A1"},
		{ID: "2", Question: "Q2", Answer: "A2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Seeded != 1 || rep.Failed != 1 || len(rep.Results) != 2 {
		t.Errorf("report = %+v", rep)
	}
	if !errors.Is(rep.Results[1].Err, ErrInvalidInput) {
		t.Errorf("results[1].Err = %v", rep.Results[1].Err)
	}
}

func TestHealth(t *testing.T) {
	c := testClient(nil, nil, &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{
			healthuc.ComponentDatabase:  healthuc.CheckOK,
			healthuc.ComponentFastCache: healthuc.CheckError,
		},
	}})

	h := c.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if h.Checks["database"] != "ok" || h.Checks["fast_cache"] != "error" {
		t.Errorf("checks = %v", h.Checks)
	}
}

func TestClose_Idempotent(t *testing.T) {
	calls := 0
	c := &Client{closers: []func(){func() { calls++ }}}
	c.Close()
	c.Close()
	if calls != 1 {
		t.Errorf("closer called %d times, want 1", calls)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	gen := okGenerator("Use the reset link on the login page.")

	c, err := New(ctx,
		WithSQLite(filepath.Join(t.TempDir(), "qa.db")),
		WithBadger(""),
		WithEmbedder(&keywordEmbedder{axes: []string{"refund"}}),
		WithGenerator(gen),
		WithEmbeddingCache(time.Hour),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	rep, err := c.SeedGold(ctx, []GoldItem{
		{ID: "refund", Question: "What is the refund policy?", Answer: "Refunds within 30 days."},
	})
	if err != nil {
		t.Fatalf("SeedGold: %v", err)
	}
	if rep.Seeded != 1 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}

	ans, err := c.Ask(ctx, "what is the REFUND policy?")
	if err != nil {
		t.Fatalf("Ask curated: %v", err)
	}
	if ans.Source != SourceCuratedMatch || ans.Text != "Refunds within 30 days." {
		t.Errorf("curated answer = %+v", ans)
	}

	ans, err = c.Ask(ctx, "How do I reset my password?")
	if err != nil {
		t.Fatalf("Ask generated: %v", err)
	}
	if ans.Source != SourceAI || ans.Text != "Use the reset link on the login page." {
		t.Errorf("generated answer = %+v", ans)
	}

	ans, err = c.Ask(ctx, "  how do I reset my   password? ")
	if err != nil {
		t.Fatalf("Ask cached: %v", err)
	}
	if ans.Source != SourceFastCache {
		t.Errorf("repeat source = %q, want fast-cache", ans.Source)
	}

	// Same axis vector as the generated question, different fingerprint.
	ans, err = c.Ask(ctx, "I forgot my password")
	if err != nil {
		t.Fatalf("Ask prior: %v", err)
	}
	if ans.Source != SourcePriorMatch || ans.Text != "Use the reset link on the login page." {
		t.Errorf("prior answer = %+v", ans)
	}

	if gen.calls() != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls())
	}

	h := c.Health(ctx)
	if h.Status != "ok" {
		t.Errorf("health = %+v", h)
	}
}

func TestClient_ConcurrentFirstAsks(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "qa.db")
	topics := []string{"alpha", "bravo", "charlie", "delta"}
	gen := &mockGenerator{fn: func(_ context.Context, prompt string) (string, error) {
		return "answer for " + prompt, nil
	}}

	c, err := New(ctx,
		WithSQLite(dsn),
		WithBadger(""),
		WithCurated(CuratedNone),
		WithEmbedder(&keywordEmbedder{axes: topics}),
		WithGenerator(gen),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const perTopic = 4
	var wg sync.WaitGroup
	errs := make(chan error, len(topics)*perTopic)
	for _, topic := range topics {
		for range perTopic {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ans, err := c.Ask(ctx, fmt.Sprintf("tell me about %s", topic))
				if err != nil {
					errs <- err
					return
				}
				if ans.Text == "" {
					errs <- fmt.Errorf("%s: empty answer from %s", topic, ans.Source)
				}
			}()
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("concurrent asks did not finish")
	}
	close(errs)
	for err := range errs {
		t.Errorf("Ask: %v", err)
	}
	c.Close()

	d, err := sqlite.Open(ctx, sqlite.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()

	var questions, unanswered int
	if err := d.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&questions); err != nil {
		t.Fatalf("count questions: %v", err)
	}
	if questions == 0 {
		t.Fatal("no questions stored")
	}
	err = d.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions q
		WHERE NOT EXISTS (SELECT 1 FROM ai_answers a WHERE a.question_id = q.id AND a.draft_text <> '')`).
		Scan(&unanswered)
	if err != nil {
		t.Fatalf("count unanswered: %v", err)
	}
	if unanswered != 0 {
		t.Errorf("%d of %d stored questions have no answer", unanswered, questions)
	}
}
