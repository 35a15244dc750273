package question

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain"
	domanswer "github.com/kailas-cloud/qacache/internal/domain/answer"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	d, err := sqlite.Open(context.Background(), sqlite.Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return New(d)
}

func mustQuestion(t *testing.T, raw string, vec []float32) domquestion.Question {
	t.Helper()
	q, err := domquestion.New(raw, vec)
	if err != nil {
		t.Fatalf("new question: %v", err)
	}
	return q
}

func insertPair(t *testing.T, r *Repo, raw string, vec []float32, text string) domquestion.Question {
	t.Helper()
	ctx := context.Background()
	q, err := r.InsertQuestion(ctx, mustQuestion(t, raw, vec))
	if err != nil {
		t.Fatalf("insert question: %v", err)
	}
	a, err := domanswer.NewGenerated(q.ID(), text, "test-model")
	if err != nil {
		t.Fatalf("new answer: %v", err)
	}
	if _, err := r.InsertAnswer(ctx, a); err != nil {
		t.Fatalf("insert answer: %v", err)
	}
	return q
}

func TestInsertAndFind_RoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	stored := insertPair(t, r, "  What IS   Go? ", []float32{0.1, 0.2, 0.3}, "A language.")
	if stored.ID() == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := r.FindByFingerprint(ctx, domquestion.Fingerprint("what is go?"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID() != stored.ID() || got.Text() != "what is go?" {
		t.Errorf("unexpected question: id=%d text=%q", got.ID(), got.Text())
	}
	if emb := got.Embedding(); len(emb) != 3 || emb[2] != 0.3 {
		t.Errorf("embedding not round-tripped: %v", emb)
	}
	if got.CreatedAt().UnixMilli() != stored.CreatedAt().UnixMilli() {
		t.Errorf("created_at mismatch")
	}

	a, err := r.FindAnswer(ctx, got.ID())
	if err != nil {
		t.Fatalf("find answer: %v", err)
	}
	if a.Text() != "A language." || a.ProducedBy() != domanswer.Generated || a.ModelID() != "test-model" {
		t.Errorf("unexpected answer: %+v", a)
	}
}

func TestFindByFingerprint_NotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.FindByFingerprint(context.Background(), domquestion.Fingerprint("nothing"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindAnswer_NotFound(t *testing.T) {
	r := newTestRepo(t)
	q, err := r.InsertQuestion(context.Background(), mustQuestion(t, "orphan", nil))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = r.FindAnswer(context.Background(), q.ID())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertQuestion_EmptyEmbeddingStoredAsNull(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.InsertQuestion(ctx, mustQuestion(t, "no vector", nil)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.FindByFingerprint(ctx, domquestion.Fingerprint("no vector"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.HasEmbedding() {
		t.Errorf("expected no embedding, got %v", got.Embedding())
	}
}

func TestDuplicates_BothPersist(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	first := insertPair(t, r, "dup", []float32{1, 0}, "first")
	second := insertPair(t, r, "dup", []float32{1, 0}, "second")
	if first.ID() == second.ID() {
		t.Fatal("duplicate inserts must get distinct ids")
	}

	got, err := r.FindByFingerprint(ctx, domquestion.Fingerprint("dup"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID() != first.ID() {
		t.Errorf("expected earliest question %d, got %d", first.ID(), got.ID())
	}
}

func TestFindByFingerprint_PrefersAnswered(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.InsertQuestion(ctx, mustQuestion(t, "half", nil)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	answered := insertPair(t, r, "half", []float32{1}, "done")

	got, err := r.FindByFingerprint(ctx, domquestion.Fingerprint("half"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID() != answered.ID() {
		t.Errorf("expected answered question %d, got %d", answered.ID(), got.ID())
	}
}

func TestFindAnswer_EarliestWins(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	q := insertPair(t, r, "twice answered", []float32{1}, "first")
	a, _ := domanswer.NewGenerated(q.ID(), "second", "m")
	if _, err := r.InsertAnswer(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := r.FindAnswer(ctx, q.ID())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Text() != "first" {
		t.Errorf("got %q, want first", got.Text())
	}
}

func TestInsertAnswer_UnknownQuestion(t *testing.T) {
	r := newTestRepo(t)
	a, _ := domanswer.NewGenerated(999, "text", "m")
	if _, err := r.InsertAnswer(context.Background(), a); err == nil {
		t.Fatal("expected foreign key violation")
	}
}
