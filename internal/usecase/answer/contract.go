package answer

import (
	"context"
	"time"

	"github.com/kailas-cloud/qacache/internal/domain"
	domanswer "github.com/kailas-cloud/qacache/internal/domain/answer"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
	"github.com/kailas-cloud/qacache/internal/domain/resolution"
)

// FastCache is the fingerprint-keyed answer cache. Misses are domain.ErrNotFound.
type FastCache interface {
	Get(ctx context.Context, fingerprint string) (string, error)
	Set(ctx context.Context, fingerprint, answer string, ttl time.Duration) error
}

// QuestionStore is the durable store of questions and their answers.
type QuestionStore interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (domquestion.Question, error)
	FindAnswer(ctx context.Context, questionID int64) (domanswer.Answer, error)
	InsertQuestion(ctx context.Context, q domquestion.Question) (domquestion.Question, error)
	InsertAnswer(ctx context.Context, a domanswer.Answer) (domanswer.Answer, error)
}

// CuratedSearcher finds gold entries similar to a question vector.
type CuratedSearcher interface {
	SearchCurated(ctx context.Context, vec []float32, threshold float64, k int) ([]candidate.Candidate, error)
}

// PriorAnswerSearcher finds previously answered questions similar to a question vector.
type PriorAnswerSearcher interface {
	SearchPriorAnswers(ctx context.Context, vec []float32, threshold float64, k int) ([]candidate.Candidate, error)
}

// Embedder vectorizes question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Generator produces free-text answers.
type Generator interface {
	Complete(ctx context.Context, prompt string) (domain.Completion, error)
	Model() string
}

// Observer receives pipeline outcomes for metrics.
type Observer interface {
	Resolved(source resolution.Source, d time.Duration)
	Degraded(tier string)
}

// Tier names reported to Observer.Degraded.
const (
	TierFastCache    = "fast_cache"
	TierDurableStore = "durable_store"
	TierEmbedding    = "embedding"
	TierCurated      = "curated_index"
	TierPrior        = "prior_index"
)

type nopObserver struct{}

func (nopObserver) Resolved(resolution.Source, time.Duration) {}
func (nopObserver) Degraded(string)                           {}
