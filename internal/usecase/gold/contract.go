package gold

import (
	"context"

	"github.com/kailas-cloud/qacache/internal/domain"
	domgold "github.com/kailas-cloud/qacache/internal/domain/gold"
)

// Embedder vectorizes many texts per call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Repository stores the curated corpus.
type Repository interface {
	EnsureIndex(ctx context.Context, dim int) error
	Upsert(ctx context.Context, entries []domgold.Entry) error
}
