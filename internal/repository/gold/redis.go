// Package gold searches and loads the curated question/answer corpus.
package gold

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
	domgold "github.com/kailas-cloud/qacache/internal/domain/gold"
)

const (
	// IndexName is the FT index over curated hashes.
	IndexName = "qa:gold:idx"
	keyPrefix = "qa:gold:"

	fieldQuestion = "question"
	fieldAnswer   = "final_answer"
	fieldVector   = "vector"

	hnswM           = 16
	hnswEFConstruct = 200
)

// redisStore is the consumer interface for the FT-backed corpus (ISP).
type redisStore interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// RedisRepo keeps curated entries as hashes under qa:gold:<id> indexed for KNN.
type RedisRepo struct {
	store redisStore
}

// NewRedis creates a Redis-family curated repository.
func NewRedis(s redisStore) *RedisRepo {
	return &RedisRepo{store: s}
}

// EnsureIndex creates the KNN index for vectors of dim when it is missing.
func (r *RedisRepo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("probe %s: %w", IndexName, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(IndexName).
		Prefix(keyPrefix).
		Text(fieldQuestion).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnswM, hnswEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build %s: %w", IndexName, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create %s: %w", IndexName, err)
	}
	return nil
}

// Ping probes the index. A missing index is an empty corpus, not a failure.
func (r *RedisRepo) Ping(ctx context.Context) error {
	if _, err := r.store.IndexExists(ctx, IndexName); err != nil {
		return fmt.Errorf("probe %s: %w", IndexName, err)
	}
	return nil
}

// Upsert writes embedded entries in one pipelined round-trip.
func (r *RedisRepo) Upsert(ctx context.Context, entries []domgold.Entry) error {
	items := make([]db.HashSetItem, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding()) == 0 {
			return fmt.Errorf("gold %s: embedding is required", e.ID())
		}
		items = append(items, db.HashSetItem{
			Key: keyPrefix + e.ID(),
			Fields: map[string]string{
				fieldQuestion: e.Question(),
				fieldAnswer:   e.Answer(),
				fieldVector:   vectorToBytes(e.Embedding()),
			},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d gold entries: %w", len(items), err)
	}
	return nil
}

// SearchCurated returns up to k curated answers with similarity >= threshold, best first.
// A missing index means an unseeded corpus and yields no candidates.
func (r *RedisRepo) SearchCurated(
	ctx context.Context, vec []float32, threshold float64, k int,
) ([]candidate.Candidate, error) {
	if len(vec) == 0 || k <= 0 {
		return nil, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  fieldVector,
		Vector:       vec,
		K:            k,
		ReturnFields: []string{fieldAnswer},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s: %w", IndexName, err)
	}

	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score < threshold {
			continue
		}
		text, ok := e.Fields[fieldAnswer]
		if !ok {
			continue
		}
		out = append(out, candidate.New(e.Score, text, strings.TrimPrefix(e.Key, keyPrefix)))
	}
	return candidate.Ranked(out), nil
}
