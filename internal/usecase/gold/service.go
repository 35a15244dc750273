// Package gold loads the curated corpus: validate, embed, index, upsert.
package gold

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	domgold "github.com/kailas-cloud/qacache/internal/domain/gold"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
)

const (
	// DefaultChunkSize is the number of entries embedded and upserted together.
	DefaultChunkSize = 32
	// DefaultWorkers bounds concurrent embedding chunks when workers <= 0.
	DefaultWorkers = 4
)

// Item is one raw curated pair as read from a corpus file.
type Item struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// EntryResult is the seeding outcome of one item, in input order.
type EntryResult struct {
	ID  string
	Err error
}

// Report summarizes a seeding run.
type Report struct {
	Results []EntryResult
	Seeded  int
	Failed  int
}

// Service seeds the curated corpus.
type Service struct {
	embed     Embedder
	repo      Repository
	chunkSize int
	logger    *zap.Logger
}

// New creates a seeder.
func New(embed Embedder, repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, repo: repo, chunkSize: DefaultChunkSize, logger: logger}
}

// WithChunkSize overrides DefaultChunkSize.
func (s *Service) WithChunkSize(n int) *Service {
	if n > 0 {
		s.chunkSize = n
	}
	return s
}

type chunk struct {
	idx     []int
	entries []domgold.Entry
	err     error
}

// Seed validates, embeds and upserts items. Failures are reported per item;
// the error is returned only when the worker pool or the index cannot be set up.
func (s *Service) Seed(ctx context.Context, items []Item, workers int) (Report, error) {
	results := make([]EntryResult, len(items))
	for i, it := range items {
		results[i].ID = it.ID
	}

	chunks := s.validate(items, results)
	if len(chunks) == 0 {
		return summarize(results), nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	pool, err := ants.NewPool(min(workers, len(chunks)))
	if err != nil {
		return Report{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, c := range chunks {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			c.err = s.embedChunk(ctx, c)
		}); err != nil {
			wg.Done()
			c.err = fmt.Errorf("submit: %w", err)
		}
	}
	wg.Wait()

	dim := 0
	for _, c := range chunks {
		if c.err == nil && len(c.entries) > 0 {
			dim = len(c.entries[0].Embedding())
			break
		}
	}
	if dim > 0 {
		if err := s.repo.EnsureIndex(ctx, dim); err != nil {
			return Report{}, fmt.Errorf("ensure curated index: %w", err)
		}
	}

	for _, c := range chunks {
		if c.err == nil {
			c.err = s.repo.Upsert(ctx, c.entries)
		}
		for _, i := range c.idx {
			results[i].Err = c.err
		}
	}

	rep := summarize(results)
	s.logger.Info("Gold corpus seeded",
		zap.Int("items", len(items)),
		zap.Int("seeded", rep.Seeded),
		zap.Int("failed", rep.Failed),
		zap.Int("dimensions", dim),
	)
	return rep, nil
}

func (s *Service) validate(items []Item, results []EntryResult) []*chunk {
	var chunks []*chunk
	cur := &chunk{}
	seen := make(map[string]int, len(items))

	for i, it := range items {
		e, err := domgold.New(it.ID, it.Question, it.Answer)
		if err != nil {
			results[i].Err = fmt.Errorf("item %d: %w", i, err)
			continue
		}
		if prev, dup := seen[it.ID]; dup {
			results[i].Err = fmt.Errorf("item %d: duplicate id %q (first at %d)", i, it.ID, prev)
			continue
		}
		seen[it.ID] = i

		cur.idx = append(cur.idx, i)
		cur.entries = append(cur.entries, e)
		if len(cur.entries) == s.chunkSize {
			chunks = append(chunks, cur)
			cur = &chunk{}
		}
	}
	if len(cur.entries) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func (s *Service) embedChunk(ctx context.Context, c *chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Embed the same normalized text the resolution pipeline embeds.
	texts := make([]string, len(c.entries))
	for i, e := range c.entries {
		texts[i] = domquestion.Normalize(e.Question())
	}

	res, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return errors.New("embed: embedding count does not match entry count")
	}
	for i, vec := range res.Embeddings {
		if len(vec) == 0 {
			return fmt.Errorf("embed %s: empty vector", c.entries[i].ID())
		}
		c.entries[i] = c.entries[i].WithEmbedding(vec)
	}
	return nil
}

func summarize(results []EntryResult) Report {
	rep := Report{Results: results}
	for _, r := range results {
		if r.Err != nil {
			rep.Failed++
		} else {
			rep.Seeded++
		}
	}
	return rep
}
