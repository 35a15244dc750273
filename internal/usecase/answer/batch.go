package answer

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/qacache/internal/domain/resolution"
)

// DefaultBatchWorkers bounds ResolveBatch concurrency when workers <= 0.
const DefaultBatchWorkers = 4

// BatchResult is the outcome for one question of a batch, in input order.
type BatchResult struct {
	Question   string
	Resolution resolution.Resolution
	Err        error
}

// ResolveBatch resolves questions on a bounded worker pool.
// Per-question failures are reported in the result; the returned error is only for pool setup.
func (s *Service) ResolveBatch(ctx context.Context, questions []string, workers int) ([]BatchResult, error) {
	results := make([]BatchResult, len(questions))
	if len(questions) == 0 {
		return results, nil
	}
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	pool, err := ants.NewPool(min(workers, len(questions)))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, q := range questions {
		results[i].Question = q
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i].Resolution, results[i].Err = s.Resolve(ctx, q)
		}); err != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("submit: %w", err)
		}
	}
	wg.Wait()

	return results, nil
}
