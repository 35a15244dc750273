package question

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
)

// Each embedded question is paired with its earliest answer; questions without one are skipped.
const priorAnswersSQL = `
SELECT q.id, q.embedding, a.draft_text
FROM questions q
JOIN ai_answers a ON a.id = (
	SELECT MIN(id) FROM ai_answers WHERE question_id = q.id
)
WHERE q.embedding IS NOT NULL`

// SearchPriorAnswers scans stored question vectors for the k most similar at or above threshold.
// Vectors of another dimension are ignored. Ties keep insertion order.
func (r *Repo) SearchPriorAnswers(
	ctx context.Context, vec []float32, threshold float64, k int,
) ([]candidate.Candidate, error) {
	if len(vec) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := r.store.QueryContext(ctx, priorAnswersSQL)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var hits []candidate.Candidate
	for rows.Next() {
		var (
			id   int64
			blob []byte
			text string
		)
		if err := rows.Scan(&id, &blob, &text); err != nil {
			return nil, &db.Error{Op: db.OpQuery, Err: err}
		}
		stored, err := sqlite.DecodeEmbedding(blob)
		if err != nil {
			continue
		}
		score, ok := sqlite.CosineSimilarity(vec, stored)
		if !ok || score < threshold {
			continue
		}
		hits = append(hits, candidate.New(score, text, candidate.QuestionRef(id)))
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("scan prior answers: %w", err)}
	}

	hits = candidate.Ranked(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
