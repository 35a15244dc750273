package gold

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain/candidate"
	domgold "github.com/kailas-cloud/qacache/internal/domain/gold"
)

// sqlStore is the consumer interface over database/sql (ISP).
type sqlStore interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteRepo keeps curated entries in the gold_data table and scans them by cosine similarity.
type SQLiteRepo struct {
	store sqlStore
}

// NewSQLite creates a SQLite curated repository.
func NewSQLite(s sqlStore) *SQLiteRepo {
	return &SQLiteRepo{store: s}
}

// EnsureIndex is a no-op: the table is created by the schema migration.
func (r *SQLiteRepo) EnsureIndex(_ context.Context, _ int) error {
	return nil
}

// Ping runs a trivial query against gold_data.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	rows, err := r.store.QueryContext(ctx, "SELECT 1 FROM gold_data LIMIT 1")
	if err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	defer func() { _ = rows.Close() }()
	if err := rows.Err(); err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}

const upsertGoldSQL = `
INSERT INTO gold_data (id, question, final_answer, embedding, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	question = excluded.question,
	final_answer = excluded.final_answer,
	embedding = excluded.embedding,
	updated_at = excluded.updated_at`

// Upsert writes embedded entries in one transaction.
func (r *SQLiteRepo) Upsert(ctx context.Context, entries []domgold.Entry) error {
	tx, err := r.store.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, e := range entries {
		if len(e.Embedding()) == 0 {
			return fmt.Errorf("gold %s: embedding is required", e.ID())
		}
		if _, err := tx.ExecContext(ctx, upsertGoldSQL,
			e.ID(), e.Question(), e.Answer(), sqlite.EncodeEmbedding(e.Embedding()), now,
		); err != nil {
			return &db.Error{Op: db.OpExec, Err: fmt.Errorf("upsert gold %s: %w", e.ID(), err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpExec, Err: err}
	}
	return nil
}

// SearchCurated returns up to k curated answers with similarity >= threshold, best first.
// Ties keep id order.
func (r *SQLiteRepo) SearchCurated(
	ctx context.Context, vec []float32, threshold float64, k int,
) ([]candidate.Candidate, error) {
	if len(vec) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := r.store.QueryContext(ctx, `SELECT id, final_answer, embedding FROM gold_data ORDER BY id`)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer rows.Close()

	var hits []candidate.Candidate
	for rows.Next() {
		var (
			id, text string
			blob     []byte
		)
		if err := rows.Scan(&id, &text, &blob); err != nil {
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
		hits = append(hits, candidate.New(score, text, id))
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	hits = candidate.Ranked(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
