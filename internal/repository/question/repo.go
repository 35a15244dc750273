// Package question persists questions and their answers in the durable relational store.
package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/qacache/internal/db"
	"github.com/kailas-cloud/qacache/internal/db/sqlite"
	"github.com/kailas-cloud/qacache/internal/domain"
	domanswer "github.com/kailas-cloud/qacache/internal/domain/answer"
	domquestion "github.com/kailas-cloud/qacache/internal/domain/question"
)

// store is the consumer interface over database/sql (ISP).
type store interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo implements the durable question store and the prior-answer similarity search.
type Repo struct {
	store store
}

// New creates a question repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Duplicates of one fingerprint are legal; the earliest row that already has an answer wins,
// otherwise the earliest row.
const findByFingerprintSQL = `
SELECT q.id, q.content, q.question_hash, q.embedding, q.created_at
FROM questions q
WHERE q.question_hash = ?
ORDER BY EXISTS (SELECT 1 FROM ai_answers a WHERE a.question_id = q.id) DESC, q.id ASC
LIMIT 1`

// FindByFingerprint returns the stored question for fingerprint or domain.ErrNotFound.
func (r *Repo) FindByFingerprint(ctx context.Context, fingerprint string) (domquestion.Question, error) {
	var (
		id        int64
		content   string
		hash      string
		blob      []byte
		createdAt int64
	)
	err := r.store.QueryRowContext(ctx, findByFingerprintSQL, fingerprint).
		Scan(&id, &content, &hash, &blob, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domquestion.Question{}, domain.ErrNotFound
		}
		return domquestion.Question{}, &db.Error{Op: db.OpQuery, Err: err}
	}

	vec, err := sqlite.DecodeEmbedding(blob)
	if err != nil {
		return domquestion.Question{}, fmt.Errorf("question %d: %w", id, err)
	}
	return domquestion.Reconstruct(id, content, hash, vec, time.UnixMilli(createdAt).UTC()), nil
}

const findAnswerSQL = `
SELECT id, question_id, draft_text, produced_by, model, created_at
FROM ai_answers
WHERE question_id = ?
ORDER BY id ASC
LIMIT 1`

// FindAnswer returns the earliest answer of a question or domain.ErrNotFound.
func (r *Repo) FindAnswer(ctx context.Context, questionID int64) (domanswer.Answer, error) {
	var (
		id, qid    int64
		text, prod string
		model      string
		createdAt  int64
	)
	err := r.store.QueryRowContext(ctx, findAnswerSQL, questionID).
		Scan(&id, &qid, &text, &prod, &model, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domanswer.Answer{}, domain.ErrNotFound
		}
		return domanswer.Answer{}, &db.Error{Op: db.OpQuery, Err: err}
	}

	producer, err := domanswer.ParseProducer(prod)
	if err != nil {
		return domanswer.Answer{}, fmt.Errorf("answer %d: %w", id, err)
	}
	return domanswer.Reconstruct(id, qid, text, producer, model, time.UnixMilli(createdAt).UTC()), nil
}

// InsertQuestion stores q and returns it with its assigned id.
func (r *Repo) InsertQuestion(ctx context.Context, q domquestion.Question) (domquestion.Question, error) {
	res, err := r.store.ExecContext(ctx,
		`INSERT INTO questions (content, question_hash, embedding, created_at) VALUES (?, ?, ?, ?)`,
		q.Text(), q.Fingerprint(), sqlite.EncodeEmbedding(q.Embedding()), q.CreatedAt().UnixMilli(),
	)
	if err != nil {
		return domquestion.Question{}, &db.Error{Op: db.OpExec, Err: fmt.Errorf("insert question: %w", err)}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domquestion.Question{}, &db.Error{Op: db.OpExec, Err: err}
	}
	return domquestion.Reconstruct(id, q.Text(), q.Fingerprint(), q.Embedding(), q.CreatedAt()), nil
}

// InsertAnswer stores a and returns it with its assigned id.
func (r *Repo) InsertAnswer(ctx context.Context, a domanswer.Answer) (domanswer.Answer, error) {
	res, err := r.store.ExecContext(ctx,
		`INSERT INTO ai_answers (question_id, draft_text, produced_by, model, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.QuestionID(), a.Text(), string(a.ProducedBy()), a.ModelID(), a.CreatedAt().UnixMilli(),
	)
	if err != nil {
		return domanswer.Answer{}, &db.Error{Op: db.OpExec, Err: fmt.Errorf("insert answer: %w", err)}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domanswer.Answer{}, &db.Error{Op: db.OpExec, Err: err}
	}
	return domanswer.Reconstruct(id, a.QuestionID(), a.Text(), a.ProducedBy(), a.ModelID(), a.CreatedAt()), nil
}
