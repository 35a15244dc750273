// Package sqlite opens the durable relational store on pure-Go SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/kailas-cloud/qacache/internal/db"
)

// Config holds the SQLite connection parameters.
type Config struct {
	DSN         string
	BusyTimeout time.Duration
}

// DB wraps *sql.DB with the schema applied.
type DB struct {
	*sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		content       TEXT    NOT NULL,
		question_hash TEXT    NOT NULL,
		embedding     BLOB,
		created_at    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_hash ON questions(question_hash)`,
	`CREATE TABLE IF NOT EXISTS ai_answers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		question_id INTEGER NOT NULL REFERENCES questions(id),
		draft_text  TEXT    NOT NULL,
		produced_by TEXT    NOT NULL,
		model       TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ai_answers_question ON ai_answers(question_id, id)`,
	`CREATE TABLE IF NOT EXISTS gold_data (
		id           TEXT PRIMARY KEY,
		question     TEXT NOT NULL,
		final_answer TEXT NOT NULL,
		embedding    BLOB NOT NULL,
		updated_at   INTEGER NOT NULL
	)`,
}

// Open opens the database, applies pragmas and migrates the schema.
// A single connection serialises writers; WAL plus busy_timeout keeps readers from blocking on them.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlite dsn is required")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			_ = sqlDB.Close()
			return nil, &db.Error{Op: db.OpExec, Err: fmt.Errorf("%s: %w", p, err)}
		}
	}

	if err := migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB}, nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	return nil
}

// Ping checks that the database answers a trivial query.
func (d *DB) Ping(ctx context.Context) error {
	var one int
	if err := d.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return &db.Error{Op: db.OpQuery, Err: err}
	}
	return nil
}
