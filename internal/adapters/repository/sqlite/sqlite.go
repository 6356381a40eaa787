// Package sqlite is the embedded single-node store, also used by package tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Open opens (or creates) the database file at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sqlrepo.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single connection serializes writers; it also keeps an in-memory
	// database alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return sqlrepo.NewStore(db, Dialect{}), nil
}

// CreateSchema creates all tables. Safe to call multiple times.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind turns $N into ?N, which sqlite binds by number just like postgres.
func (Dialect) Rebind(query string) string {
	return placeholder.ReplaceAllString(query, "?$1")
}

func (Dialect) ShareLock() string { return "" }

func (Dialect) UpdateLock() string { return "" }

func (Dialect) IsConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

const schema = `
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    poll_type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'waiting' CHECK (status IN ('waiting', 'live', 'ended')),
    current_question_index INTEGER NOT NULL DEFAULT 0,
    question_started_at TIMESTAMP,
    creator_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_polls_creator ON polls(creator_id, created_at);

CREATE TABLE IF NOT EXISTS questions (
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    question_type TEXT NOT NULL,
    text TEXT NOT NULL,
    image_url TEXT NOT NULL DEFAULT '',
    time_limit_seconds INTEGER NOT NULL DEFAULT 30,
    allow_multiple BOOLEAN NOT NULL DEFAULT 0,
    correct_options TEXT NOT NULL DEFAULT '',
    reference_answer TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (poll_id, position)
);

CREATE TABLE IF NOT EXISTS question_options (
    poll_id TEXT NOT NULL,
    question_position INTEGER NOT NULL,
    position INTEGER NOT NULL,
    text TEXT NOT NULL,
    PRIMARY KEY (poll_id, question_position, position),
    FOREIGN KEY (poll_id, question_position) REFERENCES questions(poll_id, position) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    question_index INTEGER NOT NULL,
    question_type TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    participant_name TEXT NOT NULL,
    selected_options TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    correct BOOLEAN,
    points INTEGER NOT NULL DEFAULT 0,
    awarded_points INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (poll_id, question_index, participant_id)
);

CREATE TABLE IF NOT EXISTS question_totals (
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    question_index INTEGER NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    last_updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, question_index)
);

CREATE TABLE IF NOT EXISTS option_counts (
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    question_index INTEGER NOT NULL,
    option_index INTEGER NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (poll_id, question_index, option_index)
);

CREATE TABLE IF NOT EXISTS scores (
    poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL,
    participant_name TEXT NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    total_time_ms INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (poll_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_scores_participant ON scores(participant_id);
`
