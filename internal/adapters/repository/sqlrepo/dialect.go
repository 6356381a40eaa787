// Package sqlrepo implements the engine's repositories on database/sql. The
// queries are written once with $N placeholders; a Dialect adapts them to the
// driver and classifies driver errors.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type Dialect interface {
	Name() string
	// Rebind rewrites $N placeholders for the driver.
	Rebind(query string) string
	// ShareLock and UpdateLock are row lock clauses appended to a SELECT inside
	// a transaction. Drivers that lock the whole database return "".
	ShareLock() string
	UpdateLock() string
	// IsConflict reports serialization failures, deadlocks and busy errors,
	// all of which are safe to retry.
	IsConflict(err error) bool
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withTx(ctx context.Context, db *sql.DB, d Dialect, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(d, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(d, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(d, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func classify(d Dialect, err error) error {
	if d.IsConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

// encodeInts stores index sets as "0,2,3" so both dialects share one schema.
func encodeInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func decodeInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed index list %q: %w", s, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
