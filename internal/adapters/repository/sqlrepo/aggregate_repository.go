package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type aggregateRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewAggregateRepository(db *sql.DB, dialect Dialect) ports.AggregateRepository {
	return &aggregateRepository{
		db:      db,
		dialect: dialect,
	}
}

func (r *aggregateRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

func (r *aggregateRepository) GetAggregate(ctx context.Context, agg *domain.Aggregate) error {
	if agg.QuestionKind == domain.KindOpen {
		return r.getOpenAnswers(ctx, agg)
	}

	// One statement, so the total and the option counters come from the same
	// snapshot. The total is tagged with option index -1.
	query := `
		SELECT -1, vote_count FROM question_totals
		WHERE poll_id = $1 AND question_index = $2
		UNION ALL
		SELECT option_index, vote_count FROM option_counts
		WHERE poll_id = $1 AND question_index = $2
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), agg.PollID, agg.QuestionIndex)
	if err != nil {
		return fmt.Errorf("failed to fetch aggregate: %w", err)
	}

	for rows.Next() {
		var option int
		var count int64
		if err := rows.Scan(&option, &count); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan aggregate: %w", err)
		}
		if option < 0 {
			agg.Total = count
			continue
		}
		agg.SetCount(option, count)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("error iterating aggregate: %w", err)
	}
	agg.ComputePercentages()

	var updated sql.NullTime
	queryUpdated := `SELECT last_updated_at FROM question_totals WHERE poll_id = $1 AND question_index = $2`
	err = r.db.QueryRowContext(ctx, r.q(queryUpdated), agg.PollID, agg.QuestionIndex).Scan(&updated)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to fetch aggregate timestamp: %w", err)
	}
	if updated.Valid {
		agg.LastUpdatedAt = &updated.Time
	}
	return nil
}

func (r *aggregateRepository) getOpenAnswers(ctx context.Context, agg *domain.Aggregate) error {
	query := `
		SELECT participant_name, answer, created_at
		FROM votes
		WHERE poll_id = $1 AND question_index = $2
		ORDER BY created_at DESC, participant_id
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), agg.PollID, agg.QuestionIndex)
	if err != nil {
		return fmt.Errorf("failed to fetch open answers: %w", err)
	}
	defer rows.Close()

	agg.OpenAnswers = nil
	for rows.Next() {
		var a domain.OpenAnswer
		if err := rows.Scan(&a.ParticipantName, &a.Answer, &a.SubmittedAt); err != nil {
			return fmt.Errorf("failed to scan open answer: %w", err)
		}
		agg.OpenAnswers = append(agg.OpenAnswers, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating open answers: %w", err)
	}

	agg.Total = int64(len(agg.OpenAnswers))
	if len(agg.OpenAnswers) > 0 {
		latest := agg.OpenAnswers[0].SubmittedAt
		agg.LastUpdatedAt = &latest
	}
	return nil
}

type optionKey struct {
	question int
	option   int
}

// RebuildAggregates takes the poll row exclusively, so no vote commits while
// the counters are recomputed from the ledger.
func (r *aggregateRepository) RebuildAggregates(ctx context.Context, pollID uuid.UUID) error {
	return withTx(ctx, r.db, r.dialect, func(tx *sql.Tx) error {
		var id uuid.UUID
		queryLock := `SELECT id FROM polls WHERE id = $1` + r.dialect.UpdateLock()
		if err := tx.QueryRowContext(ctx, r.q(queryLock), pollID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrPollNotFound
			}
			return fmt.Errorf("failed to lock poll: %w", err)
		}

		counts, err := r.countOptions(ctx, tx, pollID)
		if err != nil {
			return err
		}

		for _, query := range []string{
			`DELETE FROM option_counts WHERE poll_id = $1`,
			`DELETE FROM question_totals WHERE poll_id = $1`,
			`DELETE FROM scores WHERE poll_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, r.q(query), pollID); err != nil {
				return fmt.Errorf("failed to clear aggregates for poll %s: %w", pollID, err)
			}
		}

		queryTotals := `
			INSERT INTO question_totals (poll_id, question_index, vote_count, last_updated_at)
			SELECT poll_id, question_index, COUNT(*), MAX(created_at)
			FROM votes
			WHERE poll_id = $1
			GROUP BY poll_id, question_index
		`
		if _, err := tx.ExecContext(ctx, r.q(queryTotals), pollID); err != nil {
			return fmt.Errorf("failed to summarize totals for poll %s: %w", pollID, err)
		}

		queryOption := `
			INSERT INTO option_counts (poll_id, question_index, option_index, vote_count)
			VALUES ($1, $2, $3, $4)
		`
		stmt, err := tx.PrepareContext(ctx, r.q(queryOption))
		if err != nil {
			return fmt.Errorf("failed to prepare option statement: %w", err)
		}
		defer stmt.Close()
		for key, count := range counts {
			if _, err := stmt.ExecContext(ctx, pollID, key.question, key.option, count); err != nil {
				return fmt.Errorf("failed to summarize option counts for poll %s: %w", pollID, err)
			}
		}

		queryScores := `
			INSERT INTO scores (poll_id, participant_id, participant_name, points, total_time_ms, updated_at)
			SELECT poll_id, participant_id, MAX(participant_name),
				SUM(awarded_points),
				SUM(CASE WHEN correct THEN latency_ms ELSE 0 END),
				MAX(created_at)
			FROM votes
			WHERE poll_id = $1 AND correct IS NOT NULL
			GROUP BY poll_id, participant_id
		`
		if _, err := tx.ExecContext(ctx, r.q(queryScores), pollID); err != nil {
			return fmt.Errorf("failed to summarize scores for poll %s: %w", pollID, err)
		}
		return nil
	})
}

func (r *aggregateRepository) countOptions(ctx context.Context, tx *sql.Tx, pollID uuid.UUID) (map[optionKey]int64, error) {
	query := `SELECT question_index, selected_options FROM votes WHERE poll_id = $1`
	rows, err := tx.QueryContext(ctx, r.q(query), pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to read vote ledger: %w", err)
	}
	defer rows.Close()

	counts := make(map[optionKey]int64)
	for rows.Next() {
		var question int
		var selected string
		if err := rows.Scan(&question, &selected); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		options, err := decodeInts(selected)
		if err != nil {
			return nil, err
		}
		for _, opt := range options {
			counts[optionKey{question: question, option: opt}]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote ledger: %w", err)
	}
	return counts, nil
}
