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

type voteRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewVoteRepository(db *sql.DB, dialect Dialect) ports.VoteRepository {
	return &voteRepository{
		db:      db,
		dialect: dialect,
	}
}

func (r *voteRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

// Record locks rows in a fixed order (poll, vote, question total, option
// counts ascending, score) so concurrent votes never deadlock each other.
func (r *voteRepository) Record(ctx context.Context, vote *domain.Vote, delta *domain.ScoreDelta) error {
	return withTx(ctx, r.db, r.dialect, func(tx *sql.Tx) error {
		var status string
		var current int
		queryPoll := `SELECT status, current_question_index FROM polls WHERE id = $1` + r.dialect.ShareLock()
		if err := tx.QueryRowContext(ctx, r.q(queryPoll), vote.PollID).Scan(&status, &current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrPollNotFound
			}
			return fmt.Errorf("failed to read poll cursor: %w", err)
		}
		if domain.PollStatus(status) != domain.StatusLive {
			return domain.ErrPollNotLive
		}
		if current != vote.QuestionIndex {
			return domain.ErrStaleQuestion
		}

		queryVote := `
			INSERT INTO votes (id, poll_id, question_index, question_type, participant_id, participant_name,
				selected_options, answer, correct, points, awarded_points, latency_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (poll_id, question_index, participant_id) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, r.q(queryVote),
			vote.ID, vote.PollID, vote.QuestionIndex, string(vote.QuestionKind), vote.ParticipantID, vote.ParticipantName,
			encodeInts(vote.SelectedOptions), vote.Answer, nullBool(vote.Correct), vote.Points, vote.AwardedPoints,
			vote.LatencyMs, vote.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save vote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return domain.ErrDuplicateVote
		}

		queryTotal := `
			INSERT INTO question_totals (poll_id, question_index, vote_count, last_updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (poll_id, question_index) DO UPDATE
			SET vote_count = question_totals.vote_count + 1,
			    last_updated_at = excluded.last_updated_at
		`
		if _, err := tx.ExecContext(ctx, r.q(queryTotal), vote.PollID, vote.QuestionIndex, vote.CreatedAt); err != nil {
			return fmt.Errorf("failed to bump question total: %w", err)
		}

		queryOption := `
			INSERT INTO option_counts (poll_id, question_index, option_index, vote_count)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (poll_id, question_index, option_index) DO UPDATE
			SET vote_count = option_counts.vote_count + 1
		`
		// SelectedOptions is sorted by Payload.Apply.
		for _, opt := range vote.SelectedOptions {
			if _, err := tx.ExecContext(ctx, r.q(queryOption), vote.PollID, vote.QuestionIndex, opt); err != nil {
				return fmt.Errorf("failed to bump option %d: %w", opt, err)
			}
		}

		if delta == nil {
			return nil
		}
		queryScore := `
			INSERT INTO scores (poll_id, participant_id, participant_name, points, total_time_ms, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (poll_id, participant_id) DO UPDATE
			SET points = scores.points + excluded.points,
			    total_time_ms = scores.total_time_ms + excluded.total_time_ms,
			    participant_name = excluded.participant_name,
			    updated_at = excluded.updated_at
		`
		_, err = tx.ExecContext(ctx, r.q(queryScore),
			delta.PollID, delta.ParticipantID, delta.ParticipantName, delta.Points, delta.ResponseTimeMs, vote.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update score: %w", err)
		}
		return nil
	})
}

func (r *voteRepository) HasVoted(ctx context.Context, pollID uuid.UUID, questionIndex int, participantID string) (bool, error) {
	query := `SELECT 1 FROM votes WHERE poll_id = $1 AND question_index = $2 AND participant_id = $3 LIMIT 1`
	var exists int
	err := r.db.QueryRowContext(ctx, r.q(query), pollID, questionIndex, participantID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return true, nil
}

func (r *voteRepository) ListByPoll(ctx context.Context, pollID uuid.UUID) ([]domain.Vote, error) {
	query := `
		SELECT id, poll_id, question_index, question_type, participant_id, participant_name,
			selected_options, answer, correct, points, awarded_points, latency_ms, created_at
		FROM votes
		WHERE poll_id = $1
		ORDER BY question_index, created_at, participant_id
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func scanVote(rows *sql.Rows) (domain.Vote, error) {
	var (
		v        domain.Vote
		kind     string
		selected string
		correct  sql.NullBool
	)
	err := rows.Scan(
		&v.ID, &v.PollID, &v.QuestionIndex, &kind, &v.ParticipantID, &v.ParticipantName,
		&selected, &v.Answer, &correct, &v.Points, &v.AwardedPoints, &v.LatencyMs, &v.CreatedAt,
	)
	if err != nil {
		return v, fmt.Errorf("failed to scan vote: %w", err)
	}
	v.QuestionKind = domain.QuestionKind(kind)
	v.Correct = boolPtr(correct)
	if v.SelectedOptions, err = decodeInts(selected); err != nil {
		return v, err
	}
	return v, nil
}
