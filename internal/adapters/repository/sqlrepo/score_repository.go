package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type scoreRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewScoreRepository(db *sql.DB, dialect Dialect) ports.ScoreRepository {
	return &scoreRepository{
		db:      db,
		dialect: dialect,
	}
}

// ListScores reads each row with a single statement, so a score is never seen
// with its points applied but not its time.
func (r *scoreRepository) ListScores(ctx context.Context, pollID uuid.UUID, limit int) ([]domain.Score, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if pollID == uuid.Nil {
		query := `
			SELECT participant_id, MAX(participant_name),
				CAST(SUM(points) AS BIGINT) AS total_points,
				CAST(SUM(total_time_ms) AS BIGINT) AS total_time
			FROM scores
			GROUP BY participant_id
			ORDER BY total_points DESC, total_time ASC, participant_id ASC
			LIMIT $1
		`
		rows, err = r.db.QueryContext(ctx, r.dialect.Rebind(query), limit)
	} else {
		query := `
			SELECT participant_id, participant_name, points, total_time_ms
			FROM scores
			WHERE poll_id = $1
			ORDER BY points DESC, total_time_ms ASC, participant_id ASC
			LIMIT $2
		`
		rows, err = r.db.QueryContext(ctx, r.dialect.Rebind(query), pollID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.Score
	for rows.Next() {
		s := domain.Score{PollID: pollID}
		if err := rows.Scan(&s.ParticipantID, &s.ParticipantName, &s.Points, &s.TotalTimeMs); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return scores, nil
}
