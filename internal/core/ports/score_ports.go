package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type ScoreRepository interface {
	// ListScores returns the top scores of a poll, or across all polls summed
	// per participant when pollID is uuid.Nil.
	ListScores(ctx context.Context, pollID uuid.UUID, limit int) ([]domain.Score, error)
}

type LeaderboardService interface {
	Leaderboard(ctx context.Context, pollID uuid.UUID) (*domain.Leaderboard, error)
}
