package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type leaderboardService struct {
	pollRepo  ports.PollRepository
	scoreRepo ports.ScoreRepository
	size      int
}

// NewLeaderboardService ranks the top size scores of a poll, or of the whole
// deployment for uuid.Nil.
func NewLeaderboardService(pollRepo ports.PollRepository, scoreRepo ports.ScoreRepository, size int) ports.LeaderboardService {
	if size <= 0 {
		size = 50
	}
	return &leaderboardService{
		pollRepo:  pollRepo,
		scoreRepo: scoreRepo,
		size:      size,
	}
}

func (s *leaderboardService) Leaderboard(ctx context.Context, pollID uuid.UUID) (*domain.Leaderboard, error) {
	if pollID != uuid.Nil {
		if _, err := s.pollRepo.GetByID(ctx, pollID); err != nil {
			return nil, err
		}
	}

	scores, err := s.scoreRepo.ListScores(ctx, pollID, s.size)
	if err != nil {
		return nil, err
	}

	return &domain.Leaderboard{
		PollID:  pollID,
		Entries: domain.RankScores(scores),
	}, nil
}
