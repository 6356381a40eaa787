package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type snapshotService struct {
	pollRepo     ports.PollRepository
	results      *resultService
	leaderboards ports.LeaderboardService
	presence     ports.PresenceTracker
	now          func() time.Time
}

// NewSnapshotService builds the values the sync hubs publish.
func NewSnapshotService(pollRepo ports.PollRepository, aggregateRepo ports.AggregateRepository, leaderboards ports.LeaderboardService, presence ports.PresenceTracker) ports.SnapshotSource {
	return &snapshotService{
		pollRepo:     pollRepo,
		results:      &resultService{pollRepo: pollRepo, aggregateRepo: aggregateRepo},
		leaderboards: leaderboards,
		presence:     presence,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *snapshotService) PollSnapshot(ctx context.Context, pollID uuid.UUID) (domain.PollSnapshot, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return domain.PollSnapshot{}, err
	}

	snap := domain.PollSnapshot{
		PollID:               poll.ID,
		Title:                poll.Title,
		Type:                 poll.Type,
		Status:               poll.Status,
		CurrentQuestionIndex: poll.CurrentQuestionIndex,
		QuestionCount:        len(poll.Questions),
		QuestionStartedAt:    poll.QuestionStartedAt,
		ParticipantCount:     s.presence.Count(pollID),
		GeneratedAt:          s.now(),
	}

	if q := poll.CurrentQuestion(); q != nil {
		snap.Question = domain.PublicQuestion(q)
		agg, err := s.results.aggregate(ctx, poll, poll.CurrentQuestionIndex)
		if err != nil {
			return domain.PollSnapshot{}, err
		}
		snap.Aggregate = agg
	}
	return snap, nil
}

func (s *snapshotService) Leaderboard(ctx context.Context, pollID uuid.UUID) (domain.Leaderboard, error) {
	board, err := s.leaderboards.Leaderboard(ctx, pollID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return *board, nil
}
