package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type VoteRepository interface {
	// Record appends the vote, bumps the question's aggregate and, when delta is
	// set, the participant's score in one transaction. It fails with
	// domain.ErrStaleQuestion if the poll moved on, domain.ErrDuplicateVote if the
	// participant already voted, or domain.ErrConflict on contention.
	Record(ctx context.Context, vote *domain.Vote, delta *domain.ScoreDelta) error
	HasVoted(ctx context.Context, pollID uuid.UUID, questionIndex int, participantID string) (bool, error)
	ListByPoll(ctx context.Context, pollID uuid.UUID) ([]domain.Vote, error)
}

type VoteInput struct {
	PollID        uuid.UUID
	QuestionIndex int
	Payload       domain.Payload
}

type VoteService interface {
	Vote(ctx context.Context, actor domain.Actor, input VoteInput) (*domain.Receipt, error)
	// HasVoted answers for the given question, or the current one when nil.
	HasVoted(ctx context.Context, actor domain.Actor, pollID uuid.UUID, questionIndex *int) (bool, error)
	AuditLog(ctx context.Context, actor domain.Actor, pollID uuid.UUID) ([]domain.Vote, error)
}
