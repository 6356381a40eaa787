package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type PollRepository interface {
	Save(ctx context.Context, poll *domain.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	GetAll(ctx context.Context) ([]*domain.Poll, error)
	List(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Poll, error)
	// UpdateDefinition replaces title, type and questions. Question changes are
	// refused with domain.ErrPollLocked unless the poll is still waiting.
	UpdateDefinition(ctx context.Context, poll *domain.Poll, replaceQuestions bool) error
	// SwapCursor moves the poll from one cursor to another only if the stored
	// cursor still equals from. It reports whether the swap happened.
	SwapCursor(ctx context.Context, id uuid.UUID, from, to domain.Cursor, at time.Time) (bool, error)
	// Delete removes the poll with its votes, aggregates and scores.
	Delete(ctx context.Context, id uuid.UUID) error
}

type CreatePollInput struct {
	Title     string
	Type      domain.PollType
	Questions []domain.Question
}

// UpdatePollInput merges only the fields that are set.
type UpdatePollInput struct {
	PollID    uuid.UUID
	Title     *string
	Type      *domain.PollType
	Questions []domain.Question
}

type ListPollsInput struct {
	Page int
}

type AdvanceInput struct {
	PollID    uuid.UUID
	Direction int
	// ExpectedIndex pins the index the operator is looking at; when set and
	// stale, the call is a no-op that returns the current state.
	ExpectedIndex *int
}

type AdvanceResult struct {
	Poll    *domain.Poll `json:"poll"`
	Changed bool         `json:"changed"`
}

type PollService interface {
	Create(ctx context.Context, actor domain.Actor, input CreatePollInput) (*domain.Poll, error)
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	ListPolls(ctx context.Context, actor domain.Actor, input ListPollsInput) ([]*domain.Poll, error)
	Update(ctx context.Context, actor domain.Actor, input UpdatePollInput) (*domain.Poll, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (*AdvanceResult, error)
	Advance(ctx context.Context, actor domain.Actor, input AdvanceInput) (*AdvanceResult, error)
	End(ctx context.Context, actor domain.Actor, id uuid.UUID) (*AdvanceResult, error)
}
