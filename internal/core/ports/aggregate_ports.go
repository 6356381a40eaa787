package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type AggregateRepository interface {
	// GetAggregate fills the counters of agg, which arrives laid out for its question.
	GetAggregate(ctx context.Context, agg *domain.Aggregate) error
	// RebuildAggregates recomputes every counter of a poll from its vote ledger.
	RebuildAggregates(ctx context.Context, pollID uuid.UUID) error
}

type ResultService interface {
	GetAggregate(ctx context.Context, pollID uuid.UUID, questionIndex int) (*domain.Aggregate, error)
}

type SummaryService interface {
	SummarizeAllVotes(ctx context.Context) error
}
