package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type resultService struct {
	pollRepo      ports.PollRepository
	aggregateRepo ports.AggregateRepository
}

func NewResultService(pollRepo ports.PollRepository, aggregateRepo ports.AggregateRepository) ports.ResultService {
	return &resultService{
		pollRepo:      pollRepo,
		aggregateRepo: aggregateRepo,
	}
}

func (s *resultService) GetAggregate(ctx context.Context, pollID uuid.UUID, questionIndex int) (*domain.Aggregate, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if questionIndex < 0 || questionIndex >= len(poll.Questions) {
		return nil, &domain.ValidationError{Field: "question", Reason: fmt.Sprintf("index %d out of range", questionIndex)}
	}

	return s.aggregate(ctx, poll, questionIndex)
}

func (s *resultService) aggregate(ctx context.Context, poll *domain.Poll, questionIndex int) (*domain.Aggregate, error) {
	agg := domain.NewAggregate(poll.ID, questionIndex, poll.Questions[questionIndex])
	if err := s.aggregateRepo.GetAggregate(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}
