package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type summaryService struct {
	pollRepo      ports.PollRepository
	aggregateRepo ports.AggregateRepository
	notifier      ports.ChangeNotifier
	log           zerolog.Logger
}

// NewSummaryService returns the job that rebuilds every poll's aggregates and
// scores from its vote ledger. notifier may be nil when no subscriber can be
// connected, as in the batch command.
func NewSummaryService(pollRepo ports.PollRepository, aggregateRepo ports.AggregateRepository, notifier ports.ChangeNotifier, log zerolog.Logger) ports.SummaryService {
	return &summaryService{
		pollRepo:      pollRepo,
		aggregateRepo: aggregateRepo,
		notifier:      notifier,
		log:           log.With().Str("component", "summary_service").Logger(),
	}
}

func (s *summaryService) SummarizeAllVotes(ctx context.Context) error {
	polls, err := s.pollRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch all polls: %w", err)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(polls))

	for _, poll := range polls {
		wg.Add(1)
		go func(pollID uuid.UUID) {
			defer wg.Done()
			err := s.aggregateRepo.RebuildAggregates(ctx, pollID)
			if errors.Is(err, domain.ErrPollNotFound) {
				return
			}
			if err != nil {
				errChan <- fmt.Errorf("failed to summarize poll %s: %w", pollID, err)
				return
			}
			if s.notifier != nil {
				s.notifier.PollChanged(pollID, false)
				s.notifier.ScoresChanged(pollID)
			}
		}(poll.ID)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	s.log.Info().Int("polls", len(polls)).Msg("aggregates rebuilt")
	return nil
}
