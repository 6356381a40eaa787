package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type VoteConfig struct {
	// CorrectAnswerPoints is the reward for a correct answer.
	CorrectAnswerPoints int64
	RetryMax            uint64
	RetryBase           time.Duration
}

func DefaultVoteConfig() VoteConfig {
	return VoteConfig{
		CorrectAnswerPoints: 100,
		RetryMax:            5,
		RetryBase:           10 * time.Millisecond,
	}
}

type voteService struct {
	pollRepo ports.PollRepository
	voteRepo ports.VoteRepository
	notifier ports.ChangeNotifier
	metrics  ports.EngineMetrics
	cfg      VoteConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewVoteService(pollRepo ports.PollRepository, voteRepo ports.VoteRepository, notifier ports.ChangeNotifier, metrics ports.EngineMetrics, cfg VoteConfig, log zerolog.Logger) ports.VoteService {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultVoteConfig().RetryBase
	}
	return &voteService{
		pollRepo: pollRepo,
		voteRepo: voteRepo,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		log:      log.With().Str("component", "vote_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *voteService) Vote(ctx context.Context, actor domain.Actor, input ports.VoteInput) (*domain.Receipt, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	poll, err := s.pollRepo.GetByID(ctx, input.PollID)
	if err != nil {
		return nil, s.rejected(input, err)
	}
	if poll.Status != domain.StatusLive {
		return nil, s.rejected(input, domain.ErrPollNotLive)
	}
	if input.QuestionIndex != poll.CurrentQuestionIndex {
		return nil, s.rejected(input, domain.ErrStaleQuestion)
	}

	vote := &domain.Vote{
		ID:              uuid.New(),
		PollID:          poll.ID,
		QuestionIndex:   input.QuestionIndex,
		ParticipantID:   actor.ID,
		ParticipantName: actor.Name(),
	}
	if err := input.Payload.Apply(poll.CurrentQuestion(), poll.Type.Config(), vote); err != nil {
		return nil, s.rejected(input, err)
	}

	now := s.now()
	vote.CreatedAt = now
	if poll.QuestionStartedAt != nil {
		vote.LatencyMs = max(now.Sub(*poll.QuestionStartedAt).Milliseconds(), 0)
	}

	// A graded vote always touches the score row, so wrong answers still put
	// the participant on the board.
	var delta *domain.ScoreDelta
	if vote.Correct != nil {
		delta = &domain.ScoreDelta{
			PollID:          poll.ID,
			ParticipantID:   vote.ParticipantID,
			ParticipantName: vote.ParticipantName,
		}
		if *vote.Correct {
			vote.AwardedPoints = s.cfg.CorrectAnswerPoints
			delta.Points = s.cfg.CorrectAnswerPoints
			delta.ResponseTimeMs = vote.LatencyMs
		}
	}

	if err := s.record(ctx, vote, delta); err != nil {
		return nil, s.rejected(input, err)
	}

	s.notifier.PollChanged(poll.ID, false)
	if delta != nil {
		s.notifier.ScoresChanged(poll.ID)
	}
	s.metrics.VoteAccepted(string(poll.Type), vote.Correct)

	event := s.log.Debug().
		Str("poll_id", poll.ID.String()).
		Int("question_index", vote.QuestionIndex).
		Int64("latency_ms", vote.LatencyMs)
	if vote.Correct != nil {
		event = event.Bool("correct", *vote.Correct)
	}
	event.Msg("vote accepted")

	return &domain.Receipt{
		VoteID:        vote.ID,
		QuestionIndex: vote.QuestionIndex,
		Correct:       vote.Correct,
		AcceptedAt:    now,
	}, nil
}

// record retries only on transaction contention. Every other outcome of the
// transaction is final.
func (s *voteService) record(ctx context.Context, vote *domain.Vote, delta *domain.ScoreDelta) error {
	backoff, err := retry.NewExponential(s.cfg.RetryBase)
	if err != nil {
		return fmt.Errorf("failed to create retry backoff: %w", err)
	}
	backoff = retry.WithMaxRetries(s.cfg.RetryMax, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.voteRepo.Record(ctx, vote, delta)
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.VoteConflictRetried()
			s.log.Warn().Err(err).Str("poll_id", vote.PollID.String()).Msg("vote transaction conflict, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *voteService) rejected(input ports.VoteInput, err error) error {
	reason := rejectionReason(err)
	s.metrics.VoteRejected(reason)
	s.log.Info().
		Str("poll_id", input.PollID.String()).
		Int("question_index", input.QuestionIndex).
		Str("reason", reason).
		Msg("vote rejected")
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPollNotLive):
		return "not_live"
	case errors.Is(err, domain.ErrStaleQuestion):
		return "stale"
	case errors.Is(err, domain.ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrPollNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	}
	return "error"
}

func (s *voteService) HasVoted(ctx context.Context, actor domain.Actor, pollID uuid.UUID, questionIndex *int) (bool, error) {
	if actor.ID == "" {
		return false, domain.ErrUnauthenticated
	}

	var index int
	if questionIndex != nil {
		index = *questionIndex
	} else {
		poll, err := s.pollRepo.GetByID(ctx, pollID)
		if err != nil {
			return false, err
		}
		index = poll.CurrentQuestionIndex
	}

	return s.voteRepo.HasVoted(ctx, pollID, index, actor.ID)
}

func (s *voteService) AuditLog(ctx context.Context, actor domain.Actor, pollID uuid.UUID) ([]domain.Vote, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.CanManage(actor) {
		s.log.Warn().Str("poll_id", pollID.String()).Str("actor", actor.ID).Msg("audit log denied")
		return nil, domain.ErrPermission
	}

	return s.voteRepo.ListByPoll(ctx, pollID)
}
