package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const pollPageSize = 20

type pollService struct {
	repo     ports.PollRepository
	notifier ports.ChangeNotifier
	metrics  ports.EngineMetrics
	log      zerolog.Logger
	now      func() time.Time
}

func NewPollService(repo ports.PollRepository, notifier ports.ChangeNotifier, metrics ports.EngineMetrics, log zerolog.Logger) ports.PollService {
	return &pollService{
		repo:     repo,
		notifier: notifier,
		metrics:  metrics,
		log:      log.With().Str("component", "poll_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *pollService) Create(ctx context.Context, actor domain.Actor, input ports.CreatePollInput) (*domain.Poll, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.CanCreate && !actor.IsAdmin {
		s.log.Warn().Str("actor", actor.ID).Msg("poll creation denied")
		return nil, domain.ErrPermission
	}

	def := domain.Definition{Title: input.Title, Type: input.Type, Questions: input.Questions}
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	poll := &domain.Poll{
		ID:                   uuid.New(),
		Title:                def.Title,
		Type:                 def.Type,
		Questions:            def.Questions,
		CurrentQuestionIndex: 0,
		Status:               domain.StatusWaiting,
		CreatorID:            actor.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Save(ctx, poll); err != nil {
		return nil, err
	}

	s.log.Info().Str("poll_id", poll.ID.String()).Str("type", string(poll.Type)).Int("questions", len(poll.Questions)).Msg("poll created")
	return poll, nil
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}

	return s.repo.GetByID(ctx, pollID)
}

func (s *pollService) ListPolls(ctx context.Context, actor domain.Actor, input ports.ListPollsInput) ([]*domain.Poll, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	creator := actor.ID
	if actor.IsAdmin {
		creator = ""
	}

	return s.repo.List(ctx, creator, pollPageSize, (page-1)*pollPageSize)
}

func (s *pollService) Update(ctx context.Context, actor domain.Actor, input ports.UpdatePollInput) (*domain.Poll, error) {
	poll, err := s.manageable(ctx, actor, input.PollID)
	if err != nil {
		return nil, err
	}

	replace := input.Questions != nil || (input.Type != nil && *input.Type != poll.Type)
	if replace && poll.Status != domain.StatusWaiting {
		return nil, domain.ErrPollLocked
	}

	def := domain.Definition{Title: poll.Title, Type: poll.Type, Questions: poll.Questions}
	if input.Title != nil {
		def.Title = *input.Title
	}
	if input.Type != nil {
		def.Type = *input.Type
	}
	if input.Questions != nil {
		def.Questions = input.Questions
	}
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	poll.Title = def.Title
	poll.Type = def.Type
	poll.Questions = def.Questions
	poll.UpdatedAt = s.now()

	if err := s.repo.UpdateDefinition(ctx, poll, replace); err != nil {
		return nil, err
	}

	s.notifier.PollChanged(poll.ID, true)
	s.log.Info().Str("poll_id", poll.ID.String()).Bool("questions_replaced", replace).Msg("poll updated")
	return poll, nil
}

func (s *pollService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if _, err := s.manageable(ctx, actor, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Subscribers learn about the deletion when their next snapshot fails.
	s.notifier.PollChanged(id, true)
	s.notifier.ScoresChanged(id)
	s.log.Info().Str("poll_id", id.String()).Msg("poll deleted")
	return nil
}

func (s *pollService) Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (*ports.AdvanceResult, error) {
	return s.transition(ctx, actor, id, nil, func(p *domain.Poll) (domain.Cursor, bool) {
		if p.Status != domain.StatusWaiting {
			return p.Cursor(), false
		}
		return domain.Cursor{Index: p.CurrentQuestionIndex, Status: domain.StatusLive}, true
	})
}

func (s *pollService) Advance(ctx context.Context, actor domain.Actor, input ports.AdvanceInput) (*ports.AdvanceResult, error) {
	if input.Direction != 1 && input.Direction != -1 {
		return nil, &domain.ValidationError{Field: "direction", Reason: "must be 1 or -1"}
	}

	return s.transition(ctx, actor, input.PollID, input.ExpectedIndex, func(p *domain.Poll) (domain.Cursor, bool) {
		return p.Move(input.Direction)
	})
}

func (s *pollService) End(ctx context.Context, actor domain.Actor, id uuid.UUID) (*ports.AdvanceResult, error) {
	return s.transition(ctx, actor, id, nil, func(p *domain.Poll) (domain.Cursor, bool) {
		if p.Status == domain.StatusEnded {
			return p.Cursor(), false
		}
		return domain.Cursor{Index: p.CurrentQuestionIndex, Status: domain.StatusEnded}, true
	})
}

// transition applies step as a compare-and-swap on the poll cursor. When
// another operator got there first the swap misses and the fresh state is
// returned unchanged; retrying would move the poll twice.
func (s *pollService) transition(ctx context.Context, actor domain.Actor, id uuid.UUID, expected *int, step func(*domain.Poll) (domain.Cursor, bool)) (*ports.AdvanceResult, error) {
	poll, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if expected != nil && *expected != poll.CurrentQuestionIndex {
		s.metrics.QuestionAdvanced(false)
		return &ports.AdvanceResult{Poll: poll, Changed: false}, nil
	}

	from := poll.Cursor()
	to, changed := step(poll)
	if !changed {
		s.metrics.QuestionAdvanced(false)
		return &ports.AdvanceResult{Poll: poll, Changed: false}, nil
	}

	now := s.now()
	swapped, err := s.repo.SwapCursor(ctx, id, from, to, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		s.metrics.QuestionAdvanced(false)
		fresh, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ports.AdvanceResult{Poll: fresh, Changed: false}, nil
	}

	poll.CurrentQuestionIndex = to.Index
	poll.Status = to.Status
	poll.UpdatedAt = now
	if to.Status == domain.StatusLive {
		poll.QuestionStartedAt = &now
	}

	s.metrics.QuestionAdvanced(true)
	s.notifier.PollChanged(id, true)
	s.log.Info().
		Str("poll_id", id.String()).
		Int("from_index", from.Index).
		Int("to_index", to.Index).
		Str("status", string(to.Status)).
		Msg("question advanced")

	return &ports.AdvanceResult{Poll: poll, Changed: true}, nil
}

func (s *pollService) manageable(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Poll, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}

	poll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !poll.CanManage(actor) {
		s.log.Warn().Str("poll_id", id.String()).Str("actor", actor.ID).Msg("poll management denied")
		return nil, domain.ErrPermission
	}
	return poll, nil
}
