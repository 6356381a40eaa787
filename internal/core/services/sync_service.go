package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type syncService struct {
	pollRepo ports.PollRepository
	polls    ports.Publisher[uuid.UUID, domain.PollSnapshot]
	boards   ports.Publisher[uuid.UUID, domain.Leaderboard]
	presence ports.PresenceTracker
	log      zerolog.Logger
}

// NewSyncService routes committed changes to the snapshot and leaderboard
// publishers. Leaderboards are keyed by poll id, uuid.Nil being the
// deployment-wide board.
func NewSyncService(
	pollRepo ports.PollRepository,
	polls ports.Publisher[uuid.UUID, domain.PollSnapshot],
	boards ports.Publisher[uuid.UUID, domain.Leaderboard],
	presence ports.PresenceTracker,
	log zerolog.Logger,
) ports.SyncService {
	return &syncService{
		pollRepo: pollRepo,
		polls:    polls,
		boards:   boards,
		presence: presence,
		log:      log.With().Str("component", "sync_service").Logger(),
	}
}

func (s *syncService) PollChanged(pollID uuid.UUID, urgent bool) {
	s.polls.Notify(pollID, urgent)
}

func (s *syncService) ScoresChanged(pollID uuid.UUID) {
	s.boards.Notify(pollID, false)
	s.boards.Notify(uuid.Nil, false)
}

func (s *syncService) SubscribePollState(ctx context.Context, actor domain.Actor, pollID uuid.UUID) (ports.Stream[domain.PollSnapshot], error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, err
	}

	stream, err := s.polls.Subscribe(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if actor.ID == "" || poll.CanManage(actor) {
		return stream, nil
	}

	leave := s.presence.Join(pollID, actor.ID)
	s.polls.Notify(pollID, false)
	s.log.Debug().Str("poll_id", pollID.String()).Str("participant", actor.ID).Msg("participant joined")

	p := &presenceStream{
		Stream: stream,
		leave: func() {
			leave()
			s.polls.Notify(pollID, false)
			s.log.Debug().Str("poll_id", pollID.String()).Str("participant", actor.ID).Msg("participant left")
		},
	}
	context.AfterFunc(ctx, p.Close)
	return p, nil
}

func (s *syncService) SubscribeLeaderboard(ctx context.Context, pollID uuid.UUID) (ports.Stream[domain.Leaderboard], error) {
	if pollID != uuid.Nil {
		if _, err := s.pollRepo.GetByID(ctx, pollID); err != nil {
			return nil, err
		}
	}
	return s.boards.Subscribe(ctx, pollID)
}

// presenceStream counts its participant as connected until it is closed.
type presenceStream struct {
	ports.Stream[domain.PollSnapshot]
	leave func()
	once  sync.Once
}

func (p *presenceStream) Close() {
	p.once.Do(func() {
		p.Stream.Close()
		p.leave()
	})
}
