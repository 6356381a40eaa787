package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const (
	maxEmojiRunes   = 8
	limiterCacheTTL = 5 * time.Minute
	limiterCacheLen = 4096
	windowCacheLen  = 4096
)

type ReactionConfig struct {
	// Retention is how long a reaction stays in the recent window.
	Retention time.Duration
	// Window caps how many recent reactions each poll keeps.
	Window int
	// Rate and Burst form the per-sender token bucket.
	Rate  rate.Limit
	Burst int
}

func DefaultReactionConfig() ReactionConfig {
	return ReactionConfig{
		Retention: 2 * time.Minute,
		Window:    512,
		Rate:      5,
		Burst:     10,
	}
}

type reactionService struct {
	pollRepo ports.PollRepository
	bus      ports.EventBus[uuid.UUID, domain.Reaction]
	metrics  ports.EngineMetrics
	cfg      ReactionConfig
	log      zerolog.Logger
	now      func() time.Time

	windowsMu sync.Mutex
	windows   *expirable.LRU[uuid.UUID, *reactionWindow]

	limitersMu sync.Mutex
	limiters   *expirable.LRU[string, *rate.Limiter]
}

func NewReactionService(pollRepo ports.PollRepository, bus ports.EventBus[uuid.UUID, domain.Reaction], metrics ports.EngineMetrics, cfg ReactionConfig, log zerolog.Logger) ports.ReactionService {
	def := DefaultReactionConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	return &reactionService{
		pollRepo: pollRepo,
		bus:      bus,
		metrics:  metrics,
		cfg:      cfg,
		log:      log.With().Str("component", "reaction_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		windows:  expirable.NewLRU[uuid.UUID, *reactionWindow](windowCacheLen, nil, cfg.Retention),
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheLen, nil, limiterCacheTTL),
	}
}

func (s *reactionService) Send(ctx context.Context, actor domain.Actor, pollID uuid.UUID, emoji string) (*domain.Reaction, error) {
	if actor.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	emoji = strings.TrimSpace(emoji)
	if err := validateEmoji(emoji); err != nil {
		return nil, err
	}
	if _, err := s.pollRepo.GetByID(ctx, pollID); err != nil {
		return nil, err
	}

	if !s.limiter(pollID, actor.ID).Allow() {
		s.log.Debug().Str("poll_id", pollID.String()).Str("sender", actor.ID).Msg("reaction rate limited")
		return nil, domain.ErrRateLimited
	}

	reaction := domain.Reaction{
		ID:       uuid.New(),
		PollID:   pollID,
		Emoji:    emoji,
		SenderID: actor.ID,
		SentAt:   s.now(),
	}
	s.window(pollID).add(reaction, s.cfg.Window)
	s.bus.Publish(pollID, reaction)
	s.metrics.ReactionSent()

	return &reaction, nil
}

// Recent returns up to limit of the poll's newest reactions still inside the
// retention window, oldest first.
func (s *reactionService) Recent(pollID uuid.UUID, limit int) []domain.Reaction {
	if limit <= 0 {
		return nil
	}

	w, ok := s.windows.Get(pollID)
	if !ok {
		return nil
	}
	return w.newest(limit, s.now().Add(-s.cfg.Retention))
}

func (s *reactionService) Subscribe(ctx context.Context, pollID uuid.UUID) (ports.Stream[domain.Reaction], error) {
	if _, err := s.pollRepo.GetByID(ctx, pollID); err != nil {
		return nil, err
	}

	stream := s.bus.Subscribe(pollID)
	context.AfterFunc(ctx, stream.Close)
	return stream, nil
}

// window returns the poll's reaction window and keeps it alive for another
// retention period.
func (s *reactionService) window(pollID uuid.UUID) *reactionWindow {
	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()
	w, ok := s.windows.Get(pollID)
	if !ok {
		w = &reactionWindow{}
	}
	s.windows.Add(pollID, w)
	return w
}

func (s *reactionService) limiter(pollID uuid.UUID, senderID string) *rate.Limiter {
	key := pollID.String() + "/" + senderID

	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()
	if l, ok := s.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(s.cfg.Rate, s.cfg.Burst)
	s.limiters.Add(key, l)
	return l
}

func validateEmoji(emoji string) error {
	if emoji == "" {
		return &domain.ValidationError{Field: "emoji", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(emoji) > maxEmojiRunes {
		return &domain.ValidationError{Field: "emoji", Reason: "too long"}
	}
	for _, r := range emoji {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsControl(r) {
			return &domain.ValidationError{Field: "emoji", Reason: "must be a single emoji"}
		}
	}
	return nil
}

// reactionWindow holds a poll's newest reactions, oldest first.
type reactionWindow struct {
	mu    sync.Mutex
	items []domain.Reaction
}

func (w *reactionWindow) add(r domain.Reaction, size int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, r)
	if over := len(w.items) - size; over > 0 {
		w.items = slices.Delete(w.items, 0, over)
	}
}

// newest returns up to limit reactions sent at or after since, oldest first.
func (w *reactionWindow) newest(limit int, since time.Time) []domain.Reaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	start := len(w.items)
	for start > 0 && len(w.items)-start < limit && !w.items[start-1].SentAt.Before(since) {
		start--
	}
	return slices.Clone(w.items[start:])
}
