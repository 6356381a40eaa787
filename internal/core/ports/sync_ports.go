package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// Stream is a long-lived subscription. Updates is closed when the stream ends;
// Err then tells why (nil after Close).
type Stream[V any] interface {
	Updates() <-chan V
	Err() error
	Close()
}

// Publisher fans the latest value of a key out to its subscribers.
type Publisher[K comparable, V any] interface {
	Subscribe(ctx context.Context, key K) (Stream[V], error)
	// Notify marks key as changed. Urgent changes skip coalescing.
	Notify(key K, urgent bool)
	Subscribers(key K) int
}

// EventBus delivers discrete events without history or ordering guarantees.
type EventBus[K comparable, V any] interface {
	Subscribe(key K) Stream[V]
	Publish(key K, event V)
}

// ChangeNotifier is told about committed state changes.
type ChangeNotifier interface {
	PollChanged(pollID uuid.UUID, urgent bool)
	ScoresChanged(pollID uuid.UUID)
}

type SnapshotSource interface {
	PollSnapshot(ctx context.Context, pollID uuid.UUID) (domain.PollSnapshot, error)
	Leaderboard(ctx context.Context, pollID uuid.UUID) (domain.Leaderboard, error)
}

type SyncService interface {
	ChangeNotifier
	// SubscribePollState streams snapshots of a poll. A non-operator subscriber
	// counts as a connected participant for as long as the stream is open.
	SubscribePollState(ctx context.Context, actor domain.Actor, pollID uuid.UUID) (Stream[domain.PollSnapshot], error)
	SubscribeLeaderboard(ctx context.Context, pollID uuid.UUID) (Stream[domain.Leaderboard], error)
}

type PresenceTracker interface {
	// Join registers one connection and returns the function that releases it.
	Join(pollID uuid.UUID, participantID string) (leave func())
	Count(pollID uuid.UUID) int
}

type ReactionService interface {
	Send(ctx context.Context, actor domain.Actor, pollID uuid.UUID, emoji string) (*domain.Reaction, error)
	Recent(pollID uuid.UUID, limit int) []domain.Reaction
	Subscribe(ctx context.Context, pollID uuid.UUID) (Stream[domain.Reaction], error)
}
