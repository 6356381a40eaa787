package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/adapters/metrics"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/testutil"
)

type pollChange struct {
	PollID uuid.UUID
	Urgent bool
}

// recorder is a ChangeNotifier that remembers what it was told.
type recorder struct {
	mu     sync.Mutex
	polls  []pollChange
	scores []uuid.UUID
}

func (r *recorder) PollChanged(pollID uuid.UUID, urgent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, pollChange{PollID: pollID, Urgent: urgent})
}

func (r *recorder) ScoresChanged(pollID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, pollID)
}

func (r *recorder) pollChanges() []pollChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pollChange(nil), r.polls...)
}

func (r *recorder) scoreChanges() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.scores...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = nil
	r.scores = nil
}

type testEnv struct {
	store    *sqlrepo.Store
	notifier *recorder
	polls    ports.PollService
	votes    ports.VoteService
	results  ports.ResultService
	boards   ports.LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewStore(t)
	notifier := &recorder{}
	noop := metrics.NewNoopCollector()

	return &testEnv{
		store:    store,
		notifier: notifier,
		polls:    NewPollService(store.Polls, notifier, noop, zerolog.Nop()),
		votes:    NewVoteService(store.Polls, store.Votes, notifier, noop, DefaultVoteConfig(), zerolog.Nop()),
		results:  NewResultService(store.Polls, store.Aggregates),
		boards:   NewLeaderboardService(store.Polls, store.Scores, 10),
	}
}

func (e *testEnv) createPoll(t *testing.T, pollType domain.PollType, questions ...domain.Question) *domain.Poll {
	t.Helper()

	poll, err := e.polls.Create(context.Background(), testutil.Operator(), ports.CreatePollInput{
		Title:     "Friday quiz",
		Type:      pollType,
		Questions: questions,
	})
	require.NoError(t, err)
	return poll
}

// livePoll creates a poll and starts it on its first question.
func (e *testEnv) livePoll(t *testing.T, pollType domain.PollType, questions ...domain.Question) *domain.Poll {
	t.Helper()

	poll := e.createPoll(t, pollType, questions...)
	res, err := e.polls.Start(context.Background(), testutil.Operator(), poll.ID)
	require.NoError(t, err)
	require.True(t, res.Changed)
	return res.Poll
}

func (e *testEnv) vote(actor domain.Actor, pollID uuid.UUID, index int, payload domain.Payload) (*domain.Receipt, error) {
	return e.votes.Vote(context.Background(), actor, ports.VoteInput{
		PollID:        pollID,
		QuestionIndex: index,
		Payload:       payload,
	})
}

func optionCounts(agg *domain.Aggregate) []int64 {
	counts := make([]int64, len(agg.Options))
	for i, o := range agg.Options {
		counts[i] = o.VoteCount
	}
	return counts
}
