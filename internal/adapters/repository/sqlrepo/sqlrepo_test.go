package sqlrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/testutil"
)

func newPoll(t *testing.T, store *sqlrepo.Store, pollType domain.PollType, questions []domain.Question) *domain.Poll {
	t.Helper()

	def := domain.Definition{Title: "Trivia night", Type: pollType, Questions: questions}
	def.Normalize()
	require.NoError(t, def.Validate())

	now := time.Now().UTC().Truncate(time.Millisecond)
	poll := &domain.Poll{
		ID:        uuid.New(),
		Title:     def.Title,
		Type:      def.Type,
		Questions: def.Questions,
		Status:    domain.StatusWaiting,
		CreatorID: testutil.Operator().ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Polls.Save(context.Background(), poll))
	return poll
}

func goLive(t *testing.T, store *sqlrepo.Store, poll *domain.Poll) time.Time {
	t.Helper()

	at := time.Now().UTC()
	ok, err := store.Polls.SwapCursor(context.Background(), poll.ID, poll.Cursor(), domain.Cursor{Index: 0, Status: domain.StatusLive}, at)
	require.NoError(t, err)
	require.True(t, ok)
	return at
}

func newVote(poll *domain.Poll, index int, participant domain.Actor, options ...int) *domain.Vote {
	return &domain.Vote{
		ID:              uuid.New(),
		PollID:          poll.ID,
		QuestionIndex:   index,
		QuestionKind:    domain.KindMultiple,
		ParticipantID:   participant.ID,
		ParticipantName: participant.Name(),
		SelectedOptions: options,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestPollRoundTrip(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	questions := []domain.Question{
		testutil.Multiple("Capital of France?", []string{"Berlin", "Paris", "Rome", "Madrid"}, 1),
		testutil.Multiple("Primes?", []string{"2", "4", "5"}, 0, 2),
		testutil.Open("Why?", "because"),
	}
	questions[1].(*domain.MultipleChoiceQuestion).AllowMultiple = true
	poll := newPoll(t, store, domain.PollTypeExam, questions)

	got, err := store.Polls.GetByID(ctx, poll.ID)
	require.NoError(t, err)

	opts := cmp.Options{
		cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
	}
	if diff := cmp.Diff(poll, got, opts); diff != "" {
		t.Errorf("stored poll differs (-want +got):\n%s", diff)
	}
}

func TestPollGetByIDNotFound(t *testing.T) {
	store := testutil.NewStore(t)

	_, err := store.Polls.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestPollListByCreator(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	first := newPoll(t, store, domain.PollTypeContest, testutil.Questions(1))
	second := newPoll(t, store, domain.PollTypeContest, testutil.Questions(2))

	polls, err := store.Polls.List(ctx, testutil.Operator().ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, []uuid.UUID{polls[0].ID, polls[1].ID})

	polls, err = store.Polls.List(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, polls)

	all, err := store.Polls.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSwapCursorIsCompareAndSwap(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(3))
	goLive(t, store, poll)

	from := domain.Cursor{Index: 0, Status: domain.StatusLive}
	to := domain.Cursor{Index: 1, Status: domain.StatusLive}

	ok, err := store.Polls.SwapCursor(ctx, poll.ID, from, to, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Polls.SwapCursor(ctx, poll.ID, from, domain.Cursor{Index: 1, Status: domain.StatusLive}, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok, "a stale from cursor must not swap")

	got, err := store.Polls.GetByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, to, got.Cursor())
	assert.NotNil(t, got.QuestionStartedAt)
}

func TestUpdateDefinitionLocksQuestionsOnceLive(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(2))

	poll.Title = "Renamed"
	poll.Questions = testutil.Questions(3)
	def := domain.Definition{Title: poll.Title, Type: poll.Type, Questions: poll.Questions}
	def.Normalize()
	require.NoError(t, store.Polls.UpdateDefinition(ctx, poll, true))

	got, err := store.Polls.GetByID(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Len(t, got.Questions, 3)

	goLive(t, store, got)
	err = store.Polls.UpdateDefinition(ctx, got, true)
	assert.ErrorIs(t, err, domain.ErrPollLocked)

	got.Title = "Live rename"
	require.NoError(t, store.Polls.UpdateDefinition(ctx, got, false))
}

func TestRecordVoteUpdatesAggregateAndScore(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(1))
	goLive(t, store, poll)
	x := testutil.Participant(1)

	vote := newVote(poll, 0, x, 1)
	correct := true
	vote.Correct = &correct
	vote.AwardedPoints = 100
	vote.LatencyMs = 1200
	delta := &domain.ScoreDelta{PollID: poll.ID, ParticipantID: x.ID, ParticipantName: x.Name(), Points: 100, ResponseTimeMs: 1200}
	require.NoError(t, store.Votes.Record(ctx, vote, delta))

	again := newVote(poll, 0, x, 0)
	err := store.Votes.Record(ctx, again, &domain.ScoreDelta{PollID: poll.ID, ParticipantID: x.ID, Points: 100})
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	agg := domain.NewAggregate(poll.ID, 0, poll.Questions[0])
	require.NoError(t, store.Aggregates.GetAggregate(ctx, agg))
	assert.Equal(t, int64(1), agg.Total)
	assert.Equal(t, []int64{0, 1, 0}, counts(agg))
	assert.NotNil(t, agg.LastUpdatedAt)

	scores, err := store.Scores.ListScores(ctx, poll.ID, 10)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, int64(100), scores[0].Points)
	assert.Equal(t, int64(1200), scores[0].TotalTimeMs)

	voted, err := store.Votes.HasVoted(ctx, poll.ID, 0, x.ID)
	require.NoError(t, err)
	assert.True(t, voted)

	votes, err := store.Votes.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, vote.ID, votes[0].ID)
	assert.Equal(t, []int{1}, votes[0].SelectedOptions)
	require.NotNil(t, votes[0].Correct)
	assert.True(t, *votes[0].Correct)
}

func TestRecordRejectsStaleAndNotLive(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(2))

	err := store.Votes.Record(ctx, newVote(poll, 0, testutil.Participant(1), 0), nil)
	assert.ErrorIs(t, err, domain.ErrPollNotLive)

	goLive(t, store, poll)
	err = store.Votes.Record(ctx, newVote(poll, 1, testutil.Participant(1), 0), nil)
	assert.ErrorIs(t, err, domain.ErrStaleQuestion)

	agg := domain.NewAggregate(poll.ID, 0, poll.Questions[0])
	require.NoError(t, store.Aggregates.GetAggregate(ctx, agg))
	assert.Zero(t, agg.Total)
}

func TestConcurrentVotesAreNotLost(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeSurvey, testutil.Questions(1))
	goLive(t, store, poll)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := range voters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Votes.Record(ctx, newVote(poll, 0, testutil.Participant(i), 0), nil)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	agg := domain.NewAggregate(poll.ID, 0, poll.Questions[0])
	require.NoError(t, store.Aggregates.GetAggregate(ctx, agg))
	assert.Equal(t, int64(voters), agg.Total)
	assert.Equal(t, int64(voters), agg.Options[0].VoteCount)
}

func TestOpenAnswersAggregate(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeExam, []domain.Question{testutil.Open("Explain", "")})
	goLive(t, store, poll)

	for i, answer := range []string{"first", "second"} {
		v := newVote(poll, 0, testutil.Participant(i))
		v.QuestionKind = domain.KindOpen
		v.Answer = answer
		v.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Votes.Record(ctx, v, nil))
	}

	agg := domain.NewAggregate(poll.ID, 0, poll.Questions[0])
	require.NoError(t, store.Aggregates.GetAggregate(ctx, agg))
	assert.Equal(t, int64(2), agg.Total)
	require.Len(t, agg.OpenAnswers, 2)
	assert.Equal(t, "second", agg.OpenAnswers[0].Answer)
}

func TestRebuildAggregatesRepairsDrift(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(1))
	goLive(t, store, poll)

	for i := range 3 {
		v := newVote(poll, 0, testutil.Participant(i), i)
		correct := i == 1
		v.Correct = &correct
		delta := &domain.ScoreDelta{PollID: poll.ID, ParticipantID: v.ParticipantID, ParticipantName: v.ParticipantName}
		if correct {
			v.AwardedPoints = 100
			v.LatencyMs = 500
			delta.Points = 100
			delta.ResponseTimeMs = 500
		}
		require.NoError(t, store.Votes.Record(ctx, v, delta))
	}

	_, err := store.DB.ExecContext(ctx, `UPDATE question_totals SET vote_count = 42`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `UPDATE option_counts SET vote_count = 7`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `UPDATE scores SET points = 9999`)
	require.NoError(t, err)

	require.NoError(t, store.Aggregates.RebuildAggregates(ctx, poll.ID))

	agg := domain.NewAggregate(poll.ID, 0, poll.Questions[0])
	require.NoError(t, store.Aggregates.GetAggregate(ctx, agg))
	assert.Equal(t, int64(3), agg.Total)
	assert.Equal(t, []int64{1, 1, 1}, counts(agg))

	scores, err := store.Scores.ListScores(ctx, poll.ID, 10)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "participant-1", scores[0].ParticipantID)
	assert.Equal(t, int64(100), scores[0].Points)
	assert.Equal(t, int64(500), scores[0].TotalTimeMs)
	assert.Zero(t, scores[1].Points)

	err = store.Aggregates.RebuildAggregates(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestGlobalScoresSumAcrossPolls(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	x, y := testutil.Participant(1), testutil.Participant(2)

	for range 2 {
		poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(1))
		goLive(t, store, poll)
		require.NoError(t, store.Votes.Record(ctx, newVote(poll, 0, x, 1),
			&domain.ScoreDelta{PollID: poll.ID, ParticipantID: x.ID, ParticipantName: x.Name(), Points: 100, ResponseTimeMs: 100}))
		require.NoError(t, store.Votes.Record(ctx, newVote(poll, 0, y, 1),
			&domain.ScoreDelta{PollID: poll.ID, ParticipantID: y.ID, ParticipantName: y.Name(), Points: 100, ResponseTimeMs: 50}))
	}

	scores, err := store.Scores.ListScores(ctx, uuid.Nil, 10)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, y.ID, scores[0].ParticipantID)
	assert.Equal(t, int64(200), scores[0].Points)
	assert.Equal(t, int64(100), scores[0].TotalTimeMs)
	assert.Equal(t, int64(200), scores[1].Points)
}

func TestDeleteRemovesEverything(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	poll := newPoll(t, store, domain.PollTypeContest, testutil.Questions(1))
	goLive(t, store, poll)
	require.NoError(t, store.Votes.Record(ctx, newVote(poll, 0, testutil.Participant(1), 1), nil))

	require.NoError(t, store.Polls.Delete(ctx, poll.ID))

	_, err := store.Polls.GetByID(ctx, poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
	votes, err := store.Votes.ListByPoll(ctx, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	assert.ErrorIs(t, store.Polls.Delete(ctx, poll.ID), domain.ErrPollNotFound)
}

func counts(agg *domain.Aggregate) []int64 {
	out := make([]int64, len(agg.Options))
	for i, o := range agg.Options {
		out[i] = o.VoteCount
	}
	return out
}
