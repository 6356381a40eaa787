package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewEngineCollector(reg)

	correct, wrong := true, false
	c.VoteAccepted("contest", &correct)
	c.VoteAccepted("contest", &correct)
	c.VoteAccepted("contest", &wrong)
	c.VoteAccepted("survey", nil)
	c.VoteRejected("stale")
	c.VoteConflictRetried()
	c.QuestionAdvanced(true)
	c.QuestionAdvanced(false)
	c.SubscriptionOpened("poll_state")
	c.SubscriptionOpened("poll_state")
	c.SubscriptionClosed("poll_state")
	c.ReactionSent()

	assert.InDelta(t, 2, testutil.ToFloat64(c.votesAccepted.WithLabelValues("contest", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.votesAccepted.WithLabelValues("contest", "false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.votesAccepted.WithLabelValues("survey", "none")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.votesRejected.WithLabelValues("stale")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.conflictRetries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.advances.WithLabelValues("false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.subscriptions.WithLabelValues("poll_state")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.subscriptionsSeen.WithLabelValues("poll_state")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.reactions), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "livepoll_votes_accepted_total")
	assert.Contains(t, names, "livepoll_sync_subscriptions")
}
