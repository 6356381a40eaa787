// Package metrics exposes engine activity as prometheus collectors.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

const namespace = "livepoll"

const (
	LabelPollType = "poll_type"
	LabelCorrect  = "correct"
	LabelReason   = "reason"
	LabelChanged  = "changed"
	LabelKind     = "kind"
)

type EngineCollector struct {
	votesAccepted     *prometheus.CounterVec
	votesRejected     *prometheus.CounterVec
	conflictRetries   prometheus.Counter
	advances          *prometheus.CounterVec
	subscriptions     *prometheus.GaugeVec
	subscriptionsSeen *prometheus.CounterVec
	reactions         prometheus.Counter
}

var _ ports.EngineMetrics = (*EngineCollector)(nil)

// NewEngineCollector registers the engine collectors on reg.
func NewEngineCollector(reg prometheus.Registerer) *EngineCollector {
	factory := promauto.With(reg)
	return &EngineCollector{
		votesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "accepted_total",
			Help:      "number of votes accepted, by poll type and correctness",
		}, []string{LabelPollType, LabelCorrect}),
		votesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "rejected_total",
			Help:      "number of votes rejected, by reason",
		}, []string{LabelReason}),
		conflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votes",
			Name:      "conflict_retries_total",
			Help:      "number of vote transactions retried after contention",
		}),
		advances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polls",
			Name:      "advances_total",
			Help:      "number of navigation requests, by whether the cursor moved",
		}, []string{LabelChanged}),
		subscriptions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "subscriptions",
			Help:      "number of open subscriptions, by stream kind",
		}, []string{LabelKind}),
		subscriptionsSeen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "subscriptions_opened_total",
			Help:      "number of subscriptions opened, by stream kind",
		}, []string{LabelKind}),
		reactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reactions",
			Name:      "sent_total",
			Help:      "number of reactions relayed",
		}),
	}
}

func (c *EngineCollector) VoteAccepted(pollType string, correct *bool) {
	label := "none"
	if correct != nil {
		label = strconv.FormatBool(*correct)
	}
	c.votesAccepted.WithLabelValues(pollType, label).Inc()
}

func (c *EngineCollector) VoteRejected(reason string) {
	c.votesRejected.WithLabelValues(reason).Inc()
}

func (c *EngineCollector) VoteConflictRetried() {
	c.conflictRetries.Inc()
}

func (c *EngineCollector) QuestionAdvanced(changed bool) {
	c.advances.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

func (c *EngineCollector) SubscriptionOpened(kind string) {
	c.subscriptions.WithLabelValues(kind).Inc()
	c.subscriptionsSeen.WithLabelValues(kind).Inc()
}

func (c *EngineCollector) SubscriptionClosed(kind string) {
	c.subscriptions.WithLabelValues(kind).Dec()
}

func (c *EngineCollector) ReactionSent() {
	c.reactions.Inc()
}
