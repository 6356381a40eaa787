package metrics

import "github.com/vncsmyrnk/livepoll/internal/core/ports"

type NoopCollector struct{}

var _ ports.EngineMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) VoteAccepted(string, *bool) {}
func (nc *NoopCollector) VoteRejected(string)        {}
func (nc *NoopCollector) VoteConflictRetried()       {}
func (nc *NoopCollector) QuestionAdvanced(bool)      {}
func (nc *NoopCollector) SubscriptionOpened(string)  {}
func (nc *NoopCollector) SubscriptionClosed(string)  {}
func (nc *NoopCollector) ReactionSent()              {}
