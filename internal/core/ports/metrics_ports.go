package ports

type EngineMetrics interface {
	VoteAccepted(pollType string, correct *bool)
	VoteRejected(reason string)
	VoteConflictRetried()
	QuestionAdvanced(changed bool)
	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
	ReactionSent()
}
