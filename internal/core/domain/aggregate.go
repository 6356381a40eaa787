package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is the tally of accepted votes for one question. Total counts
// voters, so a multi-select vote adds one to Total and one to each option.
type Aggregate struct {
	PollID        uuid.UUID     `json:"poll_id"`
	QuestionIndex int           `json:"question_index"`
	QuestionKind  QuestionKind  `json:"question_type"`
	Options       []OptionStats `json:"options,omitempty"`
	Total         int64         `json:"total"`
	OpenAnswers   []OpenAnswer  `json:"open_answers,omitempty"`
	LastUpdatedAt *time.Time    `json:"last_updated_at,omitempty"`
}

type OptionStats struct {
	OptionIndex int     `json:"option_index"`
	VoteCount   int64   `json:"vote_count"`
	Percentage  float64 `json:"percentage"`
}

type OpenAnswer struct {
	ParticipantName string    `json:"participant_name"`
	Answer          string    `json:"answer"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// NewAggregate lays out one zeroed slot per option of q.
func NewAggregate(pollID uuid.UUID, index int, q Question) *Aggregate {
	agg := &Aggregate{PollID: pollID, QuestionIndex: index}
	if q == nil {
		return agg
	}
	agg.QuestionKind = q.Kind()
	if mc, ok := q.(*MultipleChoiceQuestion); ok {
		agg.Options = make([]OptionStats, len(mc.Options))
		for i := range agg.Options {
			agg.Options[i].OptionIndex = i
		}
	}
	return agg
}

// SetCount records an option counter. Unknown options are ignored.
func (a *Aggregate) SetCount(option int, count int64) {
	if option < 0 || option >= len(a.Options) {
		return
	}
	a.Options[option].VoteCount = count
}

// ComputePercentages derives each option's share of the voters.
func (a *Aggregate) ComputePercentages() {
	for i := range a.Options {
		a.Options[i].Percentage = 0
		if a.Total > 0 {
			a.Options[i].Percentage = (float64(a.Options[i].VoteCount) / float64(a.Total)) * 100
		}
	}
}
