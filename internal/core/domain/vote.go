package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vote is one accepted submission, unique per (PollID, QuestionIndex, ParticipantID).
type Vote struct {
	ID              uuid.UUID    `json:"id"`
	PollID          uuid.UUID    `json:"poll_id"`
	QuestionIndex   int          `json:"question_index"`
	QuestionKind    QuestionKind `json:"question_type"`
	ParticipantID   string       `json:"participant_id"`
	ParticipantName string       `json:"participant_name"`
	SelectedOptions []int        `json:"selected_options,omitempty"`
	Answer          string       `json:"answer,omitempty"`
	// Correct is nil when the poll type or question defines no correct answer.
	Correct *bool `json:"correct"`
	// Points is the question's value; AwardedPoints is what the vote added to
	// the participant's score.
	Points        int       `json:"points,omitempty"`
	AwardedPoints int64     `json:"awarded_points"`
	LatencyMs     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Payload is what a participant submits for the current question: option
// indices for a multiple-choice question or free text for an open one.
type Payload struct {
	Options []int  `json:"options,omitempty"`
	Answer  string `json:"answer,omitempty"`
}

// Apply validates the payload against the question and fills the vote's answer
// fields. Nothing is recorded when it fails.
func (p Payload) Apply(q Question, cfg TypeConfig, v *Vote) error {
	v.QuestionKind = q.Kind()

	switch q := q.(type) {
	case *MultipleChoiceQuestion:
		if len(p.Options) == 0 {
			return &ValidationError{Field: "options", Reason: "at least one option must be selected"}
		}
		if !q.AllowMultiple && len(p.Options) != 1 {
			return &ValidationError{Field: "options", Reason: "exactly one option must be selected"}
		}

		selected := slices.Clone(p.Options)
		slices.Sort(selected)
		for i, idx := range selected {
			if idx < 0 || idx >= len(q.Options) {
				return &ValidationError{Field: "options", Reason: fmt.Sprintf("option %d out of range", idx)}
			}
			if i > 0 && selected[i-1] == idx {
				return &ValidationError{Field: "options", Reason: fmt.Sprintf("option %d selected twice", idx)}
			}
		}

		v.SelectedOptions = selected
		v.Correct = q.Evaluate(selected, cfg)
		v.Points = q.Points
	case *OpenQuestion:
		answer := strings.TrimSpace(p.Answer)
		if answer == "" {
			return &ValidationError{Field: "answer", Reason: "must not be empty"}
		}
		v.Answer = answer
		v.Points = q.Points
	default:
		return &ValidationError{Field: "question", Reason: "unsupported question"}
	}
	return nil
}

// Receipt is returned to the submitting participant for immediate feedback.
type Receipt struct {
	VoteID        uuid.UUID `json:"vote_id"`
	QuestionIndex int       `json:"question_index"`
	Correct       *bool     `json:"correct"`
	AcceptedAt    time.Time `json:"accepted_at"`
}
