package domain

import (
	"time"

	"github.com/google/uuid"
)

// PollSnapshot is what subscribers of a poll receive. Aggregate covers only
// the current question.
type PollSnapshot struct {
	PollID               uuid.UUID    `json:"poll_id"`
	Title                string       `json:"title"`
	Type                 PollType     `json:"type"`
	Status               PollStatus   `json:"status"`
	CurrentQuestionIndex int          `json:"current_question_index"`
	QuestionCount        int          `json:"question_count"`
	Question             QuestionJSON `json:"question"`
	QuestionStartedAt    *time.Time   `json:"question_started_at,omitempty"`
	Aggregate            *Aggregate   `json:"aggregate,omitempty"`
	ParticipantCount     int          `json:"participant_count"`
	GeneratedAt          time.Time    `json:"generated_at"`
}

// PublicQuestion strips answer keys so participants cannot read them.
func PublicQuestion(q Question) QuestionJSON {
	j := EncodeQuestion(q)
	j.CorrectOptions = nil
	j.ReferenceAnswer = ""
	return j
}

// Public returns a copy of the poll whose questions carry no answer keys.
func (p Poll) Public() Poll {
	questions := make([]Question, 0, len(p.Questions))
	for _, q := range p.Questions {
		stripped, err := PublicQuestion(q).Decode()
		if err != nil {
			continue
		}
		questions = append(questions, stripped)
	}
	p.Questions = questions
	return p
}
