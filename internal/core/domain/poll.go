package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PollType string

const (
	PollTypeContest PollType = "contest"
	PollTypeSurvey  PollType = "survey"
	PollTypeQuiz    PollType = "quiz"
	PollTypeExam    PollType = "exam"
)

// TypeConfig describes the scoring rules shared by every poll of a type.
type TypeConfig struct {
	HasCorrectAnswer   bool
	AllowsOpenQuestion bool
}

var typeConfigs = map[PollType]TypeConfig{
	PollTypeContest: {HasCorrectAnswer: true},
	PollTypeSurvey:  {HasCorrectAnswer: false},
	PollTypeQuiz:    {HasCorrectAnswer: true},
	PollTypeExam:    {HasCorrectAnswer: true, AllowsOpenQuestion: true},
}

func (t PollType) Valid() bool {
	_, ok := typeConfigs[t]
	return ok
}

func (t PollType) Config() TypeConfig {
	return typeConfigs[t]
}

type PollStatus string

const (
	StatusWaiting PollStatus = "waiting"
	StatusLive    PollStatus = "live"
	StatusEnded   PollStatus = "ended"
)

type Poll struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	Type                 PollType   `json:"type"`
	Questions            []Question `json:"questions"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	Status               PollStatus `json:"status"`
	CreatorID            string     `json:"creator_id"`
	QuestionStartedAt    *time.Time `json:"question_started_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Cursor is the mutable part of a poll that AdvanceQuestion swaps atomically.
type Cursor struct {
	Index  int        `json:"index"`
	Status PollStatus `json:"status"`
}

func (p *Poll) Cursor() Cursor {
	return Cursor{Index: p.CurrentQuestionIndex, Status: p.Status}
}

func (p *Poll) CurrentQuestion() Question {
	if p.CurrentQuestionIndex < 0 || p.CurrentQuestionIndex >= len(p.Questions) {
		return nil
	}
	return p.Questions[p.CurrentQuestionIndex]
}

func (p *Poll) CanManage(actor Actor) bool {
	return actor.IsAdmin || (actor.ID != "" && actor.ID == p.CreatorID)
}

// Move returns the cursor a navigation step would produce and whether it differs
// from the current one. The first step on a waiting poll only opens the current
// question. Out of range steps and ended polls leave the cursor as is.
func (p *Poll) Move(direction int) (Cursor, bool) {
	cur := p.Cursor()
	switch cur.Status {
	case StatusEnded:
		return cur, false
	case StatusWaiting:
		return Cursor{Index: cur.Index, Status: StatusLive}, true
	}

	next := cur
	if idx := cur.Index + direction; idx >= 0 && idx < len(p.Questions) {
		next.Index = idx
	}
	return next, next != cur
}

type pollJSON struct {
	ID                   uuid.UUID      `json:"id"`
	Title                string         `json:"title"`
	Type                 PollType       `json:"type"`
	Questions            []QuestionJSON `json:"questions"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	Status               PollStatus     `json:"status"`
	CreatorID            string         `json:"creator_id"`
	QuestionStartedAt    *time.Time     `json:"question_started_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (p Poll) MarshalJSON() ([]byte, error) {
	questions := make([]QuestionJSON, 0, len(p.Questions))
	for _, q := range p.Questions {
		questions = append(questions, EncodeQuestion(q))
	}
	return json.Marshal(pollJSON{
		ID:                   p.ID,
		Title:                p.Title,
		Type:                 p.Type,
		Questions:            questions,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Status:               p.Status,
		CreatorID:            p.CreatorID,
		QuestionStartedAt:    p.QuestionStartedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	})
}

func (p *Poll) UnmarshalJSON(data []byte) error {
	var raw pollJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	questions, err := DecodeQuestions(raw.Questions)
	if err != nil {
		return err
	}
	*p = Poll{
		ID:                   raw.ID,
		Title:                raw.Title,
		Type:                 raw.Type,
		Questions:            questions,
		CurrentQuestionIndex: raw.CurrentQuestionIndex,
		Status:               raw.Status,
		CreatorID:            raw.CreatorID,
		QuestionStartedAt:    raw.QuestionStartedAt,
		CreatedAt:            raw.CreatedAt,
		UpdatedAt:            raw.UpdatedAt,
	}
	return nil
}
