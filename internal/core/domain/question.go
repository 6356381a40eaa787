package domain

import (
	"fmt"
	"slices"
)

const (
	DefaultTimeLimitSeconds = 30
	DefaultOpenPoints       = 10
)

type QuestionKind string

const (
	KindMultiple QuestionKind = "multiple"
	KindOpen     QuestionKind = "open"
)

// Question is either a *MultipleChoiceQuestion or an *OpenQuestion.
type Question interface {
	Kind() QuestionKind
	Common() *QuestionBase
}

type QuestionBase struct {
	ID               int    `json:"id"`
	Text             string `json:"text"`
	ImageURL         string `json:"image_url,omitempty"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

func (b *QuestionBase) Common() *QuestionBase { return b }

type Option struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type MultipleChoiceQuestion struct {
	QuestionBase
	Options []Option
	// CorrectOptions is empty when the question has no defined answer.
	CorrectOptions []int
	AllowMultiple  bool
	Points         int
}

func (q *MultipleChoiceQuestion) Kind() QuestionKind { return KindMultiple }

// Evaluate grades a selection. Multi-select answers are correct only when the
// selected set equals the correct set exactly. On a graded poll type a question
// without correct options marks every selection wrong.
func (q *MultipleChoiceQuestion) Evaluate(selected []int, cfg TypeConfig) *bool {
	if !cfg.HasCorrectAnswer {
		return nil
	}

	want := slices.Clone(q.CorrectOptions)
	got := slices.Clone(selected)
	slices.Sort(want)
	slices.Sort(got)
	correct := slices.Equal(want, got)
	return &correct
}

type OpenQuestion struct {
	QuestionBase
	ReferenceAnswer string
	Points          int
}

func (q *OpenQuestion) Kind() QuestionKind { return KindOpen }

// QuestionJSON is the flat wire and storage form of a Question.
type QuestionJSON struct {
	ID               int          `json:"id"`
	Type             QuestionKind `json:"question_type"`
	Text             string       `json:"text"`
	ImageURL         string       `json:"image_url,omitempty"`
	TimeLimitSeconds int          `json:"time_limit_seconds,omitempty"`
	Options          []Option     `json:"options,omitempty"`
	CorrectOptions   []int        `json:"correct_options,omitempty"`
	AllowMultiple    bool         `json:"allow_multiple,omitempty"`
	ReferenceAnswer  string       `json:"reference_answer,omitempty"`
	Points           int          `json:"points,omitempty"`
}

func EncodeQuestion(q Question) QuestionJSON {
	switch v := q.(type) {
	case *MultipleChoiceQuestion:
		return QuestionJSON{
			ID:               v.ID,
			Type:             KindMultiple,
			Text:             v.Text,
			ImageURL:         v.ImageURL,
			TimeLimitSeconds: v.TimeLimitSeconds,
			Options:          v.Options,
			CorrectOptions:   v.CorrectOptions,
			AllowMultiple:    v.AllowMultiple,
			Points:           v.Points,
		}
	case *OpenQuestion:
		return QuestionJSON{
			ID:               v.ID,
			Type:             KindOpen,
			Text:             v.Text,
			ImageURL:         v.ImageURL,
			TimeLimitSeconds: v.TimeLimitSeconds,
			ReferenceAnswer:  v.ReferenceAnswer,
			Points:           v.Points,
		}
	}
	return QuestionJSON{}
}

// Decode converts the flat form into its variant. An empty type means multiple.
func (j QuestionJSON) Decode() (Question, error) {
	base := QuestionBase{
		ID:               j.ID,
		Text:             j.Text,
		ImageURL:         j.ImageURL,
		TimeLimitSeconds: j.TimeLimitSeconds,
	}

	switch j.Type {
	case KindMultiple, "":
		return &MultipleChoiceQuestion{
			QuestionBase:   base,
			Options:        j.Options,
			CorrectOptions: j.CorrectOptions,
			AllowMultiple:  j.AllowMultiple,
			Points:         j.Points,
		}, nil
	case KindOpen:
		return &OpenQuestion{
			QuestionBase:    base,
			ReferenceAnswer: j.ReferenceAnswer,
			Points:          j.Points,
		}, nil
	}
	return nil, &ValidationError{Field: "question_type", Reason: fmt.Sprintf("unknown question type %q", j.Type)}
}

func DecodeQuestions(raw []QuestionJSON) ([]Question, error) {
	questions := make([]Question, 0, len(raw))
	for i, j := range raw {
		q, err := j.Decode()
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}
