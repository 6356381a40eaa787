package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionNormalize(t *testing.T) {
	def := Definition{
		Title: "  Trivia  ",
		Questions: []Question{
			&MultipleChoiceQuestion{
				QuestionBase: QuestionBase{ID: 7, Text: " First "},
				Options:      []Option{{ID: 9, Text: " A "}, {ID: 9, Text: "B"}},
			},
			&OpenQuestion{QuestionBase: QuestionBase{Text: "Second"}},
		},
	}

	def.Normalize()

	assert.Equal(t, "Trivia", def.Title)
	assert.Equal(t, PollTypeContest, def.Type)

	mc := def.Questions[0].(*MultipleChoiceQuestion)
	assert.Equal(t, 0, mc.ID)
	assert.Equal(t, "First", mc.Text)
	assert.Equal(t, DefaultTimeLimitSeconds, mc.TimeLimitSeconds)
	assert.Equal(t, []Option{{ID: 0, Text: "A"}, {ID: 1, Text: "B"}}, mc.Options)

	open := def.Questions[1].(*OpenQuestion)
	assert.Equal(t, 1, open.ID)
	assert.Equal(t, DefaultOpenPoints, open.Points)
}

func TestDefinitionNormalizeDropsSurveyAnswerKeys(t *testing.T) {
	def := Definition{
		Title: "Feedback",
		Type:  PollTypeSurvey,
		Questions: []Question{
			&MultipleChoiceQuestion{Options: []Option{{Text: "A"}, {Text: "B"}}, CorrectOptions: []int{1}},
		},
	}

	def.Normalize()

	assert.Nil(t, def.Questions[0].(*MultipleChoiceQuestion).CorrectOptions)
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{
			name: "valid contest",
			def: Definition{Title: "T", Type: PollTypeContest, Questions: []Question{
				&MultipleChoiceQuestion{QuestionBase: QuestionBase{Text: "Q"}, Options: []Option{{Text: "A"}, {Text: "B"}}, CorrectOptions: []int{0}},
			}},
		},
		{
			name:    "missing title",
			def:     Definition{Type: PollTypeContest, Questions: []Question{&MultipleChoiceQuestion{QuestionBase: QuestionBase{Text: "Q"}, Options: []Option{{Text: "A"}, {Text: "B"}}}}},
			wantErr: true,
		},
		{
			name:    "no questions",
			def:     Definition{Title: "T", Type: PollTypeContest},
			wantErr: true,
		},
		{
			name:    "unknown type",
			def:     Definition{Title: "T", Type: "trivia", Questions: []Question{&MultipleChoiceQuestion{QuestionBase: QuestionBase{Text: "Q"}, Options: []Option{{Text: "A"}, {Text: "B"}}}}},
			wantErr: true,
		},
		{
			name:    "open question outside an exam",
			def:     Definition{Title: "T", Type: PollTypeQuiz, Questions: []Question{&OpenQuestion{QuestionBase: QuestionBase{Text: "Q"}}}},
			wantErr: true,
		},
		{
			name:    "open question in an exam",
			def:     Definition{Title: "T", Type: PollTypeExam, Questions: []Question{&OpenQuestion{QuestionBase: QuestionBase{Text: "Q"}}}},
			wantErr: false,
		},
		{
			name:    "correct option out of range",
			def:     Definition{Title: "T", Type: PollTypeContest, Questions: []Question{&MultipleChoiceQuestion{QuestionBase: QuestionBase{Text: "Q"}, Options: []Option{{Text: "A"}, {Text: "B"}}, CorrectOptions: []int{5}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestDefinitionValidateReportsEveryProblem(t *testing.T) {
	def := Definition{Type: "nope"}

	err := def.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, err.Error(), "type")
	assert.Contains(t, err.Error(), "questions")
}
