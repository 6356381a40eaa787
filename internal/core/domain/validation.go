package domain

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Definition is the operator-authored, immutable content of a poll.
type Definition struct {
	Title     string
	Type      PollType
	Questions []Question
}

// Normalize fills defaults and assigns stable ids: a question's id is its
// position and an option's id is its position within the question.
func (d *Definition) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	if d.Type == "" {
		d.Type = PollTypeContest
	}

	for i, q := range d.Questions {
		if q == nil {
			continue
		}
		base := q.Common()
		base.ID = i
		base.Text = strings.TrimSpace(base.Text)
		if base.TimeLimitSeconds == 0 {
			base.TimeLimitSeconds = DefaultTimeLimitSeconds
		}

		switch v := q.(type) {
		case *MultipleChoiceQuestion:
			for j := range v.Options {
				v.Options[j].ID = j
				v.Options[j].Text = strings.TrimSpace(v.Options[j].Text)
			}
			if !d.Type.Config().HasCorrectAnswer {
				v.CorrectOptions = nil
			}
		case *OpenQuestion:
			if v.Points == 0 {
				v.Points = DefaultOpenPoints
			}
		}
	}
}

// Validate reports every problem in the definition at once.
func (d *Definition) Validate() error {
	var result *multierror.Error

	if d.Title == "" {
		result = multierror.Append(result, &ValidationError{Field: "title", Reason: "must not be empty"})
	}
	if !d.Type.Valid() {
		result = multierror.Append(result, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown poll type %q", d.Type)})
	}
	if len(d.Questions) == 0 {
		result = multierror.Append(result, &ValidationError{Field: "questions", Reason: "at least one question is required"})
	}

	for i, q := range d.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if q == nil {
			result = multierror.Append(result, &ValidationError{Field: field, Reason: "missing question"})
			continue
		}

		base := q.Common()
		if base.Text == "" {
			result = multierror.Append(result, &ValidationError{Field: field + ".text", Reason: "must not be empty"})
		}
		if base.TimeLimitSeconds < 0 {
			result = multierror.Append(result, &ValidationError{Field: field + ".time_limit_seconds", Reason: "must be positive"})
		}

		switch v := q.(type) {
		case *MultipleChoiceQuestion:
			result = multierror.Append(result, validateMultiple(field, v)...)
		case *OpenQuestion:
			if d.Type.Valid() && !d.Type.Config().AllowsOpenQuestion {
				result = multierror.Append(result, &ValidationError{Field: field + ".question_type", Reason: fmt.Sprintf("open questions are not allowed in a %s", d.Type)})
			}
			if v.Points < 0 {
				result = multierror.Append(result, &ValidationError{Field: field + ".points", Reason: "must not be negative"})
			}
		}
	}

	return result.ErrorOrNil()
}

func validateMultiple(field string, q *MultipleChoiceQuestion) []error {
	var errs []error

	if len(q.Options) < 2 {
		errs = append(errs, &ValidationError{Field: field + ".options", Reason: "at least two options are required"})
	}
	for j, opt := range q.Options {
		if opt.Text == "" {
			errs = append(errs, &ValidationError{Field: fmt.Sprintf("%s.options[%d]", field, j), Reason: "must not be empty"})
		}
	}

	seen := make(map[int]bool, len(q.CorrectOptions))
	for _, idx := range q.CorrectOptions {
		if idx < 0 || idx >= len(q.Options) {
			errs = append(errs, &ValidationError{Field: field + ".correct_options", Reason: fmt.Sprintf("option %d out of range", idx)})
		}
		if seen[idx] {
			errs = append(errs, &ValidationError{Field: field + ".correct_options", Reason: fmt.Sprintf("option %d listed twice", idx)})
		}
		seen[idx] = true
	}
	if !q.AllowMultiple && len(q.CorrectOptions) > 1 {
		errs = append(errs, &ValidationError{Field: field + ".correct_options", Reason: "single-select question has more than one correct option"})
	}
	return errs
}
