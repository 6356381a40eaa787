// Package testutil provides sqlite-backed stores and poll fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlite"
	"github.com/vncsmyrnk/livepoll/internal/adapters/repository/sqlrepo"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// NewStore opens a fresh sqlite database in the test's temporary directory.
func NewStore(t testing.TB) *sqlrepo.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "livepoll.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func Operator() domain.Actor {
	return domain.Actor{ID: "operator", DisplayName: "Operator", CanCreate: true}
}

func Admin() domain.Actor {
	return domain.Actor{ID: "admin", DisplayName: "Admin", IsAdmin: true}
}

func Participant(n int) domain.Actor {
	return domain.Actor{ID: fmt.Sprintf("participant-%d", n), DisplayName: fmt.Sprintf("Participant %d", n)}
}

// Multiple builds a single-select question; correct lists the right options.
func Multiple(text string, options []string, correct ...int) *domain.MultipleChoiceQuestion {
	q := &domain.MultipleChoiceQuestion{
		QuestionBase:   domain.QuestionBase{Text: text},
		CorrectOptions: correct,
	}
	for _, o := range options {
		q.Options = append(q.Options, domain.Option{Text: o})
	}
	return q
}

func Open(text, reference string) *domain.OpenQuestion {
	return &domain.OpenQuestion{
		QuestionBase:    domain.QuestionBase{Text: text},
		ReferenceAnswer: reference,
	}
}

// Questions returns n single-select questions with options A, B and C where
// B is correct.
func Questions(n int) []domain.Question {
	questions := make([]domain.Question, 0, n)
	for i := range n {
		questions = append(questions, Multiple(fmt.Sprintf("Question %d", i+1), []string{"A", "B", "C"}, 1))
	}
	return questions
}
