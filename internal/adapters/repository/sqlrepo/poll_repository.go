package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type pollRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewPollRepository(db *sql.DB, dialect Dialect) ports.PollRepository {
	return &pollRepository{
		db:      db,
		dialect: dialect,
	}
}

func (r *pollRepository) q(query string) string {
	return r.dialect.Rebind(query)
}

func (r *pollRepository) Save(ctx context.Context, poll *domain.Poll) error {
	return withTx(ctx, r.db, r.dialect, func(tx *sql.Tx) error {
		queryPoll := `
			INSERT INTO polls (id, title, poll_type, status, current_question_index, question_started_at, creator_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.ExecContext(ctx, r.q(queryPoll),
			poll.ID, poll.Title, string(poll.Type), string(poll.Status), poll.CurrentQuestionIndex,
			poll.QuestionStartedAt, poll.CreatorID, poll.CreatedAt, poll.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert poll: %w", err)
		}

		return r.insertQuestions(ctx, tx, poll)
	})
}

func (r *pollRepository) insertQuestions(ctx context.Context, tx *sql.Tx, poll *domain.Poll) error {
	queryQuestion := `
		INSERT INTO questions (poll_id, position, question_type, text, image_url, time_limit_seconds, allow_multiple, correct_options, reference_answer, points)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	questionStmt, err := tx.PrepareContext(ctx, r.q(queryQuestion))
	if err != nil {
		return fmt.Errorf("failed to prepare question statement: %w", err)
	}
	defer questionStmt.Close()

	queryOption := `
		INSERT INTO question_options (poll_id, question_position, position, text)
		VALUES ($1, $2, $3, $4)
	`
	optionStmt, err := tx.PrepareContext(ctx, r.q(queryOption))
	if err != nil {
		return fmt.Errorf("failed to prepare option statement: %w", err)
	}
	defer optionStmt.Close()

	for pos, q := range poll.Questions {
		j := domain.EncodeQuestion(q)
		_, err = questionStmt.ExecContext(ctx,
			poll.ID, pos, string(j.Type), j.Text, j.ImageURL, j.TimeLimitSeconds,
			j.AllowMultiple, encodeInts(j.CorrectOptions), j.ReferenceAnswer, j.Points,
		)
		if err != nil {
			return fmt.Errorf("failed to insert question %d: %w", pos, err)
		}

		for optPos, opt := range j.Options {
			if _, err = optionStmt.ExecContext(ctx, poll.ID, pos, optPos, opt.Text); err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
	}
	return nil
}

const pollColumns = `id, title, poll_type, status, current_question_index, question_started_at, creator_id, created_at, updated_at`

func scanPoll(row interface{ Scan(...any) error }, poll *domain.Poll) error {
	var pollType, status string
	err := row.Scan(
		&poll.ID, &poll.Title, &pollType, &status, &poll.CurrentQuestionIndex,
		&poll.QuestionStartedAt, &poll.CreatorID, &poll.CreatedAt, &poll.UpdatedAt,
	)
	poll.Type = domain.PollType(pollType)
	poll.Status = domain.PollStatus(status)
	return err
}

func (r *pollRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	queryPoll := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	var poll domain.Poll
	err := scanPoll(r.db.QueryRowContext(ctx, r.q(queryPoll), id), &poll)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	questions, err := r.fetchQuestions(ctx, r.db, poll.ID)
	if err != nil {
		return nil, err
	}
	poll.Questions = questions

	return &poll, nil
}

func (r *pollRepository) GetAll(ctx context.Context) ([]*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, r.q(query))
	if err != nil {
		return nil, fmt.Errorf("failed to get all polls: %w", err)
	}

	return r.scanPolls(ctx, rows)
}

func (r *pollRepository) List(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Poll, error) {
	query := `
		SELECT ` + pollColumns + `
		FROM polls
		WHERE ($1 = '' OR creator_id = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, r.q(query), creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}

	return r.scanPolls(ctx, rows)
}

// scanPolls drains rows before loading questions, so it never holds two
// connections at once.
func (r *pollRepository) scanPolls(ctx context.Context, rows *sql.Rows) ([]*domain.Poll, error) {
	var polls []*domain.Poll
	for rows.Next() {
		var poll domain.Poll
		if err := scanPoll(rows, &poll); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, &poll)
	}
	err := rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}

	for _, poll := range polls {
		questions, err := r.fetchQuestions(ctx, r.db, poll.ID)
		if err != nil {
			return nil, err
		}
		poll.Questions = questions
	}
	return polls, nil
}

func (r *pollRepository) fetchQuestions(ctx context.Context, db querier, pollID uuid.UUID) ([]domain.Question, error) {
	queryQuestions := `
		SELECT position, question_type, text, image_url, time_limit_seconds, allow_multiple, correct_options, reference_answer, points
		FROM questions
		WHERE poll_id = $1
		ORDER BY position
	`
	rows, err := db.QueryContext(ctx, r.q(queryQuestions), pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	var raw []domain.QuestionJSON
	for rows.Next() {
		var j domain.QuestionJSON
		var kind, correct string
		if err := rows.Scan(&j.ID, &kind, &j.Text, &j.ImageURL, &j.TimeLimitSeconds, &j.AllowMultiple, &correct, &j.ReferenceAnswer, &j.Points); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		j.Type = domain.QuestionKind(kind)
		if j.CorrectOptions, err = decodeInts(correct); err != nil {
			rows.Close()
			return nil, err
		}
		raw = append(raw, j)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	options, err := r.fetchOptions(ctx, db, pollID)
	if err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i].Options = options[raw[i].ID]
	}

	return domain.DecodeQuestions(raw)
}

func (r *pollRepository) fetchOptions(ctx context.Context, db querier, pollID uuid.UUID) (map[int][]domain.Option, error) {
	queryOptions := `
		SELECT question_position, position, text
		FROM question_options
		WHERE poll_id = $1
		ORDER BY question_position, position
	`
	rows, err := db.QueryContext(ctx, r.q(queryOptions), pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question options: %w", err)
	}
	defer rows.Close()

	options := make(map[int][]domain.Option)
	for rows.Next() {
		var question int
		var opt domain.Option
		if err := rows.Scan(&question, &opt.ID, &opt.Text); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options[question] = append(options[question], opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}

func (r *pollRepository) UpdateDefinition(ctx context.Context, poll *domain.Poll, replaceQuestions bool) error {
	return withTx(ctx, r.db, r.dialect, func(tx *sql.Tx) error {
		var status string
		query := `SELECT status FROM polls WHERE id = $1` + r.dialect.UpdateLock()
		if err := tx.QueryRowContext(ctx, r.q(query), poll.ID).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrPollNotFound
			}
			return fmt.Errorf("failed to lock poll: %w", err)
		}
		if replaceQuestions && domain.PollStatus(status) != domain.StatusWaiting {
			return domain.ErrPollLocked
		}

		// Lifecycle columns are deliberately absent so a live cursor is never clobbered.
		update := `UPDATE polls SET title = $1, poll_type = $2, updated_at = $3 WHERE id = $4`
		if _, err := tx.ExecContext(ctx, r.q(update), poll.Title, string(poll.Type), poll.UpdatedAt, poll.ID); err != nil {
			return fmt.Errorf("failed to update poll: %w", err)
		}

		if !replaceQuestions {
			return nil
		}
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM question_options WHERE poll_id = $1`), poll.ID); err != nil {
			return fmt.Errorf("failed to delete options: %w", err)
		}
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM questions WHERE poll_id = $1`), poll.ID); err != nil {
			return fmt.Errorf("failed to delete questions: %w", err)
		}
		return r.insertQuestions(ctx, tx, poll)
	})
}

func (r *pollRepository) SwapCursor(ctx context.Context, id uuid.UUID, from, to domain.Cursor, at time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if to.Status == domain.StatusLive {
		query := `
			UPDATE polls
			SET current_question_index = $1, status = $2, question_started_at = $3, updated_at = $3
			WHERE id = $4 AND current_question_index = $5 AND status = $6
		`
		res, err = r.db.ExecContext(ctx, r.q(query), to.Index, string(to.Status), at, id, from.Index, string(from.Status))
	} else {
		query := `
			UPDATE polls
			SET current_question_index = $1, status = $2, updated_at = $3
			WHERE id = $4 AND current_question_index = $5 AND status = $6
		`
		res, err = r.db.ExecContext(ctx, r.q(query), to.Index, string(to.Status), at, id, from.Index, string(from.Status))
	}
	if err != nil {
		return false, classify(r.dialect, fmt.Errorf("failed to swap poll cursor: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *pollRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, r.db, r.dialect, func(tx *sql.Tx) error {
		children := []string{
			`DELETE FROM scores WHERE poll_id = $1`,
			`DELETE FROM option_counts WHERE poll_id = $1`,
			`DELETE FROM question_totals WHERE poll_id = $1`,
			`DELETE FROM votes WHERE poll_id = $1`,
			`DELETE FROM question_options WHERE poll_id = $1`,
			`DELETE FROM questions WHERE poll_id = $1`,
		}
		for _, query := range children {
			if _, err := tx.ExecContext(ctx, r.q(query), id); err != nil {
				return fmt.Errorf("failed to cascade poll delete: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, r.q(`DELETE FROM polls WHERE id = $1`), id)
		if err != nil {
			return fmt.Errorf("failed to delete poll: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return domain.ErrPollNotFound
		}
		return nil
	})
}
