package sqlrepo

import (
	"database/sql"

	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// Store bundles the repositories sharing one database handle.
type Store struct {
	DB         *sql.DB
	Dialect    Dialect
	Polls      ports.PollRepository
	Votes      ports.VoteRepository
	Aggregates ports.AggregateRepository
	Scores     ports.ScoreRepository
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		DB:         db,
		Dialect:    dialect,
		Polls:      NewPollRepository(db, dialect),
		Votes:      NewVoteRepository(db, dialect),
		Aggregates: NewAggregateRepository(db, dialect),
		Scores:     NewScoreRepository(db, dialect),
	}
}

func (s *Store) Close() error {
	return s.DB.Close()
}
