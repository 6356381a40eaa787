package domain

import (
	"sort"

	"github.com/google/uuid"
)

// ScoreDelta is applied to a participant's score in the same transaction that
// accepts their vote.
type ScoreDelta struct {
	PollID          uuid.UUID
	ParticipantID   string
	ParticipantName string
	Points          int64
	ResponseTimeMs  int64
}

type Score struct {
	PollID          uuid.UUID `json:"poll_id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Points          int64     `json:"points"`
	TotalTimeMs     int64     `json:"total_time_ms"`
}

type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	Points          int64  `json:"points"`
	TotalTimeMs     int64  `json:"total_time_ms"`
}

// Leaderboard is a ranked view of scores. PollID is uuid.Nil for the
// deployment-wide board.
type Leaderboard struct {
	PollID  uuid.UUID          `json:"poll_id"`
	Entries []LeaderboardEntry `json:"entries"`
}

// RankScores orders by points descending, then cumulative response time
// ascending, then participant id, and assigns 1-based ranks.
func RankScores(scores []Score) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(scores))
	for _, s := range scores {
		entries = append(entries, LeaderboardEntry{
			ParticipantID:   s.ParticipantID,
			ParticipantName: s.ParticipantName,
			Points:          s.Points,
			TotalTimeMs:     s.TotalTimeMs,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.TotalTimeMs != b.TotalTimeMs {
			return a.TotalTimeMs < b.TotalTimeMs
		}
		return a.ParticipantID < b.ParticipantID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
