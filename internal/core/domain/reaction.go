package domain

import (
	"time"

	"github.com/google/uuid"
)

type Reaction struct {
	ID       uuid.UUID `json:"id"`
	PollID   uuid.UUID `json:"poll_id"`
	Emoji    string    `json:"emoji"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}
