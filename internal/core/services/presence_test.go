package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPresenceCountsDistinctParticipants(t *testing.T) {
	presence := NewPresenceTracker()
	poll, other := uuid.New(), uuid.New()

	leaveA1 := presence.Join(poll, "a")
	leaveA2 := presence.Join(poll, "a")
	leaveB := presence.Join(poll, "b")
	presence.Join(other, "a")

	assert.Equal(t, 2, presence.Count(poll))
	assert.Equal(t, 1, presence.Count(other))

	leaveA1()
	leaveA1()
	assert.Equal(t, 2, presence.Count(poll))

	leaveA2()
	assert.Equal(t, 1, presence.Count(poll))

	leaveB()
	assert.Equal(t, 0, presence.Count(poll))
	assert.Equal(t, 1, presence.Count(other))
}
