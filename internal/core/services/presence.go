package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// presenceTracker counts distinct participants per poll. A participant with
// several open connections counts once.
type presenceTracker struct {
	mu    sync.Mutex
	polls map[uuid.UUID]map[string]int
}

func NewPresenceTracker() ports.PresenceTracker {
	return &presenceTracker{polls: make(map[uuid.UUID]map[string]int)}
}

func (p *presenceTracker) Join(pollID uuid.UUID, participantID string) func() {
	p.mu.Lock()
	conns, ok := p.polls[pollID]
	if !ok {
		conns = make(map[string]int)
		p.polls[pollID] = conns
	}
	conns[participantID]++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			conns := p.polls[pollID]
			conns[participantID]--
			if conns[participantID] <= 0 {
				delete(conns, participantID)
			}
			if len(conns) == 0 {
				delete(p.polls, pollID)
			}
		})
	}
}

func (p *presenceTracker) Count(pollID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polls[pollID])
}
