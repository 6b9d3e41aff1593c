package voter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ballot/internal/ballot"
	"ballot/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded voter roll.
type InMemory struct {
	mu     sync.RWMutex
	voters map[string]ballot.VoterStatus
}

func NewInMemory() *InMemory {
	return &InMemory{voters: make(map[string]ballot.VoterStatus)}
}

// Save registers or updates a voter. An existing has_voted flag is kept.
func (s *InMemory) Save(_ context.Context, v ballot.VoterStatus) error {
	if v.VoterID == "" {
		return fmt.Errorf("voter id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.voters[v.VoterID]; ok && existing.HasVoted {
		v.HasVoted = true
		v.VotedAt = existing.VotedAt
	}
	s.voters[v.VoterID] = v
	return nil
}

func (s *InMemory) GetStatus(_ context.Context, voterID string) (ballot.VoterStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voters[voterID]
	if !ok {
		return ballot.VoterStatus{}, sentinel.ErrNotFound
	}
	return v, nil
}

func (s *InMemory) SetVoted(_ context.Context, voterID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if v.HasVoted {
		return sentinel.ErrAlreadyUsed
	}
	v.HasVoted = true
	v.VotedAt = &at
	s.voters[voterID] = v
	return nil
}

func (s *InMemory) MarkVoted(_ context.Context, voterIDs []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, id := range voterIDs {
		v, ok := s.voters[id]
		if !ok || v.HasVoted {
			continue
		}
		v.HasVoted = true
		v.VotedAt = &at
		s.voters[id] = v
		changed++
	}
	return changed, nil
}

func (s *InMemory) Counts(_ context.Context) (ballot.VoterCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := ballot.VoterCounts{Total: len(s.voters)}
	for _, v := range s.voters {
		if v.HasVoted {
			c.Voted++
		}
	}
	return c, nil
}
