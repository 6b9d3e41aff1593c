package candidate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ballot/internal/ballot"
	"ballot/pkg/platform/sentinel"
)

// InMemory holds elections and candidates in process.
type InMemory struct {
	mu         sync.RWMutex
	elections  map[string]ballot.Election
	candidates map[string]ballot.Candidate
}

func NewInMemory() *InMemory {
	return &InMemory{
		elections:  make(map[string]ballot.Election),
		candidates: make(map[string]ballot.Candidate),
	}
}

func (s *InMemory) SaveElection(_ context.Context, e ballot.Election) error {
	if e.ID == "" {
		return fmt.Errorf("election id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[e.ID] = e
	return nil
}

// SaveCandidate stores c. Its election must already exist.
func (s *InMemory) SaveCandidate(_ context.Context, c ballot.Candidate) error {
	if c.ID == "" {
		return fmt.Errorf("candidate id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[c.ElectionID]; !ok {
		return fmt.Errorf("election %s: %w", c.ElectionID, sentinel.ErrNotFound)
	}
	c.Election = ballot.Election{}
	s.candidates[c.ID] = c
	return nil
}

func (s *InMemory) GetCandidate(_ context.Context, candidateID string) (ballot.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return ballot.Candidate{}, sentinel.ErrNotFound
	}
	c.Election = s.elections[c.ElectionID]
	return c, nil
}

func (s *InMemory) ListCandidates(_ context.Context) ([]ballot.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ballot.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		c.Election = s.elections[c.ElectionID]
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ListElections(_ context.Context) ([]ballot.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ballot.Election, 0, len(s.elections))
	for _, e := range s.elections {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
