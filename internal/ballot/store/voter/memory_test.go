package voter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ballot/internal/ballot"
	"ballot/pkg/platform/sentinel"
)

type VoterStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestVoterStoreSuite(t *testing.T) {
	suite.Run(t, new(VoterStoreSuite))
}

func (s *VoterStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"V001", "V002", "V003"} {
		s.Require().NoError(s.store.Save(s.ctx, ballot.VoterStatus{VoterID: id, Registered: true}))
	}
}

func (s *VoterStoreSuite) TestSetVoted() {
	s.Run("first transition succeeds", func() {
		s.Require().NoError(s.store.SetVoted(s.ctx, "V001", s.now))
		status, err := s.store.GetStatus(s.ctx, "V001")
		s.Require().NoError(err)
		s.True(status.HasVoted)
		s.Require().NotNil(status.VotedAt)
		s.Equal(s.now, *status.VotedAt)
	})

	s.Run("second transition reports already used", func() {
		s.ErrorIs(s.store.SetVoted(s.ctx, "V001", s.now), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown voter", func() {
		s.ErrorIs(s.store.SetVoted(s.ctx, "V404", s.now), sentinel.ErrNotFound)
		_, err := s.store.GetStatus(s.ctx, "V404")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *VoterStoreSuite) TestSaveKeepsHasVoted() {
	s.Require().NoError(s.store.SetVoted(s.ctx, "V002", s.now))
	s.Require().NoError(s.store.Save(s.ctx, ballot.VoterStatus{VoterID: "V002", Name: "Renamed", Registered: true}))

	status, err := s.store.GetStatus(s.ctx, "V002")
	s.Require().NoError(err)
	s.True(status.HasVoted)
	s.Equal("Renamed", status.Name)
}

func (s *VoterStoreSuite) TestMarkVotedCountsOnlyChanges() {
	s.Require().NoError(s.store.SetVoted(s.ctx, "V001", s.now))

	n, err := s.store.MarkVoted(s.ctx, []string{"V001", "V002", "V404"}, s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(ballot.VoterCounts{Total: 3, Voted: 2}, counts)
}

func (s *VoterStoreSuite) TestConcurrentSetVotedSucceedsOnce() {
	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.store.SetVoted(s.ctx, "V003", s.now) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), ok.Load())
}
