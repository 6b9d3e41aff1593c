//go:build integration

package voter_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ballot/internal/ballot"
	"ballot/internal/ballot/store/voter"
	"ballot/pkg/platform/sentinel"
	"ballot/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *voter.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = voter.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "voters"))
	for _, id := range []string{"V001", "V002", "V003"} {
		s.Require().NoError(s.store.Save(ctx, ballot.VoterStatus{VoterID: id, Name: "Voter " + id, Registered: true}))
	}
}

// TestConcurrentSetVoted verifies the has_voted transition happens exactly once.
func (s *PostgresStoreSuite) TestConcurrentSetVoted() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount, usedCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.SetVoted(ctx, "V001", time.Now())
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				usedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), usedCount.Load())
}

func (s *PostgresStoreSuite) TestSetVotedUnknownVoter() {
	s.ErrorIs(s.store.SetVoted(context.Background(), "V404", time.Now()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMarkVotedBatch() {
	ctx := context.Background()
	s.Require().NoError(s.store.SetVoted(ctx, "V001", time.Now()))

	n, err := s.store.MarkVoted(ctx, []string{"V001", "V002", "V003", "V404"}, time.Now())
	s.Require().NoError(err)
	s.Equal(2, n)

	counts, err := s.store.Counts(ctx)
	s.Require().NoError(err)
	s.Equal(ballot.VoterCounts{Total: 3, Voted: 3}, counts)
}
