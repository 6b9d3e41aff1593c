package inspector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ballot/internal/ballot"
	"ballot/internal/ballot/store/candidate"
	"ballot/internal/ballot/store/voter"
	"ballot/internal/ledger"
	"ballot/internal/platform/metrics"
)

var codec = ledger.MustCodec(ledger.AlgorithmSHA256)

func castAt() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func voteFor(voterID, candidateID, name string) ledger.Payload {
	return ledger.VotePayload(ledger.VoteRecord{
		VoterID:       voterID,
		CandidateID:   candidateID,
		CandidateName: name,
		CastAt:        castAt(),
	})
}

type InspectorSuite struct {
	suite.Suite
	ctx        context.Context
	ledger     *ledger.Ledger
	voters     *voter.InMemory
	candidates *candidate.InMemory
	inspector  *Inspector
}

func TestInspectorSuite(t *testing.T) {
	suite.Run(t, new(InspectorSuite))
}

func (s *InspectorSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = ledger.New(codec)
	s.voters = voter.NewInMemory()
	s.candidates = candidate.NewInMemory()

	start := castAt().Add(-time.Hour)
	s.Require().NoError(s.candidates.SaveElection(s.ctx, ballot.Election{ID: "E1", Name: "General", IsActive: true, StartTime: start, EndTime: start.Add(8 * time.Hour)}))
	s.Require().NoError(s.candidates.SaveElection(s.ctx, ballot.Election{ID: "E2", Name: "Archived", IsActive: false, StartTime: start, EndTime: start.Add(time.Hour)}))
	s.Require().NoError(s.candidates.SaveCandidate(s.ctx, ballot.Candidate{ID: "C001", Name: "Alice", Party: "Blue", ElectionID: "E1", IsActive: true}))
	s.Require().NoError(s.candidates.SaveCandidate(s.ctx, ballot.Candidate{ID: "C002", Name: "Bob", Party: "Green", ElectionID: "E1", IsActive: true}))
	s.Require().NoError(s.candidates.SaveCandidate(s.ctx, ballot.Candidate{ID: "C003", Name: "Carol", Party: "Red", ElectionID: "E1", IsActive: true}))
	for _, id := range []string{"V001", "V002", "V003", "V004"} {
		s.Require().NoError(s.voters.Save(s.ctx, ballot.VoterStatus{VoterID: id, Registered: true}))
	}
	s.inspector = New(s.ledger, s.voters, s.candidates)
}

func (s *InspectorSuite) appendVote(voterID, candidateID, name string) {
	_, err := s.ledger.Append(voteFor(voterID, candidateID, name))
	s.Require().NoError(err)
	s.Require().NoError(s.voters.SetVoted(s.ctx, voterID, castAt()))
}

func (s *InspectorSuite) TestGenesisOnly() {
	s.True(s.inspector.IsValid(s.ctx))
	_, tampered := s.inspector.FirstTamperedIndex(s.ctx)
	s.False(tampered)
	s.Empty(s.inspector.Tally())
	s.Len(s.inspector.ExportChain(), 1)
}

func (s *InspectorSuite) TestSingleVote() {
	s.appendVote("V001", "C001", "Alice")

	s.Equal(map[string]int{"C001": 1}, s.inspector.Tally())
	chain := s.inspector.ExportChain()
	s.Require().Len(chain, 2)
	s.Equal(chain[0].Hash, chain[1].PreviousHash)
	s.True(s.inspector.IsValid(s.ctx))
}

func (s *InspectorSuite) TestResults() {
	s.appendVote("V001", "C002", "Bob")
	s.appendVote("V002", "C002", "Bob")
	s.appendVote("V003", "C001", "Alice")

	res, err := s.inspector.Results(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.TotalVotes)
	s.Equal([]CandidateResult{
		{CandidateID: "C002", Name: "Bob", Party: "Green", Votes: 2},
		{CandidateID: "C001", Name: "Alice", Party: "Blue", Votes: 1},
		{CandidateID: "C003", Name: "Carol", Party: "Red", Votes: 0},
	}, res.Results)
}

func (s *InspectorSuite) TestResultsKeepChainNameForRemovedCandidate() {
	s.appendVote("V001", "C404", "Dropped")

	res, err := s.inspector.Results(s.ctx)
	s.Require().NoError(err)
	s.Require().NotEmpty(res.Results)
	s.Equal(CandidateResult{CandidateID: "C404", Name: "Dropped", Votes: 1}, res.Results[0])
}

func (s *InspectorSuite) TestStats() {
	s.appendVote("V001", "C001", "Alice")

	stats, err := s.inspector.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(Stats{
		TotalVoters:       4,
		VotersWhoVoted:    1,
		ParticipationRate: 25,
		TotalCandidates:   3,
		TotalElections:    2,
		ActiveElections:   1,
		BlockchainBlocks:  2,
		BlockchainValid:   true,
		TotalVotes:        1,
	}, stats)
}

type brokenVoters struct {
	ballot.VoterStore
}

func (brokenVoters) Counts(context.Context) (ballot.VoterCounts, error) {
	return ballot.VoterCounts{}, errors.New("connection refused")
}

func (s *InspectorSuite) TestStatsPropagatesStoreErrors() {
	i := New(s.ledger, brokenVoters{s.voters}, s.candidates)
	_, err := i.Stats(s.ctx)
	s.ErrorContains(err, "count voters")
}

type countingReconciler struct{ n int }

func (r *countingReconciler) Reconcile(context.Context) (int, error) { return r.n, nil }

func (s *InspectorSuite) TestReconcile() {
	n, err := s.inspector.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	i := New(s.ledger, s.voters, s.candidates, WithReconciler(&countingReconciler{n: 3}))
	n, err = i.Reconcile(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func TestTamperedChain(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(codec)
	_, err := l.Append(voteFor("V001", "C001", "Alice"))
	require.NoError(t, err)
	_, err = l.Append(voteFor("V002", "C002", "Bob"))
	require.NoError(t, err)

	blocks := l.Snapshot()
	id := []byte(blocks[1].Payload.Vote.CandidateID)
	id[len(id)-1] ^= 0x01
	blocks[1].Payload.Vote.CandidateID = string(id)

	tampered, err := ledger.Restore(codec, blocks)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(reg)
	i := New(tampered, voter.NewInMemory(), candidate.NewInMemory(), WithMetrics(m))

	assert.False(t, i.IsValid(ctx))
	idx, ok := i.FirstTamperedIndex(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(1), idx)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LedgerValid))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.LedgerBlocks))
}

func TestRepeatVoterOnRestoredChain(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(codec)
	for _, c := range []string{"C001", "C002", "C001"} {
		_, err := l.Append(voteFor("V001", c, "Alice"))
		require.NoError(t, err)
	}
	_, err := l.Append(voteFor("V002", "C002", "Bob"))
	require.NoError(t, err)

	restored, err := ledger.Restore(codec, l.Snapshot())
	require.NoError(t, err)
	i := New(restored, voter.NewInMemory(), candidate.NewInMemory())

	report := i.Validate(ctx)
	assert.False(t, report.Valid)
	assert.Equal(t, int64(2), report.FirstTamperedIndex)
	assert.Equal(t, ledger.ReasonDuplicateVoter, report.Reason)

	assert.Equal(t, map[string]int{"C001": 1, "C002": 1}, i.Tally())

	res, err := i.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalVotes)

	stats, err := i.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVotes)
	assert.False(t, stats.BlockchainValid)
}

func TestConcurrentValidationDuringAppends(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(codec)
	i := New(l, voter.NewInMemory(), candidate.NewInMemory())

	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := l.Append(voteFor(string(rune('A'+n)), "C001", "Alice"))
			assert.NoError(t, err)
		}(n)
		go func() {
			defer wg.Done()
			assert.True(t, i.IsValid(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, i.Tally()["C001"])
}

func TestExportValidatedMatchesItsSnapshot(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(codec)
	i := New(l, voter.NewInMemory(), candidate.NewInMemory())

	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, err := l.Append(voteFor(string(rune('A'+n)), "C001", "Alice"))
			assert.NoError(t, err)
		}(n)
		go func() {
			defer wg.Done()
			chain, report := i.ExportValidated(ctx)
			assert.True(t, report.Valid)
			assert.Equal(t, len(chain), report.Length)
		}()
	}
	wg.Wait()

	chain, report := i.ExportValidated(ctx)
	assert.Len(t, chain, 21)
	assert.Equal(t, 21, report.Length)
}
