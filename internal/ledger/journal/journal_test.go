package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ballot/internal/ledger"
	"ballot/pkg/platform/sentinel"
)

func vote(voterID, candidateID string) ledger.Payload {
	return ledger.VotePayload(ledger.VoteRecord{
		VoterID:       voterID,
		CandidateID:   candidateID,
		CandidateName: "Candidate " + candidateID,
		CastAt:        time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC),
	})
}

func buildLedger(t *testing.T, voters ...string) *ledger.Ledger {
	t.Helper()
	l := ledger.New(ledger.MustCodec(ledger.AlgorithmSHA256))
	for _, v := range voters {
		_, err := l.Append(vote(v, "C001"))
		require.NoError(t, err)
	}
	return l
}

// JournalContractSuite runs the same behaviour against every Journal.
type JournalContractSuite struct {
	suite.Suite
	open func(t *testing.T) Journal
	j    Journal
}

func (s *JournalContractSuite) SetupTest() {
	s.j = s.open(s.T())
}

func (s *JournalContractSuite) TestRoundTripKeepsHashesVerifiable() {
	ctx := context.Background()
	l := buildLedger(s.T(), "V001", "V002")
	for _, b := range l.Snapshot() {
		s.Require().NoError(s.j.Append(ctx, b))
	}

	loaded, err := s.j.LoadAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded, 3)

	original := l.Snapshot()
	for i := range loaded {
		s.Equal(original[i].Index, loaded[i].Index)
		s.Equal(original[i].Hash, loaded[i].Hash)
		s.True(original[i].Timestamp.Equal(loaded[i].Timestamp))
	}
	s.True(ledger.ValidateBlocks(l.Codec(), loaded).Valid)
}

func (s *JournalContractSuite) TestAppendIsIdempotentPerIndex() {
	ctx := context.Background()
	l := buildLedger(s.T(), "V001")
	chain := l.Snapshot()
	for _, b := range chain {
		s.Require().NoError(s.j.Append(ctx, b))
	}

	s.Run("same block again is a no-op", func() {
		s.NoError(s.j.Append(ctx, chain[1]))
		loaded, err := s.j.LoadAll(ctx)
		s.Require().NoError(err)
		s.Len(loaded, 2)
	})

	s.Run("different block at a stored index conflicts", func() {
		other := buildLedger(s.T(), "V999").Snapshot()[1]
		err := s.j.Append(ctx, other)
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *JournalContractSuite) TestEmptyJournalLoadsNothing() {
	loaded, err := s.j.LoadAll(context.Background())
	s.Require().NoError(err)
	s.Empty(loaded)
}

func TestMemoryJournal(t *testing.T) {
	suite.Run(t, &JournalContractSuite{open: func(*testing.T) Journal { return NewMemory() }})
}

func TestLevelDBJournal(t *testing.T) {
	suite.Run(t, &JournalContractSuite{open: func(t *testing.T) Journal {
		j, err := OpenLevelDB(filepath.Join(t.TempDir(), "ledger"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		return j
	}})
}

func TestLevelDBJournalSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger")
	l := buildLedger(t, "V001", "V002", "V003")

	j, err := OpenLevelDB(path)
	require.NoError(t, err)
	for _, b := range l.Snapshot() {
		require.NoError(t, j.Append(ctx, b))
	}
	require.NoError(t, j.Close())

	reopened, err := OpenLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	assert.Equal(t, l.Last().Hash, loaded[3].Hash)
	assert.True(t, ledger.ValidateBlocks(l.Codec(), loaded).Valid)
}

func TestMemoryJournalRejectsGaps(t *testing.T) {
	j := NewMemory()
	chain := buildLedger(t, "V001").Snapshot()
	err := j.Append(context.Background(), chain[1])
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	assert.Equal(t, 0, j.Len())
}

// flakyJournal fails the first `failures` appends.
type flakyJournal struct {
	*MemoryJournal
	failures int
}

func (f *flakyJournal) Append(ctx context.Context, b ledger.Block) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	return f.MemoryJournal.Append(ctx, b)
}

func TestSyncerCatchesUpAfterFailure(t *testing.T) {
	ctx := context.Background()
	l := buildLedger(t)
	j := &flakyJournal{MemoryJournal: NewMemory()}
	syncer := NewSyncer(j, 0, nil)

	n, err := syncer.Sync(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = l.Append(vote("V001", "C001"))
	require.NoError(t, err)
	j.failures = 1
	_, err = syncer.Sync(ctx, l)
	require.Error(t, err)
	assert.Equal(t, int64(1), syncer.Persisted())

	_, err = l.Append(vote("V002", "C001"))
	require.NoError(t, err)
	n, err = syncer.Sync(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(3), syncer.Persisted())
	assert.Equal(t, 3, j.Len())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	codec := ledger.MustCodec(ledger.AlgorithmSHA256)

	t.Run("empty journal gets a persisted genesis", func(t *testing.T) {
		j := NewMemory()
		loaded, err := Open(ctx, j, codec, nil)
		require.NoError(t, err)
		assert.False(t, loaded.Restored)
		assert.True(t, loaded.Report.Valid)
		assert.Equal(t, 1, j.Len())
		assert.Equal(t, int64(1), loaded.Syncer.Persisted())
	})

	t.Run("stored chain is restored exactly", func(t *testing.T) {
		j := NewMemory()
		l := buildLedger(t, "V001", "V002")
		for _, b := range l.Snapshot() {
			require.NoError(t, j.Append(ctx, b))
		}

		loaded, err := Open(ctx, j, codec, nil)
		require.NoError(t, err)
		assert.True(t, loaded.Restored)
		assert.True(t, loaded.Report.Valid)
		assert.Equal(t, l.Last().Hash, loaded.Ledger.Last().Hash)
		assert.Equal(t, int64(3), loaded.Syncer.Persisted())
	})

	t.Run("tampered record is surfaced, not fatal", func(t *testing.T) {
		j := NewMemory()
		l := buildLedger(t, "V001", "V002")
		for _, b := range l.Snapshot() {
			require.NoError(t, j.Append(ctx, b))
		}
		j.records[1].CandidateID = "C002"

		loaded, err := Open(ctx, j, codec, nil)
		require.NoError(t, err)
		assert.False(t, loaded.Report.Valid)
		assert.Equal(t, int64(1), loaded.Report.FirstTamperedIndex)
	})

	t.Run("corrupt record aborts", func(t *testing.T) {
		j := NewMemory()
		for _, b := range buildLedger(t).Snapshot() {
			require.NoError(t, j.Append(ctx, b))
		}
		j.records[0].Hash = []byte{1, 2, 3}

		_, err := Open(ctx, j, codec, nil)
		assert.ErrorIs(t, err, ErrCorruptRecord)
	})
}
