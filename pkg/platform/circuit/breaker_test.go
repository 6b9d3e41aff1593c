package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) fail(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func (s *BreakerSuite) succeed(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordSuccess()
	}
}

func (s *BreakerSuite) TestDefaults() {
	b := New("kafka")
	s.Equal("kafka", b.Name())
	s.Equal(StateClosed, b.State())
	s.Equal("closed", b.State().String())

	s.fail(b, 4)
	s.False(b.IsOpen(), "default threshold is five failures")
	s.fail(b, 1)
	s.True(b.IsOpen())
	s.Equal("open", b.State().String())
}

func (s *BreakerSuite) TestOpening() {
	b := New("kafka", WithFailureThreshold(2))

	useFallback, change := b.RecordFailure()
	s.False(useFallback)
	s.False(change.Opened)

	useFallback, change = b.RecordFailure()
	s.True(useFallback, "the failure that opens the circuit already uses the fallback")
	s.True(change.Opened)

	useFallback, change = b.RecordFailure()
	s.True(useFallback)
	s.Equal(StateChange{}, change, "opening is reported once")
}

func (s *BreakerSuite) TestClosing() {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	s.Require().True(b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.False(b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.Equal(StateChange{}, change)
}

func (s *BreakerSuite) TestStreaksMustBeConsecutive() {
	s.Run("success clears the failure streak", func() {
		b := New("kafka", WithFailureThreshold(3))
		s.fail(b, 2)
		b.RecordSuccess()
		s.fail(b, 2)
		s.False(b.IsOpen())
		b.RecordFailure()
		s.True(b.IsOpen())
	})

	s.Run("failure clears the recovery streak", func() {
		b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		s.succeed(b, 2)
		b.RecordFailure()
		s.succeed(b, 2)
		s.True(b.IsOpen())
		b.RecordSuccess()
		s.False(b.IsOpen())
	})
}

func (s *BreakerSuite) TestIgnoresNonPositiveOptions() {
	b := New("kafka", WithFailureThreshold(0), WithSuccessThreshold(-1))
	s.fail(b, 4)
	s.False(b.IsOpen())
	s.fail(b, 1)
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestReset() {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	s.Equal(StateClosed, b.State())

	useFallback, _ := b.RecordFailure()
	s.True(useFallback, "counters start from zero after reset")
}

func (s *BreakerSuite) TestConcurrentRecords() {
	b := New("kafka", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	s.True(b.IsOpen())
}
