//go:build integration

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ballot/internal/identity"
	"ballot/pkg/testutil/containers"
)

type RedisLockoutSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	lockout *identity.RedisLockout
}

func TestRedisLockoutSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockoutSuite))
}

func (s *RedisLockoutSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.lockout = identity.NewRedisLockout(s.redis.Client, time.Second)
}

func (s *RedisLockoutSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockoutSuite) TestCountsAndExpires() {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		n, err := s.lockout.RecordFailure(ctx, "V001")
		s.Require().NoError(err)
		s.Equal(i, n)
	}
	n, err := s.lockout.Failures(ctx, "V001")
	s.Require().NoError(err)
	s.Equal(3, n)

	s.Eventually(func() bool {
		n, err := s.lockout.Failures(ctx, "V001")
		return err == nil && n == 0
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisLockoutSuite) TestReset() {
	ctx := context.Background()
	_, err := s.lockout.RecordFailure(ctx, "V002")
	s.Require().NoError(err)
	s.Require().NoError(s.lockout.Reset(ctx, "V002"))

	n, err := s.lockout.Failures(ctx, "V002")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RedisLockoutSuite) TestWindowStartsAtFirstFailure() {
	ctx := context.Background()
	key := "ballot:identity:failures:V003"

	_, err := s.lockout.RecordFailure(ctx, "V003")
	s.Require().NoError(err)
	first, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(first, time.Duration(0))
	s.LessOrEqual(first, time.Second)

	time.Sleep(400 * time.Millisecond)
	n, err := s.lockout.RecordFailure(ctx, "V003")
	s.Require().NoError(err)
	s.Equal(2, n)

	second, err := s.redis.Client.PTTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(second, time.Duration(0))
	s.Less(second, 800*time.Millisecond, "a later failure must not restart the window")
}
