package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ballot/internal/ballot"
	"ballot/internal/ballot/store/voter"
	"ballot/internal/identity"
	"ballot/internal/identity/mocks"
	jwttoken "ballot/internal/jwt_token"
	dErrors "ballot/pkg/domain-errors"
)

type IdentityServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	verifier *mocks.MockVerifier
	voters   *voter.InMemory
	tokens   *jwttoken.JWTService
	lockout  *identity.MemoryLockout
	service  *identity.Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.voters = voter.NewInMemory()
	s.Require().NoError(s.voters.Save(s.ctx, ballot.VoterStatus{VoterID: "V001", Registered: true}))
	s.Require().NoError(s.voters.Save(s.ctx, ballot.VoterStatus{VoterID: "V002", Registered: true}))
	s.Require().NoError(s.voters.SetVoted(s.ctx, "V002", time.Now()))
	s.tokens = jwttoken.NewJWTService("test-key", "ballot")
	s.lockout = identity.NewMemoryLockout(time.Minute)

	var err error
	s.service, err = identity.New(s.verifier, s.voters, s.tokens,
		identity.WithLockout(s.lockout, 3),
		identity.WithThreshold(0.6),
		identity.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *IdentityServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IdentityServiceSuite) TestNew() {
	s.Run("nil verifier returns error", func() {
		_, err := identity.New(nil, s.voters, s.tokens)
		s.ErrorContains(err, "verifier is required")
	})
	s.Run("nil voters returns error", func() {
		_, err := identity.New(s.verifier, nil, s.tokens)
		s.ErrorContains(err, "voter lookup is required")
	})
}

func (s *IdentityServiceSuite) TestConfidentMatchIssuesProof() {
	probe := []byte("jpeg")
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", probe).Return(identity.Match{Matched: true, Confidence: 0.81}, nil)

	res, err := s.service.Verify(s.ctx, "V001", probe)
	s.Require().NoError(err)
	s.True(res.Verified)
	s.NotEmpty(res.Token)

	claims, err := s.tokens.ValidateProofToken(res.Token)
	s.Require().NoError(err)
	s.Equal("V001", claims.VoterID)
	s.InDelta(0.81, claims.Confidence, 1e-9)
}

func (s *IdentityServiceSuite) TestWeakMatchIsRejectedAndCounted() {
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{Matched: true, Confidence: 0.4}, nil)

	res, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().NoError(err)
	s.False(res.Verified)
	s.Empty(res.Token)
	s.Equal(2, res.AttemptsRemaining)

	n, err := s.lockout.Failures(s.ctx, "V001")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *IdentityServiceSuite) TestLockoutAfterMaxFailures() {
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{Matched: false}, nil).Times(3)
	for i := 0; i < 3; i++ {
		res, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
		s.Require().NoError(err)
		s.False(res.Verified)
	}

	// Verifier is not called once locked out.
	_, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTooManyRequests))
}

func (s *IdentityServiceSuite) TestSuccessResetsFailures() {
	gomock.InOrder(
		s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{Matched: false}, nil),
		s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{Matched: true, Confidence: 0.9}, nil),
	)
	_, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().NoError(err)
	res, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().NoError(err)
	s.True(res.Verified)

	n, err := s.lockout.Failures(s.ctx, "V001")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *IdentityServiceSuite) TestVoterChecksRunBeforeVerifier() {
	s.Run("unknown voter", func() {
		_, err := s.service.Verify(s.ctx, "V404", []byte("jpeg"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("voter already voted", func() {
		_, err := s.service.Verify(s.ctx, "V002", []byte("jpeg"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
	s.Run("missing probe", func() {
		_, err := s.service.Verify(s.ctx, "V001", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IdentityServiceSuite) TestVerifierTimeoutIsNotVerified() {
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{}, context.DeadlineExceeded)

	res, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().NoError(err)
	s.False(res.Verified)
	n, _ := s.lockout.Failures(s.ctx, "V001")
	s.Zero(n, "timeouts are not counted as failed matches")
}

func (s *IdentityServiceSuite) TestVerifierOutageIsUnavailable() {
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{}, identity.ErrVerifierUnavailable)

	_, err := s.service.Verify(s.ctx, "V001", []byte("jpeg"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, identity.ErrVerifierUnavailable)
}

func (s *IdentityServiceSuite) TestLockoutStoreOutageDoesNotBlock() {
	lockout := mocks.NewMockLockout(s.ctrl)
	svc, err := identity.New(s.verifier, s.voters, s.tokens, identity.WithLockout(lockout, 3))
	s.Require().NoError(err)

	lockout.EXPECT().Failures(gomock.Any(), "V001").Return(0, errors.New("redis down"))
	lockout.EXPECT().Reset(gomock.Any(), "V001").Return(errors.New("redis down"))
	s.verifier.EXPECT().Verify(gomock.Any(), "V001", gomock.Any()).Return(identity.Match{Matched: true, Confidence: 0.7}, nil)

	res, err := svc.Verify(s.ctx, "V001", []byte("jpeg"))
	s.Require().NoError(err)
	s.True(res.Verified)
}
