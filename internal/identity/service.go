package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ballot/internal/ballot"
	"ballot/internal/identity/metrics"
	jwttoken "ballot/internal/jwt_token"
	dErrors "ballot/pkg/domain-errors"
	"ballot/pkg/platform/sentinel"
	"ballot/pkg/requestcontext"
)

// VoterLookup is the read side of the voter store.
type VoterLookup interface {
	GetStatus(ctx context.Context, voterID string) (ballot.VoterStatus, error)
}

// VoterLookupFunc adapts a function, such as the vote gate's chain-aware
// VoterStatus, to VoterLookup.
type VoterLookupFunc func(ctx context.Context, voterID string) (ballot.VoterStatus, error)

func (f VoterLookupFunc) GetStatus(ctx context.Context, voterID string) (ballot.VoterStatus, error) {
	return f(ctx, voterID)
}

// TokenIssuer signs identity proofs.
type TokenIssuer interface {
	GenerateProofToken(voterID string, matched bool, confidence float64, expiresIn time.Duration) (string, *jwttoken.ProofClaims, error)
}

// Result is the outcome of one verification attempt.
type Result struct {
	Verified          bool
	Confidence        float64
	Token             string
	ExpiresAt         time.Time
	AttemptsRemaining int
	Reason            string
}

// Service runs a verification attempt end to end.
type Service struct {
	verifier    Verifier
	voters      VoterLookup
	tokens      TokenIssuer
	lockout     Lockout
	policy      Policy
	maxFailures int
	timeout     time.Duration
	proofTTL    time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLockout(l Lockout, maxFailures int) Option {
	return func(s *Service) {
		s.lockout = l
		if maxFailures > 0 {
			s.maxFailures = maxFailures
		}
	}
}

func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.policy.Threshold = t
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithProofTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.proofTTL = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(verifier Verifier, voters VoterLookup, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if verifier == nil {
		return nil, errors.New("verifier is required")
	}
	if voters == nil {
		return nil, errors.New("voter lookup is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		verifier:    verifier,
		voters:      voters,
		tokens:      tokens,
		lockout:     NewMemoryLockout(15 * time.Minute),
		policy:      Policy{Threshold: ballot.DefaultConfidenceThreshold},
		maxFailures: 5,
		timeout:     10 * time.Second,
		proofTTL:    5 * time.Minute,
		logger:      slog.Default(),
		tracer:      otel.Tracer("identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify checks the probe against voterID's reference and issues a proof
// token when the match clears the threshold. A failed match is a Result with
// Verified false, not an error.
func (s *Service) Verify(ctx context.Context, voterID string, probe []byte) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Verify")
	defer span.End()
	requestID := requestcontext.RequestID(ctx)

	if voterID == "" || len(probe) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "voter_id and image are required")
	}

	status, err := s.voters.GetStatus(ctx, voterID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "voter not registered")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter")
	case !status.Registered:
		return nil, dErrors.New(dErrors.CodeNotFound, "voter not registered")
	case status.HasVoted:
		return nil, dErrors.New(dErrors.CodeConflict, "voter has already voted")
	}

	failures, err := s.lockout.Failures(ctx, voterID)
	if err != nil {
		// A lockout store outage does not stop voting; it only loses throttling.
		s.logger.WarnContext(ctx, "verification lockout unavailable",
			"request_id", requestID,
			"error", err,
		)
	}
	if failures >= s.maxFailures {
		s.metrics.IncrementResult("locked_out")
		s.logger.WarnContext(ctx, "verification locked out",
			"request_id", requestID,
			"voter_id", voterID,
			"failures", failures,
			"client_ip", requestcontext.ClientIP(ctx),
		)
		return nil, dErrors.New(dErrors.CodeTooManyRequests, "too many failed verification attempts")
	}

	verifyCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	match, err := s.verifier.Verify(verifyCtx, voterID, probe)
	s.metrics.ObserveVerifyLatency(time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.metrics.IncrementResult("timeout")
			s.logger.WarnContext(ctx, "face verification timed out",
				"request_id", requestID,
				"voter_id", voterID,
			)
			return &Result{Reason: "verification timed out", AttemptsRemaining: s.maxFailures - failures}, nil
		}
		s.metrics.IncrementResult("error")
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity verification unavailable")
	}
	span.SetAttributes(
		attribute.Bool("matched", match.Matched),
		attribute.Float64("confidence", match.Confidence),
	)

	if !s.policy.Accepts(match) {
		n, err := s.lockout.RecordFailure(ctx, voterID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to record verification failure",
				"request_id", requestID,
				"error", err,
			)
			n = failures + 1
		}
		s.metrics.IncrementResult("rejected")
		s.logger.WarnContext(ctx, "face did not match",
			"request_id", requestID,
			"voter_id", voterID,
			"confidence", match.Confidence,
			"failures", n,
		)
		return &Result{
			Confidence:        match.Confidence,
			AttemptsRemaining: max(s.maxFailures-n, 0),
			Reason:            "face did not match",
		}, nil
	}

	if err := s.lockout.Reset(ctx, voterID); err != nil {
		s.logger.WarnContext(ctx, "failed to reset verification failures",
			"request_id", requestID,
			"error", err,
		)
	}
	token, claims, err := s.tokens.GenerateProofToken(voterID, match.Matched, match.Confidence, s.proofTTL)
	if err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("sign proof: %w", err), dErrors.CodeInternal, "failed to issue identity proof")
	}
	s.metrics.IncrementResult("verified")
	s.logger.InfoContext(ctx, "identity verified",
		"request_id", requestID,
		"voter_id", voterID,
		"confidence", match.Confidence,
		"proof_id", claims.ID,
	)
	return &Result{
		Verified:          true,
		Confidence:        match.Confidence,
		Token:             token,
		ExpiresAt:         claims.ExpiresAt.Time,
		AttemptsRemaining: s.maxFailures,
	}, nil
}
