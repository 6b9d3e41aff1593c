package ballot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ballot/internal/ballot/metrics"
	"ballot/internal/ledger"
	"ballot/internal/ledger/journal"
	"ballot/pkg/platform/sentinel"
	"ballot/pkg/requestcontext"
)

// DefaultConfidenceThreshold is the minimum match confidence accepted as a
// verified identity.
const DefaultConfidenceThreshold = 0.6

// Syncer persists the ledger tail after a commit.
type Syncer interface {
	Sync(ctx context.Context, src journal.Source) (int, error)
}

// Observer is told about every accepted vote after it committed. It must not
// block.
type Observer interface {
	VoteAccepted(ctx context.Context, block ledger.Block)
}

// Service is the vote-casting gate: the only path that appends to the ledger.
type Service struct {
	ledger     *ledger.Ledger
	voters     VoterStore
	candidates CandidateStore
	tx         *gateTx

	// chainVoters holds every voter with a VoteRecord on the chain. It is
	// written only inside the critical section and by Reconcile.
	chainVoters mapset.Set[string]
	// unsynced holds accepted voters whose has_voted write failed.
	unsynced mapset.Set[string]

	threshold float64
	syncer    Syncer
	observer  Observer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithConfidenceThreshold(threshold float64) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithJournal persists each committed block before the cast returns.
func WithJournal(syncer Syncer) Option {
	return func(s *Service) {
		s.syncer = syncer
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// WithTxTimeout sets the deadline for casts whose context has none. The lock
// wait itself is not interrupted: a cast whose deadline passed while it waited
// is aborted once it holds the lock, before anything is checked or appended.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.tx.timeout = d
	}
}

// New builds the gate over an existing ledger. The chain-voter index is seeded
// from the ledger so restored chains keep blocking repeat votes.
func New(l *ledger.Ledger, voters VoterStore, candidates CandidateStore, opts ...Option) (*Service, error) {
	if l == nil || voters == nil || candidates == nil {
		return nil, errors.New("ledger, voter store and candidate store are required")
	}
	s := &Service{
		ledger:      l,
		voters:      voters,
		candidates:  candidates,
		tx:          &gateTx{},
		chainVoters: mapset.NewSet[string](),
		unsynced:    mapset.NewSet[string](),
		threshold:   DefaultConfidenceThreshold,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ballot"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.chainVoters.Append(chainVoterIDs(l.Snapshot())...)
	return s, nil
}

// CastVote runs the gate. Business rejections come back as a VoteOutcome with
// a nil error; an error means nothing was appended.
func (s *Service) CastVote(ctx context.Context, voterID, candidateID string, proof IdentityProof) (VoteOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "ballot.CastVote", trace.WithAttributes(
		attribute.String("candidate_id", candidateID),
	))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveCastLatency(time.Since(start)) }()

	if !s.identityVerified(voterID, proof) {
		return s.finish(ctx, span, voterID, candidateID, rejected(IdentityNotVerified)), nil
	}

	var (
		outcome VoteOutcome
		block   ledger.Block
	)
	waited, err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		outcome, block, err = s.castLocked(ctx, voterID, candidateID)
		return err
	})
	s.metrics.ObserveLockWait(waited)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cast vote failed")
		s.logger.ErrorContext(ctx, "cast vote failed",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", voterID,
			"candidate_id", candidateID,
			"error", err,
		)
		return VoteOutcome{}, err
	}

	if outcome.Accepted && s.observer != nil {
		s.observer.VoteAccepted(context.WithoutCancel(ctx), block)
	}
	return s.finish(ctx, span, voterID, candidateID, outcome), nil
}

// castLocked is steps 2-6 of the gate. It runs inside the critical section.
func (s *Service) castLocked(ctx context.Context, voterID, candidateID string) (VoteOutcome, ledger.Block, error) {
	status, err := s.voters.GetStatus(ctx, voterID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return rejected(UnknownVoter), ledger.Block{}, nil
	case err != nil:
		return VoteOutcome{}, ledger.Block{}, fmt.Errorf("get voter status: %w", err)
	case !status.Registered:
		return rejected(UnknownVoter), ledger.Block{}, nil
	}
	if status.HasVoted || s.chainVoters.Contains(voterID) {
		return rejected(AlreadyVoted), ledger.Block{}, nil
	}

	now := requestcontext.Now(ctx)
	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return rejected(InvalidOrClosedCandidate), ledger.Block{}, nil
	case err != nil:
		return VoteOutcome{}, ledger.Block{}, fmt.Errorf("get candidate: %w", err)
	}
	if !candidate.AcceptsVotesAt(now) {
		return rejected(InvalidOrClosedCandidate), ledger.Block{}, nil
	}

	block, err := s.ledger.Append(ledger.VotePayload(ledger.VoteRecord{
		VoterID:       voterID,
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		CastAt:        now,
	}))
	if err != nil {
		return VoteOutcome{}, ledger.Block{}, fmt.Errorf("append vote: %w", err)
	}
	s.chainVoters.Add(voterID)

	// Committed. Nothing below may undo the append or observe cancellation.
	committed := context.WithoutCancel(ctx)
	if err := s.voters.SetVoted(committed, voterID, now); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
		s.unsynced.Add(voterID)
		s.metrics.IncrementVoterStatusWriteFailure()
		s.logger.ErrorContext(ctx, "voter status update failed after append; will reconcile from chain",
			"request_id", requestcontext.RequestID(ctx),
			"voter_id", voterID,
			"block_index", block.Index,
			"error", err,
		)
	}
	if s.syncer != nil {
		if _, err := s.syncer.Sync(committed, s.ledger); err != nil {
			s.metrics.IncrementJournalFailure()
		}
	}
	return accepted(block), block, nil
}

func (s *Service) identityVerified(voterID string, proof IdentityProof) bool {
	return proof.VoterID != "" &&
		proof.VoterID == voterID &&
		proof.Matched &&
		proof.Confidence >= s.threshold
}

func (s *Service) finish(ctx context.Context, span trace.Span, voterID, candidateID string, outcome VoteOutcome) VoteOutcome {
	label := outcome.Label()
	s.metrics.IncrementOutcome(label)
	span.SetAttributes(attribute.String("outcome", label))

	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"voter_id", voterID,
		"candidate_id", candidateID,
		"outcome", label,
	}
	if outcome.Accepted {
		attrs = append(attrs, "block_index", outcome.BlockIndex, "block_hash", outcome.BlockHash.String())
		s.logger.InfoContext(ctx, "vote accepted", attrs...)
	} else {
		s.logger.WarnContext(ctx, "vote rejected", attrs...)
	}
	return outcome
}

// VoterStatus returns the voter's status with has_voted taken from the chain
// when the store lags behind it. A lagging record is repaired on the way.
func (s *Service) VoterStatus(ctx context.Context, voterID string) (VoterStatus, error) {
	status, err := s.voters.GetStatus(ctx, voterID)
	if err != nil {
		return VoterStatus{}, err
	}
	if status.HasVoted || !s.chainVoters.Contains(voterID) {
		return status, nil
	}

	status.HasVoted = true
	now := requestcontext.Now(ctx)
	if err := s.voters.SetVoted(ctx, voterID, now); err != nil && !errors.Is(err, sentinel.ErrAlreadyUsed) {
		s.logger.WarnContext(ctx, "voter status repair failed",
			"voter_id", voterID,
			"error", err,
		)
		return status, nil
	}
	s.unsynced.Remove(voterID)
	s.metrics.AddReconciled(1)
	return status, nil
}

// Reconcile re-derives has_voted for every voter on the chain and returns how
// many voter records changed.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	ids := chainVoterIDs(s.ledger.Snapshot())
	s.chainVoters.Append(ids...)
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.voters.MarkVoted(ctx, ids, requestcontext.Now(ctx))
	if err != nil {
		return 0, fmt.Errorf("reconcile voter statuses: %w", err)
	}
	// Casts that committed after the snapshot stay pending until the next run.
	s.unsynced.RemoveAll(ids...)
	s.metrics.AddReconciled(n)
	s.logger.InfoContext(ctx, "voter statuses reconciled from ledger",
		"chain_voters", len(ids),
		"updated", n,
	)
	return n, nil
}

// Unsynced returns the voters whose has_voted write is still pending.
func (s *Service) Unsynced() []string {
	return s.unsynced.ToSlice()
}

// Ledger exposes the ledger the gate appends to.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

func chainVoterIDs(chain []ledger.Block) []string {
	ids := make([]string, 0, len(chain))
	for _, b := range chain {
		if b.IsVote() {
			ids = append(ids, b.Payload.Vote.VoterID)
		}
	}
	return ids
}
