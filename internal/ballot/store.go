package ballot

import (
	"context"
	"time"
)

// VoterStore owns voter records. GetStatus returns sentinel.ErrNotFound for
// unknown voters.
type VoterStore interface {
	GetStatus(ctx context.Context, voterID string) (VoterStatus, error)
	SetVoted(ctx context.Context, voterID string, at time.Time) error
	// MarkVoted sets has_voted for every listed voter that does not have it yet
	// and returns how many records changed.
	MarkVoted(ctx context.Context, voterIDs []string, at time.Time) (int, error)
	Counts(ctx context.Context) (VoterCounts, error)
}

// CandidateStore is read-only to the gate. GetCandidate returns
// sentinel.ErrNotFound for unknown candidates.
type CandidateStore interface {
	GetCandidate(ctx context.Context, candidateID string) (Candidate, error)
	ListCandidates(ctx context.Context) ([]Candidate, error)
	ListElections(ctx context.Context) ([]Election, error)
}
