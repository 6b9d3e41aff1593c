// Package identity verifies that a live face probe belongs to a registered
// voter and, on success, issues the short-lived proof a vote must carry.
package identity

//go:generate mockgen -source=verifier.go -destination=mocks/mocks.go -package=mocks Verifier,Lockout

import (
	"context"
	"errors"
)

// ErrVerifierUnavailable wraps transport and upstream failures of a Verifier.
var ErrVerifierUnavailable = errors.New("identity verifier unavailable")

// Match is a verifier's decision for one probe.
type Match struct {
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
}

// Verifier compares a probe image with the voter's stored reference.
type Verifier interface {
	Verify(ctx context.Context, voterID string, probe []byte) (Match, error)
}

// Lockout counts failed matches per voter inside a sliding window.
type Lockout interface {
	// Failures returns the failures recorded in the current window.
	Failures(ctx context.Context, voterID string) (int, error)
	// RecordFailure adds one failure and returns the new count.
	RecordFailure(ctx context.Context, voterID string) (int, error)
	Reset(ctx context.Context, voterID string) error
}

// Policy decides whether a match is good enough to vote with.
type Policy struct {
	Threshold float64
}

// Accepts reports whether m is a confident match.
func (p Policy) Accepts(m Match) bool {
	return m.Matched && m.Confidence >= p.Threshold
}
