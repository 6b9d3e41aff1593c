package ballot

import (
	"time"

	"ballot/internal/ledger"
)

// VoterStatus is the voter store's view of a registered voter. HasVoted is a
// fast-path cache; the ledger is the authority on who has voted.
type VoterStatus struct {
	VoterID    string     `json:"voter_id"`
	Name       string     `json:"name,omitempty"`
	Registered bool       `json:"registered"`
	HasVoted   bool       `json:"has_voted"`
	VotedAt    *time.Time `json:"voted_at,omitempty"`
}

// Election is a voting window. Votes are accepted in [StartTime, EndTime).
type Election struct {
	ID        string    `json:"election_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// OpenAt reports whether the election accepts votes at now.
func (e Election) OpenAt(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartTime) && now.Before(e.EndTime)
}

// Candidate is returned by the candidate store together with its election.
type Candidate struct {
	ID         string   `json:"candidate_id"`
	Name       string   `json:"name"`
	Party      string   `json:"party"`
	ElectionID string   `json:"election_id"`
	IsActive   bool     `json:"is_active"`
	Election   Election `json:"-"`
}

// AcceptsVotesAt reports whether a vote for the candidate is valid at now.
func (c Candidate) AcceptsVotesAt(now time.Time) bool {
	return c.IsActive && c.Election.ID == c.ElectionID && c.Election.OpenAt(now)
}

// IdentityProof is the verified-identity assertion a voter presents with a
// vote. The zero value never verifies.
type IdentityProof struct {
	VoterID    string
	Matched    bool
	Confidence float64
}

// RejectReason explains why a vote was not accepted.
type RejectReason string

const (
	IdentityNotVerified      RejectReason = "identity_not_verified"
	UnknownVoter             RejectReason = "unknown_voter"
	AlreadyVoted             RejectReason = "already_voted"
	InvalidOrClosedCandidate RejectReason = "invalid_or_closed_candidate"
)

// VoteOutcome is the result of CastVote. Rejections are outcomes, not errors.
type VoteOutcome struct {
	Accepted   bool
	Reason     RejectReason
	BlockIndex int64
	BlockHash  ledger.Hash
}

// Label is the outcome name used in logs and metrics.
func (o VoteOutcome) Label() string {
	if o.Accepted {
		return "accepted"
	}
	return string(o.Reason)
}

func accepted(b ledger.Block) VoteOutcome {
	return VoteOutcome{Accepted: true, BlockIndex: b.Index, BlockHash: b.Hash}
}

func rejected(reason RejectReason) VoteOutcome {
	return VoteOutcome{Reason: reason}
}

// VoterCounts summarises the voter roll.
type VoterCounts struct {
	Total int `json:"total"`
	Voted int `json:"voted"`
}
