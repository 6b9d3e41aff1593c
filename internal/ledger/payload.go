package ledger

import (
	"errors"
	"time"
)

// GenesisMessage is the fixed message of every ledger's first block.
const GenesisMessage = "Genesis Block - Blockchain Voting System"

// ErrInvalidPayload is returned by Append for payloads whose kind does not
// match the variant they carry.
var ErrInvalidPayload = errors.New("invalid block payload")

// PayloadKind tags the payload variant.
type PayloadKind string

const (
	PayloadGenesis PayloadKind = "genesis"
	PayloadVote    PayloadKind = "vote"
)

// Genesis is the payload of block 0.
type Genesis struct {
	Message string `json:"message"`
}

// VoteRecord is the payload of an accepted vote.
type VoteRecord struct {
	VoterID       string    `json:"voter_id"`
	CandidateID   string    `json:"candidate_id"`
	CandidateName string    `json:"candidate_name"`
	CastAt        time.Time `json:"cast_at"`
}

// Payload is a tagged variant: exactly one of Genesis or Vote is set, matching Kind.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Genesis *Genesis    `json:"genesis,omitempty"`
	Vote    *VoteRecord `json:"vote,omitempty"`
}

// GenesisPayload builds a genesis payload.
func GenesisPayload(message string) Payload {
	return Payload{Kind: PayloadGenesis, Genesis: &Genesis{Message: message}}
}

// VotePayload builds a vote payload.
func VotePayload(record VoteRecord) Payload {
	return Payload{Kind: PayloadVote, Vote: &record}
}

// Validate checks the variant is structurally sound.
func (p Payload) Validate() error {
	switch p.Kind {
	case PayloadGenesis:
		if p.Genesis == nil || p.Vote != nil {
			return ErrInvalidPayload
		}
	case PayloadVote:
		if p.Vote == nil || p.Genesis != nil {
			return ErrInvalidPayload
		}
		if p.Vote.VoterID == "" || p.Vote.CandidateID == "" {
			return ErrInvalidPayload
		}
	default:
		return ErrInvalidPayload
	}
	return nil
}

// clone deep-copies the variant pointers so callers never share block state.
func (p Payload) clone() Payload {
	out := Payload{Kind: p.Kind}
	if p.Genesis != nil {
		g := *p.Genesis
		out.Genesis = &g
	}
	if p.Vote != nil {
		v := *p.Vote
		out.Vote = &v
	}
	return out
}
