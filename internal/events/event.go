// Package events publishes a notification for every block appended by the
// vote gate. Delivery is asynchronous and best effort; it never blocks or
// fails a vote.
package events

import (
	"context"
	"time"

	"ballot/internal/ledger"
)

// TypeBlockAppended is the only event type.
const TypeBlockAppended = "block_appended"

// BlockAppended announces a committed block. It deliberately carries no voter
// identity.
type BlockAppended struct {
	Type         string    `json:"type"`
	Index        int64     `json:"index"`
	Hash         string    `json:"hash"`
	PreviousHash string    `json:"previous_hash"`
	CandidateID  string    `json:"candidate_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// FromBlock builds the event for b.
func FromBlock(b ledger.Block) BlockAppended {
	ev := BlockAppended{
		Type:         TypeBlockAppended,
		Index:        b.Index,
		Hash:         b.Hash.String(),
		PreviousHash: b.PreviousHash.String(),
		Timestamp:    b.Timestamp,
	}
	if b.IsVote() {
		ev.CandidateID = b.Payload.Vote.CandidateID
	}
	return ev
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev BlockAppended) error
	Name() string
}
