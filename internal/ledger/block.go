package ledger

import "time"

// Block is one immutable ledger entry. Blocks leave the ledger only as copies.
type Block struct {
	Index        int64     `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      Payload   `json:"payload"`
	PreviousHash Hash      `json:"previous_hash"`
	Hash         Hash      `json:"hash"`
}

// IsVote reports whether the block records a vote.
func (b Block) IsVote() bool {
	return b.Payload.Kind == PayloadVote && b.Payload.Vote != nil
}

func (b Block) clone() Block {
	b.Payload = b.Payload.clone()
	return b
}
