package journal

import (
	"fmt"
	"time"

	"ballot/internal/ledger"
)

// record is the stored form of a block. Fields follow hashing order and
// timestamps are kept as unix nanoseconds so a replayed block re-digests to
// the same hash.
type record struct {
	_             struct{} `cbor:",toarray"`
	Index         int64
	Timestamp     int64
	Kind          string
	Message       string
	VoterID       string
	CandidateID   string
	CandidateName string
	CastAt        int64
	PreviousHash  []byte
	Hash          []byte
}

func toRecord(b ledger.Block) record {
	r := record{
		Index:        b.Index,
		Timestamp:    b.Timestamp.UnixNano(),
		Kind:         string(b.Payload.Kind),
		PreviousHash: append([]byte(nil), b.PreviousHash[:]...),
		Hash:         append([]byte(nil), b.Hash[:]...),
	}
	if g := b.Payload.Genesis; g != nil {
		r.Message = g.Message
	}
	if v := b.Payload.Vote; v != nil {
		r.VoterID = v.VoterID
		r.CandidateID = v.CandidateID
		r.CandidateName = v.CandidateName
		r.CastAt = v.CastAt.UnixNano()
	}
	return r
}

func (r record) block() (ledger.Block, error) {
	b := ledger.Block{
		Index:     r.Index,
		Timestamp: time.Unix(0, r.Timestamp).UTC(),
	}
	if len(r.PreviousHash) != len(b.PreviousHash) || len(r.Hash) != len(b.Hash) {
		return ledger.Block{}, fmt.Errorf("block %d: hash length: %w", r.Index, ErrCorruptRecord)
	}
	copy(b.PreviousHash[:], r.PreviousHash)
	copy(b.Hash[:], r.Hash)

	switch ledger.PayloadKind(r.Kind) {
	case ledger.PayloadGenesis:
		b.Payload = ledger.GenesisPayload(r.Message)
	case ledger.PayloadVote:
		b.Payload = ledger.VotePayload(ledger.VoteRecord{
			VoterID:       r.VoterID,
			CandidateID:   r.CandidateID,
			CandidateName: r.CandidateName,
			CastAt:        time.Unix(0, r.CastAt).UTC(),
		})
	default:
		// Kept so validation can point at the block.
		b.Payload = ledger.Payload{Kind: ledger.PayloadKind(r.Kind)}
	}
	return b, nil
}
