package ledger

// ValidityReport is the outcome of a chain walk. Tampering is reported here as
// data; it is never returned as an error.
type ValidityReport struct {
	Valid bool `json:"is_valid"`

	// FirstTamperedIndex is -1 when the chain is valid.
	FirstTamperedIndex int64  `json:"first_tampered_index"`
	Reason             string `json:"reason,omitempty"`
	Length             int    `json:"length"`
}

// TamperedIndex returns the first invalid index, if any.
func (r ValidityReport) TamperedIndex() (int64, bool) {
	if r.Valid {
		return 0, false
	}
	return r.FirstTamperedIndex, true
}

// Mismatch reasons.
const (
	ReasonEmptyChain       = "chain is empty"
	ReasonGenesisInvalid   = "genesis block is malformed"
	ReasonIndexGap         = "index does not follow previous block"
	ReasonLinkBroken       = "previous_hash does not match previous block hash"
	ReasonHashMismatch     = "stored hash does not match recomputed hash"
	ReasonTimeRegression   = "timestamp precedes previous block"
	ReasonPayloadMalformed = "payload is malformed"
	ReasonDuplicateVoter   = "voter already has a vote earlier in the chain"
)

func validReport(n int) ValidityReport {
	return ValidityReport{Valid: true, FirstTamperedIndex: -1, Length: n}
}

func tampered(at int64, reason string, n int) ValidityReport {
	return ValidityReport{Valid: false, FirstTamperedIndex: at, Reason: reason, Length: n}
}

// ValidateBlocks checks a standalone block sequence, such as an exported chain.
func ValidateBlocks(codec *Codec, blocks []Block) ValidityReport {
	return validateBlocks(codec, blocks)
}

func validateBlocks(codec *Codec, blocks []Block) ValidityReport {
	n := len(blocks)
	if n == 0 {
		return tampered(0, ReasonEmptyChain, 0)
	}

	genesis := blocks[0]
	if genesis.Index != 0 || !genesis.PreviousHash.IsZero() || genesis.Payload.Kind != PayloadGenesis {
		return tampered(0, ReasonGenesisInvalid, n)
	}
	if genesis.Payload.Validate() != nil {
		return tampered(0, ReasonPayloadMalformed, n)
	}
	if codec.BlockDigest(genesis) != genesis.Hash {
		return tampered(0, ReasonHashMismatch, n)
	}

	voters := make(map[string]struct{}, n-1)
	for i := 1; i < n; i++ {
		cur, prev := blocks[i], blocks[i-1]
		at := int64(i)
		switch {
		case cur.Index != prev.Index+1 || cur.Index != at:
			return tampered(at, ReasonIndexGap, n)
		case cur.Payload.Kind != PayloadVote || cur.Payload.Validate() != nil:
			return tampered(at, ReasonPayloadMalformed, n)
		case codec.BlockDigest(cur) != cur.Hash:
			return tampered(at, ReasonHashMismatch, n)
		case cur.PreviousHash != prev.Hash:
			return tampered(at, ReasonLinkBroken, n)
		case cur.Timestamp.Before(prev.Timestamp):
			return tampered(at, ReasonTimeRegression, n)
		}
		// Hashes carry no secret, so a rewritten journal can hold a second
		// correctly linked vote for one voter.
		if _, dup := voters[cur.Payload.Vote.VoterID]; dup {
			return tampered(at, ReasonDuplicateVoter, n)
		}
		voters[cur.Payload.Vote.VoterID] = struct{}{}
	}
	return validReport(n)
}
