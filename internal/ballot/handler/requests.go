package handler

import (
	"strings"

	dErrors "ballot/pkg/domain-errors"
)

type CastVoteRequest struct {
	VoterID     string `json:"voter_id"`
	CandidateID string `json:"candidate_id"`
}

func (r *CastVoteRequest) Validate() error {
	r.VoterID = strings.TrimSpace(r.VoterID)
	r.CandidateID = strings.TrimSpace(r.CandidateID)
	if r.VoterID == "" || r.CandidateID == "" {
		return dErrors.New(dErrors.CodeValidation, "voter_id and candidate_id are required")
	}
	return nil
}

type CastVoteResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	BlockIndex int64  `json:"block_index,omitempty"`
	BlockHash  string `json:"block_hash,omitempty"`
}

type CandidateResponse struct {
	ID         string `json:"candidate_id"`
	Name       string `json:"name"`
	Party      string `json:"party"`
	ElectionID string `json:"election_id"`
}

type ListCandidatesResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
}
