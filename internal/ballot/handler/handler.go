package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ballot/internal/ballot"
	"ballot/internal/platform/middleware"
	"ballot/pkg/platform/httputil"
	"ballot/pkg/requestcontext"
)

// Service is the vote gate as seen by the transport.
type Service interface {
	CastVote(ctx context.Context, voterID, candidateID string, proof ballot.IdentityProof) (ballot.VoteOutcome, error)
}

// ProofParser turns a bearer token into an identity proof. Invalid tokens
// yield the zero proof.
type ProofParser interface {
	ParseProof(token string) ballot.IdentityProof
}

// Handler serves vote casting and the public candidate list.
type Handler struct {
	service    Service
	candidates ballot.CandidateStore
	proofs     ProofParser
	logger     *slog.Logger
}

func New(service Service, candidates ballot.CandidateStore, proofs ProofParser, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		candidates: candidates,
		proofs:     proofs,
		logger:     logger,
	}
}

// Register mounts the voting endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/vote", h.HandleCastVote)
	r.Get("/api/candidates", h.HandleListCandidates)
}

// HandleCastVote handles POST /api/vote.
func (h *Handler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CastVoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	proof := h.proofs.ParseProof(middleware.BearerToken(r))
	outcome, err := h.service.CastVote(ctx, req.VoterID, req.CandidateID, proof)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if outcome.Accepted {
		httputil.WriteJSON(w, http.StatusOK, CastVoteResponse{
			Success:    true,
			Message:    "vote recorded",
			BlockIndex: outcome.BlockIndex,
			BlockHash:  outcome.BlockHash.String(),
		})
		return
	}
	status, message := rejection(outcome.Reason)
	httputil.WriteJSON(w, status, CastVoteResponse{
		Success: false,
		Message: message,
		Reason:  string(outcome.Reason),
	})
}

func rejection(reason ballot.RejectReason) (int, string) {
	switch reason {
	case ballot.IdentityNotVerified:
		return http.StatusUnauthorized, "identity not verified"
	case ballot.UnknownVoter:
		return http.StatusNotFound, "voter is not registered"
	case ballot.AlreadyVoted:
		return http.StatusConflict, "voter has already voted"
	case ballot.InvalidOrClosedCandidate:
		return http.StatusUnprocessableEntity, "candidate is invalid or voting is closed"
	default:
		return http.StatusInternalServerError, "vote not recorded"
	}
}

// HandleListCandidates handles GET /api/candidates.
func (h *Handler) HandleListCandidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidates, err := h.candidates.ListCandidates(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list candidates",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := ListCandidatesResponse{Candidates: make([]CandidateResponse, 0, len(candidates))}
	for _, c := range candidates {
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			ID:         c.ID,
			Name:       c.Name,
			Party:      c.Party,
			ElectionID: c.ElectionID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
