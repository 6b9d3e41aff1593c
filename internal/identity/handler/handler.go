package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ballot/internal/identity"
	"ballot/pkg/platform/httputil"
	"ballot/pkg/requestcontext"
)

// Service defines the interface for identity verification.
type Service interface {
	Verify(ctx context.Context, voterID string, probe []byte) (*identity.Result, error)
}

// Handler serves face verification.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/verify-face", h.HandleVerifyFace)
}

// HandleVerifyFace handles POST /api/verify-face. A confident match returns
// 200 with a proof token; a failed match returns 401 with the remaining
// attempts.
func (h *Handler) HandleVerifyFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyFaceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Verify(ctx, req.VoterID, req.probe)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !res.Verified {
		httputil.WriteJSON(w, http.StatusUnauthorized, VerifyFaceResponse{
			Verified:          false,
			Confidence:        res.Confidence,
			Message:           res.Reason,
			AttemptsRemaining: res.AttemptsRemaining,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyFaceResponse{
		Verified:   true,
		Confidence: res.Confidence,
		Message:    "identity verified",
		Token:      res.Token,
		ExpiresAt:  res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
