package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ballot/internal/inspector"
	"ballot/internal/ledger"
	"ballot/pkg/platform/httputil"
	"ballot/pkg/requestcontext"
)

// Service is the read side the admin endpoints need.
type Service interface {
	Validate(ctx context.Context) ledger.ValidityReport
	ExportValidated(ctx context.Context) ([]ledger.Block, ledger.ValidityReport)
	Results(ctx context.Context) (inspector.Results, error)
	Stats(ctx context.Context) (inspector.Stats, error)
	Reconcile(ctx context.Context) (int, error)
}

// Handler serves the admin chain inspection endpoints. Callers mount it
// behind admin authentication.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/admin/blockchain", h.HandleExportChain)
	r.Get("/api/admin/blockchain/validity", h.HandleValidity)
	r.Get("/api/admin/results", h.HandleResults)
	r.Get("/api/admin/stats", h.HandleStats)
	r.Post("/api/admin/reconcile", h.HandleReconcile)
}

func (h *Handler) HandleExportChain(w http.ResponseWriter, r *http.Request) {
	chain, report := h.service.ExportValidated(r.Context())
	httputil.WriteJSON(w, http.StatusOK, ChainResponse{
		Length:  len(chain),
		Chain:   chain,
		IsValid: report.Valid,
	})
}

func (h *Handler) HandleValidity(w http.ResponseWriter, r *http.Request) {
	report := h.service.Validate(r.Context())
	if !report.Valid {
		h.logger.WarnContext(r.Context(), "ledger failed validation",
			"request_id", requestcontext.RequestID(r.Context()),
			"first_tampered_index", report.FirstTamperedIndex,
			"reason", report.Reason,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Results(r.Context())
	if err != nil {
		h.fail(w, r, "failed to compute results", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to gather stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.Reconcile(ctx)
	if err != nil {
		h.fail(w, r, "failed to reconcile voter statuses", err)
		return
	}
	h.logger.InfoContext(ctx, "voter statuses reconciled",
		"request_id", requestcontext.RequestID(ctx),
		"admin", requestcontext.AdminSubject(ctx),
		"updated", n,
	)
	httputil.WriteJSON(w, http.StatusOK, ReconcileResponse{Updated: n})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}

type ChainResponse struct {
	Length  int            `json:"length"`
	Chain   []ledger.Block `json:"chain"`
	IsValid bool           `json:"is_valid"`
}

type ReconcileResponse struct {
	Updated int `json:"updated"`
}
