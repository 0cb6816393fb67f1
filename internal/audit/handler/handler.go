package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecoledger/internal/audit/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/httputil"
	"ecoledger/pkg/requestcontext"
)

// Service defines the audit operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, id domain.AuditID) (*models.Record, error)
	History(ctx context.Context, producerID domain.ProducerID) ([]*models.Record, error)
	Revise(ctx context.Context, id domain.AuditID, rv models.Revision) (*models.Record, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audits/{id}", h.HandleGet)
	r.Post("/audits/{id}/revision", h.HandleRevise)
	r.Get("/producers/{producerId}/audit-history", h.HandleHistory)
}

// HandleGet handles GET /audits/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseAuditID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}

// HandleHistory handles GET /producers/{producerId}/audit-history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	producerID, err := domain.ParseProducerID(chi.URLParam(r, "producerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.History(ctx, producerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load audit history",
			"request_id", requestcontext.RequestID(ctx),
			"producer_id", producerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleRevise handles POST /audits/{id}/revision.
func (h *Handler) HandleRevise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseAuditID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RevisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Revise(ctx, id, req.Revision())
	if err != nil {
		h.logger.WarnContext(ctx, "audit revision rejected",
			"request_id", requestID,
			"audit_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(record))
}
