package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ecoledger/internal/certification/models"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/httputil"
	"ecoledger/pkg/requestcontext"
)

// Service defines the certification operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, producerID domain.ProducerID) (*models.Seal, error)
	History(ctx context.Context, producerID domain.ProducerID) ([]*models.Change, error)
	Recalculate(ctx context.Context, producerID domain.ProducerID, reason string) (*models.Seal, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts seal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/seals/{producerId}", h.HandleGet)
	r.Post("/seals/{producerId}/recalculate", h.HandleRecalculate)
	r.Get("/seals/{producerId}/history", h.HandleHistory)
}

// HandleGet handles GET /seals/{producerId}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	producerID, err := domain.ParseProducerID(chi.URLParam(r, "producerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	seal, err := h.service.Get(ctx, producerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSeal(seal))
}

// HandleRecalculate handles POST /seals/{producerId}/recalculate. The body
// is optional.
func (h *Handler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	producerID, err := domain.ParseProducerID(chi.URLParam(r, "producerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RecalculateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	seal, err := h.service.Recalculate(ctx, producerID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "seal recalculation failed",
			"request_id", requestID,
			"producer_id", producerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecalculated(seal))
}

// HandleHistory handles GET /seals/{producerId}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	producerID, err := domain.ParseProducerID(chi.URLParam(r, "producerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	changes, err := h.service.History(ctx, producerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load seal history",
			"request_id", requestcontext.RequestID(ctx),
			"producer_id", producerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromChanges(changes))
}
