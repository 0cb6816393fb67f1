package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ecoledger/internal/movement/idempotency"
	"ecoledger/internal/movement/models"
	"ecoledger/internal/movement/service"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/httputil"
	"ecoledger/pkg/requestcontext"
)

// HeaderIdempotencyKey carries the client's idempotency key on POST /movements.
const HeaderIdempotencyKey = "X-Idempotency-Key"

const maxBodyBytes = 1 << 20

// Service defines the movement operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (domain.MovementID, error)
	Get(ctx context.Context, id domain.MovementID) (*models.Movement, error)
	ListByProducer(ctx context.Context, filter models.ListFilter) (models.Page, error)
	CommodityHistory(ctx context.Context, commodityID domain.CommodityID) ([]*models.Movement, error)
}

// Handler wires movement endpoints to the movement service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts movement endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/movements", h.HandleCreate)
	r.Get("/movements/{id}", h.HandleGet)
	r.Get("/producers/{producerId}/movements", h.HandleListByProducer)
	r.Get("/commodities/{commodityId}/history", h.HandleCommodityHistory)
}

// HandleCreate handles POST /movements.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	fingerprint, err := idempotency.Fingerprint(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	id, err := h.service.Register(ctx, service.RegisterCommand{
		IdempotencyKey: key,
		Fingerprint:    fingerprint,
		Movement:       req.Movement(),
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, idempotency.ErrUnresolved) || dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "movement registration failed",
			"request_id", requestID,
			"producer_id", req.ProducerID,
			"idempotency_key", key,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "movement create request answered",
		"request_id", requestID,
		"movement_id", id,
		"idempotency_key", key,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("Location", "/movements/"+id.String())
	httputil.WriteJSON(w, http.StatusCreated, CreateResponse{MovementID: id.String()})
}

// HandleGet handles GET /movements/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMovementID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromMovement(m))
}

// HandleListByProducer handles GET /producers/{producerId}/movements.
func (h *Handler) HandleListByProducer(w http.ResponseWriter, r *http.Request) {
	producerID, err := domain.ParseProducerID(chi.URLParam(r, "producerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := parseListFilter(producerID, r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListByProducer(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Items: fromMovements(page.Items), Total: page.Total})
}

// HandleCommodityHistory handles GET /commodities/{commodityId}/history.
func (h *Handler) HandleCommodityHistory(w http.ResponseWriter, r *http.Request) {
	commodityID, err := domain.ParseCommodityID(chi.URLParam(r, "commodityId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.CommodityHistory(r.Context(), commodityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Items: fromMovements(list)})
}
