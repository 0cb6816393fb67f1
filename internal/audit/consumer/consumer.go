// Package consumer turns movement-created messages into audit ingestions.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"ecoledger/internal/audit/models"
	"ecoledger/internal/events"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
	"ecoledger/pkg/domain"
)

// GroupID is the consumer group of the audit subsystem.
const GroupID = "audit-service"

// Ingester is the part of the audit service the consumer needs.
type Ingester interface {
	Ingest(ctx context.Context, m *models.Movement) (*models.Record, bool, error)
}

// MovementCreatedHandler ingests movement-created events. Undecodable
// messages are acknowledged and dropped; store failures are returned so the
// runtime redelivers.
type MovementCreatedHandler struct {
	ingester Ingester
	logger   *slog.Logger
}

func NewMovementCreatedHandler(ingester Ingester, logger *slog.Logger) *MovementCreatedHandler {
	return &MovementCreatedHandler{ingester: ingester, logger: logger}
}

func (h *MovementCreatedHandler) Handle(ctx context.Context, msg *kconsumer.Message) error {
	var ev events.MovementCreated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode movement-created, dropping",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if ev.MovementID.IsNil() || ev.ProducerID == "" {
		h.logger.ErrorContext(ctx, "movement-created missing identifiers, dropping",
			"offset", msg.Offset,
			"key", string(msg.Key),
		)
		return nil
	}

	_, _, err := h.ingester.Ingest(ctx, toMovement(ev))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to ingest movement",
			"movement_id", ev.MovementID,
			"error", err,
		)
		return err
	}
	return nil
}

func toMovement(ev events.MovementCreated) *models.Movement {
	attachments := make([]models.Attachment, len(ev.Attachments))
	for i, a := range ev.Attachments {
		attachments[i] = models.Attachment{Type: a.Type, URL: a.URL, Hash: a.Hash}
	}
	return &models.Movement{
		ID:          ev.MovementID,
		ProducerID:  domain.ProducerID(ev.ProducerID),
		CommodityID: domain.CommodityID(ev.CommodityID),
		Type:        ev.Type,
		Quantity:    ev.Quantity,
		Unit:        ev.Unit,
		OccurredAt:  ev.Timestamp,
		Latitude:    ev.Latitude,
		Longitude:   ev.Longitude,
		Attachments: attachments,
	}
}
