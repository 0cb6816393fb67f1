// Package consumer folds audit-completed messages into producer seals.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"ecoledger/internal/certification/models"
	"ecoledger/internal/events"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
	"ecoledger/pkg/domain"
)

// GroupID is the consumer group of the certification subsystem.
const GroupID = "certification-service"

// Certifier is the part of the certification service the consumer needs.
type Certifier interface {
	OnAuditCompleted(ctx context.Context, in models.AuditOutcome) (*models.Seal, error)
}

// AuditCompletedHandler applies audit-completed events. Messages that can
// never succeed are logged and acknowledged; service failures are returned
// so the runtime redelivers.
type AuditCompletedHandler struct {
	certifier Certifier
	logger    *slog.Logger
}

func NewAuditCompletedHandler(certifier Certifier, logger *slog.Logger) *AuditCompletedHandler {
	return &AuditCompletedHandler{certifier: certifier, logger: logger}
}

func (h *AuditCompletedHandler) Handle(ctx context.Context, msg *kconsumer.Message) error {
	var ev events.AuditCompleted
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode audit-completed, dropping",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	producerID, err := domain.ParseProducerID(ev.ProducerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit-completed with invalid producer, dropping",
			"audit_id", ev.AuditID,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	verdict, err := models.ParseVerdict(ev.Verdict)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit-completed with unknown verdict, dropping",
			"audit_id", ev.AuditID,
			"producer_id", producerID,
			"verdict", ev.Verdict,
		)
		return nil
	}

	evidence := make([]models.Evidence, len(ev.Evidence))
	for i, e := range ev.Evidence {
		evidence[i] = models.Evidence{Kind: e.Kind, Detail: e.Detail}
	}
	_, err = h.certifier.OnAuditCompleted(ctx, models.AuditOutcome{
		AuditID:     ev.AuditID,
		ProducerID:  producerID,
		Verdict:     verdict,
		RuleVersion: ev.RuleVersion,
		Evidence:    evidence,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply audit outcome",
			"audit_id", ev.AuditID,
			"producer_id", producerID,
			"error", err,
		)
		return err
	}
	return nil
}
