package handler

import (
	"time"

	"ecoledger/internal/audit/models"
)

type EvidenceResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// RecordResponse is the JSON shape of one audit record.
type RecordResponse struct {
	ID          string             `json:"id"`
	MovementID  string             `json:"movementId"`
	ProducerID  string             `json:"producerId"`
	RuleVersion string             `json:"ruleVersion"`
	Verdict     string             `json:"verdict"`
	Evidence    []EvidenceResponse `json:"evidence"`
	ProcessedAt time.Time          `json:"processedAt"`
	AuditorID   *string            `json:"auditorId,omitempty"`
	Observation *string            `json:"observation,omitempty"`
	RevisedAt   *time.Time         `json:"revisedAt,omitempty"`
}

type HistoryResponse struct {
	Items []RecordResponse `json:"items"`
	Total int              `json:"total"`
}

func FromRecord(r *models.Record) RecordResponse {
	evidence := make([]EvidenceResponse, len(r.Evidence))
	for i, e := range r.Evidence {
		evidence[i] = EvidenceResponse{Kind: e.Kind, Detail: e.Detail}
	}
	resp := RecordResponse{
		ID:          r.ID.String(),
		MovementID:  r.MovementID.String(),
		ProducerID:  r.ProducerID.String(),
		RuleVersion: r.RuleVersion,
		Verdict:     string(r.Verdict),
		Evidence:    evidence,
		ProcessedAt: r.ProcessedAt,
		Observation: r.Observation,
		RevisedAt:   r.RevisedAt,
	}
	if r.AuditorID != nil {
		a := r.AuditorID.String()
		resp.AuditorID = &a
	}
	return resp
}

func FromRecords(records []*models.Record) HistoryResponse {
	items := make([]RecordResponse, len(records))
	for i, r := range records {
		items[i] = FromRecord(r)
	}
	return HistoryResponse{Items: items, Total: len(items)}
}
