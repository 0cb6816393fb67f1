package handler

import (
	"time"

	"ecoledger/internal/certification/models"
)

// SealResponse is the body of GET /seals/{producerId}.
type SealResponse struct {
	ProducerID  string    `json:"producerId"`
	Status      string    `json:"status"`
	Tier        *string   `json:"tier"`
	Score       int       `json:"score"`
	RuleVersion string    `json:"ruleVersion"`
	LastChecked time.Time `json:"lastChecked"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Reasons     []string  `json:"reasons"`
}

// RecalculateResponse is the body of POST /seals/{producerId}/recalculate.
type RecalculateResponse struct {
	Status string  `json:"status"`
	Tier   *string `json:"tier"`
	Score  int     `json:"score"`
}

type ChangeResponse struct {
	FromStatus *string   `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Reason     string    `json:"reason"`
	Evidence   *string   `json:"evidence,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryResponse lists status changes, most recent first.
type HistoryResponse struct {
	Changes []ChangeResponse `json:"changes"`
}

func tierString(t *models.Tier) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func FromSeal(s *models.Seal) SealResponse {
	reasons := s.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return SealResponse{
		ProducerID:  string(s.ProducerID),
		Status:      string(s.Status),
		Tier:        tierString(s.Tier),
		Score:       s.Score,
		RuleVersion: s.RuleVersion,
		LastChecked: s.LastCheckedAt,
		ExpiresAt:   s.ExpiresAt,
		Reasons:     reasons,
	}
}

func FromRecalculated(s *models.Seal) RecalculateResponse {
	return RecalculateResponse{
		Status: string(s.Status),
		Tier:   tierString(s.Tier),
		Score:  s.Score,
	}
}

func FromChanges(changes []*models.Change) HistoryResponse {
	out := HistoryResponse{Changes: make([]ChangeResponse, len(changes))}
	for i, c := range changes {
		var from *string
		if c.From != nil {
			f := string(*c.From)
			from = &f
		}
		out.Changes[i] = ChangeResponse{
			FromStatus: from,
			ToStatus:   string(c.To),
			Reason:     c.Reason,
			Evidence:   c.Evidence,
			CreatedAt:  c.CreatedAt,
		}
	}
	return out
}
