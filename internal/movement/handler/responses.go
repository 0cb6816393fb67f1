package handler

import (
	"time"

	"ecoledger/internal/movement/models"
	"ecoledger/pkg/domain"
)

type CreateResponse struct {
	MovementID string `json:"movementId"`
}

type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type AttachmentResponse struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// MovementResponse is the detail view of a movement.
type MovementResponse struct {
	ID          string               `json:"id"`
	ProducerID  string               `json:"producerId"`
	CommodityID string               `json:"commodityId"`
	Type        string               `json:"type"`
	Quantity    domain.Quantity      `json:"quantity"`
	Unit        string               `json:"unit"`
	Timestamp   time.Time            `json:"timestamp"`
	Location    *LocationResponse    `json:"location"`
	CreatedAt   time.Time            `json:"createdAt"`
	Attachments []AttachmentResponse `json:"attachments"`
}

type ListResponse struct {
	Items []MovementResponse `json:"items"`
	Total int                `json:"total"`
}

type HistoryResponse struct {
	Items []MovementResponse `json:"items"`
}

func FromMovement(m *models.Movement) MovementResponse {
	attachments := make([]AttachmentResponse, len(m.Attachments))
	for i, a := range m.Attachments {
		attachments[i] = AttachmentResponse{Type: a.Type, URL: a.URL, Hash: a.Hash}
	}
	resp := MovementResponse{
		ID:          m.ID.String(),
		ProducerID:  m.ProducerID.String(),
		CommodityID: m.CommodityID.String(),
		Type:        m.Type,
		Quantity:    m.Quantity,
		Unit:        m.Unit,
		Timestamp:   m.OccurredAt,
		CreatedAt:   m.CreatedAt,
		Attachments: attachments,
	}
	if m.Location != nil {
		resp.Location = &LocationResponse{Lat: m.Location.Lat, Lon: m.Location.Lon}
	}
	return resp
}

func fromMovements(ms []*models.Movement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i, m := range ms {
		out[i] = FromMovement(m)
	}
	return out
}
