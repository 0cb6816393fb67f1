// Package events defines the flat JSON records exchanged between the
// movement, audit and certification subsystems.
package events

import (
	"time"

	"ecoledger/pkg/domain"
)

// Topic names.
const (
	TopicMovementCreated = "movement-created"
	TopicAuditCompleted  = "audit-completed"
	TopicSealUpdated     = "seal-updated"
)

// AllTopics lists every topic the relay uses, for topic bootstrap.
var AllTopics = []string{TopicMovementCreated, TopicAuditCompleted, TopicSealUpdated}

// MovementCreated is published once a movement is persisted. Keyed by movement id.
type MovementCreated struct {
	MovementID  domain.MovementID `json:"movementId"`
	ProducerID  string            `json:"producerId"`
	CommodityID string            `json:"commodityId"`
	Type        string            `json:"type"`
	Quantity    domain.Quantity   `json:"quantity"`
	Unit        string            `json:"unit"`
	Timestamp   time.Time         `json:"timestamp"`
	Latitude    *float64          `json:"latitude,omitempty"`
	Longitude   *float64          `json:"longitude,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	Attachments []Attachment      `json:"attachments"`
}

type Attachment struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Hash string `json:"hash,omitempty"`
}

// AuditCompleted is published for every new or revised verdict. Keyed by movement id.
type AuditCompleted struct {
	AuditID     domain.AuditID    `json:"auditId"`
	MovementID  domain.MovementID `json:"movementId"`
	ProducerID  string            `json:"producerId"`
	Verdict     string            `json:"verdict"`
	RuleVersion string            `json:"ruleVersion"`
	Evidence    []Evidence        `json:"evidence"`
	Timestamp   time.Time         `json:"timestamp"`
}

type Evidence struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// SealUpdated is published when a producer's seal status changes. Keyed by producer id.
type SealUpdated struct {
	ProducerID     string    `json:"producerId"`
	PreviousStatus *string   `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	NewTier        *string   `json:"newTier"`
	Score          int       `json:"score"`
	RuleVersion    string    `json:"ruleVersion"`
	Timestamp      time.Time `json:"timestamp"`
}
