package models

import (
	"strings"
	"time"

	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
)

// Verdict is the outcome of auditing one movement.
type Verdict string

const (
	VerdictApproved       Verdict = "APPROVED"
	VerdictRejected       Verdict = "REJECTED"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
)

// ParseVerdict accepts the canonical upper-case names.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictApproved, VerdictRejected, VerdictRequiresReview:
		return v, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown verdict: "+s)
}

func (v Verdict) String() string { return string(v) }

// Evidence kinds emitted by the rule set.
const (
	EvidenceQuantity        = "QUANTITY_VALIDATION"
	EvidenceLocation        = "LOCATION_VALIDATION"
	EvidenceAttachmentCount = "ATTACHMENT_COUNT"
	EvidenceAttachmentTypes = "ATTACHMENT_TYPES"
	EvidenceRuleError       = "RULE_ERROR"
)

// Evidence explains why a rule failed.
type Evidence struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Movement is the audit subsystem's read-only view of a registered movement.
type Movement struct {
	ID          domain.MovementID
	ProducerID  domain.ProducerID
	CommodityID domain.CommodityID
	Type        string
	Quantity    domain.Quantity
	Unit        string
	OccurredAt  time.Time
	Latitude    *float64
	Longitude   *float64
	Attachments []Attachment
}

type Attachment struct {
	Type string
	URL  string
	Hash string
}

// Record is the audit outcome for one movement. Base fields never change after
// creation; a single manual revision may replace the verdict.
type Record struct {
	ID          domain.AuditID
	MovementID  domain.MovementID
	ProducerID  domain.ProducerID
	RuleVersion string
	Verdict     Verdict
	Evidence    []Evidence
	ProcessedAt time.Time

	AuditorID   *domain.AuditorID
	Observation *string
	RevisedAt   *time.Time
}

// NewRecord builds a CREATED audit record.
func NewRecord(movement *Movement, verdict Verdict, evidence []Evidence, ruleVersion string, now time.Time) *Record {
	ev := make([]Evidence, len(evidence))
	copy(ev, evidence)
	return &Record{
		ID:          domain.NewAuditID(),
		MovementID:  movement.ID,
		ProducerID:  movement.ProducerID,
		RuleVersion: ruleVersion,
		Verdict:     verdict,
		Evidence:    ev,
		ProcessedAt: now,
	}
}

// Revised reports whether the record reached its terminal REVISED state.
func (r *Record) Revised() bool { return r.RevisedAt != nil }

// Revision is a manual verdict override by an auditor.
type Revision struct {
	AuditorID   domain.AuditorID
	Verdict     Verdict
	Observation string
}

// Validate checks the revision in isolation from any record.
func (rv Revision) Validate() error {
	var missing []string
	if rv.AuditorID == "" {
		missing = append(missing, "auditorId")
	}
	if rv.Verdict == "" {
		missing = append(missing, "verdict")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if rv.Verdict == VerdictRequiresReview {
		return dErrors.New(dErrors.CodeInvalidState, "manual revision cannot set verdict REQUIRES_REVIEW")
	}
	return nil
}

// ApplyRevision moves the record from CREATED to REVISED.
func (r *Record) ApplyRevision(rv Revision, now time.Time) error {
	if err := rv.Validate(); err != nil {
		return err
	}
	if r.Revised() {
		return dErrors.New(dErrors.CodeInvalidState, "audit record has already been revised")
	}
	auditor := rv.AuditorID
	r.AuditorID = &auditor
	r.Verdict = rv.Verdict
	if obs := strings.TrimSpace(rv.Observation); obs != "" {
		r.Observation = &obs
	}
	revisedAt := now
	r.RevisedAt = &revisedAt
	return nil
}
