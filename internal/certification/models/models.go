// Package models holds the green seal and its change ledger.
package models

import (
	"strings"
	"time"

	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
)

// Status is the certification state of a producer.
type Status string

const (
	StatusActive   Status = "ATIVO"
	StatusPending  Status = "PENDENTE"
	StatusInactive Status = "INATIVO"
)

func (s Status) String() string { return string(s) }

// Tier grades an active seal.
type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierSilver Tier = "PRATA"
	TierGold   Tier = "OURO"
)

func (t Tier) String() string { return string(t) }

// Verdict is an audit outcome as seen by certification.
type Verdict string

const (
	VerdictApproved       Verdict = "APPROVED"
	VerdictRejected       Verdict = "REJECTED"
	VerdictRequiresReview Verdict = "REQUIRES_REVIEW"
)

// ParseVerdict accepts the canonical verdict names, case-insensitively.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictApproved, VerdictRejected, VerdictRequiresReview:
		return v, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown verdict: "+s)
}

// Seal is the single certification row of a producer. It is mutated in place
// by every audit outcome and recalculation.
type Seal struct {
	ProducerID    domain.ProducerID
	Status        Status
	Tier          *Tier
	Score         int
	Reasons       []string
	RuleVersion   string
	LastAuditID   *domain.AuditID
	LastVerdict   *Verdict
	LastCheckedAt time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the seal validity ended strictly before now.
func (s *Seal) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Clone returns a deep copy.
func (s *Seal) Clone() *Seal {
	c := *s
	c.Reasons = append([]string(nil), s.Reasons...)
	if s.Tier != nil {
		t := *s.Tier
		c.Tier = &t
	}
	if s.LastAuditID != nil {
		id := *s.LastAuditID
		c.LastAuditID = &id
	}
	if s.LastVerdict != nil {
		v := *s.LastVerdict
		c.LastVerdict = &v
	}
	return &c
}

// Change is one append-only ledger entry, written only when a seal's status
// actually changes. From is nil for the first entry of a producer.
type Change struct {
	ID         domain.ChangeID
	ProducerID domain.ProducerID
	From       *Status
	To         Status
	Reason     string
	Evidence   *string
	CreatedAt  time.Time
}

// NewChange builds a ledger entry for a transition from -> to.
func NewChange(producerID domain.ProducerID, from *Status, to Status, reason string, evidence *string, now time.Time) *Change {
	var prev *Status
	if from != nil {
		p := *from
		prev = &p
	}
	return &Change{
		ID:         domain.NewChangeID(),
		ProducerID: producerID,
		From:       prev,
		To:         to,
		Reason:     reason,
		Evidence:   evidence,
		CreatedAt:  now,
	}
}

// AuditOutcome is the certification input derived from an audit-completed event.
type AuditOutcome struct {
	AuditID     domain.AuditID
	ProducerID  domain.ProducerID
	Verdict     Verdict
	RuleVersion string
	Evidence    []Evidence
}

type Evidence struct {
	Kind   string
	Detail string
}

// Reasons renders one "KIND: detail" string per evidence item.
func (o AuditOutcome) Reasons() []string {
	out := make([]string, len(o.Evidence))
	for i, e := range o.Evidence {
		out[i] = e.Kind + ": " + e.Detail
	}
	return out
}
