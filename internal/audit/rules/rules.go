// Package rules holds the movement validation rule set and the engine that
// folds rule results into one verdict.
package rules

import (
	"fmt"
	"strings"

	"ecoledger/internal/audit/models"
	"ecoledger/internal/platform/config"
)

// Rule names.
const (
	NameQuantity   = "QUANTITY_THRESHOLD"
	NameLocation   = "LOCATION_VALIDATION"
	NameAttachment = "ATTACHMENT_VALIDATION"
)

// Rule checks one aspect of a movement. Implementations read only their own
// static configuration and the movement, so repeated calls agree.
type Rule interface {
	Name() string
	Validate(m *models.Movement) (Result, error)
}

// Result of one rule. A failed result carries at least one evidence item.
type Result struct {
	Passed   bool
	Evidence []models.Evidence
}

func Pass() Result { return Result{Passed: true} }

func Fail(evidence ...models.Evidence) Result {
	return Result{Passed: false, Evidence: evidence}
}

// QuantityRule requires the quantity to lie within inclusive bounds.
type QuantityRule struct {
	cfg config.QuantityRule
}

func NewQuantityRule(cfg config.QuantityRule) *QuantityRule {
	return &QuantityRule{cfg: cfg}
}

func (r *QuantityRule) Name() string { return NameQuantity }

func (r *QuantityRule) Validate(m *models.Movement) (Result, error) {
	q := m.Quantity
	if !q.Present() {
		return Fail(models.Evidence{Kind: models.EvidenceQuantity, Detail: "quantity not provided"}), nil
	}
	if r.cfg.Min.Present() && q.Cmp(r.cfg.Min) < 0 {
		return Fail(models.Evidence{
			Kind:   models.EvidenceQuantity,
			Detail: fmt.Sprintf("quantity %s is below the minimum threshold of %s", q, r.cfg.Min),
		}), nil
	}
	if r.cfg.Max.Present() && q.Cmp(r.cfg.Max) > 0 {
		return Fail(models.Evidence{
			Kind:   models.EvidenceQuantity,
			Detail: fmt.Sprintf("quantity %s is above the maximum threshold of %s", q, r.cfg.Max),
		}), nil
	}
	return Pass(), nil
}

// LocationRule requires both coordinates when configured to check them.
type LocationRule struct {
	cfg config.LocationRule
}

func NewLocationRule(cfg config.LocationRule) *LocationRule {
	return &LocationRule{cfg: cfg}
}

func (r *LocationRule) Name() string { return NameLocation }

func (r *LocationRule) Validate(m *models.Movement) (Result, error) {
	if !r.cfg.ValidateCoordinates {
		return Pass(), nil
	}
	if m.Latitude == nil || m.Longitude == nil {
		return Fail(models.Evidence{Kind: models.EvidenceLocation, Detail: "location coordinates are required"}), nil
	}
	return Pass(), nil
}

// AttachmentRule checks attachment count and required type coverage. Both
// checks run; each failure adds its own evidence.
type AttachmentRule struct {
	cfg config.AttachmentRule
}

func NewAttachmentRule(cfg config.AttachmentRule) *AttachmentRule {
	return &AttachmentRule{cfg: cfg}
}

func (r *AttachmentRule) Name() string { return NameAttachment }

func (r *AttachmentRule) Validate(m *models.Movement) (Result, error) {
	if !r.cfg.Required {
		return Pass(), nil
	}

	var evidence []models.Evidence
	if n := len(m.Attachments); n < r.cfg.MinCount {
		evidence = append(evidence, models.Evidence{
			Kind:   models.EvidenceAttachmentCount,
			Detail: fmt.Sprintf("attachment count (%d) is below the required minimum (%d)", n, r.cfg.MinCount),
		})
	}

	if len(r.cfg.RequiredTypes) > 0 {
		present := make(map[string]struct{}, len(m.Attachments))
		for _, a := range m.Attachments {
			present[a.Type] = struct{}{}
		}
		var missing []string
		for _, t := range r.cfg.RequiredTypes {
			if _, ok := present[t]; !ok {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			evidence = append(evidence, models.Evidence{
				Kind:   models.EvidenceAttachmentTypes,
				Detail: "missing required attachment types: " + strings.Join(missing, ", "),
			})
		}
	}

	if len(evidence) > 0 {
		return Fail(evidence...), nil
	}
	return Pass(), nil
}

// Default builds the standard rule list in evaluation order.
func Default(cfg config.Rules) []Rule {
	return []Rule{
		NewQuantityRule(cfg.Quantity),
		NewLocationRule(cfg.Location),
		NewAttachmentRule(cfg.Attachments),
	}
}
