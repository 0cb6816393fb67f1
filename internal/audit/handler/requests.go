package handler

import (
	"strings"

	"ecoledger/internal/audit/models"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
)

// RevisionRequest is the body of POST /audits/{id}/revision.
type RevisionRequest struct {
	AuditorID   string  `json:"auditorId"`
	Verdict     string  `json:"verdict"`
	Observation *string `json:"observation,omitempty"`

	revision models.Revision
}

// Validate reports every missing field at once, then parses the values.
func (r *RevisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var missing []string
	if strings.TrimSpace(r.AuditorID) == "" {
		missing = append(missing, "auditorId")
	}
	if strings.TrimSpace(r.Verdict) == "" {
		missing = append(missing, "verdict")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}

	auditor, err := domain.ParseAuditorID(r.AuditorID)
	if err != nil {
		return err
	}
	verdict, err := models.ParseVerdict(r.Verdict)
	if err != nil {
		return err
	}
	r.revision = models.Revision{AuditorID: auditor, Verdict: verdict}
	if r.Observation != nil {
		if len(*r.Observation) > 2000 {
			return dErrors.New(dErrors.CodeValidation, "observation must be at most 2000 characters")
		}
		r.revision.Observation = *r.Observation
	}
	return nil
}

// Revision returns the parsed revision. Only valid after Validate.
func (r *RevisionRequest) Revision() models.Revision { return r.revision }
