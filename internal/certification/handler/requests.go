package handler

import (
	"strings"

	dErrors "ecoledger/pkg/domain-errors"
)

const maxReasonLength = 500

// RecalculateRequest is the optional body of POST /seals/{producerId}/recalculate.
type RecalculateRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (r *RecalculateRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	return nil
}
