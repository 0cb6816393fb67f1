// Package domain holds the identifier and value primitives shared by the
// movement, audit and certification subsystems.
package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "ecoledger/pkg/domain-errors"
)

// Typed identifiers. Distinct types keep a movement id from being passed
// where an audit id is expected.
type (
	MovementID uuid.UUID
	AuditID    uuid.UUID
	ChangeID   uuid.UUID
)

// ProducerID, CommodityID and AuditorID are opaque identifiers issued by
// other systems.
type (
	ProducerID  string
	CommodityID string
	AuditorID   string
)

const maxExternalIDLength = 128

func NewMovementID() MovementID { return MovementID(uuid.New()) }
func NewAuditID() AuditID       { return AuditID(uuid.New()) }
func NewChangeID() ChangeID     { return ChangeID(uuid.New()) }

func (id MovementID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string    { return uuid.UUID(id).String() }
func (id ChangeID) String() string   { return uuid.UUID(id).String() }

func (id MovementID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ChangeID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id MovementID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id AuditID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ChangeID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *MovementID) UnmarshalText(b []byte) error {
	parsed, err := ParseMovementID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AuditID) UnmarshalText(b []byte) error {
	parsed, err := ParseAuditID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ChangeID) UnmarshalText(b []byte) error {
	parsed, err := ParseChangeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseMovementID parses a movement id. Empty, malformed and nil UUIDs are rejected.
func ParseMovementID(s string) (MovementID, error) {
	u, err := parseUUID(s, "movement id")
	return MovementID(u), err
}

// ParseAuditID parses an audit record id.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parseUUID(s, "audit id")
	return AuditID(u), err
}

// ParseChangeID parses a seal change id.
func ParseChangeID(s string) (ChangeID, error) {
	u, err := parseUUID(s, "change id")
	return ChangeID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

// ParseProducerID validates an externally issued producer id.
func ParseProducerID(s string) (ProducerID, error) {
	v, err := parseExternalID(s, "producer id")
	return ProducerID(v), err
}

// ParseCommodityID validates an externally issued commodity id.
func ParseCommodityID(s string) (CommodityID, error) {
	v, err := parseExternalID(s, "commodity id")
	return CommodityID(v), err
}

// ParseAuditorID validates an auditor id.
func ParseAuditorID(s string) (AuditorID, error) {
	v, err := parseExternalID(s, "auditor id")
	return AuditorID(v), err
}

func parseExternalID(s, kind string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxExternalIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, kind+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '/' {
			return "", dErrors.New(dErrors.CodeInvalidInput, kind+" contains invalid characters")
		}
	}
	return s, nil
}

func (id ProducerID) String() string  { return string(id) }
func (id CommodityID) String() string { return string(id) }
func (id AuditorID) String() string   { return string(id) }
