package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	dErrors "ecoledger/pkg/domain-errors"
)

// Quantity is an exact decimal amount. The zero value means "absent".
// A Quantity is never mutated after construction, so copies share the
// underlying decimal safely.
type Quantity struct {
	d *apd.Decimal
}

// ParseQuantity parses a decimal string such as "12.500".
func ParseQuantity(s string) (Quantity, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Quantity{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid quantity")
	}
	if d.Form != apd.Finite {
		return Quantity{}, dErrors.New(dErrors.CodeInvalidInput, "quantity must be a finite number")
	}
	return Quantity{d: d}, nil
}

// MustQuantity is ParseQuantity for constants and tests.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// QuantityFromInt returns an integral quantity.
func QuantityFromInt(v int64) Quantity {
	return Quantity{d: apd.New(v, 0)}
}

// Present reports whether a value was supplied.
func (q Quantity) Present() bool { return q.d != nil }

// Sign returns -1, 0 or 1. An absent quantity reports 0.
func (q Quantity) Sign() int {
	if q.d == nil {
		return 0
	}
	return q.d.Sign()
}

// Cmp compares two present quantities numerically, ignoring trailing zeros.
func (q Quantity) Cmp(other Quantity) int {
	switch {
	case q.d == nil && other.d == nil:
		return 0
	case q.d == nil:
		return -1
	case other.d == nil:
		return 1
	}
	return q.d.Cmp(other.d)
}

func (q Quantity) String() string {
	if q.d == nil {
		return ""
	}
	return q.d.Text('f')
}

// MarshalJSON encodes the quantity as a JSON number, or null when absent.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.d == nil {
		return []byte("null"), nil
	}
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*q = Quantity{}
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Value stores the quantity as a NUMERIC-compatible string.
func (q Quantity) Value() (driver.Value, error) {
	if q.d == nil {
		return nil, nil
	}
	return q.String(), nil
}

// Scan reads NUMERIC columns, which lib/pq returns as []byte.
func (q *Quantity) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*q = Quantity{}
		return nil
	case []byte:
		return q.scanString(string(v))
	case string:
		return q.scanString(v)
	case int64:
		*q = QuantityFromInt(v)
		return nil
	case float64:
		return q.scanString(fmt.Sprintf("%v", v))
	default:
		return fmt.Errorf("cannot scan %T into Quantity", src)
	}
}

func (q *Quantity) scanString(s string) error {
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
