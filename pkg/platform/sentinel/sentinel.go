package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped)
// and services translate them into domain errors:
//   - ErrNotFound: no row/key for the requested id
//   - ErrAlreadyExists: a unique key (idempotency key, movement id of an audit) is taken
//   - ErrInvalidState: the stored entity cannot make the requested transition
//   - ErrUnavailable: backing service unreachable
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
