package idempotency

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"

	dErrors "ecoledger/pkg/domain-errors"
)

// Fingerprint hashes the RFC 8785 canonical form of a JSON body, so key
// order and insignificant whitespace do not change it.
func Fingerprint(body []byte) (string, error) {
	canonical, err := jcs.Transform(body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
