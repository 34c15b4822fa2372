package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// PseudonymLength is the number of hex characters kept from the digest (64 bits).
// At the expected tenant and patient cardinalities the birthday-bound collision
// probability is negligible; the truncation is an accepted risk.
const PseudonymLength = 16

var ErrEmptySalt = errors.New("pseudonymization salt must not be empty")

// Pseudonymizer derives one-way, deterministic tokens from raw identifiers.
// The salt must stay fixed for the lifetime of a dataset or joins across
// historical partitions break.
type Pseudonymizer struct {
	salt []byte
}

func NewPseudonymizer(salt string) (*Pseudonymizer, error) {
	if salt == "" {
		return nil, ErrEmptySalt
	}
	return &Pseudonymizer{salt: []byte(salt)}, nil
}

// Pseudonymize returns the first 16 hex characters of SHA-256(salt || raw).
func (p *Pseudonymizer) Pseudonymize(raw string) string {
	h := sha256.New()
	h.Write(p.salt)
	h.Write([]byte(raw))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:PseudonymLength/2])
}
