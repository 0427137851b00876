// Package derive reduces whitened bits to a fixed-size seed and computes
// the verifiable process fingerprint. Both functions are pure: identical
// input always yields identical output, which is what makes the draw
// process externally auditable.
package derive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/veridraw/veridraw/bitseq"
)

// SeedSize is the byte size of a derived seed.
const SeedSize = sha256.Size

// Seed is a deterministic reduction of a whitened bit buffer.
type Seed [SeedSize]byte

// NewSeed derives the seed from the whitened bits. The hash runs over the
// ASCII export so that any third party holding the exported bit string can
// recompute it without knowing the internal bit packing.
func NewSeed(white bitseq.Sequence) Seed {
	return sha256.Sum256([]byte(white.String()))
}

// Hex returns the hex representation of the seed.
func (s Seed) Hex() string {
	return hex.EncodeToString(s[:])
}

// Fingerprint computes the hex SHA-256 digest over the ASCII bit export
// concatenated with the canonical (RFC 8785) JSON serialization of the
// given result. A nil result digests the bits alone. Anyone holding the
// exported bits and the published result can recompute this value.
func Fingerprint(white bitseq.Sequence, result interface{}) (string, error) {
	h := sha256.New()
	h.Write([]byte(white.String()))

	if result != nil {
		serialized, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("failed to serialize result: %w", err)
		}
		canonical, err := jcs.Transform(serialized)
		if err != nil {
			return "", fmt.Errorf("failed to canonicalize result: %w", err)
		}
		h.Write(canonical)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
