// Package sha256 provides the digest utilities used for artifact integrity
// and deterministic record identifiers.
package sha256

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Hasher implements corpus.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RecordID derives the stable identifier for a training record from its
// provenance. Identical inputs always yield the same id across runs.
func RecordID(entryID, variant string, sequence int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", entryID, variant, sequence))
	return hex.EncodeToString(sum[:8])
}

// Bucket reduces an identifier onto [0, buckets) deterministically. Used for
// split assignment; never seeded, never random.
func Bucket(id string, buckets uint64) uint64 {
	if buckets == 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint64(sum[:8]) % buckets
}
