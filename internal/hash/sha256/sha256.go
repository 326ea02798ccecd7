// Package sha256 provides the content-hash implementation used for
// payload deduplication.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher using SHA-256. Identical raw payloads
// always produce identical digests, which is the only property the
// dedup layer relies on.
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

// HashString hashes a string payload and returns a hex digest.
func (h *Hasher) HashString(data string) (string, error) {
	return h.Hash([]byte(data))
}
