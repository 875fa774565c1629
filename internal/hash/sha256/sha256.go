// Package sha256 fingerprints exported datasets.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix labels every digest with its algorithm.
const Prefix = "sha256:"

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns data's digest as "sha256:<hex>".
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
