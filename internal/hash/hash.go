// Package hash provides content checksums and deterministic record IDs.
//
// Raster payloads are checksummed with BLAKE2b-256 so a re-export of the
// same bytes can be recognized. Record IDs are a keyed BLAKE2b digest of a
// record's unique key, shortened to 12 bytes so they have the same shape as
// a MongoDB ObjectID.
package hash

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// idKey namespaces record IDs so they never collide with payload sums.
var idKey = []byte("geoengine/record-id/v1")

const idSize = 12

// Hasher provides an abstraction for hashing operations.
type Hasher interface {
	// Sum returns the hex BLAKE2b-256 digest of everything read from r.
	Sum(r io.Reader) (string, error)

	// Key derives a stable record ID from the parts of a unique key.
	Key(parts ...string) string
}

// Blake2bHasher implements Hasher using BLAKE2b.
type Blake2bHasher struct{}

// NewBlake2bHasher creates a new Blake2bHasher.
func NewBlake2bHasher() *Blake2bHasher {
	return &Blake2bHasher{}
}

// Sum computes the BLAKE2b-256 digest of r.
func (h *Blake2bHasher) Sum(r io.Reader) (string, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create hasher: %w", err)
	}
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Key joins parts with a NUL separator and returns a 24 character hex ID.
func (h *Blake2bHasher) Key(parts ...string) string {
	hasher, err := blake2b.New(idSize, idKey)
	if err != nil {
		// size and key length are constants within blake2b limits
		panic(err)
	}
	_, _ = io.WriteString(hasher, strings.Join(parts, "\x00"))
	return hex.EncodeToString(hasher.Sum(nil))
}
