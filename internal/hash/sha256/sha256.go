// Package sha256 derives stable storage keys from URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key returns the hex SHA-256 digest of s. Keys are safe as document IDs
// in stores that reject '/' in identifiers.
func Key(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
