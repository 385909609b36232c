// Package sha256 fingerprints crawl artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the length of a Short fingerprint in hex characters.
const ShortLen = 12

// Hex returns the full hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Short returns the first ShortLen hex characters of the digest, enough to
// tell archive objects of the same site and second apart.
func Short(data []byte) string {
	return Hex(data)[:ShortLen]
}
