// Package secret generates, redacts, and hashes API key material. It never
// touches storage and never produces taxonomy errors; callers translate its
// booleans and absences into the right error category.
package secret

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	// KeyPrefix is the constant, publicly known prefix on every raw key.
	KeyPrefix = "bck_"

	// randomHexLen is the length of the hex-encoded random portion.
	randomHexLen = 32

	// RawKeyLen is the total length of a well-formed raw key.
	RawKeyLen = len(KeyPrefix) + randomHexLen
)

// Generate produces a new raw API key: the constant prefix followed by 32
// lowercase hex characters from a cryptographically secure source.
func Generate() (string, error) {
	buf := make([]byte, randomHexLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// DisplayPrefix returns the redacted form of a raw key that is safe to store
// and show in UI lists: the constant prefix plus the first 4 and last 4
// characters of the random portion. The same value is used as the lookup
// prefix during validation; it is not unique by construction. Input too short
// to redact yields just the constant prefix.
func DisplayPrefix(rawKey string) string {
	if len(rawKey) < len(KeyPrefix)+8 {
		return KeyPrefix
	}
	random := rawKey[len(KeyPrefix):]
	return KeyPrefix + random[:4] + "…" + random[len(random)-4:]
}

// IsWellFormed is a cheap syntactic check used as a fast rejection filter
// before any hashing or storage work.
func IsWellFormed(candidate string) bool {
	if len(candidate) != RawKeyLen {
		return false
	}
	if candidate[:len(KeyPrefix)] != KeyPrefix {
		return false
	}
	for _, c := range candidate[len(KeyPrefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
