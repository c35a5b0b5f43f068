// Package auth contains API token hashing and comparison helpers.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Equal compares two keys in constant time via their hashes.
func Equal(a, b string) bool {
	ha := HashKey(a)
	hb := HashKey(b)
	return subtle.ConstantTimeCompare([]byte(ha), []byte(hb)) == 1
}

// GenerateToken returns a new random API token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "rp_" + hex.EncodeToString(buf), nil
}
