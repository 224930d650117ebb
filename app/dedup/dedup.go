// Package dedup computes the normalized content hash used to suppress
// duplicate leads across channels. Reposts of the same order text in
// different channels normalize to the same hash.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize collapses whitespace runs to single spaces, trims, and
// lowercases the text.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Hash returns the hex-encoded SHA-256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
