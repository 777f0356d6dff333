package hasher

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// separator joins the normalized identity fields before digesting. The field
// order (name, date of birth, national ID 1, national ID 2) and this
// separator are part of the hash contract: changing either invalidates every
// previously issued identity hash and is a breaking migration, not a fix.
const separator = "|"

// DigestLen is the length in characters of every hash this package produces
// (lower-case hex over a SHA-256 digest).
const DigestLen = 64

// HashIdentity derives the opaque identity handle for a person from the four
// identifying fields. Inputs are normalized before concatenation so that
// casing and stray whitespace never produce distinct handles. All four fields
// are required.
func HashIdentity(name, dateOfBirth, nationalID1, nationalID2 string) (string, error) {
	fields := []struct {
		label string
		value string
	}{
		{"name", name},
		{"date of birth", dateOfBirth},
		{"national id 1", nationalID1},
		{"national id 2", nationalID2},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		norm := Normalize(f.value)
		if norm == "" {
			return "", fmt.Errorf("hash identity: %s is required", f.label)
		}
		parts = append(parts, norm)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:]), nil
}

// HashField produces a one-way digest of a single identifying field, used for
// duplicate detection channels without re-exposing the raw value.
func HashField(value string) (string, error) {
	norm := Normalize(value)
	if norm == "" {
		return "", fmt.Errorf("hash field: value is required")
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:]), nil
}

// Normalize case-folds and collapses internal whitespace so equivalent inputs
// hash identically.
func Normalize(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// Equal compares two hashes in constant time with respect to their length.
// Use this for any security-sensitive hash comparison.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
