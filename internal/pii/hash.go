// Package pii normalizes and digests personally identifiable match keys
// before they leave the system. Only email and phone are hashed; IP and
// user-agent strings are forwarded to providers as-is.
package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// NormalizePhone strips all whitespace from a phone number.
func NormalizePhone(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// DigestSHA256 returns the lowercase hex SHA-256 of s. Strings are hashed as
// UTF-8 bytes so digests are stable across platforms.
func DigestSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashEmail normalizes then digests an email address.
func HashEmail(s string) string {
	return DigestSHA256(NormalizeEmail(s))
}

// HashPhone normalizes then digests a phone number. Phone normalization is
// whitespace removal only; the digest still lowercases via NormalizeEmail's
// rules to match provider expectations.
func HashPhone(s string) string {
	return DigestSHA256(NormalizeEmail(NormalizePhone(s)))
}
