/**
 * @description
 * PIN hashing and format rules. Stored credentials are lowercase hex SHA-256
 * digests of the raw PIN; equality is compared over the full 64-character
 * digest.
 */

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var pinFormat = regexp.MustCompile(`^\d{4}$`)

// HashPIN returns the lowercase hex SHA-256 digest of a raw PIN.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// ValidPINFormat reports whether a candidate PIN is exactly four decimal
// digits. Applied to new PINs only; existing credentials are matched by
// hash regardless of format.
func ValidPINFormat(pin string) bool {
	return pinFormat.MatchString(pin)
}
