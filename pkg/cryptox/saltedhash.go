package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const saltedHashSaltLength = 32

// SaltedHash hashes data with a fresh random salt and returns the pair as
// "<hex salt>.<hex sha256(data || salt)>". Each call produces a distinct
// output for the same input, so equality checks must go through
// VerifySaltedHash.
func SaltedHash(data string) (string, error) {
	salt := make([]byte, saltedHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return saltedDigest([]byte(data), salt), nil
}

// SaltedHashWith hashes data with a caller-provided hex salt. Used when a
// group of values must share one salt and be comparable by digest.
func SaltedHashWith(data, hexSalt string) (string, error) {
	salt, err := hex.DecodeString(hexSalt)
	if err != nil {
		return "", fmt.Errorf("invalid hex salt: %w", err)
	}
	return saltedDigest([]byte(data), salt), nil
}

// NewSalt returns a fresh hex-encoded salt for SaltedHashWith.
func NewSalt() (string, error) {
	salt := make([]byte, saltedHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

func saltedDigest(data, salt []byte) string {
	sum := sha256.Sum256(append(append([]byte{}, data...), salt...))
	return hex.EncodeToString(salt) + "." + hex.EncodeToString(sum[:])
}

// VerifySaltedHash reports whether data matches a stored salted hash. The
// digest comparison is constant time.
func VerifySaltedHash(data, stored string) bool {
	hexSalt, digest, ok := strings.Cut(stored, ".")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(hexSalt)
	if err != nil {
		return false
	}

	sum := sha256.Sum256(append(append([]byte{}, []byte(data)...), salt...))
	computed := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
