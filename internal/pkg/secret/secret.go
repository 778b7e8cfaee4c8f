// Package secret generates and validates signing secrets for token issuance.
package secret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the size of a generated signing secret in bytes.
	KeySize = 32

	// MinLength is the minimum accepted length of a configured secret,
	// in characters. Shorter secrets make HMAC-SHA256 tokens forgeable.
	MinLength = 32
)

// ErrSecretTooShort indicates a configured secret below the minimum length.
var ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d characters", MinLength)

// ErrInvalidHexSecret indicates a hex secret that is malformed or the wrong length.
var ErrInvalidHexSecret = errors.New("invalid hex secret: must be 64 hex characters (32 bytes)")

// Generate returns a random 32-byte signing secret as a 64-character hex string.
func Generate() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Validate checks that a configured secret meets the minimum length.
func Validate(s string) error {
	if len(s) < MinLength {
		return ErrSecretTooShort
	}
	return nil
}

// ParseHex parses a hex-encoded secret into raw bytes.
// Expects 64 hex characters (32 bytes).
func ParseHex(hexSecret string) ([]byte, error) {
	hexSecret = strings.TrimSpace(hexSecret)

	if len(hexSecret) != KeySize*2 {
		return nil, ErrInvalidHexSecret
	}

	key, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexSecret, err)
	}

	return key, nil
}
