package cryptoutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the length of symmetric keys used for sealing and signing.
const KeySize = 32

// ErrInvalidKey is returned when key material has the wrong shape.
var ErrInvalidKey = errors.New("invalid key")

// ResolveKey interprets key as 32 raw bytes or 64 hex characters.
func ResolveKey(key string) (*[KeySize]byte, error) {
	var out [KeySize]byte
	if len(key) == 2*KeySize && IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != KeySize {
			return nil, fmt.Errorf("key hex must decode to %d bytes: %w", KeySize, ErrInvalidKey)
		}
		copy(out[:], decoded)
		return &out, nil
	}
	if len(key) == KeySize {
		copy(out[:], key)
		return &out, nil
	}
	return nil, fmt.Errorf("key must be %d bytes or %d hex characters (got %d): %w", KeySize, 2*KeySize, len(key), ErrInvalidKey)
}

// IsHexString reports whether every character of s is a hex digit. The empty
// string counts as hex; callers check length themselves.
func IsHexString(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F')
	}) < 0
}
