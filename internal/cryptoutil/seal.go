package cryptoutil

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrOpenFailed is returned when a sealed payload fails authentication.
var ErrOpenFailed = errors.New("sealed payload failed authentication")

// Sealer encrypts payloads with nacl/secretbox. The nonce is prepended to
// the ciphertext.
type Sealer struct {
	key *[KeySize]byte
}

// NewSealer creates a Sealer from key material accepted by ResolveKey.
func NewSealer(key string) (*Sealer, error) {
	k, err := ResolveKey(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: k}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, s.key), nil
}

// Open decrypts a payload produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrOpenFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, ErrOpenFailed
	}
	return out, nil
}
