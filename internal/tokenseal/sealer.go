// Package tokenseal encrypts OAuth tokens before they are written to storage.
package tokenseal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrMalformed indicates a stored value is not a sealed token produced by Sealer.
var ErrMalformed = errors.New("tokenseal: malformed sealed value")

const prefix = "v1:"

// Sealer seals and opens token strings with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// New returns a Sealer for a 32 byte key.
func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("tokenseal: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &Sealer{key: cp}, nil
}

// Seal encrypts plaintext. The empty string seals to the empty string.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("tokenseal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("tokenseal: read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if len(sealed) <= len(prefix) || sealed[:len(prefix)] != prefix {
		return "", ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed[len(prefix):])
	if err != nil {
		return "", ErrMalformed
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("tokenseal: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("tokenseal: open: %w", err)
	}
	return string(plaintext), nil
}
