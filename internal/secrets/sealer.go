package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix = "sealed:v1:"
	hkdfInfo     = "voice-console agent secret v1"
	minKeyLen    = 32
)

var ErrMalformed = errors.New("secrets: malformed sealed value")

// Sealer encrypts secrets at rest with XChaCha20-Poly1305. The AEAD key is
// derived from the configured master key with HKDF-SHA256.
//
// A nil *Sealer is valid and stores values in plaintext (local development).
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) < minKeyLen {
		return nil, fmt.Errorf("secrets: master key must be at least %d bytes", minKeyLen)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns "sealed:v1:" + base64(nonce || ciphertext). aad binds the value
// to its owner so a sealed value copied to another row fails to open.
func (s *Sealer) Seal(plaintext, aad string) (string, error) {
	if s == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (s *Sealer) Open(value, aad string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s == nil {
		return "", errors.New("secrets: sealed value but no key configured")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrMalformed
	}
	ns := s.aead.NonceSize()
	if len(raw) < ns+s.aead.Overhead() {
		return "", ErrMalformed
	}
	pt, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(aad))
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(pt), nil
}

func IsSealed(value string) bool { return strings.HasPrefix(value, sealedPrefix) }
