package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrEmptySecret       = errors.New("encryption secret must not be empty")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const (
	keyInfo = "social-connect credential sealing v1"
	prefix  = "v1:"
)

// Sealer encrypts secrets before they reach storage.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// XChaCha seals values with XChaCha20-Poly1305. The 32 byte key is derived
// from an arbitrary length secret with HKDF-SHA256.
type XChaCha struct {
	key []byte
}

var _ Sealer = (*XChaCha)(nil)

// New creates a sealer from the configured secret.
func New(secret string) (*XChaCha, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return &XChaCha{key: key}, nil
}

// Seal encrypts plaintext. The empty string seals to the empty string so
// optional secrets stay optional.
// Output is "v1:" + base64(nonce || ciphertext).
func (x *XChaCha) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (x *XChaCha) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if len(sealed) < len(prefix) || sealed[:len(prefix)] != prefix {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(sealed[len(prefix):])
	if err != nil {
		return "", fmt.Errorf("failed to decode: %w", err)
	}

	aead, err := chacha20poly1305.NewX(x.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plaintext), nil
}
