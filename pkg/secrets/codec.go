// Package secrets encrypts per-tenant credentials at rest.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24

	// versionPrefix tags ciphertexts so the format can be rotated later
	versionPrefix = "v1:"
)

var (
	ErrDecrypt     = errors.New("failed to decrypt secret")
	ErrKeyRequired = errors.New("encryption key is required")
)

// Codec is the symmetric encrypt/decrypt capability used for stored credentials
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SecretBoxCodec seals values with NaCl secretbox using a key derived from the configured secret
type SecretBoxCodec struct {
	key [keySize]byte
}

func NewSecretBoxCodec(secret string) (*SecretBoxCodec, error) {
	if secret == "" {
		return nil, ErrKeyRequired
	}

	c := &SecretBoxCodec{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("catalog-sync/credentials"))
	if _, err := io.ReadFull(kdf, c.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return c, nil
}

func (c *SecretBoxCodec) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *SecretBoxCodec) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < len(versionPrefix) || ciphertext[:len(versionPrefix)] != versionPrefix {
		return "", fmt.Errorf("%w: unknown format", ErrDecrypt)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext[len(versionPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}
	return string(plain), nil
}
