// Package external talks to media catalog services (Radarr/Sonarr style
// APIs): connectivity tests, library pulls, webhook registration, and the
// push handler for download events. Every candidate it finds funnels through
// the scan pipeline, never straight into the queue.
package external

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertextInvalid is returned when a stored key cannot be decrypted,
// typically because the process secret changed.
var ErrCiphertextInvalid = errors.New("ciphertext invalid or wrong secret key")

// Cipher encrypts API keys for storage. The AEAD key is the SHA-256 of the
// configured process secret, so rotating the secret invalidates stored keys.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-GCM cipher from the process secret.
func NewCipher(secretKey string) (*Cipher, error) {
	if secretKey == "" {
		return nil, errors.New("secret key is empty")
	}
	sum := sha256.Sum256([]byte(secretKey))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext API key for storage. The nonce is prepended to
// the ciphertext and the whole value is base64 encoded.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored API key.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plaintext), nil
}

// Mask returns the display form of an API key: only the last four characters
// survive. Keys of four characters or fewer are fully masked.
func Mask(plaintext string) string {
	if len(plaintext) <= 4 {
		return "****"
	}
	return "****" + plaintext[len(plaintext)-4:]
}
