// Package crypto provides AES-256-GCM encryption for stored provider API keys.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const prefix = "aes-gcm:"

var (
	// ErrDecrypt is returned for malformed, foreign, or tampered ciphertext.
	ErrDecrypt = errors.New("decrypt failed: invalid key or corrupted data")
	// ErrKeyLength is returned when the configured key cannot be turned into 32 bytes.
	ErrKeyLength = errors.New("encryption key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes)")
)

// Cipher encrypts and decrypts credential material with one process-wide key.
// Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a key accepted by DeriveKey.
func NewCipher(key string) (*Cipher, error) {
	keyBytes, err := DeriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt returns "aes-gcm:" + base64(nonce + ciphertext + tag).
// The empty string encrypts to the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string decrypts to the empty string;
// anything else that was not produced by Encrypt with the same key fails
// with ErrDecrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !IsEncrypted(ciphertext) {
		return "", ErrDecrypt
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, prefix))
	if err != nil {
		return "", ErrDecrypt
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrDecrypt
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// IsEncrypted returns true if the value has the "aes-gcm:" encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// GenerateKey returns a fresh hex-encoded 32-byte key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DeriveKey converts the input string to a 32-byte AES key.
// Accepts: hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func DeriveKey(input string) ([]byte, error) {
	// Hex-encoded: 64 hex chars = 32 bytes
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}

	// Base64-encoded: 44 chars = 32 bytes (standard or URL-safe alphabet)
	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
		if b, err := base64.URLEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
	}

	if len(input) == 32 {
		return []byte(input), nil
	}

	return nil, ErrKeyLength
}
