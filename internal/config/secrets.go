package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "agentgate"
	keyringUser    = "encryption-key"
)

// ErrNoEncryptionKey is returned when no key is configured anywhere.
var ErrNoEncryptionKey = errors.New("no encryption key: set encryption.key, AGENTGATE_ENCRYPTION_KEY, or run 'agentgate keyring set-encryption-key'")

// ResolveEncryptionKey returns the configured key, falling back to the OS keyring.
func (c *Config) ResolveEncryptionKey() (string, error) {
	if c.Encryption.Key != "" {
		return c.Encryption.Key, nil
	}
	key, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoEncryptionKey
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return key, nil
}

// StoreEncryptionKey saves key in the OS keyring.
func StoreEncryptionKey(key string) error {
	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}
