// Package credentials turns a bearer token and a provider into the user's
// decrypted API key for that provider.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
)

var (
	// ErrAuthFailure means the token does not identify a user.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrCredentialUnreadable means a stored key exists but cannot be
	// decrypted (corrupt data or a rotated encryption key). It matches
	// ErrAuthFailure under errors.Is but is never a missing key.
	ErrCredentialUnreadable = fmt.Errorf("stored credential unreadable: %w", ErrAuthFailure)

	ErrInvalidProvider = errors.New("unknown provider")
	ErrEmptyKey        = errors.New("api key is empty")
)

// MissingKeyError means the user has no key stored for Provider. It is a
// recoverable state: the client can prompt for a key and retry.
type MissingKeyError struct {
	Provider providers.Provider
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no %s API key stored", e.Provider)
}

// Cipher encrypts and decrypts stored keys.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Credential is a decrypted key. It lives only for one task execution.
type Credential struct {
	UserID   string
	Provider providers.Provider
	APIKey   string
}

// String redacts the key so a Credential is safe in fmt output.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{user=%s provider=%s key=[redacted]}", c.UserID, c.Provider)
}

// LogValue redacts the key in slog output.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", c.UserID),
		slog.String("provider", string(c.Provider)),
	)
}

// Gateway resolves credentials. It holds no cache: every call reads the
// store and decrypts afresh.
type Gateway struct {
	identity store.IdentityStore
	keys     store.CredentialStore
	cipher   Cipher
}

func NewGateway(identity store.IdentityStore, keys store.CredentialStore, cipher Cipher) *Gateway {
	return &Gateway{identity: identity, keys: keys, cipher: cipher}
}

// Authenticate maps a bearer token to a user ID.
func (g *Gateway) Authenticate(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrAuthFailure
	}
	userID, err := g.identity.Verify(ctx, token)
	if err != nil {
		slog.Debug("token verification failed", "error", err)
		return "", ErrAuthFailure
	}
	if userID == "" {
		return "", ErrAuthFailure
	}
	return userID, nil
}

// Resolve authenticates token and returns the user's key for provider.
// Errors: ErrAuthFailure, *MissingKeyError, ErrCredentialUnreadable, or a
// wrapped store error.
func (g *Gateway) Resolve(ctx context.Context, token string, provider providers.Provider) (Credential, error) {
	userID, err := g.Authenticate(ctx, token)
	if err != nil {
		return Credential{}, err
	}
	return g.ResolveForUser(ctx, userID, provider)
}

// ResolveForUser is Resolve for a caller that already authenticated userID.
func (g *Gateway) ResolveForUser(ctx context.Context, userID string, provider providers.Provider) (Credential, error) {
	ok, err := g.keys.HasKey(ctx, userID, string(provider))
	if err != nil {
		return Credential{}, fmt.Errorf("check stored key: %w", err)
	}
	if !ok {
		return Credential{}, &MissingKeyError{Provider: provider}
	}

	ciphertext, err := g.keys.GetEncrypted(ctx, userID, string(provider))
	if errors.Is(err, store.ErrNotFound) {
		// deleted between the two reads
		return Credential{}, &MissingKeyError{Provider: provider}
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read stored key: %w", err)
	}

	key, err := g.cipher.Decrypt(ciphertext)
	if err != nil || key == "" {
		slog.Warn("security.credential_unreadable", "user_id", userID, "provider", provider)
		return Credential{}, ErrCredentialUnreadable
	}
	return Credential{UserID: userID, Provider: provider, APIKey: key}, nil
}

// Store encrypts apiKey and saves it as userID's key for provider.
func (g *Gateway) Store(ctx context.Context, userID string, provider providers.Provider, apiKey string) error {
	if !provider.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyKey
	}
	ciphertext, err := g.cipher.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}
	if err := g.keys.SetEncrypted(ctx, userID, string(provider), ciphertext); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	slog.Info("api key stored", "user_id", userID, "provider", provider)
	return nil
}

// HasKey reports whether userID has a key stored for provider.
func (g *Gateway) HasKey(ctx context.Context, userID string, provider providers.Provider) (bool, error) {
	return g.keys.HasKey(ctx, userID, string(provider))
}
