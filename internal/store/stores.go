package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique-constraint conflicts.
	ErrAlreadyExists = errors.New("already exists")
)

// IdentityStore resolves bearer tokens to user IDs.
// Verify returns ("", nil) or an error for tokens that do not identify a user.
type IdentityStore interface {
	Verify(ctx context.Context, token string) (string, error)
}

// CredentialStore persists encrypted provider keys per user.
// Implementations must be safe for concurrent use by many sessions.
type CredentialStore interface {
	HasKey(ctx context.Context, userID, provider string) (bool, error)
	// GetEncrypted returns ErrNotFound when no key is stored.
	GetEncrypted(ctx context.Context, userID, provider string) (string, error)
	SetEncrypted(ctx context.Context, userID, provider, ciphertext string) error
}

// InteractionStore appends interaction logs. Callers treat it as best effort.
type InteractionStore interface {
	Append(ctx context.Context, entry InteractionLog) error
}

// UserStore manages registered users.
type UserStore interface {
	CreateUser(ctx context.Context, u *UserData) error
	GetUserByEmail(ctx context.Context, email string) (*UserData, error)
	GetUserByID(ctx context.Context, id string) (*UserData, error)
}

// MultiInteractionStore fans an entry out to several sinks and returns the
// first error after trying all of them.
type MultiInteractionStore []InteractionStore

func (m MultiInteractionStore) Append(ctx context.Context, entry InteractionLog) error {
	var firstErr error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
