package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

// CredentialStore implements store.CredentialStore. It only ever sees ciphertext.
type CredentialStore struct {
	db *sqlx.DB
}

func NewCredentialStore(db *sqlx.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// HasKey reports whether a non-empty key is stored for (userID, provider).
func (s *CredentialStore) HasKey(ctx context.Context, userID, provider string) (bool, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, s.db.Rebind(
		`SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND provider = ? AND ciphertext <> ''`),
		userID, provider,
	)
	if err != nil {
		return false, fmt.Errorf("check api key: %w", err)
	}
	return count > 0, nil
}

func (s *CredentialStore) GetEncrypted(ctx context.Context, userID, provider string) (string, error) {
	var ciphertext string
	err := s.db.GetContext(ctx, &ciphertext, s.db.Rebind(
		`SELECT ciphertext FROM api_keys WHERE user_id = ? AND provider = ?`),
		userID, provider,
	)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && ciphertext == "") {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get api key: %w", err)
	}
	return ciphertext, nil
}

func (s *CredentialStore) SetEncrypted(ctx context.Context, userID, provider, ciphertext string) error {
	if err := store.ValidateUserID(userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO api_keys (user_id, provider, ciphertext, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`),
		userID, provider, ciphertext, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("set api key: %w", err)
	}
	return nil
}

// ListProviders returns the providers the user has stored keys for.
func (s *CredentialStore) ListProviders(ctx context.Context, userID string) ([]string, error) {
	var providers []string
	err := s.db.SelectContext(ctx, &providers, s.db.Rebind(
		`SELECT provider FROM api_keys WHERE user_id = ? AND ciphertext <> '' ORDER BY provider`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	if providers == nil {
		return []string{}, nil
	}
	return providers, nil
}
