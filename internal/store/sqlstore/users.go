package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

// UserStore implements store.UserStore.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, name, password_hash, created_at, updated_at`

func (s *UserStore) CreateUser(ctx context.Context, u *store.UserData) error {
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	now := nowUTC()
	u.CreatedAt, u.UpdatedAt = now, now
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, store.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*store.UserData, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*store.UserData, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, uid)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*store.UserData, error) {
	var u store.UserData
	err := s.db.GetContext(ctx, &u, s.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
