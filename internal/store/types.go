package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BaseModel provides common fields for all database models.
type BaseModel struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GenNewID generates a new UUID v7 (time-ordered).
func GenNewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// UserData is a registered gateway user.
type UserData struct {
	BaseModel
	Email        string `json:"email" db:"email"`
	Name         string `json:"name,omitempty" db:"name"`
	PasswordHash string `json:"-" db:"password_hash"`
}

// CredentialData is one stored provider key. Ciphertext is never decrypted by the store.
type CredentialData struct {
	UserID     string    `json:"user_id" db:"user_id"`
	Provider   string    `json:"provider" db:"provider"`
	Ciphertext string    `json:"-" db:"ciphertext"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Interaction statuses.
const (
	InteractionCompleted = "completed"
	InteractionFailed    = "failed"
)

// InteractionLog records one task execution for auditing.
// Actions and Results are optional JSON documents.
type InteractionLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Model     string          `json:"model" db:"model"`
	Task      string          `json:"task" db:"task"`
	Status    string          `json:"status" db:"status"`
	Actions   json.RawMessage `json:"actions,omitempty" db:"actions"`
	Results   json.RawMessage `json:"results,omitempty" db:"results"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// StoreConfig configures the store layer.
type StoreConfig struct {
	// Driver is "sqlite" (default, standalone) or "postgres".
	Driver string

	// DSN is the connection string. For sqlite this is a file path or ":memory:".
	DSN string

	// RedisAddr enables the Redis interaction-log stream sink when non-empty.
	RedisAddr string

	// RedisStream is the stream key for interaction logs.
	RedisStream string
}

// IsPostgres returns true if the store is backed by Postgres.
func (c StoreConfig) IsPostgres() bool {
	return c.Driver == "postgres" || c.Driver == "pgx"
}
