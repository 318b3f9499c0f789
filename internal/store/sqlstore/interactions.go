package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

// InteractionStore implements store.InteractionStore.
type InteractionStore struct {
	db *sqlx.DB
}

func NewInteractionStore(db *sqlx.DB) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) Append(ctx context.Context, e store.InteractionLog) error {
	if e.ID == uuid.Nil {
		e.ID = store.GenNewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO interaction_logs (id, user_id, model, task, status, actions, results, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.Model, e.Task, e.Status, jsonOrNull(e.Actions), jsonOrNull(e.Results), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	return nil
}

// ListRecent returns the user's most recent interactions, newest first.
func (s *InteractionStore) ListRecent(ctx context.Context, userID string, limit int) ([]store.InteractionLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(
		`SELECT id, user_id, model, task, status, created_at FROM interaction_logs
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	result := []store.InteractionLog{}
	for rows.Next() {
		var e store.InteractionLog
		if err := rows.StructScan(&e); err != nil {
			continue
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
