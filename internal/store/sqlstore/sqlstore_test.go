package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

func newTestStores(t *testing.T) *Stores {
	t.Helper()
	s, err := New(store.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserStore_CreateAndGet(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	u := &store.UserData{Email: "Alice@Example.com", Name: "Alice", PasswordHash: "hash"}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.Users.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != u.ID || got.Name != "Alice" || got.PasswordHash != "hash" {
		t.Errorf("got %+v", got)
	}

	byID, err := s.Users.GetUserByID(ctx, u.ID.String())
	if err != nil || byID.Email != "alice@example.com" {
		t.Errorf("GetUserByID = %+v, %v", byID, err)
	}

	dup := &store.UserData{Email: "alice@example.com", PasswordHash: "x"}
	if err := s.Users.CreateUser(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v, want ErrAlreadyExists", err)
	}

	if _, err := s.Users.GetUserByID(ctx, "not-a-uuid"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bad id err = %v, want ErrNotFound", err)
	}
	if _, err := s.Users.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
}

func TestCredentialStore(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	has, err := s.Credentials.HasKey(ctx, "u1", "openai")
	if err != nil || has {
		t.Fatalf("HasKey on empty store = %v, %v", has, err)
	}
	if _, err := s.Credentials.GetEncrypted(ctx, "u1", "openai"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEncrypted err = %v, want ErrNotFound", err)
	}

	if err := s.Credentials.SetEncrypted(ctx, "u1", "openai", "aes-gcm:one"); err != nil {
		t.Fatalf("SetEncrypted: %v", err)
	}
	if err := s.Credentials.SetEncrypted(ctx, "u1", "openai", "aes-gcm:two"); err != nil {
		t.Fatalf("SetEncrypted (update): %v", err)
	}

	has, _ = s.Credentials.HasKey(ctx, "u1", "openai")
	if !has {
		t.Error("expected key to exist")
	}
	got, err := s.Credentials.GetEncrypted(ctx, "u1", "openai")
	if err != nil || got != "aes-gcm:two" {
		t.Errorf("GetEncrypted = %q, %v", got, err)
	}

	// other users and providers are isolated
	if has, _ := s.Credentials.HasKey(ctx, "u2", "openai"); has {
		t.Error("u2 should have no key")
	}
	if has, _ := s.Credentials.HasKey(ctx, "u1", "anthropic"); has {
		t.Error("u1 should have no anthropic key")
	}

	// empty ciphertext counts as absent
	_ = s.Credentials.SetEncrypted(ctx, "u1", "gemini", "")
	if has, _ := s.Credentials.HasKey(ctx, "u1", "gemini"); has {
		t.Error("empty key should not count")
	}

	providers, err := s.Credentials.ListProviders(ctx, "u1")
	if err != nil || len(providers) != 1 || providers[0] != "openai" {
		t.Errorf("ListProviders = %v, %v", providers, err)
	}
}

func TestInteractionStore(t *testing.T) {
	s := newTestStores(t)
	ctx := context.Background()

	actions, _ := json.Marshal([]map[string]string{{"type": "navigate"}})
	for _, status := range []string{store.InteractionCompleted, store.InteractionFailed} {
		err := s.Interactions.Append(ctx, store.InteractionLog{
			UserID:  "u1",
			Model:   "gpt-4o",
			Task:    "find docs",
			Status:  status,
			Actions: actions,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	logs, err := s.Interactions.ListRecent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len = %d, want 2", len(logs))
	}
	if logs[0].Model != "gpt-4o" || logs[0].Task != "find docs" {
		t.Errorf("unexpected log %+v", logs[0])
	}

	other, _ := s.Interactions.ListRecent(ctx, "u2", 10)
	if len(other) != 0 {
		t.Errorf("u2 logs = %d, want 0", len(other))
	}
}
