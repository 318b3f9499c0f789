package redislog

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

func TestStreamSink_Args(t *testing.T) {
	s := NewStreamSink(nil, "")
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	args := s.args(store.InteractionLog{
		UserID:    "u1",
		Model:     "claude-3.5",
		Task:      "summarize",
		Status:    store.InteractionCompleted,
		Actions:   []byte(`[{"type":"navigate"}]`),
		CreatedAt: created,
	})

	if args.Stream != defaultStream {
		t.Errorf("stream = %q, want %q", args.Stream, defaultStream)
	}
	if !args.Approx || args.MaxLen != defaultMaxLen {
		t.Errorf("trim settings = approx %v maxlen %d", args.Approx, args.MaxLen)
	}

	values := args.Values.(map[string]interface{})
	if values["user_id"] != "u1" || values["status"] != "completed" {
		t.Errorf("values = %v", values)
	}
	if values["created_at"] != "2025-03-01T12:00:00Z" {
		t.Errorf("created_at = %v", values["created_at"])
	}
	if values["actions"] != `[{"type":"navigate"}]` {
		t.Errorf("actions = %v", values["actions"])
	}
	if _, ok := values["results"]; ok {
		t.Error("empty results should be omitted")
	}
	if values["id"] == "" {
		t.Error("id should be generated")
	}
}

func TestStreamSink_CustomStream(t *testing.T) {
	s := NewStreamSink(nil, "custom")
	if got := s.args(store.InteractionLog{}).Stream; got != "custom" {
		t.Errorf("stream = %q, want custom", got)
	}
}
