// Package redislog publishes interaction logs to a Redis stream so downstream
// consumers (analytics, billing) can follow task activity without polling SQL.
package redislog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

const (
	defaultStream = "agentgate:interactions"
	defaultMaxLen = 10000
)

// StreamSink implements store.InteractionStore with XADD.
type StreamSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// New connects to addr and returns a sink writing to stream.
func New(ctx context.Context, addr, stream string) (*StreamSink, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	slog.Info("redis interaction stream enabled", "addr", addr, "stream", streamOrDefault(stream))
	return NewStreamSink(client, stream), client, nil
}

// NewStreamSink wraps an existing client.
func NewStreamSink(client redis.Cmdable, stream string) *StreamSink {
	return &StreamSink{client: client, stream: streamOrDefault(stream), maxLen: defaultMaxLen}
}

func streamOrDefault(s string) string {
	if s == "" {
		return defaultStream
	}
	return s
}

func (s *StreamSink) Append(ctx context.Context, e store.InteractionLog) error {
	return s.client.XAdd(ctx, s.args(e)).Err()
}

func (s *StreamSink) args(e store.InteractionLog) *redis.XAddArgs {
	id := e.ID
	if id == uuid.Nil {
		id = store.GenNewID()
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	values := map[string]interface{}{
		"id":         id.String(),
		"user_id":    e.UserID,
		"model":      e.Model,
		"task":       e.Task,
		"status":     e.Status,
		"created_at": created.Format(time.RFC3339Nano),
	}
	if len(e.Actions) > 0 {
		values["actions"] = string(e.Actions)
	}
	if len(e.Results) > 0 {
		values["results"] = string(e.Results)
	}
	return &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}
}
