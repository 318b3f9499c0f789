// Package gateway serves the streaming surface: one authenticated session
// per WebSocket connection, running tasks one at a time and forwarding the
// agent's events as they happen.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/agentgate/internal/dispatch"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/internal/tracing"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

// State is the session lifecycle position.
type State int32

const (
	StateConnected State = iota
	StateAuthenticating
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Handshake and session texts shown to clients.
const (
	msgAuthRequired  = "Authentication required"
	msgAuthInvalid   = "Invalid authentication"
	msgAuthenticated = "Authentication successful"
	msgInvalidFormat = "Invalid request format"
)

// DefaultAuthTimeout bounds the wait for the handshake frame.
const DefaultAuthTimeout = 10 * time.Second

// inboundQueue is how many client frames may wait while a task runs.
const inboundQueue = 32

var (
	ErrSessionClosed    = errors.New("session closed")
	errNotAuthenticated = errors.New("task event before authentication")
)

// Dispatcher is the part of dispatch.Dispatcher a session needs.
type Dispatcher interface {
	Authenticate(ctx context.Context, token string) (string, error)
	PrepareToken(ctx context.Context, token, model string) (*dispatch.Resolved, error)
	Record(ctx context.Context, userID string, req providers.TaskRequest, status string, result *providers.TaskResult)
}

// SessionConfig tunes one session.
type SessionConfig struct {
	AuthTimeout time.Duration
	TaskTimeout time.Duration // 0 = no limit beyond the connection's lifetime
}

// Session drives one client connection through the handshake and then runs
// its tasks sequentially.
type Session struct {
	id   string
	conn Conn
	disp Dispatcher
	cfg  SessionConfig

	state     atomic.Int32
	busy      atomic.Bool
	token     string
	userID    string
	closeOnce sync.Once
}

func NewSession(id string, conn Conn, disp Dispatcher, cfg SessionConfig) *Session {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}
	return &Session{id: id, conn: conn, disp: disp, cfg: cfg}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// UserID is empty until the handshake succeeds.
func (s *Session) UserID() string {
	if s.State() != StateAuthenticated {
		return ""
	}
	return s.userID
}

// Busy reports whether a task is running.
func (s *Session) Busy() bool { return s.busy.Load() }

// Run blocks until the session closes: handshake failure, client
// disconnect, a fatal error, or ctx cancellation.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.Close()

	frames := make(chan []byte, inboundQueue)
	go s.readLoop(ctx, cancel, frames)

	if !s.handshake(ctx, frames) {
		return
	}
	slog.Info("session authenticated", "session", s.id, "user_id", s.userID)
	ctx = store.WithUserID(store.WithSessionID(ctx, s.id), s.userID)

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			if !s.handle(ctx, data) {
				return
			}
		}
	}
}

// Close moves the session to Closed and closes the connection. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		_ = s.conn.Close()
		slog.Debug("session closed", "session", s.id)
	})
}

func (s *Session) readLoop(ctx context.Context, cancel context.CancelFunc, frames chan<- []byte) {
	defer close(frames)
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			// disconnect cancels whatever task is in flight
			cancel()
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handshake(ctx context.Context, frames <-chan []byte) bool {
	timer := time.NewTimer(s.cfg.AuthTimeout)
	defer timer.Stop()

	var data []byte
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		slog.Warn("security.auth_timeout", "session", s.id)
		_ = s.send(protocol.NewError(protocol.ErrUnauthorized, msgAuthRequired))
		return false
	case d, ok := <-frames:
		if !ok {
			return false
		}
		data = d
	}

	auth, err := protocol.ParseAuthMessage(data)
	if err != nil {
		_ = s.send(protocol.NewError(protocol.ErrUnauthorized, msgAuthRequired))
		return false
	}

	s.state.Store(int32(StateAuthenticating))
	userID, err := s.disp.Authenticate(ctx, auth.Token)
	if err != nil {
		slog.Warn("security.auth_failed", "session", s.id)
		_ = s.send(protocol.NewError(protocol.ErrUnauthorized, msgAuthInvalid))
		return false
	}

	s.token = auth.Token
	s.userID = userID
	s.state.Store(int32(StateAuthenticated))
	return s.send(protocol.NewSystem(msgAuthenticated)) == nil
}

// handle processes one client frame and reports whether the session stays
// open.
func (s *Session) handle(ctx context.Context, data []byte) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session handler panic", "session", s.id, "panic", r, "stack", string(debug.Stack()))
			_ = s.send(protocol.NewError(protocol.ErrInternal, fmt.Sprint(r)))
			keep = false
		}
	}()

	msg, err := protocol.ParseTaskMessage(data)
	if err != nil {
		return s.send(protocol.NewError(protocol.ErrInvalidRequest, msgInvalidFormat)) == nil
	}

	resolved, err := s.disp.PrepareToken(ctx, s.token, msg.Model)
	if err != nil {
		info := dispatch.Classify(err, msg.Model)
		if info.Fatal {
			slog.Warn("session task rejected", "session", s.id, "model", msg.Model, "error", err)
		}
		return s.send(errorEvent(info)) == nil && !info.Fatal
	}

	return s.runTask(ctx, resolved, providers.TaskRequest{
		Model:   msg.Model,
		Task:    msg.Task,
		Options: msg.Options,
	})
}

func errorEvent(info dispatch.ErrorInfo) protocol.AgentEvent {
	switch info.Code {
	case protocol.ErrMissingAPIKey:
		return protocol.NewMissingKey(info.Provider, info.Message)
	case protocol.ErrUnauthorized:
		return protocol.NewError(info.Code, msgAuthInvalid)
	}
	ev := protocol.NewError(info.Code, info.Message)
	ev.Provider = info.Provider
	return ev
}

func (s *Session) runTask(ctx context.Context, resolved *dispatch.Resolved, req providers.TaskRequest) (keep bool) {
	s.busy.Store(true)
	defer s.busy.Store(false)

	ctx, span := tracing.StartTask(ctx, "session.task", tracing.TaskAttrs{
		Transport: "ws",
		Model:     req.Model,
		Provider:  string(resolved.Provider),
		UserID:    resolved.UserID,
		SessionID: s.id,
	})
	var spanErr error
	defer func() { tracing.End(span, spanErr) }()

	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if s.cfg.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if err := s.send(protocol.NewThinking(fmt.Sprintf("Processing your request with %s...", req.Model))); err != nil {
		spanErr = err
		return false
	}

	slog.Info("session.task", "session", s.id, "user_id", resolved.UserID, "provider", resolved.Provider, "model", req.Model)

	status := store.InteractionCompleted
	result := &providers.TaskResult{Task: req.Task, Model: req.Model}
	sent := 0
	fault := false
	for ev := range resolved.Executor.StreamTask(taskCtx, req) {
		if ev.IsTerminal() {
			status = store.InteractionFailed
			spanErr = errors.New(ev.Content)
			fault = ev.Code == protocol.ErrInternal
		}
		collect(result, ev)
		if err := s.send(ev); err != nil {
			// cancel stops the producer; nothing reads the stream after this
			cancel()
			spanErr = err
			s.disp.Record(ctx, resolved.UserID, req, store.InteractionFailed, result)
			return false
		}
		sent++
	}
	span.SetAttributes(attribute.Int(tracing.AttrEvents, sent), attribute.String(tracing.AttrStatus, status))

	if ctx.Err() != nil {
		// client went away mid-task
		s.disp.Record(ctx, resolved.UserID, req, store.InteractionFailed, result)
		spanErr = ctx.Err()
		return false
	}
	s.disp.Record(ctx, resolved.UserID, req, status, result)
	if fault {
		slog.Error("session closed after agent fault", "session", s.id, "model", req.Model)
		return false
	}
	return true
}

// collect mirrors streamed events into the batch result shape for the
// interaction log.
func collect(r *providers.TaskResult, ev protocol.AgentEvent) {
	switch ev.Type {
	case protocol.EventResponse:
		r.Results = append(r.Results, providers.ResultEntry{Content: ev.Content, Type: protocol.EventResponse})
	case protocol.EventAction:
		r.Results = append(r.Results, providers.ResultEntry{Content: ev.Content, Type: protocol.EventAction, ActionData: ev.ActionData})
		if ev.ActionData != nil {
			r.Actions = append(r.Actions, *ev.ActionData)
		}
	}
}

func (s *Session) send(ev protocol.AgentEvent) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	switch ev.Type {
	case protocol.EventThinking, protocol.EventResponse, protocol.EventAction:
		if s.State() != StateAuthenticated {
			return errNotAuthenticated
		}
	}
	if err := s.conn.WriteJSON(ev); err != nil {
		slog.Debug("session send failed", "session", s.id, "error", err)
		return err
	}
	return nil
}
