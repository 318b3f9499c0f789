// Package dispatch routes a task to the right provider backend with the
// caller's own API key, for both the batch and the streaming paths.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/agentgate/internal/credentials"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/internal/tracing"
)

var (
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrUnauthorized     = errors.New("unauthorized")
)

// MissingAPIKeyError means the user must supply a key for Provider first.
type MissingAPIKeyError struct {
	Provider providers.Provider
}

func (e *MissingAPIKeyError) Error() string {
	return fmt.Sprintf("%s API key required", e.Provider.Title())
}

// UnreadableKeyError means the stored key for Provider exists but cannot be
// decrypted. It matches ErrUnauthorized; it is never a MissingAPIKeyError.
type UnreadableKeyError struct {
	Provider providers.Provider
	Err      error
}

func (e *UnreadableKeyError) Error() string {
	return fmt.Sprintf("stored %s API key is unreadable", e.Provider)
}

func (e *UnreadableKeyError) Unwrap() []error { return []error{ErrUnauthorized, e.Err} }

// Credentials is the part of credentials.Gateway the dispatcher needs.
type Credentials interface {
	Authenticate(ctx context.Context, token string) (string, error)
	ResolveForUser(ctx context.Context, userID string, provider providers.Provider) (credentials.Credential, error)
}

// Backends builds provider backends; *providers.Registry satisfies it.
type Backends interface {
	New(p providers.Provider, apiKey string) (providers.TaskExecutor, error)
}

// Dispatcher resolves provider, identity and key for a task and builds the
// backend that runs it.
type Dispatcher struct {
	creds    Credentials
	backends Backends
	logs     store.InteractionStore
	timeout  time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInteractionLog records every executed task to logs (best effort).
func WithInteractionLog(logs store.InteractionStore) Option {
	return func(d *Dispatcher) { d.logs = logs }
}

// WithTimeout bounds each batch run.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func New(creds Credentials, backends Backends, opts ...Option) *Dispatcher {
	d := &Dispatcher{creds: creds, backends: backends}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolved is a task ready to run: who runs it, on which provider, and the
// backend already bound to the user's key.
type Resolved struct {
	UserID   string
	Provider providers.Provider
	Executor providers.TaskExecutor
}

// ResolveProvider maps model to a known provider. Unknown models fail with
// ErrUnsupportedModel.
func ResolveProvider(model string) (providers.Provider, error) {
	p := providers.Resolve(model)
	if p == providers.Unknown {
		return p, fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
	}
	return p, nil
}

// Authenticate maps a bearer token to a user ID, or ErrUnauthorized.
func (d *Dispatcher) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := d.creds.Authenticate(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return userID, nil
}

// Prepare builds the backend for userID and model. The provider check comes
// first, so an unknown model never touches the credential store.
func (d *Dispatcher) Prepare(ctx context.Context, userID, model string) (*Resolved, error) {
	p, err := ResolveProvider(model)
	if err != nil {
		return nil, err
	}
	return d.prepare(ctx, userID, p)
}

// PrepareToken is Prepare for a bearer token: provider check, then identity,
// then the stored key. Sessions call it per task so a revoked token stops
// working mid-session.
func (d *Dispatcher) PrepareToken(ctx context.Context, token, model string) (*Resolved, error) {
	p, err := ResolveProvider(model)
	if err != nil {
		return nil, err
	}
	userID, err := d.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return d.prepare(ctx, userID, p)
}

func (d *Dispatcher) prepare(ctx context.Context, userID string, p providers.Provider) (*Resolved, error) {
	cred, err := d.creds.ResolveForUser(ctx, userID, p)
	if err != nil {
		return nil, mapCredentialError(p, err)
	}
	exec, err := d.backends.New(p, cred.APIKey)
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", p, err)
	}
	return &Resolved{UserID: userID, Provider: p, Executor: exec}, nil
}

func mapCredentialError(p providers.Provider, err error) error {
	var missing *credentials.MissingKeyError
	switch {
	case errors.As(err, &missing):
		return &MissingAPIKeyError{Provider: missing.Provider}
	case errors.Is(err, credentials.ErrCredentialUnreadable):
		return &UnreadableKeyError{Provider: p, Err: err}
	case errors.Is(err, credentials.ErrAuthFailure):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}

// Execute is the batch path: resolve, run to completion, return the whole
// result or one terminal error. Errors: ErrUnsupportedModel, ErrUnauthorized,
// *MissingAPIKeyError, *providers.ExecutionError.
func (d *Dispatcher) Execute(ctx context.Context, token string, req providers.TaskRequest) (result *providers.TaskResult, err error) {
	ctx, span := tracing.StartTask(ctx, "dispatch.execute", tracing.TaskAttrs{Transport: "http", Model: req.Model})
	defer func() { tracing.End(span, err) }()

	resolved, err := d.PrepareToken(ctx, token, req.Model)
	if err != nil {
		return nil, err
	}
	userID := resolved.UserID
	span.SetAttributes(attribute.String(tracing.AttrProvider, string(resolved.Provider)), attribute.String(tracing.AttrUserID, userID))

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	slog.Info("dispatch.execute", "user_id", userID, "provider", resolved.Provider, "model", req.Model)
	result, err = resolved.Executor.ExecuteTask(runCtx, req)
	if err != nil {
		d.Record(ctx, userID, req, store.InteractionFailed, nil)
		return nil, err
	}
	d.Record(ctx, userID, req, store.InteractionCompleted, result)
	return result, nil
}

// Record appends an interaction log entry. Failures are logged and
// swallowed: logging never fails the user-visible request.
func (d *Dispatcher) Record(ctx context.Context, userID string, req providers.TaskRequest, status string, result *providers.TaskResult) {
	if d.logs == nil {
		return
	}
	entry := store.InteractionLog{
		ID:        store.GenNewID(),
		UserID:    userID,
		Model:     req.Model,
		Task:      req.Task,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if result != nil {
		entry.Actions, _ = json.Marshal(result.Actions)
		entry.Results, _ = json.Marshal(result.Results)
	}
	// detached so a cancelled request still gets its log line
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.logs.Append(logCtx, entry); err != nil {
		slog.Warn("interaction log append failed", "user_id", userID, "model", req.Model, "error", err)
	}
}
