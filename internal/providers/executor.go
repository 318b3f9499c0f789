package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

// TaskRequest is one unit of work submitted by a client.
type TaskRequest struct {
	Model   string         `json:"model"`
	Task    string         `json:"task"`
	Options map[string]any `json:"options,omitempty"`
}

// ResultEntry is one entry of a batch result.
type ResultEntry struct {
	Content    string               `json:"content"`
	Type       string               `json:"type"`
	ActionData *protocol.ActionData `json:"action_data,omitempty"`
}

// TaskResult is the fully materialized outcome of a batch run.
type TaskResult struct {
	Results []ResultEntry         `json:"results"`
	Actions []protocol.ActionData `json:"actions"`
	Task    string                `json:"task"`
	Model   string                `json:"model"`
}

// TaskExecutor is the capability every provider backend satisfies.
//
// ExecuteTask runs the agent to completion and returns every step.
// StreamTask runs the same step sequence but emits events as they happen.
// The channel is closed when the run ends; a failed run ends with exactly
// one error event. Cancelling ctx stops the run and releases its goroutine,
// so a consumer that stops reading must cancel.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, req TaskRequest) (*TaskResult, error)
	StreamTask(ctx context.Context, req TaskRequest) <-chan protocol.AgentEvent
}

// specFunc turns a request into the runner spec for one provider.
type specFunc func(req TaskRequest) (agent.Spec, error)

// agentExecutor is the TaskExecutor shared by every adapter. Adapters differ
// only in how they build the agent.Spec.
type agentExecutor struct {
	provider Provider
	runner   agent.Runner
	specFor  specFunc
}

func actionData(a *agent.Action) protocol.ActionData {
	return protocol.ActionData{
		Type:        a.Type,
		Description: a.Description,
		Result:      a.Result,
		Timestamp:   a.Timestamp,
	}
}

func (e *agentExecutor) ExecuteTask(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	spec, err := e.specFor(req)
	if err != nil {
		return nil, &ExecutionError{Provider: e.provider, Model: req.Model, Err: err}
	}

	result := &TaskResult{
		Results: []ResultEntry{},
		Actions: []protocol.ActionData{},
		Task:    req.Task,
		Model:   req.Model,
	}
	err = e.runner.Run(ctx, spec, func(s agent.Step) error {
		result.Results = append(result.Results, ResultEntry{Content: s.Response, Type: protocol.EventResponse})
		if s.Action != nil {
			ad := actionData(s.Action)
			result.Actions = append(result.Actions, ad)
			result.Results = append(result.Results, ResultEntry{
				Content:    "Action: " + ad.Description,
				Type:       protocol.EventAction,
				ActionData: &ad,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &ExecutionError{Provider: e.provider, Model: req.Model, Err: err}
	}
	return result, nil
}

func (e *agentExecutor) StreamTask(ctx context.Context, req TaskRequest) <-chan protocol.AgentEvent {
	out := make(chan protocol.AgentEvent)

	go func() {
		defer close(out)

		send := func(ev protocol.AgentEvent) error {
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("agent run panic", "provider", e.provider, "model", req.Model,
					"panic", r, "stack", string(debug.Stack()))
				e.fail(ctx, out, protocol.NewError(protocol.ErrInternal, fmt.Sprint(r)))
			}
		}()

		spec, err := e.specFor(req)
		if errors.Is(err, ErrInvalidOption) {
			e.fail(ctx, out, protocol.NewError(protocol.ErrInvalidRequest, err.Error()))
			return
		}
		if err == nil {
			err = e.runner.Run(ctx, spec, func(s agent.Step) error {
				if err := send(protocol.NewResponse(s.Response)); err != nil {
					return err
				}
				if s.Action != nil {
					return send(protocol.NewAction(actionData(s.Action)))
				}
				return nil
			})
		}
		if err == nil {
			return
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// a cancel ends the stream quietly; a deadline still reports the timeout
			if !errors.Is(ctxErr, context.DeadlineExceeded) {
				return
			}
			err = ctxErr
		}

		execErr := &ExecutionError{Provider: e.provider, Model: req.Model, Err: err}
		slog.Warn("agent run failed", "provider", e.provider, "model", req.Model, "error", execErr)
		e.fail(ctx, out, protocol.NewError(protocol.ErrExecutionFailed, UserMessage(execErr)))
	}()

	return out
}

// terminalGrace bounds the wait for a consumer to take the final error event
// once the run context is already done.
const terminalGrace = 2 * time.Second

// fail delivers the terminal error event. A consumer that cancelled is not
// waited for; after a deadline the consumer is still reading, so the event
// is handed over within terminalGrace.
func (e *agentExecutor) fail(ctx context.Context, out chan<- protocol.AgentEvent, ev protocol.AgentEvent) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	t := time.NewTimer(terminalGrace)
	defer t.Stop()
	select {
	case out <- ev:
	case <-t.C:
		slog.Warn("terminal event dropped", "provider", e.provider, "code", ev.Code)
	}
}
