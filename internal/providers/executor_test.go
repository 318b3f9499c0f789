package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

var stepTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// threeSteps yields three steps, the second carrying an action.
func threeSteps(captured *agent.Spec) agent.Runner {
	return agent.RunnerFunc(func(ctx context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		if captured != nil {
			*captured = spec
		}
		steps := []agent.Step{
			{Response: "step one"},
			{Response: "step two", Action: &agent.Action{Type: "navigate", Description: "Open example.com", Result: "status 200", Timestamp: &stepTime}},
			{Response: "step three"},
		}
		for _, s := range steps {
			if err := onStep(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func drain(ch <-chan protocol.AgentEvent) []protocol.AgentEvent {
	var out []protocol.AgentEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamTask_Ordering(t *testing.T) {
	exec := NewOpenAIExecutor(BackendConfig{APIKey: "sk", Runner: threeSteps(nil)})
	events := drain(exec.StreamTask(context.Background(), TaskRequest{Model: "gpt-4o", Task: "t"}))

	wantTypes := []string{protocol.EventResponse, protocol.EventResponse, protocol.EventAction, protocol.EventResponse}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantTypes), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].Type, want)
		}
	}
	if events[1].Content != "step two" || events[3].Content != "step three" {
		t.Errorf("response contents out of order: %+v", events)
	}

	action := events[2]
	if action.Content != "Action: Open example.com" || action.ActionType != "navigate" {
		t.Errorf("action event = %+v", action)
	}
	if action.ActionData == nil || action.ActionData.Result != "status 200" || !action.ActionData.Timestamp.Equal(stepTime) {
		t.Errorf("action data = %+v", action.ActionData)
	}
}

func TestExecuteTask_BatchShape(t *testing.T) {
	exec := NewOpenAIExecutor(BackendConfig{APIKey: "sk", Runner: threeSteps(nil)})
	res, err := exec.ExecuteTask(context.Background(), TaskRequest{Model: "gpt-4o", Task: "find things"})
	if err != nil {
		t.Fatalf("ExecuteTask: %v", err)
	}
	if len(res.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(res.Results))
	}
	if len(res.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(res.Actions))
	}
	if res.Task != "find things" || res.Model != "gpt-4o" {
		t.Errorf("task/model = %q/%q", res.Task, res.Model)
	}
	entry := res.Results[2]
	if entry.Type != protocol.EventAction || entry.Content != "Action: Open example.com" || entry.ActionData == nil {
		t.Errorf("action entry = %+v", entry)
	}
	if res.Results[1].Type != protocol.EventResponse || res.Results[1].Content != "step two" {
		t.Errorf("entry 1 = %+v", res.Results[1])
	}
}

func TestExecuteTask_EmptyRun(t *testing.T) {
	runner := agent.RunnerFunc(func(context.Context, agent.Spec, agent.StepFunc) error { return nil })
	res, err := NewOpenAIExecutor(BackendConfig{Runner: runner}).ExecuteTask(context.Background(), TaskRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Results == nil || res.Actions == nil {
		t.Error("empty run should return empty, non-nil slices")
	}
}

func TestExecutor_Failure(t *testing.T) {
	boom := &agent.APIError{StatusCode: 401, Message: "Incorrect API key provided: sk-abc***"}
	runner := agent.RunnerFunc(func(ctx context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		if err := onStep(agent.Step{Response: "partial"}); err != nil {
			return err
		}
		return boom
	})
	exec := NewAnthropicExecutor(BackendConfig{Runner: runner})

	_, err := exec.ExecuteTask(context.Background(), TaskRequest{Model: "claude-3"})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want *ExecutionError", err)
	}
	if execErr.Provider != Anthropic || !errors.Is(err, boom) {
		t.Errorf("execErr = %+v", execErr)
	}

	events := drain(exec.StreamTask(context.Background(), TaskRequest{Model: "claude-3"}))
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	last := events[1]
	if !last.IsTerminal() || last.Code != protocol.ErrExecutionFailed {
		t.Errorf("last event = %+v", last)
	}
	if last.Content == boom.Message {
		t.Error("raw provider message should not reach the client")
	}
}

func TestExecutor_InvalidOptions(t *testing.T) {
	exec := NewOpenAIExecutor(BackendConfig{Runner: threeSteps(nil)})
	req := TaskRequest{Model: "gpt-4o", Options: map[string]any{"temperature": "hot"}}

	if _, err := exec.ExecuteTask(context.Background(), req); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("err = %v, want ErrInvalidOption", err)
	}
	events := drain(exec.StreamTask(context.Background(), req))
	if len(events) != 1 || events[0].Type != protocol.EventError {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Code != protocol.ErrInvalidRequest || !strings.Contains(events[0].Content, "temperature") {
		t.Errorf("error event = %+v", events[0])
	}
}

func TestStreamTask_DeadlineEndsWithError(t *testing.T) {
	runner := agent.RunnerFunc(func(ctx context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		if err := onStep(agent.Step{Response: "step one"}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	events := drain(NewOpenAIExecutor(BackendConfig{Runner: runner}).StreamTask(ctx, TaskRequest{Model: "gpt-4o"}))
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	last := events[1]
	if !last.IsTerminal() || last.Code != protocol.ErrExecutionFailed || last.Content != "Request timed out. Please try again." {
		t.Errorf("last event = %+v", last)
	}
}

func TestStreamTask_RunnerPanic(t *testing.T) {
	runner := agent.RunnerFunc(func(ctx context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		var seen map[string]bool
		seen[spec.Task] = true
		return nil
	})
	events := drain(NewOpenAIExecutor(BackendConfig{Runner: runner}).StreamTask(context.Background(), TaskRequest{Model: "gpt-4o", Task: "t"}))
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	if !events[0].IsTerminal() || events[0].Code != protocol.ErrInternal || !strings.Contains(events[0].Content, "nil map") {
		t.Errorf("error event = %+v", events[0])
	}
}

func TestStreamTask_CancelStopsRun(t *testing.T) {
	stopped := make(chan struct{})
	runner := agent.RunnerFunc(func(ctx context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		defer close(stopped)
		for {
			if err := onStep(agent.Step{Response: "tick"}); err != nil {
				return err
			}
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewOpenAIExecutor(BackendConfig{Runner: runner}).StreamTask(ctx, TaskRequest{Model: "gpt-4o"})

	<-ch
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	for range ch {
	}
}
