package protocol

import "time"

// AgentEvent types pushed from server to client.
const (
	EventThinking = "thinking"
	EventResponse = "response"
	EventAction   = "action"
	EventError    = "error"
	EventSystem   = "system"
)

// ActionData describes one tool/browser action taken by an agent.
// Timestamp is serialized as RFC 3339 or null.
type ActionData struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Result      string     `json:"result"`
	Timestamp   *time.Time `json:"timestamp"`
}

// AgentEvent is one server frame on the streaming surface.
type AgentEvent struct {
	Type          string      `json:"type"`
	Content       string      `json:"content"`
	ActionType    string      `json:"action_type,omitempty"`
	ActionData    *ActionData `json:"action_data,omitempty"`
	Code          string      `json:"code,omitempty"`
	RequireAction string      `json:"require_action,omitempty"`
	Provider      string      `json:"provider,omitempty"`
}

// IsTerminal reports whether the event ends a task's event sequence.
func (e AgentEvent) IsTerminal() bool { return e.Type == EventError }

func NewThinking(content string) AgentEvent {
	return AgentEvent{Type: EventThinking, Content: content}
}

func NewResponse(content string) AgentEvent {
	return AgentEvent{Type: EventResponse, Content: content}
}

// NewAction builds the action event that follows a step's response event.
func NewAction(a ActionData) AgentEvent {
	return AgentEvent{
		Type:       EventAction,
		Content:    "Action: " + a.Description,
		ActionType: a.Type,
		ActionData: &a,
	}
}

func NewSystem(content string) AgentEvent {
	return AgentEvent{Type: EventSystem, Content: content}
}

// NewError builds an error event with a machine-readable code.
func NewError(code, content string) AgentEvent {
	return AgentEvent{Type: EventError, Code: code, Content: content}
}

// NewMissingKey builds the recoverable missing-key error event.
func NewMissingKey(provider, content string) AgentEvent {
	return AgentEvent{
		Type:          EventError,
		Code:          ErrMissingAPIKey,
		Content:       content,
		RequireAction: RequireActionAPIKey,
		Provider:      provider,
	}
}
