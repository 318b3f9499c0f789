// Package protocol defines the wire format for the agentgate streaming and HTTP surfaces.
// This package is importable by clients.
package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Protocol version reported by /health and the doctor command.
const ProtocolVersion = 1

var (
	// ErrMissingToken is returned when the handshake frame carries no token.
	ErrMissingToken = errors.New("authentication required")
	// ErrInvalidTask is returned when a task frame lacks task or model.
	ErrInvalidTask = errors.New("invalid request format")
)

// AuthMessage is the first frame a client sends on a streaming connection.
type AuthMessage struct {
	Token string `json:"token"`
}

// TaskMessage is every subsequent client frame: one task to run.
type TaskMessage struct {
	Task    string         `json:"task"`
	Model   string         `json:"model"`
	Options map[string]any `json:"options,omitempty"`
}

// ParseAuthMessage decodes the handshake frame.
func ParseAuthMessage(data []byte) (AuthMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return AuthMessage{}, err
	}
	tok, ok := raw["token"]
	if !ok {
		return AuthMessage{}, ErrMissingToken
	}
	var msg AuthMessage
	if err := json.Unmarshal(tok, &msg.Token); err != nil {
		return AuthMessage{}, ErrMissingToken
	}
	if strings.TrimSpace(msg.Token) == "" {
		return AuthMessage{}, ErrMissingToken
	}
	return msg, nil
}

// ParseTaskMessage decodes a task frame. Both task and model must be present
// and non-empty strings.
func ParseTaskMessage(data []byte) (TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return TaskMessage{}, ErrInvalidTask
	}
	if msg.Task == "" || msg.Model == "" {
		return TaskMessage{}, ErrInvalidTask
	}
	if msg.Options == nil {
		msg.Options = map[string]any{}
	}
	return msg, nil
}
