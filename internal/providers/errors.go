package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
)

// ExecutionError is a failed agent run. Err carries the underlying provider
// error.
type ExecutionError struct {
	Provider Provider
	Model    string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.Provider, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// UserMessage classifies a run failure into a message that is safe to show
// to the client. Raw provider payloads are never passed through: some
// providers echo part of the key back in auth errors.
func UserMessage(err error) string {
	if errors.Is(err, agent.ErrInjectionBlocked) {
		return "The task was rejected because it looks like a prompt injection attempt."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out. Please try again."
	}

	var apiErr *agent.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return "Authentication error. Please check your API key for this provider."
		case 402:
			return "API billing error. Your API key may have run out of credits."
		case 404:
			return "Model not found. Please check the model name."
		case 429:
			return "API rate limit reached. Please try again later."
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case containsAny(lower, "context length exceeded", "maximum context length", "prompt is too long", "request_too_large"):
		return "The conversation is too large for this model."
	case containsAny(lower, "rate limit", "rate_limit", "too many requests", "quota exceeded", "resource_exhausted"):
		return "API rate limit reached. Please try again later."
	case strings.Contains(lower, "overloaded"):
		return "The AI service is temporarily overloaded. Please try again in a moment."
	case containsAny(lower, "billing", "insufficient credits", "credit balance", "payment required"):
		return "API billing error. Your API key may have run out of credits."
	case containsAny(lower, "invalid api key", "invalid_api_key", "incorrect api key", "unauthorized", "authentication"):
		return "Authentication error. Please check your API key for this provider."
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return "Request timed out. Please try again."
	case strings.Contains(lower, "azure endpoint not configured"):
		return "Azure OpenAI endpoint is not configured on the server."
	}

	slog.Warn("unclassified agent error", "error", err)
	return "Sorry, something went wrong while running the task. Please try again."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
