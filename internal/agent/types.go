package agent

import (
	"context"
	"fmt"
	"time"
)

// Dialect selects the wire format the runner speaks to the model endpoint.
type Dialect string

const (
	// DialectOpenAI is the OpenAI chat completions format. Gemini and
	// DeepSeek expose OpenAI-compatible endpoints and use it too.
	DialectOpenAI    Dialect = "openai"
	DialectAzure     Dialect = "azure"
	DialectAnthropic Dialect = "anthropic"
)

const DefaultMaxSteps = 5

// Spec is everything one agent run needs: the LLM settings and the task.
// APIKey is plaintext and must never be logged.
type Spec struct {
	Dialect     Dialect
	BaseURL     string
	Model       string
	APIKey      string
	APIVersion  string
	Temperature float64
	UseVision   bool
	MaxSteps    int
	Task        string
}

func (s Spec) maxSteps() int {
	if s.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return s.MaxSteps
}

// Action is a tool action the agent took during a step.
type Action struct {
	Type        string
	Description string
	Result      string
	Timestamp   *time.Time
}

// Step is one model turn: the model's text plus an optional action.
type Step struct {
	Response string
	Action   *Action
}

// StepFunc receives steps in the order the agent produced them.
// Returning an error stops the run and Run returns that error.
type StepFunc func(Step) error

// Runner executes the multi-step agent loop for a task.
type Runner interface {
	Run(ctx context.Context, spec Spec, onStep StepFunc) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, spec Spec, onStep StepFunc) error

func (f RunnerFunc) Run(ctx context.Context, spec Spec, onStep StepFunc) error {
	return f(ctx, spec, onStep)
}

// APIError is a non-2xx answer from a model endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("model endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("model endpoint returned %d: %s", e.StatusCode, e.Message)
}
