package providers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
)

var ErrNoBackend = errors.New("no backend registered for provider")

// Settings are the process-level provider endpoints. They never carry keys.
type Settings struct {
	OpenAIBase      string
	AnthropicBase   string
	GeminiBase      string
	DeepSeekBase    string
	AzureEndpoint   string
	AzureAPIVersion string
	MaxSteps        int
}

// BackendConfig is what a Factory receives for one task.
type BackendConfig struct {
	APIKey   string
	Settings Settings
	Runner   agent.Runner
}

// Factory builds a TaskExecutor bound to one decrypted key. It must not do
// network I/O.
type Factory func(cfg BackendConfig) TaskExecutor

// Registry maps providers to backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[Provider]Factory
	settings  Settings
	runner    agent.Runner
}

func NewRegistry(settings Settings, runner agent.Runner) *Registry {
	return &Registry{
		factories: make(map[Provider]Factory),
		settings:  settings,
		runner:    runner,
	}
}

// DefaultRegistry returns a registry with all five providers registered.
func DefaultRegistry(settings Settings, runner agent.Runner) *Registry {
	r := NewRegistry(settings, runner)
	r.Register(OpenAI, NewOpenAIExecutor)
	r.Register(Anthropic, NewAnthropicExecutor)
	r.Register(Azure, NewAzureExecutor)
	r.Register(Gemini, NewGeminiExecutor)
	r.Register(DeepSeek, NewDeepSeekExecutor)
	return r
}

// Register adds or replaces the factory for p.
func (r *Registry) Register(p Provider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[p] = f
}

// UpdateSettings swaps the endpoint settings. Executors already built keep
// the settings they were built with.
func (r *Registry) UpdateSettings(s Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

// Has reports whether a backend is registered for p.
func (r *Registry) Has(p Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[p]
	return ok
}

// New builds a backend for p bound to apiKey.
func (r *Registry) New(p Provider, apiKey string) (TaskExecutor, error) {
	r.mu.RLock()
	f, ok := r.factories[p]
	cfg := BackendConfig{APIKey: apiKey, Settings: r.settings, Runner: r.runner}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, p)
	}
	return f(cfg), nil
}
