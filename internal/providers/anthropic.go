package providers

import "github.com/nextlevelbuilder/agentgate/internal/agent"

// NewAnthropicExecutor builds the Anthropic backend, which speaks the
// Messages API rather than chat completions.
func NewAnthropicExecutor(cfg BackendConfig) TaskExecutor {
	return &agentExecutor{
		provider: Anthropic,
		runner:   cfg.Runner,
		specFor: func(req TaskRequest) (agent.Spec, error) {
			o, err := ParseOptions(req.Options)
			if err != nil {
				return agent.Spec{}, err
			}
			spec := baseSpec(cfg, req, o, true)
			spec.Dialect = agent.DialectAnthropic
			spec.BaseURL = cfg.Settings.AnthropicBase
			return spec, nil
		},
	}
}
