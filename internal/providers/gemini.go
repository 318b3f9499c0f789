package providers

import "github.com/nextlevelbuilder/agentgate/internal/agent"

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta/openai"

// NewGeminiExecutor builds the Gemini backend over Google's
// OpenAI-compatible endpoint.
func NewGeminiExecutor(cfg BackendConfig) TaskExecutor {
	base := cfg.Settings.GeminiBase
	if base == "" {
		base = geminiDefaultBase
	}
	return &agentExecutor{
		provider: Gemini,
		runner:   cfg.Runner,
		specFor: func(req TaskRequest) (agent.Spec, error) {
			o, err := ParseOptions(req.Options)
			if err != nil {
				return agent.Spec{}, err
			}
			spec := baseSpec(cfg, req, o, true)
			spec.Dialect = agent.DialectOpenAI
			spec.BaseURL = base
			return spec, nil
		},
	}
}
