package providers

import "github.com/nextlevelbuilder/agentgate/internal/agent"

const deepseekDefaultBase = "https://api.deepseek.com/v1"

// DeepSeekModel maps the public model name onto DeepSeek's API model:
// "deepseek-v3" is deepseek-chat, anything else is deepseek-reasoner.
func DeepSeekModel(model string) string {
	if model == "deepseek-v3" {
		return "deepseek-chat"
	}
	return "deepseek-reasoner"
}

// NewDeepSeekExecutor builds the DeepSeek backend. DeepSeek has no vision
// support, so use_vision defaults to false.
func NewDeepSeekExecutor(cfg BackendConfig) TaskExecutor {
	base := cfg.Settings.DeepSeekBase
	if base == "" {
		base = deepseekDefaultBase
	}
	return &agentExecutor{
		provider: DeepSeek,
		runner:   cfg.Runner,
		specFor: func(req TaskRequest) (agent.Spec, error) {
			o, err := ParseOptions(req.Options)
			if err != nil {
				return agent.Spec{}, err
			}
			spec := baseSpec(cfg, req, o, false)
			spec.Dialect = agent.DialectOpenAI
			spec.BaseURL = base
			spec.Model = DeepSeekModel(req.Model)
			return spec, nil
		},
	}
}
