package providers

import "github.com/nextlevelbuilder/agentgate/internal/agent"

// baseSpec fills the fields every adapter shares from the request options.
func baseSpec(cfg BackendConfig, req TaskRequest, o Options, visionDefault bool) agent.Spec {
	maxSteps := o.MaxSteps
	if maxSteps == 0 {
		maxSteps = cfg.Settings.MaxSteps
	}
	return agent.Spec{
		Model:       req.Model,
		APIKey:      cfg.APIKey,
		Temperature: o.Temperature,
		UseVision:   o.Vision(visionDefault),
		MaxSteps:    maxSteps,
		Task:        req.Task,
	}
}

// NewOpenAIExecutor builds the OpenAI backend.
func NewOpenAIExecutor(cfg BackendConfig) TaskExecutor {
	return &agentExecutor{
		provider: OpenAI,
		runner:   cfg.Runner,
		specFor: func(req TaskRequest) (agent.Spec, error) {
			o, err := ParseOptions(req.Options)
			if err != nil {
				return agent.Spec{}, err
			}
			spec := baseSpec(cfg, req, o, true)
			spec.Dialect = agent.DialectOpenAI
			spec.BaseURL = cfg.Settings.OpenAIBase
			return spec, nil
		},
	}
}
