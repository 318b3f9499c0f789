package providers

import (
	"errors"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
)

// DefaultAzureAPIVersion is used when neither the request nor config sets one.
const DefaultAzureAPIVersion = "2024-10-21"

var ErrAzureEndpoint = errors.New("azure endpoint not configured")

// NewAzureExecutor builds the Azure OpenAI backend. The endpoint comes from
// Settings; api_version may be overridden per request.
func NewAzureExecutor(cfg BackendConfig) TaskExecutor {
	return &agentExecutor{
		provider: Azure,
		runner:   cfg.Runner,
		specFor: func(req TaskRequest) (agent.Spec, error) {
			o, err := ParseOptions(req.Options)
			if err != nil {
				return agent.Spec{}, err
			}
			if cfg.Settings.AzureEndpoint == "" {
				return agent.Spec{}, ErrAzureEndpoint
			}
			spec := baseSpec(cfg, req, o, true)
			spec.Dialect = agent.DialectAzure
			spec.BaseURL = cfg.Settings.AzureEndpoint
			spec.APIVersion = azureAPIVersion(o.APIVersion, cfg.Settings.AzureAPIVersion)
			return spec, nil
		},
	}
}

func azureAPIVersion(fromRequest, fromConfig string) string {
	switch {
	case fromRequest != "":
		return fromRequest
	case fromConfig != "":
		return fromConfig
	default:
		return DefaultAzureAPIVersion
	}
}
