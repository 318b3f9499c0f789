package providers

import "strings"

// Provider identifies an LLM vendor backend.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Azure     Provider = "azure-openai"
	Gemini    Provider = "gemini"
	DeepSeek  Provider = "deepseek"
	Unknown   Provider = "unknown"
)

// All lists every real provider in resolution order.
var All = []Provider{OpenAI, Anthropic, Gemini, DeepSeek, Azure}

// prefixRules are checked in order; the first match wins.
var prefixRules = []struct {
	prefixes []string
	provider Provider
}{
	{[]string{"gpt", "text-davinci"}, OpenAI},
	{[]string{"claude"}, Anthropic},
	{[]string{"gemini"}, Gemini},
	{[]string{"deepseek"}, DeepSeek},
	{[]string{"azure-"}, Azure},
}

// Resolve maps a model identifier to its provider by prefix. It is total:
// anything unrecognized, including the empty string, is Unknown.
func Resolve(model string) Provider {
	for _, rule := range prefixRules {
		for _, p := range rule.prefixes {
			if strings.HasPrefix(model, p) {
				return rule.provider
			}
		}
	}
	return Unknown
}

// Valid reports whether p names a real provider.
func (p Provider) Valid() bool {
	switch p {
	case OpenAI, Anthropic, Azure, Gemini, DeepSeek:
		return true
	}
	return false
}

// Title is the display name used in user-facing messages.
func (p Provider) Title() string {
	switch p {
	case OpenAI:
		return "OpenAI"
	case Anthropic:
		return "Anthropic"
	case Azure:
		return "Azure OpenAI"
	case Gemini:
		return "Gemini"
	case DeepSeek:
		return "DeepSeek"
	}
	return string(p)
}

func (p Provider) String() string { return string(p) }
