package providers

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		model string
		want  Provider
	}{
		{"gpt-4o", OpenAI},
		{"gpt-3.5-turbo", OpenAI},
		{"text-davinci-003", OpenAI},
		{"claude-3-5-sonnet", Anthropic},
		{"gemini-1.5-pro", Gemini},
		{"deepseek-v3", DeepSeek},
		{"deepseek-r1", DeepSeek},
		{"azure-gpt4", Azure},
		{"azure", Unknown},
		{"llama-3", Unknown},
		{"GPT-4o", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		if got := Resolve(tt.model); got != tt.want {
			t.Errorf("Resolve(%q) = %s, want %s", tt.model, got, tt.want)
		}
	}
}

func TestProviderValid(t *testing.T) {
	for _, p := range All {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	for _, p := range []Provider{Unknown, "", "azure", "OpenAI"} {
		if p.Valid() {
			t.Errorf("%q should not be valid", p)
		}
	}
}

func TestProviderTitle(t *testing.T) {
	if got := Azure.Title(); got != "Azure OpenAI" {
		t.Errorf("Azure.Title() = %q", got)
	}
	if got := OpenAI.Title(); got != "OpenAI" {
		t.Errorf("OpenAI.Title() = %q", got)
	}
}
