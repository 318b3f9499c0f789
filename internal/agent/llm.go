package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultOpenAIBase    = "https://api.openai.com/v1"
	defaultAnthropicBase = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 4096
	maxErrorBody         = 4000
)

type role string

const (
	roleUser      role = "user"
	roleAssistant role = "assistant"
)

// message is the dialect-neutral conversation entry.
type message struct {
	Role     role
	Text     string
	ImageURL string
}

// complete sends the conversation and returns the assistant's text.
func (r *ChatRunner) complete(ctx context.Context, spec Spec, system string, msgs []message) (string, error) {
	switch spec.Dialect {
	case DialectAnthropic:
		return r.completeAnthropic(ctx, spec, system, msgs)
	case DialectAzure:
		return r.completeAzure(ctx, spec, system, msgs)
	case DialectOpenAI, "":
		return r.completeOpenAI(ctx, spec, system, msgs)
	default:
		return "", fmt.Errorf("unknown dialect %q", spec.Dialect)
	}
}

// --- OpenAI chat completions ---

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func openAIMessages(system string, msgs []message, vision bool) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openAIMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		if m.ImageURL != "" && vision {
			out = append(out, openAIMessage{Role: string(m.Role), Content: []openAIPart{
				{Type: "text", Text: m.Text},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: m.ImageURL}},
			}})
			continue
		}
		out = append(out, openAIMessage{Role: string(m.Role), Content: m.Text})
	}
	return out
}

func (r *ChatRunner) completeOpenAI(ctx context.Context, spec Spec, system string, msgs []message) (string, error) {
	base := strings.TrimRight(spec.BaseURL, "/")
	if base == "" {
		base = defaultOpenAIBase
	}
	body := openAIRequest{
		Model:       spec.Model,
		Messages:    openAIMessages(system, msgs, spec.UseVision),
		Temperature: spec.Temperature,
	}
	headers := map[string]string{"Authorization": "Bearer " + spec.APIKey}

	var resp openAIResponse
	if err := r.postJSON(ctx, base+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// --- Azure OpenAI ---

// completeAzure targets the deployment named by the model. The deployment
// name is the model with its "azure-" routing prefix removed.
func (r *ChatRunner) completeAzure(ctx context.Context, spec Spec, system string, msgs []message) (string, error) {
	if spec.BaseURL == "" {
		return "", fmt.Errorf("azure endpoint not configured")
	}
	deployment := strings.TrimPrefix(spec.Model, "azure-")
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(spec.BaseURL, "/"), url.PathEscape(deployment), url.QueryEscape(spec.APIVersion))

	body := openAIRequest{
		Messages:    openAIMessages(system, msgs, spec.UseVision),
		Temperature: spec.Temperature,
	}
	headers := map[string]string{"api-key": spec.APIKey}

	var resp openAIResponse
	if err := r.postJSON(ctx, u, headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// --- Anthropic messages ---

type anthropicImageSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r *ChatRunner) completeAnthropic(ctx context.Context, spec Spec, system string, msgs []message) (string, error) {
	base := strings.TrimRight(spec.BaseURL, "/")
	if base == "" {
		base = defaultAnthropicBase
	}
	body := anthropicRequest{
		Model:       spec.Model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: spec.Temperature,
		System:      system,
	}
	for _, m := range msgs {
		blocks := []anthropicBlock{{Type: "text", Text: m.Text}}
		if m.ImageURL != "" && spec.UseVision {
			blocks = append(blocks, anthropicBlock{Type: "image", Source: &anthropicImageSource{Type: "url", URL: m.ImageURL}})
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: string(m.Role), Content: blocks})
	}
	headers := map[string]string{
		"x-api-key":         spec.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := r.postJSON(ctx, base+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

// postJSON posts body and decodes a 2xx answer into out. Other statuses
// become *APIError with the provider's error message when it has one.
func (r *ChatRunner) postJSON(ctx context.Context, u string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		for _, h := range []string{"Authorization", "api-key", "x-api-key"} {
			if v := headers[h]; v != "" {
				msg = ScrubCredentials(msg, strings.TrimPrefix(v, "Bearer "))
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: ScrubCredentials(msg, "")}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
