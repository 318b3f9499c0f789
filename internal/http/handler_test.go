package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
	"github.com/nextlevelbuilder/agentgate/internal/auth"
	"github.com/nextlevelbuilder/agentgate/internal/credentials"
	"github.com/nextlevelbuilder/agentgate/internal/crypto"
	"github.com/nextlevelbuilder/agentgate/internal/dispatch"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/internal/store/sqlstore"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

type testEnv struct {
	srv    *httptest.Server
	stores *sqlstore.Stores

	mu   sync.Mutex
	keys []string
}

func (e *testEnv) seenKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.keys...)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores, err := sqlstore.New(store.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { stores.Close() })

	tokens, err := auth.NewTokenManager(strings.Repeat("s", 32), "agentgate-test", 0)
	if err != nil {
		t.Fatal(err)
	}
	accounts := auth.NewService(stores.Users, tokens)
	cipher, err := crypto.NewCipher(strings.Repeat("k", 64))
	if err != nil {
		t.Fatal(err)
	}
	gw := credentials.NewGateway(accounts, stores.Credentials, cipher)

	env := &testEnv{stores: stores}
	runner := agent.RunnerFunc(func(_ context.Context, spec agent.Spec, onStep agent.StepFunc) error {
		env.mu.Lock()
		env.keys = append(env.keys, spec.APIKey)
		env.mu.Unlock()
		if spec.Task == "fail" {
			return &agent.APIError{StatusCode: 500, Message: "upstream broke with " + spec.APIKey}
		}
		return onStep(agent.Step{
			Response: "visited",
			Action:   &agent.Action{Type: "navigate", Description: "Navigate to URL", Result: "status 200"},
		})
	})
	d := dispatch.New(gw, providers.DefaultRegistry(providers.Settings{}, runner),
		dispatch.WithInteractionLog(stores.Interactions))

	env.srv = httptest.NewServer(NewHandler(Deps{
		Dispatcher: d,
		Accounts:   accounts,
		Keys:       gw,
		KeyList:    stores.Credentials,
		History:    stores.Interactions,
		Sessions:   func() int { return 0 },
	}))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, e.srv.URL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// signup registers a user and logs in with the form encoding.
func (e *testEnv) signup(t *testing.T) string {
	t.Helper()
	resp, _ := e.do(t, "POST", "/api/auth/signup", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse", "name": "Ada",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}

	form := url.Values{"username": {"ada@example.com"}, "password": {"correct-horse"}}
	r, err := http.PostForm(e.srv.URL+"/api/auth/token", form)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	var sess auth.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil || sess.AccessToken == "" {
		t.Fatalf("token response: %v %+v", err, sess)
	}
	return sess.AccessToken
}

func errorOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in %v", body)
	}
	return e
}

func TestAccountsAndKeys(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t)

	resp, body := env.do(t, "GET", "/api/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK || body["email"] != "ada@example.com" {
		t.Fatalf("me = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": "ada@example.com", "password": "correct-horse"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, "POST", "/api/auth/signup", "", map[string]string{"email": "bob@example.com", "password": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short password status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, "GET", "/api/auth/api-keys/openai", token, nil)
	if resp.StatusCode != http.StatusOK || body["has_key"] != false {
		t.Fatalf("has_key before store = %d %v", resp.StatusCode, body)
	}

	resp, _ = env.do(t, "POST", "/api/auth/api-keys", token, map[string]string{"provider": "OpenAI", "api_key": "sk-live-123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store key status = %d", resp.StatusCode)
	}
	_, body = env.do(t, "GET", "/api/auth/api-keys/openai", token, nil)
	if body["has_key"] != true {
		t.Errorf("has_key after store = %v", body)
	}
	_, body = env.do(t, "GET", "/api/auth/api-keys", token, nil)
	if list, _ := body["providers"].([]any); len(list) != 1 || list[0] != "openai" {
		t.Errorf("providers = %v", body)
	}

	resp, _ = env.do(t, "POST", "/api/auth/api-keys", token, map[string]string{"provider": "llama", "api_key": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, "GET", "/api/auth/api-keys/llama", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown provider has_key status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, "GET", "/api/auth/me", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", resp.StatusCode)
	}
}

func TestLogin_JSONAndWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t)

	resp, body := env.do(t, "POST", "/api/auth/token", "", map[string]string{"username": "ada@example.com", "password": "correct-horse"})
	if resp.StatusCode != http.StatusOK || body["access_token"] == "" {
		t.Errorf("json login = %d %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, "POST", "/api/auth/token", "", map[string]string{"username": "ada@example.com", "password": "wrong-password"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", resp.StatusCode)
	}
	if msg := errorOf(t, body)["message"]; msg != "Incorrect email or password" {
		t.Errorf("message = %v", msg)
	}
}

func TestExecute(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t)
	env.do(t, "POST", "/api/auth/api-keys", token, map[string]string{"provider": "openai", "api_key": "sk-live-123"})

	resp, body := env.do(t, "POST", "/api/agent/execute", token, map[string]any{"task": "look", "model": "gpt-4o"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	results, _ := body["results"].([]any)
	actions, _ := body["actions"].([]any)
	if len(results) != 2 || len(actions) != 1 || body["model"] != "gpt-4o" || body["task"] != "look" {
		t.Errorf("body = %v", body)
	}
	if keys := env.seenKeys(); len(keys) != 1 || keys[0] != "sk-live-123" {
		t.Errorf("runner keys = %v", keys)
	}

	_, body = env.do(t, "GET", "/api/agent/interactions", token, nil)
	if list, _ := body["interactions"].([]any); len(list) != 1 {
		t.Errorf("interactions = %v", body)
	}
}

func TestExecute_Errors(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t)
	env.do(t, "POST", "/api/auth/api-keys", token, map[string]string{"provider": "openai", "api_key": "sk-live-123"})

	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing fields", token, map[string]string{"task": "x"}, http.StatusBadRequest, protocol.ErrInvalidRequest},
		{"unknown model", token, map[string]string{"task": "x", "model": "llama-3"}, http.StatusBadRequest, protocol.ErrUnsupportedModel},
		{"unknown model before auth", "", map[string]string{"task": "x", "model": "llama-3"}, http.StatusBadRequest, protocol.ErrUnsupportedModel},
		{"no token", "", map[string]string{"task": "x", "model": "gpt-4o"}, http.StatusUnauthorized, protocol.ErrUnauthorized},
		{"bad token", "nope", map[string]string{"task": "x", "model": "gpt-4o"}, http.StatusUnauthorized, protocol.ErrUnauthorized},
		{"bad option", token, map[string]any{"task": "x", "model": "gpt-4o", "options": map[string]any{"temperature": 9}}, http.StatusBadRequest, protocol.ErrInvalidRequest},
		{"run failure", token, map[string]string{"task": "fail", "model": "gpt-4o"}, http.StatusBadGateway, protocol.ErrExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, "POST", "/api/agent/execute", tt.token, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.wantStatus, body)
			}
			e := errorOf(t, body)
			if e["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", e["code"], tt.wantCode)
			}
			if msg, _ := e["message"].(string); strings.Contains(msg, "sk-live") {
				t.Errorf("message leaks key: %s", msg)
			}
		})
	}
}

func TestExecute_MissingKeyHeaders(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t)

	resp, body := env.do(t, "POST", "/api/agent/execute", token, map[string]string{"task": "x", "model": "claude-3-opus"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(protocol.HeaderErrorCode); got != protocol.ErrMissingAPIKey {
		t.Errorf("%s = %q", protocol.HeaderErrorCode, got)
	}
	if got := resp.Header.Get(protocol.HeaderProvider); got != "anthropic" {
		t.Errorf("%s = %q", protocol.HeaderProvider, got)
	}
	e := errorOf(t, body)
	if e["message"] != "Anthropic API key required" || e["provider"] != "anthropic" {
		t.Errorf("error = %v", e)
	}
}

func TestHealthAndCORS(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, "GET", "/health", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/api/agent/execute", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusNoContent || r.Header.Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("preflight = %d %v", r.StatusCode, r.Header)
	}
	if got := r.Header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("open allowlist sent Allow-Credentials %q", got)
	}
}

func TestCORSCredentials(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		wantOrigin  string
		credentials bool
	}{
		{"no allowlist", nil, "https://evil.example", "https://evil.example", false},
		{"wildcard", []string{"*"}, "https://evil.example", "https://evil.example", false},
		{"listed origin", []string{"https://app.example.com"}, "https://app.example.com", "https://app.example.com", true},
		{"unlisted origin", []string{"https://app.example.com"}, "https://evil.example", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodOptions, "/api/agent/execute", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.credentials {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.credentials)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"Bearer abc":  "abc",
		"bearer abc ": "abc",
		"Basic abc":   "",
		"Bearer":      "",
	}
	for header, want := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		if got := extractBearerToken(r); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
