package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 8000 || cfg.Gateway.AuthTimeout.Duration != 10*time.Second {
		t.Errorf("defaults not applied: %+v", cfg.Gateway)
	}
	if cfg.Providers.Azure.APIVersion != "2024-10-21" {
		t.Errorf("azure api version = %q", cfg.Providers.Azure.APIVersion)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestLoad_JSON5(t *testing.T) {
	p := writeFile(t, t.TempDir(), "agentgate.json5", `{
		// comments and trailing commas are fine
		gateway: { port: 9090, auth_timeout: "3s", },
		providers: { azure: { endpoint: 'https://example.openai.azure.com' } },
		agent: { max_steps: 8, request_timeout: 30 },
		log_level: "debug",
	}`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.AuthTimeout.Duration != 3*time.Second {
		t.Errorf("auth timeout = %v", cfg.Gateway.AuthTimeout)
	}
	if cfg.Agent.MaxSteps != 8 || cfg.Agent.RequestTimeout.Duration != 30*time.Second {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Providers.Azure.Endpoint != "https://example.openai.azure.com" {
		t.Errorf("azure endpoint = %q", cfg.Providers.Azure.Endpoint)
	}
	if cfg.Providers.Azure.APIVersion != "2024-10-21" {
		t.Error("unset api_version should keep its default")
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bad.json5", `{ gateway: `)
	if _, err := Load(p); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTGATE_PORT", "7000")
	t.Setenv("AGENTGATE_DB_DRIVER", "postgres")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://env.azure.com")
	t.Setenv("AGENTGATE_ENCRYPTION_KEY", "k")
	t.Setenv("AGENTGATE_BROWSER_URL", "ws://127.0.0.1:9222/devtools/browser/x")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Gateway.Port != 7000 || cfg.Database.Driver != "postgres" {
		t.Errorf("env not applied: port=%d driver=%s", cfg.Gateway.Port, cfg.Database.Driver)
	}
	if cfg.Providers.Azure.Endpoint != "https://env.azure.com" || cfg.Encryption.Key != "k" {
		t.Errorf("env not applied: %+v", cfg.Providers.Azure)
	}
	if !cfg.StoreConfig().IsPostgres() {
		t.Error("store config should be postgres")
	}
	if !cfg.Agent.Browser.Enabled || cfg.Agent.Browser.ControlURL == "" {
		t.Errorf("browser = %+v", cfg.Agent.Browser)
	}
}

func TestResolveEncryptionKey(t *testing.T) {
	keyring.MockInit()

	cfg := Default()
	if _, err := cfg.ResolveEncryptionKey(); !errors.Is(err, ErrNoEncryptionKey) {
		t.Errorf("err = %v, want ErrNoEncryptionKey", err)
	}

	if err := StoreEncryptionKey("from-keyring"); err != nil {
		t.Fatal(err)
	}
	if k, err := cfg.ResolveEncryptionKey(); err != nil || k != "from-keyring" {
		t.Errorf("keyring fallback = %q, %v", k, err)
	}

	cfg.Encryption.Key = "from-config"
	if k, _ := cfg.ResolveEncryptionKey(); k != "from-config" {
		t.Errorf("config should win, got %q", k)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "agentgate.json5", `{ log_level: "info" }`)

	got := make(chan *Config, 4)
	w, err := NewWatcher(p, func(cfg *Config) { got <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	writeFile(t, dir, "other.json5", `{}`)
	writeFile(t, dir, "agentgate.json5", `{ log_level: "info" }`)
	select {
	case cfg := <-got:
		t.Fatalf("unchanged save reloaded: %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}

	writeFile(t, dir, "agentgate.json5", `{ log_level: "debug" }`)
	select {
	case cfg := <-got:
		if cfg.LogLevel != "debug" {
			t.Errorf("log level = %q, want debug", cfg.LogLevel)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
