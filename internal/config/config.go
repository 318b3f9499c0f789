package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

// Config is the root configuration, loaded from a JSON5 file and overridden
// by AGENTGATE_* environment variables.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Database   DatabaseConfig   `json:"database"`
	Auth       AuthConfig       `json:"auth"`
	Encryption EncryptionConfig `json:"encryption"`
	Providers  ProvidersConfig  `json:"providers"`
	Agent      AgentConfig      `json:"agent"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	LogLevel   string           `json:"log_level,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// AuthTimeout bounds the wait for the first streaming frame, e.g. "10s".
	AuthTimeout    Duration `json:"auth_timeout"`
	MaxMessageSize int64    `json:"max_message_size,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

type DatabaseConfig struct {
	Driver      string `json:"driver"` // "sqlite" (default) or "postgres"
	DSN         string `json:"dsn,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	RedisStream string `json:"redis_stream,omitempty"`
}

type AuthConfig struct {
	JWTSecret string   `json:"jwt_secret,omitempty"`
	Issuer    string   `json:"issuer,omitempty"`
	TokenTTL  Duration `json:"token_ttl"`
}

type EncryptionConfig struct {
	// Key is the AES-256 key for stored provider keys. When empty the
	// AGENTGATE_ENCRYPTION_KEY env var and then the OS keyring are tried.
	Key string `json:"key,omitempty"`
}

// ProvidersConfig holds per-provider endpoint settings. Never API keys:
// those are per user and come from the credential store.
type ProvidersConfig struct {
	OpenAI    ProviderEndpoint `json:"openai"`
	Anthropic ProviderEndpoint `json:"anthropic"`
	Gemini    ProviderEndpoint `json:"gemini"`
	DeepSeek  ProviderEndpoint `json:"deepseek"`
	Azure     AzureEndpoint    `json:"azure"`
}

type ProviderEndpoint struct {
	APIBase string `json:"api_base,omitempty"`
}

type AzureEndpoint struct {
	Endpoint   string `json:"endpoint,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
}

type AgentConfig struct {
	MaxSteps       int      `json:"max_steps"`
	RequestTimeout Duration `json:"request_timeout"`

	// InjectionGuard is "log", "warn" (default), "block" or "off".
	InjectionGuard string `json:"injection_guard,omitempty"`
	MaxPageChars   int    `json:"max_page_chars,omitempty"`

	// AllowPrivateNetworks lets navigate actions reach loopback and LAN hosts.
	AllowPrivateNetworks bool `json:"allow_private_networks,omitempty"`

	Browser BrowserConfig `json:"browser"`
}

// BrowserConfig turns on Chrome-rendered navigation. With ControlURL set an
// already running Chrome is used, otherwise one is launched locally.
type BrowserConfig struct {
	Enabled    bool   `json:"enabled"`
	Headful    bool   `json:"headful,omitempty"`
	ControlURL string `json:"control_url,omitempty"`
}

type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Duration unmarshals from a Go duration string ("10s") or a number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"'`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			AuthTimeout:    Duration{10 * time.Second},
			MaxMessageSize: 512 * 1024,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "agentgate.db"},
		Auth:     AuthConfig{Issuer: "agentgate", TokenTTL: Duration{24 * time.Hour}},
		Providers: ProvidersConfig{
			Azure: AzureEndpoint{APIVersion: "2024-10-21"},
		},
		Agent:     AgentConfig{MaxSteps: 5, RequestTimeout: Duration{2 * time.Minute}, InjectionGuard: "warn"},
		Telemetry: TelemetryConfig{Protocol: "grpc", ServiceName: "agentgate"},
		LogLevel:  "info",
	}
}

// Load reads the config file at path (missing file = defaults), then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := json5.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("AGENTGATE_HOST", &c.Gateway.Host)
	envInt("AGENTGATE_PORT", &c.Gateway.Port)
	envStr("AGENTGATE_DB_DRIVER", &c.Database.Driver)
	envStr("AGENTGATE_DB_DSN", &c.Database.DSN)
	envStr("AGENTGATE_REDIS_ADDR", &c.Database.RedisAddr)
	envStr("AGENTGATE_JWT_SECRET", &c.Auth.JWTSecret)
	envStr("AGENTGATE_ENCRYPTION_KEY", &c.Encryption.Key)
	envStr("AZURE_OPENAI_ENDPOINT", &c.Providers.Azure.Endpoint)
	envStr("AGENTGATE_LOG_LEVEL", &c.LogLevel)
	envStr("AGENTGATE_INJECTION_GUARD", &c.Agent.InjectionGuard)
	envStr("AGENTGATE_BROWSER_URL", &c.Agent.Browser.ControlURL)
	if os.Getenv("AGENTGATE_BROWSER_URL") != "" {
		c.Agent.Browser.Enabled = true
	}
	envStr("AGENTGATE_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint != "" && os.Getenv("AGENTGATE_OTEL_ENDPOINT") != "" {
		c.Telemetry.Enabled = true
	}
}

func (c *Config) normalize() {
	d := Default()
	if c.Gateway.Port <= 0 {
		c.Gateway.Port = d.Gateway.Port
	}
	if c.Gateway.AuthTimeout.Duration <= 0 {
		c.Gateway.AuthTimeout = d.Gateway.AuthTimeout
	}
	if c.Gateway.MaxMessageSize <= 0 {
		c.Gateway.MaxMessageSize = d.Gateway.MaxMessageSize
	}
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Providers.Azure.APIVersion == "" {
		c.Providers.Azure.APIVersion = d.Providers.Azure.APIVersion
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = d.Agent.MaxSteps
	}
	if c.Agent.RequestTimeout.Duration <= 0 {
		c.Agent.RequestTimeout = d.Agent.RequestTimeout
	}
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// StoreConfig maps database settings onto the store layer.
func (c *Config) StoreConfig() store.StoreConfig {
	return store.StoreConfig{
		Driver:      c.Database.Driver,
		DSN:         ExpandHome(c.Database.DSN),
		RedisAddr:   c.Database.RedisAddr,
		RedisStream: c.Database.RedisStream,
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
