package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/agentgate/internal/agent"
	"github.com/nextlevelbuilder/agentgate/internal/auth"
	"github.com/nextlevelbuilder/agentgate/internal/config"
	"github.com/nextlevelbuilder/agentgate/internal/credentials"
	"github.com/nextlevelbuilder/agentgate/internal/crypto"
	"github.com/nextlevelbuilder/agentgate/internal/dispatch"
	"github.com/nextlevelbuilder/agentgate/internal/gateway"
	httpapi "github.com/nextlevelbuilder/agentgate/internal/http"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/internal/store/redislog"
	"github.com/nextlevelbuilder/agentgate/internal/store/sqlstore"
	"github.com/nextlevelbuilder/agentgate/pkg/browser"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket gateway (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// loadConfig loads .env (optional) and then the config file.
func loadConfig() (*config.Config, string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func setupLogging(cfg *config.Config) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(config.ParseLevel(cfg.LogLevel))
	if verbose {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return level
}

func providerSettings(cfg *config.Config) providers.Settings {
	return providers.Settings{
		OpenAIBase:      cfg.Providers.OpenAI.APIBase,
		AnthropicBase:   cfg.Providers.Anthropic.APIBase,
		GeminiBase:      cfg.Providers.Gemini.APIBase,
		DeepSeekBase:    cfg.Providers.DeepSeek.APIBase,
		AzureEndpoint:   cfg.Providers.Azure.Endpoint,
		AzureAPIVersion: cfg.Providers.Azure.APIVersion,
		MaxSteps:        cfg.Agent.MaxSteps,
	}
}

func gatewayConfig(cfg *config.Config) gateway.ServerConfig {
	return gateway.ServerConfig{
		AuthTimeout:    cfg.Gateway.AuthTimeout.Duration,
		TaskTimeout:    cfg.Agent.RequestTimeout.Duration,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
		AllowedOrigins: cfg.Gateway.AllowedOrigins,
	}
}

func runServe(ctx context.Context) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	level := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := initOTelExporter(ctx, cfg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	encKey, err := cfg.ResolveEncryptionKey()
	if err != nil {
		return err
	}
	cipher, err := crypto.NewCipher(encKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (or AGENTGATE_JWT_SECRET) is required")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		return err
	}

	stores, err := sqlstore.New(cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer stores.Close()

	var logs store.InteractionStore = stores.Interactions
	if cfg.Database.RedisAddr != "" {
		sink, rdb, err := redislog.New(ctx, cfg.Database.RedisAddr, cfg.Database.RedisStream)
		if err != nil {
			slog.Warn("redis interaction stream disabled", "error", err)
		} else {
			defer rdb.Close()
			logs = store.MultiInteractionStore{stores.Interactions, sink}
		}
	}

	accounts := auth.NewService(stores.Users, tokens)
	creds := credentials.NewGateway(accounts, stores.Credentials, cipher)

	runnerCfg := agent.ChatRunnerConfig{
		Guard:                agent.NewInputGuard(agent.GuardMode(cfg.Agent.InjectionGuard)),
		MaxPageChars:         cfg.Agent.MaxPageChars,
		AllowPrivateNetworks: cfg.Agent.AllowPrivateNetworks,
	}
	if cfg.Agent.Browser.Enabled {
		chrome := browser.New(browser.Config{
			Headless:   !cfg.Agent.Browser.Headful,
			ControlURL: cfg.Agent.Browser.ControlURL,
			MaxChars:   cfg.Agent.MaxPageChars,
		})
		if err := chrome.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer chrome.Close()
		runnerCfg.Browser = agent.ChromeBrowser(chrome)
	}
	runner := agent.NewChatRunner(runnerCfg)
	registry := providers.DefaultRegistry(providerSettings(cfg), runner)
	disp := dispatch.New(creds, registry,
		dispatch.WithInteractionLog(logs),
		dispatch.WithTimeout(cfg.Agent.RequestTimeout.Duration),
	)

	streaming := gateway.NewServer(disp, gatewayConfig(cfg))
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.NewHandler(httpapi.Deps{
			Dispatcher:     disp,
			Accounts:       accounts,
			Keys:           creds,
			KeyList:        stores.Credentials,
			History:        stores.Interactions,
			Streaming:      streaming,
			Sessions:       streaming.ActiveSessions,
			AllowedOrigins: cfg.Gateway.AllowedOrigins,
			Version:        Version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var watcher *config.Watcher
	if _, err := os.Stat(cfgPath); err == nil {
		watcher, err = config.NewWatcher(cfgPath, func(next *config.Config) {
			level.Set(config.ParseLevel(next.LogLevel))
			registry.UpdateSettings(providerSettings(next))
			streaming.UpdateConfig(gatewayConfig(next))
			slog.Info("config reloaded", "log_level", next.LogLevel, "max_steps", next.Agent.MaxSteps)
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("agentgate listening", "addr", srv.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "sessions", streaming.ActiveSessions(), "busy", streaming.BusySessions())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), streaming.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
