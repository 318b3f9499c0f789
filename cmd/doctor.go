package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentgate/internal/crypto"
	"github.com/nextlevelbuilder/agentgate/internal/store/redislog"
	"github.com/nextlevelbuilder/agentgate/internal/store/sqlstore"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment, configuration and store connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd.Context())
		},
	}
}

func runDoctor(ctx context.Context) {
	fmt.Println("agentgate doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfg, cfgPath, err := loadConfig()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Secrets:")
	key, err := cfg.ResolveEncryptionKey()
	switch {
	case err != nil:
		checkLine("Encryption", "MISSING ("+err.Error()+")")
	default:
		if _, err := crypto.NewCipher(key); err != nil {
			checkLine("Encryption", "INVALID ("+err.Error()+")")
		} else {
			checkLine("Encryption", "OK")
		}
	}
	if cfg.Auth.JWTSecret == "" {
		checkLine("JWT secret", "MISSING")
	} else {
		checkLine("JWT secret", "OK")
	}

	fmt.Println()
	fmt.Println("  Stores:")
	stores, err := sqlstore.New(cfg.StoreConfig())
	if err != nil {
		checkLine(cfg.Database.Driver, "ERROR ("+err.Error()+")")
	} else {
		checkLine(cfg.Database.Driver, "OK")
		stores.Close()
	}
	if cfg.Database.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, rdb, err := redislog.New(pingCtx, cfg.Database.RedisAddr, cfg.Database.RedisStream)
		cancel()
		if err != nil {
			checkLine("Redis", "ERROR ("+err.Error()+")")
		} else {
			checkLine("Redis", "OK")
			rdb.Close()
		}
	}

	fmt.Println()
	fmt.Println("  Providers:")
	for _, p := range buildProviderList(cfg) {
		checkLine(p.Name, p.Endpoint)
	}

	switch {
	case !cfg.Agent.Browser.Enabled:
		checkLine("Browser", "disabled (plain HTTP fetch)")
	case cfg.Agent.Browser.ControlURL != "":
		checkLine("Browser", "remote chrome")
	default:
		checkLine("Browser", "local chrome")
	}

	fmt.Println()
	if cfg.Telemetry.Enabled {
		checkLine("Telemetry", cfg.Telemetry.Protocol+" -> "+cfg.Telemetry.Endpoint)
	} else {
		checkLine("Telemetry", "disabled")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkLine(name, status string) {
	fmt.Printf("    %-14s %s\n", name+":", status)
}
