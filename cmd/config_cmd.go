package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentgate/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and validate configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configPathCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration (secrets redacted)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, _, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
				os.Exit(1)
			}
			data, _ := json.MarshalIndent(redactConfig(cfg), "", "  ")
			fmt.Println(string(data))
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := config.Load(path); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Printf("Config at %s is valid.\n", path)
			return nil
		},
	}
}

// redactConfig returns a JSON-safe copy with secrets masked.
func redactConfig(cfg *config.Config) map[string]any {
	data, _ := json.Marshal(cfg)
	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	redactMap(raw)
	return raw
}

var secretKeys = map[string]bool{
	"jwt_secret": true,
	"key":        true,
	"dsn":        true,
	"headers":    true,
}

func redactMap(m map[string]any) {
	for k, v := range m {
		if secretKeys[k] {
			switch s := v.(type) {
			case string:
				if s != "" {
					m[k] = "****"
				}
			case map[string]any:
				for hk := range s {
					s[hk] = "****"
				}
			}
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			redactMap(sub)
		}
	}
}
