package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentgate/internal/config"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
)

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect providers and model routing",
	}
	cmd.AddCommand(modelsListCmd())
	cmd.AddCommand(modelsResolveCmd())
	return cmd
}

type modelEntry struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

func modelsResolveCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "resolve <model>...",
		Short: "Show which provider each model identifier routes to",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries := make([]modelEntry, 0, len(args))
			for _, m := range args {
				p := providers.Resolve(m)
				status := "supported"
				if p == providers.Unknown {
					status = "unsupported"
				}
				entries = append(entries, modelEntry{Model: m, Provider: string(p), Status: status})
			}
			printEntries(entries, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

type providerEntry struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

func modelsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List supported providers and their configured endpoints",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
				os.Exit(1)
			}

			entries := buildProviderList(cfg)
			if jsonOutput {
				data, _ := json.MarshalIndent(entries, "", "  ")
				fmt.Println(string(data))
				return
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "PROVIDER\tNAME\tENDPOINT\n")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Provider, e.Name, e.Endpoint)
			}
			tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func buildProviderList(cfg *config.Config) []providerEntry {
	endpoints := map[providers.Provider]string{
		providers.OpenAI:    cfg.Providers.OpenAI.APIBase,
		providers.Anthropic: cfg.Providers.Anthropic.APIBase,
		providers.Gemini:    cfg.Providers.Gemini.APIBase,
		providers.DeepSeek:  cfg.Providers.DeepSeek.APIBase,
		providers.Azure:     cfg.Providers.Azure.Endpoint,
	}

	entries := make([]providerEntry, 0, len(providers.All))
	for _, p := range providers.All {
		ep := endpoints[p]
		if ep == "" {
			ep = "(default)"
			if p == providers.Azure {
				ep = "(not configured)"
			}
		}
		entries = append(entries, providerEntry{Provider: string(p), Name: p.Title(), Endpoint: ep})
	}
	return entries
}

func printEntries(entries []modelEntry, asJSON bool) {
	if asJSON {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "MODEL\tPROVIDER\tSTATUS\n")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Model, e.Provider, e.Status)
	}
	tw.Flush()
}
