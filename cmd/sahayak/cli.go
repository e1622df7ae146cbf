package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sahayak-app/sahayak/pkg/config"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "sahayak",
		Short: "Citizen-services intake assistant: HTTP API, chat REPL, and memory tools",
		Long: strings.TrimSpace(`sahayak is the backend for a citizen-services assistant.

It serves an HTTP API for intake and conversational turns, keeps
conversation transcripts and per-user memory facts in SQLite, and talks
to an OpenAI-compatible model endpoint.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newServeCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newMemoryCommand())
	root.AddCommand(newConfigCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func getConfigPath() string {
	if path := strings.TrimSpace(os.Getenv("SAHAYAK_CONFIG")); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".sahayak", "config.json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  sahayak version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	configRoot := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	configRoot.AddCommand(&cobra.Command{
		Use:     "show",
		Short:   "Print the effective configuration as JSON",
		Example: "  sahayak config show",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Redact before printing.
			cfg.Provider.APIKey = mask(cfg.Provider.APIKey)
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	})

	configRoot.AddCommand(&cobra.Command{
		Use:     "init",
		Short:   "Write a default config file if none exists",
		Example: "  sahayak config init",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Wrote default config to %s\n", path)
			fmt.Println("Set provider.api_key (or SAHAYAK_PROVIDER_API_KEY) before serving.")
			return nil
		},
	})

	return configRoot
}

func mask(secret string) string {
	if len(secret) <= 8 {
		if secret == "" {
			return ""
		}
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
