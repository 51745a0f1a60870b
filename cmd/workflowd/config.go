package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShunsukeHayashi/workflowd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration workflowd would run with, after layering
defaults, the config file, and environment variables.

The config file is looked up as ./workflowd.yaml, then in the user
config directory, unless --config points at an explicit path.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.NewLoader(cfgFile).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

// displayConfig prints every effective configuration value, masking the
// API key.
func displayConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("server.listen: %s\n", cfg.Server.Listen)
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("bedrock.enabled: %t\n", cfg.Bedrock.Enabled)
	fmt.Printf("bedrock.region: %s\n", cfg.Bedrock.Region)
	fmt.Printf("bedrock.profile: %s\n", cfg.Bedrock.Profile)
	fmt.Printf("scheduler.assign_interval: %s\n", cfg.Scheduler.AssignInterval)
	fmt.Printf("scheduler.progress_interval: %s\n", cfg.Scheduler.ProgressInterval)
	fmt.Printf("broadcast.buffer_size: %d\n", cfg.Broadcast.BufferSize)
	fmt.Printf("journal.path: %s\n", cfg.Journal.Path)
	fmt.Printf("journal.recent_limit: %d\n", cfg.Journal.RecentLimit)
	fmt.Printf("agents.catalog_path: %s\n", cfg.Agents.CatalogPath)
	fmt.Printf("decompose.dependency_policy: %s\n", cfg.DependencyPolicy())
}
