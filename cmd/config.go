// Package cmd implements the CLI commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/lfmt-dev/translate-pipeline/internal/config"
)

// validateConfigOrExit validates that the configuration is properly initialized
// and all required directories exist. Returns a user-friendly error if validation fails.
func validateConfigOrExit(cfg *config.Config, _ string) error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded\n\nlfmt has not been initialized in this directory.\nRun 'lfmt init' to set up lfmt and create the necessary configuration")
	}

	if cfg.ConfigFilePath == "" {
		return fmt.Errorf("no configuration file found\n\nlfmt requires a configuration file to run.\nRun 'lfmt init' to create config.yaml in the current directory")
	}

	var missingDirs []string

	if _, err := os.Stat(cfg.Output.ReportsDir); os.IsNotExist(err) {
		missingDirs = append(missingDirs, fmt.Sprintf("Reports directory: %s", cfg.Output.ReportsDir))
	}

	if cfg.Output.LLMLogEnabled {
		if _, err := os.Stat(cfg.Output.LLMLogDir); os.IsNotExist(err) {
			missingDirs = append(missingDirs, fmt.Sprintf("LLM log directory: %s", cfg.Output.LLMLogDir))
		}
	}

	if cfg.Storage.ObjectStore == "local" {
		if _, err := os.Stat(cfg.Storage.LocalObjectDir); os.IsNotExist(err) {
			missingDirs = append(missingDirs, fmt.Sprintf("Object store directory: %s", cfg.Storage.LocalObjectDir))
		}
	}

	if len(missingDirs) > 0 {
		errMsg := "required directories are missing:\n\n"
		for _, dir := range missingDirs {
			errMsg += fmt.Sprintf("  - %s\n", dir)
		}
		errMsg += "\nRun 'lfmt init' to create the required directory structure"
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the effective configuration",
	Long: `Display the effective configuration that lfmt will use at runtime.

This shows the merged configuration from:
  1. Default values
  2. Configuration file (config.yaml)
  3. Environment variables (highest priority)

Sensitive values like API keys are masked for security.`,
	Example: `  # Show current configuration
  lfmt config

  # Show with custom config file
  lfmt config --config /etc/lfmt/config.yaml`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return fmt.Errorf("configuration not loaded\n\nTo get started, run: lfmt init")
		}

		fmt.Println("=== lfmt Effective Configuration ===")
		fmt.Println()

		fmt.Println("✂️  Chunking Configuration:")
		fmt.Printf("   Primary Chunk Size: %d tokens\n", cfg.Chunking.PrimaryChunkSize)
		fmt.Printf("   Context Size:       %d tokens\n", cfg.Chunking.ContextSize)
		fmt.Printf("   Min Chunk Size:     %d tokens\n", cfg.Chunking.EffectiveMinChunkSize())
		fmt.Println()

		fmt.Println("🚦 Rate Limit Configuration:")
		fmt.Printf("   Requests/Minute:    %d\n", cfg.RateLimit.RequestsPerMinute)
		fmt.Printf("   Tokens/Minute:      %d\n", cfg.RateLimit.TokensPerMinute)
		fmt.Printf("   Requests/Day:       %d\n", cfg.RateLimit.RequestsPerDay)
		fmt.Printf("   Daily Reset TZ:     %s\n", cfg.RateLimit.DailyResetTimezone)
		fmt.Printf("   Store:              %s\n", cfg.RateLimit.Store)
		fmt.Println()

		fmt.Println("🤖 Translate Configuration:")
		fmt.Printf("   Base URL:           %s\n", cfg.Translate.BaseURL)
		fmt.Printf("   Model:              %s\n", cfg.Translate.Model)
		fmt.Printf("   API Key:            %s\n", maskAPIKey(cfg.Translate.APIKey))
		fmt.Printf("   Max Retries:        %d\n", cfg.Translate.MaxRetries)
		fmt.Printf("   Price/M Input Tok:  $%.4f\n", cfg.Translate.PricePerMillionInputTokens)
		fmt.Println()

		fmt.Println("⚙️  Worker Configuration:")
		fmt.Printf("   Timeout:            %s\n", cfg.Worker.Timeout)
		fmt.Printf("   Concurrency:        %d\n", cfg.Worker.Concurrency)
		fmt.Println()

		fmt.Println("🗄️  Storage Configuration:")
		fmt.Printf("   Object Store:       %s\n", cfg.Storage.ObjectStore)
		fmt.Printf("   KV Store:           %s\n", cfg.Storage.KVStore)
		fmt.Println()

		fmt.Println("🔔 Notification Configuration:")
		fmt.Printf("   Enabled:            %v\n", cfg.Notification.Enabled)
		fmt.Printf("   Shoutrrr URL:       %s\n", maskShoutrrrURL(cfg.Notification.ShoutrrURL))
		fmt.Println()

		fmt.Println("📁 Output Configuration:")
		fmt.Printf("   Reports Dir:        %s\n", cfg.Output.ReportsDir)
		fmt.Printf("   LLM Log Dir:        %s\n", cfg.Output.LLMLogDir)
		fmt.Printf("   LLM Logging:        %v\n", cfg.Output.LLMLogEnabled)
		fmt.Printf("   Instructions Dir:   %s\n", cfg.Output.InstructionsDir)
		fmt.Printf("   Report Retention:   %d days\n", cfg.Output.ReportRetentionDays)
		fmt.Println()

		return nil
	},
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(configCmd)
}

// maskAPIKey obscures API keys for secure display in config output.
// Shows first 4 and last 4 characters (e.g., "sk-1***abc2") to allow key identification
// without exposing the full secret.
func maskAPIKey(key string) string {
	if key == "" {
		return "❌ Not set"
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// maskShoutrrrURL masks sensitive parts of a Shoutrrr URL.
func maskShoutrrrURL(url string) string {
	if url == "" {
		return "❌ Not configured"
	}

	parts := strings.SplitN(url, "://", 2)
	if len(parts) != 2 {
		return "✅ Configured (invalid format)"
	}

	service := parts[0]
	return fmt.Sprintf("✅ Configured (%s://***)", service)
}
