package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/lfmt-dev/translate-pipeline/internal/templates"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize lfmt configuration and directory structure",
	Long: `Init creates the necessary configuration files and directories for lfmt.

This command will create:
  - config.yaml (sample configuration file)
  - .env (environment variable template)
  - reports/ (directory for job summary reports)
  - logs/llm/ (directory for per-call LLM audit logs)
  - data/objects/ (local object store for chunks and translations)
  - data/jobs/ (local key-value store for job state)
  - config/instructions/ (per-job additional translation instructions)

Run this once when setting up lfmt for the first time.`,
	Example: `  # Initialize in current directory
  lfmt init

  # Force overwrite existing files
  lfmt init --force`,
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Println("🔧 Initializing lfmt...")

		dirs := []string{
			"reports",
			filepath.Join("logs", "llm"),
			filepath.Join("data", "objects"),
			filepath.Join("data", "jobs"),
			filepath.Join("config", "instructions"),
		}

		for _, dir := range dirs {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
			fmt.Printf("✅ Created directory: %s\n", dir)
		}

		files := map[string][]byte{
			"config.yaml": templates.ConfigYAML,
			".env":        templates.EnvFile,
		}

		for filename, content := range files {
			if _, err := os.Stat(filename); err == nil && !force {
				fmt.Printf("⚠️  Skipping %s (already exists, use --force to overwrite)\n", filename)
				continue
			}

			if err := os.WriteFile(filename, content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", filename, err)
			}

			fmt.Printf("✅ Created %s\n", filename)
		}

		fmt.Println("\n🎉 Initialization complete!")
		fmt.Println("\n📝 Next steps:")
		fmt.Println("   1. Edit config.yaml to configure your translation model API")
		fmt.Println("   2. Edit .env to add your API key and other secrets")
		fmt.Println("   3. Run 'lfmt chunk <jobId>' to chunk a pending-upload document")
		fmt.Println("   4. Run 'lfmt translate <jobId> --target-language es --tone neutral' to translate it")

		return nil
	},
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration files")
}
