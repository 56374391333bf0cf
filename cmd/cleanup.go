package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

const (
	checkmark = "✓"
)

var (
	cleanupDryRun bool
	cleanupForce  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired report and LLM log directories",
	Long: `Identify and remove per-job report and LLM-log directories whose
newest file predates output.report_retention_days.

The cleanup command scans output.reports_dir and, if LLM logging is
enabled, output.llm_log_dir for job subdirectories that have aged past
the configured retention window. It can list expired directories or
remove them with confirmation.

Note: This command requires lfmt to be initialized. Run 'lfmt init' first
if you encounter configuration errors.`,
	Example: `  # List expired job directories
  lfmt cleanup list

  # Preview what would be deleted (dry-run)
  lfmt cleanup execute --dry-run

  # Delete with confirmation prompt
  lfmt cleanup execute

  # Delete without confirmation
  lfmt cleanup execute --force`,
}

var cleanupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expired job report/log directories",
	Long: `Display job directories under output.reports_dir and output.llm_log_dir
whose newest file is older than the configured retention window.`,
	Example: `  # List expired directories
  lfmt cleanup list`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		if err := validateConfigOrExit(cfg, "cleanup"); err != nil {
			return err
		}

		expired, err := findExpiredDirs(cfg, time.Now())
		if err != nil {
			return fmt.Errorf("failed to find expired directories: %w", err)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "🧹 Expired Job Directories:")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")

		if len(expired) == 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s No expired directories found\n", checkmark)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  All storage is clean!")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "Job ID\tKind\tNewest File")
		_, _ = fmt.Fprintln(w, "------\t----\t-----------")
		for _, e := range expired {
			newest := "never written"
			if !e.NewestFile.IsZero() {
				newest = e.NewestFile.Format("2006-01-02 15:04:05")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.JobID, e.Kind, newest)
		}
		_ = w.Flush() // Flush buffered output; error not actionable in CLI display context

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Found %d expired director(y/ies)\n", len(expired))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'lfmt cleanup execute' to remove this data")

		return nil
	},
}

var cleanupExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Remove expired job report/log directories",
	Long: `Remove job directories whose newest file is older than the
configured retention window.

By default, displays what will be deleted and prompts for confirmation.
Use --dry-run to preview without deleting, or --force to skip confirmation.`,
	Example: `  # Preview what would be deleted
  lfmt cleanup execute --dry-run

  # Delete with confirmation prompt
  lfmt cleanup execute

  # Delete without confirmation
  lfmt cleanup execute --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		if err := validateConfigOrExit(cfg, "cleanup"); err != nil {
			return err
		}

		expired, err := findExpiredDirs(cfg, time.Now())
		if err != nil {
			return fmt.Errorf("failed to find expired directories: %w", err)
		}

		if len(expired) == 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s No expired directories found\n", checkmark)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  All storage is clean!")
			return nil
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "⚠️  Found %d expired director(y/ies):\n", len(expired))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")

		for _, e := range expired {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  • %s (%s)\n", e.JobID, e.Kind)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", e.Path)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")

		if cleanupDryRun {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "🔍 DRY RUN - No changes made")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "   Run without --dry-run to perform the cleanup")
			return nil
		}

		if !cleanupForce {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), "⚠️  Proceed with cleanup? (y/N): ")
			var response string
			if _, scanErr := fmt.Fscanln(cmd.InOrStdin(), &response); scanErr != nil {
				response = "n"
			}
			response = strings.ToLower(strings.TrimSpace(response))

			if response != "y" && response != "yes" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "❌ Cleanup canceled")
				return nil
			}
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "🧹 Cleaning up...")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")

		successCount := 0
		failureCount := 0
		var errMsgs []string

		for _, e := range expired {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Removing %s (%s)...", e.JobID, e.Kind)

			if err := deleteExpiredDir(e.Path); err != nil {
				errMsgs = append(errMsgs, fmt.Sprintf("%s (%s): %v", e.JobID, e.Kind, err))
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), " ✗")
				failureCount++
				continue
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), " %s\n", checkmark)
			successCount++
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✅ Cleanup complete")
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "   Removed: %d director(y/ies)\n", successCount)
		if failureCount > 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "   Failed: %d director(y/ies)\n", failureCount)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "⚠️  Errors encountered:")
			for _, errMsg := range errMsgs {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "   - %s\n", errMsg)
			}
		}

		return nil
	},
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.AddCommand(cleanupListCmd)
	cleanupCmd.AddCommand(cleanupExecuteCmd)

	cleanupCmd.PersistentFlags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be deleted without actually deleting")
	cleanupCmd.PersistentFlags().BoolVar(&cleanupForce, "force", false, "skip confirmation prompt")
}
