package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusUserID string

var statusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Show a job's state and the rate limiter's current usage",
	Long: `Status prints a job's record (state, chunk/translation progress,
tokens, and cost) alongside the Distributed Rate Limiter's current
per-minute and per-day usage against the configured quotas.`,
	Example: `  # Check on a job
  lfmt status job-123`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusUserID, "user", "default", "user id that owns the job")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg = GetConfig()
	if err := validateConfigOrExit(cfg, "status"); err != nil {
		return err
	}

	jobID := args[0]
	ctx := context.Background()

	w, err := buildWiring(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}

	j, err := w.jobStore.Get(ctx, jobID, statusUserID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "📋 Job %s\n\n", j.JobID)
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Field\tValue")
	fmt.Fprintln(tw, "-----\t-----")
	fmt.Fprintf(tw, "Status\t%s\n", j.Status)
	fmt.Fprintf(tw, "Target Language\t%s\n", j.TargetLanguage)
	fmt.Fprintf(tw, "Tone\t%s\n", j.Tone)
	fmt.Fprintf(tw, "Chunks\t%d / %d\n", j.TranslatedChunks, j.TotalChunks)
	fmt.Fprintf(tw, "Tokens Used\t%d\n", j.TokensUsed)
	fmt.Fprintf(tw, "Estimated Cost\t$%.4f\n", j.EstimatedCost)
	if j.ErrorMessage != "" {
		fmt.Fprintf(tw, "Error\t%s\n", j.ErrorMessage)
	}
	_ = tw.Flush()

	usage, err := w.limiter.Usage(ctx)
	if err != nil {
		fmt.Fprintf(out, "\n⚠️  Failed to read rate limiter usage: %v\n", err)
		return nil
	}

	fmt.Fprintln(out, "\n🚦 Rate Limiter Usage")
	utw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(utw, "Bucket\tUsed\tLimit")
	fmt.Fprintln(utw, "------\t----\t-----")
	fmt.Fprintf(utw, "Requests/Minute\t%d\t%d\n", usage.RPMUsed, usage.RPMLimit)
	fmt.Fprintf(utw, "Tokens/Minute\t%d\t%d\n", usage.TPMUsed, usage.TPMLimit)
	fmt.Fprintf(utw, "Requests/Day\t%d\t%d\n", usage.RPDUsed, usage.RPDLimit)
	_ = utw.Flush()

	return nil
}
