package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lfmt-dev/translate-pipeline/internal/config"
	"github.com/lfmt-dev/translate-pipeline/internal/dispatcher"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/notification"
	"github.com/lfmt-dev/translate-pipeline/internal/reporting"
)

var (
	translateUserID                 string
	translateTargetLanguage         string
	translateTone                   string
	translatePreserveFormatting     bool
	translateAdditionalInstructions string
)

var translateCmd = &cobra.Command{
	Use:   "translate <jobId>",
	Short: "Translate every pending chunk of a chunked job",
	Long: `Translate runs the Dispatcher over a job's chunks: it fans one
Translation Worker invocation out per un-translated chunk, bounded by
worker.concurrency, and waits for every chunk to either succeed or fail.

A job must be in CHUNKED or TRANSLATION_IN_PROGRESS state to be
dispatchable; re-running translate on a job that previously failed some
chunks retries only the chunks that never completed.

On reaching a terminal state (TRANSLATION_COMPLETED or TRANSLATION_FAILED),
a job report is written under output.reports_dir and, if configured, a
completion notification is sent.`,
	Example: `  # Translate a chunked job into Spanish with a neutral tone
  lfmt translate job-123 --target-language es --tone neutral

  # Preserve the source document's exact line breaks and markup
  lfmt translate job-123 --target-language fr --tone formal --preserve-formatting`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVar(&translateUserID, "user", "default", "user id that owns the job")
	translateCmd.Flags().StringVar(&translateTargetLanguage, "target-language", "", "target language code (es, fr, it, de, zh)")
	translateCmd.Flags().StringVar(&translateTone, "tone", "neutral", "translation tone (formal, informal, neutral)")
	translateCmd.Flags().BoolVar(&translatePreserveFormatting, "preserve-formatting", false, "preserve the source document's exact line breaks and markup")
	translateCmd.Flags().StringVar(&translateAdditionalInstructions, "additional-instructions", "", "extra instructions appended to every chunk's translation prompt")

	_ = translateCmd.MarkFlagRequired("target-language")
}

func runTranslate(_ *cobra.Command, args []string) error {
	cfg = GetConfig()
	if err := validateConfigOrExit(cfg, "translate"); err != nil {
		return err
	}

	jobID := args[0]
	ctx := context.Background()

	w, err := buildWiring(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}

	instructions := translateAdditionalInstructions
	if fileInstructions, err := loadAdditionalInstructions(cfg, jobID); err != nil {
		return err
	} else if fileInstructions != "" {
		instructions = fileInstructions
	}

	fmt.Printf("🌐 Translating job %s into %s (tone: %s)...\n", jobID, translateTargetLanguage, translateTone)

	d := dispatcher.New(w.jobStore, w.buildWorker(), dispatcher.Config{
		Concurrency:   cfg.Worker.Concurrency,
		WorkerTimeout: cfg.Worker.Timeout,
	})

	summary, err := d.Dispatch(ctx, dispatcher.Request{
		JobID:                  jobID,
		UserID:                 translateUserID,
		TargetLanguage:         translateTargetLanguage,
		Tone:                   job.Tone(translateTone),
		AdditionalInstructions: instructions,
		PreserveFormatting:     translatePreserveFormatting,
	})
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}

	fmt.Printf("   Dispatched %d chunk(s): %d succeeded, %d failed\n", summary.Dispatched, summary.Succeeded, summary.Failed)
	fmt.Printf("   Final status: %s\n", summary.FinalStatus)

	if summary.FinalStatus != job.StatusTranslationCompleted && summary.FinalStatus != job.StatusTranslationFailed {
		fmt.Printf("   Job not yet complete; re-run 'lfmt translate %s --target-language %s --tone %s' to retry remaining chunks\n", jobID, translateTargetLanguage, translateTone)
		return nil
	}

	return finalizeJob(ctx, w, cfg, jobID, translateUserID)
}

// loadAdditionalInstructions reads an optional per-job instructions file
// from {instructions_dir}/{jobId}.md, letting a caller attach translation
// notes (terminology, tone overrides) without changing the CLI invocation.
// A missing file is not an error.
func loadAdditionalInstructions(cfg *config.Config, jobID string) (string, error) {
	path := filepath.Join(cfg.Output.InstructionsDir, jobID+".md")
	content, err := os.ReadFile(path) // #nosec G304 -- jobID is an application-controlled identifier, not direct user input
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read additional instructions file %s: %w", path, err)
	}
	return string(content), nil
}

// finalizeJob writes the job report and sends a completion notification
// once a translation run has reached a terminal state.
func finalizeJob(ctx context.Context, w *wiring, cfg *config.Config, jobID, userID string) error {
	j, err := w.jobStore.Get(ctx, jobID, userID)
	if err != nil {
		return fmt.Errorf("failed to load final job state: %w", err)
	}

	report := reporting.GenerateJobReport(j)
	reportPath, err := reporting.SaveReport(j, report, cfg)
	if err != nil {
		fmt.Printf("⚠️  Failed to save job report: %v\n", err)
	} else {
		fmt.Printf("📄 Report saved to %s\n", reportPath)
	}

	notifier, err := notification.NewNotifier(cfg)
	if err != nil {
		fmt.Printf("⚠️  Notification not sent: %v\n", err)
		return nil
	}
	if notifier.IsEnabled() {
		if err := notifier.SendJobCompletion(j); err != nil {
			fmt.Printf("⚠️  Failed to send notification: %v\n", err)
		} else {
			fmt.Println("🔔 Completion notification sent")
		}
	}

	return nil
}
