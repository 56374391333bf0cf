package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/worker"
)

var (
	workerUserID                 string
	workerTargetLanguage         string
	workerTone                   string
	workerPreserveFormatting     bool
	workerAdditionalInstructions string
)

var workerCmd = &cobra.Command{
	Use:   "worker <jobId> <chunkIndex>",
	Short: "Translate a single chunk of a job",
	Long: `Worker runs the Translation Worker's eight-step contract
 against exactly one (job, chunk) pair: load the job, load
the chunk, estimate tokens, acquire rate-limit quota, translate, persist
the translated text, and advance the job's progress counter.

This is the same unit of work the Dispatcher fans out across a job's
chunks; it is exposed standalone for retrying or debugging a single
chunk without re-running the whole job.`,
	Example: `  # Retry chunk 3 of job-123 by hand
  lfmt worker job-123 3 --target-language es --tone neutral`,
	Args: cobra.ExactArgs(2),
	RunE: runWorker,
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVar(&workerUserID, "user", "default", "user id that owns the job")
	workerCmd.Flags().StringVar(&workerTargetLanguage, "target-language", "", "target language code (es, fr, it, de, zh)")
	workerCmd.Flags().StringVar(&workerTone, "tone", "neutral", "translation tone (formal, informal, neutral)")
	workerCmd.Flags().BoolVar(&workerPreserveFormatting, "preserve-formatting", false, "preserve the source document's exact line breaks and markup")
	workerCmd.Flags().StringVar(&workerAdditionalInstructions, "additional-instructions", "", "extra instructions appended to the translation prompt")

	_ = workerCmd.MarkFlagRequired("target-language")
}

func runWorker(_ *cobra.Command, args []string) error {
	cfg = GetConfig()
	if err := validateConfigOrExit(cfg, "worker"); err != nil {
		return err
	}

	jobID := args[0]
	chunkIndex, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid chunk index %q: %w", args[1], err)
	}

	ctx := context.Background()

	w, err := buildWiring(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}

	instructions := workerAdditionalInstructions
	if fileInstructions, err := loadAdditionalInstructions(cfg, jobID); err != nil {
		return err
	} else if fileInstructions != "" {
		instructions = fileInstructions
	}

	fmt.Printf("⚙️  Processing chunk %d of job %s...\n", chunkIndex, jobID)

	result := w.buildWorker().ProcessChunk(ctx, worker.Input{
		JobID:                  jobID,
		UserID:                 workerUserID,
		ChunkIndex:             chunkIndex,
		TargetLanguage:         workerTargetLanguage,
		Tone:                   job.Tone(workerTone),
		AdditionalInstructions: instructions,
		PreserveFormatting:     workerPreserveFormatting,
	})

	if !result.Success {
		return fmt.Errorf("chunk %d failed (retryable=%v): %w", chunkIndex, result.Retryable, result.Err)
	}

	fmt.Printf("✅ Chunk %d translated in %dms, wrote %s\n", chunkIndex, result.ProcessingTimeMs, result.TranslatedKey)
	if result.TokensUsed != nil {
		fmt.Printf("   Tokens: %d in / %d out / %d total, estimated cost $%.4f\n",
			result.TokensUsed.Input, result.TokensUsed.Output, result.TokensUsed.Total, result.EstimatedCost)
	}

	return nil
}
