package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lfmt-dev/translate-pipeline/internal/chunking"
	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

var (
	chunkUserID string
	chunkFileID string
	chunkFile   string
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <jobId>",
	Short: "Chunk a pending-upload document into translator-sized pieces",
	Long: `Chunk runs the Sliding-Window Document Chunker over a source document
that was previously written to the object store at
uploads/<userId>/<fileId>/<filename>.

It splits the document into primary/context chunks, writes each chunk as a
JSON object under chunks/<userId>/<fileId>/<chunkId>.json, then advances the
job to CHUNKED (or CHUNKING_FAILED on error).

If the job does not already exist, it is created in CHUNKING status as a
convenience for standalone invocation; normally job creation happens at
upload time, outside this command.`,
	Example: `  # Chunk a job whose source document was uploaded as user "alice"
  lfmt chunk job-123 --user alice --file-id doc-1 --file uploads/alice/doc-1/report.txt

  # Chunk a job that was already created by an upstream upload step
  lfmt chunk job-123`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

// nolint:gochecknoinits // Standard Cobra pattern for command registration
func init() {
	rootCmd.AddCommand(chunkCmd)

	chunkCmd.Flags().StringVar(&chunkUserID, "user", "default", "user id that owns the job")
	chunkCmd.Flags().StringVar(&chunkFileID, "file-id", "", "file id of the uploaded source document (required when creating a new job)")
	chunkCmd.Flags().StringVar(&chunkFile, "file", "", "object-store key of the uploaded source document, e.g. uploads/<user>/<fileId>/<filename>")
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg = GetConfig()
	if err := validateConfigOrExit(cfg, "chunk"); err != nil {
		return err
	}

	jobID := args[0]
	ctx := context.Background()

	w, err := buildWiring(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}

	j, err := ensureJobForChunking(ctx, w, jobID)
	if err != nil {
		return err
	}

	fmt.Printf("✂️  Chunking job %s...\n", jobID)

	sourceKey := chunkFile
	if sourceKey == "" {
		sourceKey = fmt.Sprintf("uploads/%s/%s/%s", j.UserID, chunkFileID, jobID)
	}

	body, metadata, err := w.objectStore.Get(ctx, sourceKey)
	if err != nil {
		failErr := w.jobStore.SetChunkingFailed(ctx, jobID, j.UserID, err.Error())
		return combineErrors(fmt.Errorf("failed to read source document at %s: %w", sourceKey, err), failErr)
	}
	if err := validateSourceMetadata(metadata); err != nil {
		failErr := w.jobStore.SetChunkingFailed(ctx, jobID, j.UserID, err.Error())
		return combineErrors(err, failErr)
	}

	chunks, meta, err := chunking.ChunkDocument(string(body), w.tokenizer, chunking.Options{
		PrimaryMax:          cfg.Chunking.PrimaryChunkSize,
		ContextMax:          cfg.Chunking.ContextSize,
		MinChunkSize:        cfg.Chunking.EffectiveMinChunkSize(),
		SentenceTerminators: cfg.Chunking.SentenceTerminators,
	})
	if err != nil {
		failErr := w.jobStore.SetChunkingFailed(ctx, jobID, j.UserID, err.Error())
		return combineErrors(fmt.Errorf("chunking failed: %w", err), failErr)
	}

	chunkKeys := make([]string, len(chunks))
	for i, c := range chunks {
		chunkBody, err := json.Marshal(c)
		if err != nil {
			failErr := w.jobStore.SetChunkingFailed(ctx, jobID, j.UserID, err.Error())
			return combineErrors(fmt.Errorf("failed to marshal chunk %d: %w", i, err), failErr)
		}
		key := fmt.Sprintf("chunks/%s/%s/%s.json", j.UserID, chunkFileID, c.ChunkID)
		if err := w.objectStore.Put(ctx, key, chunkBody, nil); err != nil {
			failErr := w.jobStore.SetChunkingFailed(ctx, jobID, j.UserID, err.Error())
			return combineErrors(fmt.Errorf("failed to write chunk %d: %w", i, err), failErr)
		}
		chunkKeys[i] = key
		fmt.Printf("   📄 wrote chunk %d/%d (%d tokens)\n", i+1, len(chunks), c.TokenCount)
	}

	if err := w.jobStore.SetChunked(ctx, jobID, j.UserID, chunkKeys, meta.OriginalTokenCount, meta.AverageChunkSize, meta.ChunkingProcessingTimeMs); err != nil {
		return fmt.Errorf("failed to record chunking result: %w", err)
	}

	fmt.Printf("✅ Chunked into %d pieces (%d original tokens, avg chunk size %d)\n", meta.TotalChunks, meta.OriginalTokenCount, meta.AverageChunkSize)
	fmt.Printf("   Run 'lfmt translate %s --target-language <code> --tone <tone>' to begin translation\n", jobID)

	return nil
}

// ensureJobForChunking loads the job, creating it in CHUNKING status if it
// does not yet exist — job creation normally happens at upload time, which
// is outside this pipeline's scope, but the CLI needs a way
// to stand a job up on its own for direct invocation.
func ensureJobForChunking(ctx context.Context, w *wiring, jobID string) (*job.Job, error) {
	existing, err := w.jobStore.Get(ctx, jobID, chunkUserID)
	if err == nil {
		return existing, nil
	}
	var notFoundErr *apperrors.NotFoundError
	if !errors.As(err, &notFoundErr) {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	newJob := &job.Job{
		JobID:     jobID,
		UserID:    chunkUserID,
		Status:    job.StatusChunking,
		UpdatedAt: time.Now(),
	}
	if err := w.jobStore.PutNew(ctx, newJob); err != nil {
		return nil, fmt.Errorf("failed to create job %s: %w", jobID, err)
	}
	fmt.Printf("🆕 Created job %s for user %s in CHUNKING status\n", jobID, chunkUserID)
	return newJob, nil
}

// validateSourceMetadata requires userid, jobid, and fileid on the source
// object. Missing metadata is a fatal chunking error.
func validateSourceMetadata(metadata map[string]string) error {
	for _, key := range []string{"userid", "jobid", "fileid"} {
		if metadata[key] == "" {
			return &apperrors.ValidationError{Field: "metadata." + key, Reason: "required source object metadata is missing"}
		}
	}
	return nil
}

// combineErrors prioritizes the primary failure but surfaces a secondary
// best-effort write failure too, so an operator sees both.
func combineErrors(primary, secondary error) error {
	if secondary != nil {
		return fmt.Errorf("%w (additionally, failed to record CHUNKING_FAILED: %v)", primary, secondary)
	}
	return primary
}
