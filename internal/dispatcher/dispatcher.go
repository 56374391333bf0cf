// Package dispatcher fans a translation job out across its chunks, one
// Translation Worker invocation per chunk, bounded by a fixed concurrency
// limit. Completion is order-independent: it is driven
// entirely by the job's translatedChunks counter, never by the
// highest chunk index observed.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
	"github.com/lfmt-dev/translate-pipeline/internal/storage"
	"github.com/lfmt-dev/translate-pipeline/internal/worker"
)

// Request starts a translation run for one job.
type Request struct {
	JobID                  string
	UserID                 string
	TargetLanguage         string
	Tone                   job.Tone
	AdditionalInstructions string
	PreserveFormatting     bool
}

// ChunkOutcome is one worker's result, labeled with its chunk index for
// reporting.
type ChunkOutcome struct {
	ChunkIndex int
	Result     worker.Result
}

// Summary is the dispatcher's return value for one translation run.
type Summary struct {
	JobID         string
	TotalChunks   int
	Dispatched    int
	Succeeded     int
	Failed        int
	FinalStatus   job.Status
	ChunkOutcomes []ChunkOutcome
}

// Config bounds dispatch concurrency and per-worker wall-clock time.
type Config struct {
	Concurrency   int
	WorkerTimeout time.Duration
}

// Dispatcher drives the Job State Machine by spawning a bounded pool of
// Translation Workers across a job's un-translated chunks.
type Dispatcher struct {
	jobStore storage.JobStore
	worker   *worker.Worker
	cfg      Config
}

// New builds a Dispatcher. A non-positive Concurrency or WorkerTimeout
// falls back to the worker defaults (5-minute timeout) and a
// single-worker concurrency of 1.
func New(jobStore storage.JobStore, w *worker.Worker, cfg Config) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.WorkerTimeout <= 0 {
		cfg.WorkerTimeout = 5 * time.Minute
	}
	return &Dispatcher{jobStore: jobStore, worker: w, cfg: cfg}
}

// Dispatch runs every un-translated chunk of req.JobID through the worker
// pool and returns once all chunks have either succeeded or failed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Summary, error) {
	j, err := d.jobStore.Get(ctx, req.JobID, req.UserID)
	if err != nil {
		return Summary{}, err
	}
	if !job.DispatchableFrom(j.Status) {
		return Summary{}, &apperrors.StatePreconditionError{
			JobID: req.JobID,
			Got:   string(j.Status),
			Want:  []string{string(job.StatusChunked), string(job.StatusTranslationInProgress)},
		}
	}

	pending := pendingChunkIndexes(j)

	summary := Summary{
		JobID:       req.JobID,
		TotalChunks: j.TotalChunks,
	}
	if len(pending) == 0 {
		summary.FinalStatus = j.Status
		return summary, nil
	}

	outcomes := make([]ChunkOutcome, len(pending))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, chunkIndex := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			workerCtx, cancel := context.WithTimeout(ctx, d.cfg.WorkerTimeout)
			defer cancel()

			result := d.worker.ProcessChunk(workerCtx, worker.Input{
				JobID:                  req.JobID,
				UserID:                 req.UserID,
				ChunkIndex:             idx,
				TargetLanguage:         req.TargetLanguage,
				Tone:                   req.Tone,
				AdditionalInstructions: req.AdditionalInstructions,
				PreserveFormatting:     req.PreserveFormatting,
			})

			outcomes[slot] = ChunkOutcome{ChunkIndex: idx, Result: result}
		}(i, chunkIndex)
	}

	wg.Wait()

	summary.ChunkOutcomes = outcomes
	summary.Dispatched = len(outcomes)
	for _, outcome := range outcomes {
		if outcome.Result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	final, err := d.jobStore.Get(ctx, req.JobID, req.UserID)
	if err != nil {
		return summary, fmt.Errorf("failed to read final job state for %s: %w", req.JobID, err)
	}
	summary.FinalStatus = final.Status

	return summary, nil
}

// pendingChunkIndexes returns the chunk indexes not yet recorded as
// processed, preserving index order so the first dispatch over a fresh
// job runs 0..totalChunks-1 (workers remain free to finish out of order).
func pendingChunkIndexes(j *job.Job) []int {
	pending := make([]int, 0, j.TotalChunks)
	for i := 0; i < j.TotalChunks; i++ {
		if j.ProcessedChunks != nil && j.ProcessedChunks[i] {
			continue
		}
		pending = append(pending, i)
	}
	return pending
}
