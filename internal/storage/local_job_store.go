package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

// LocalJobStore is a filesystem-backed JobStore for local development and
// single-operator deployments where a standalone CLI invocation must see
// job state written by a previous, separate invocation: "chunk" and
// "translate" are independent processes sharing state through this store.
// It mirrors LocalObjectStore's atomic-write-via-rename discipline and
// MemoryJobStore's transition/idempotency rules, trading the in-memory
// store's process lifetime for a file on disk.
type LocalJobStore struct {
	baseDir string
	mu      sync.Mutex
	now     func() time.Time
}

// NewLocalJobStore roots all job records under baseDir, creating it if
// absent.
func NewLocalJobStore(baseDir string) (*LocalJobStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create job store directory %s: %w", baseDir, err)
	}
	return &LocalJobStore{baseDir: baseDir, now: time.Now}, nil
}

func (s *LocalJobStore) path(jobID, userID string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(userID), filepath.FromSlash(jobID)+".json")
}

func (s *LocalJobStore) read(jobID, userID string) (*job.Job, error) {
	body, err := os.ReadFile(s.path(jobID, userID)) // #nosec G304 -- path is derived from application-controlled job/user IDs
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
		}
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	var j job.Job
	if err := json.Unmarshal(body, &j); err != nil {
		return nil, fmt.Errorf("failed to parse job record %s: %w", jobID, err)
	}
	return &j, nil
}

func (s *LocalJobStore) write(j *job.Job) error {
	target := s.path(j.JobID, j.UserID)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create job directory for %s: %w", j.JobID, err)
	}
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job record %s: %w", j.JobID, err)
	}
	if err := atomicWrite(target, body); err != nil {
		return fmt.Errorf("failed to write job record %s: %w", j.JobID, err)
	}
	return nil
}

func (s *LocalJobStore) Get(_ context.Context, jobID, userID string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(jobID, userID)
}

func (s *LocalJobStore) PutNew(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(j.JobID, j.UserID)); err == nil {
		return &apperrors.StorageTransientError{Store: "local", Op: "PutNew", Err: fmt.Errorf("job %s already exists", j.JobID)}
	}

	clone := *j
	clone.ChunkKeys = append([]string(nil), j.ChunkKeys...)
	clone.UpdatedAt = s.now()
	clone.Version = 1
	return s.write(&clone)
}

func (s *LocalJobStore) SetChunked(_ context.Context, jobID, userID string, chunkKeys []string, originalTokenCount, averageChunkSize int, processingTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.read(jobID, userID)
	if err != nil {
		return err
	}
	if !job.CanTransition(j.Status, job.StatusChunked) {
		return &apperrors.StatePreconditionError{JobID: jobID, Got: string(j.Status), Want: []string{string(job.StatusChunking)}}
	}

	j.Status = job.StatusChunked
	j.ChunkKeys = append([]string(nil), chunkKeys...)
	j.TotalChunks = len(chunkKeys)
	j.OriginalTokenCount = originalTokenCount
	j.AverageChunkSize = averageChunkSize
	j.ChunkingProcessingTimeMs = processingTimeMs
	j.UpdatedAt = s.now()
	j.Version++
	return s.write(j)
}

func (s *LocalJobStore) SetChunkingFailed(_ context.Context, jobID, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.read(jobID, userID)
	if err != nil {
		return err
	}
	j.Status = job.StatusChunkingFailed
	j.ErrorMessage = reason
	j.UpdatedAt = s.now()
	j.Version++
	return s.write(j)
}

func (s *LocalJobStore) SetTranslationFailed(_ context.Context, jobID, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.read(jobID, userID)
	if err != nil {
		return err
	}
	// Best-effort: a job already terminal keeps its original error rather
	// than being overwritten by a second failure.
	if j.Status == job.StatusTranslationFailed || j.Status == job.StatusTranslationCompleted {
		return nil
	}
	now := s.now()
	j.Status = job.StatusTranslationFailed
	j.ErrorMessage = reason
	j.FailedAt = &now
	j.UpdatedAt = now
	j.Version++
	return s.write(j)
}

func (s *LocalJobStore) IncrementProgress(_ context.Context, jobID, userID string, chunkIndex int, tokensUsed int64, cost float64) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.read(jobID, userID)
	if err != nil {
		return false, false, err
	}

	if j.ProcessedChunks == nil {
		j.ProcessedChunks = make(map[int]bool)
	}
	if j.ProcessedChunks[chunkIndex] {
		return true, j.Status == job.StatusTranslationCompleted, nil
	}

	now := s.now()
	j.ProcessedChunks[chunkIndex] = true
	j.TranslatedChunks++
	j.TokensUsed += tokensUsed
	j.EstimatedCost += cost
	j.UpdatedAt = now
	j.Version++

	if j.Status == job.StatusChunked {
		j.Status = job.StatusTranslationInProgress
		j.TranslationStartedAt = &now
	}

	completed := j.TranslatedChunks >= j.TotalChunks
	if completed && j.Status != job.StatusTranslationCompleted {
		j.Status = job.StatusTranslationCompleted
		j.TranslationCompletedAt = &now
	}

	if err := s.write(j); err != nil {
		return false, false, err
	}
	return false, completed, nil
}
