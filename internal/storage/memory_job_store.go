package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

// MemoryJobStore is a mutex-guarded in-process JobStore: a protected map
// with deep-copy reads so callers can never mutate store-owned state
// through a returned pointer. It is the default for local development and
// the backing store for package tests; it carries no state across process
// restarts.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
	now  func() time.Time
}

// NewMemoryJobStore constructs an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*job.Job),
		now:  time.Now,
	}
}

func key(jobID, userID string) string {
	return jobID + "\x00" + userID
}

func (m *MemoryJobStore) Get(_ context.Context, jobID, userID string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[key(jobID, userID)]
	if !ok {
		return nil, notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
	}
	return deepCopyJob(j), nil
}

func (m *MemoryJobStore) PutNew(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(j.JobID, j.UserID)
	if _, exists := m.jobs[k]; exists {
		return &apperrors.StorageTransientError{Store: "memory", Op: "PutNew", Err: fmt.Errorf("job %s already exists", j.JobID)}
	}
	clone := deepCopyJob(j)
	clone.UpdatedAt = m.now()
	clone.Version = 1
	m.jobs[k] = clone
	return nil
}

func (m *MemoryJobStore) SetChunked(_ context.Context, jobID, userID string, chunkKeys []string, originalTokenCount, averageChunkSize int, processingTimeMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[key(jobID, userID)]
	if !ok {
		return notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
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
	j.UpdatedAt = m.now()
	j.Version++
	return nil
}

func (m *MemoryJobStore) SetChunkingFailed(_ context.Context, jobID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[key(jobID, userID)]
	if !ok {
		return notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
	}
	j.Status = job.StatusChunkingFailed
	j.ErrorMessage = reason
	j.UpdatedAt = m.now()
	j.Version++
	return nil
}

func (m *MemoryJobStore) SetTranslationFailed(_ context.Context, jobID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[key(jobID, userID)]
	if !ok {
		return notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
	}
	// Best-effort: a job already terminal keeps its original error rather
	// than being overwritten by a second failure.
	if j.Status == job.StatusTranslationFailed || j.Status == job.StatusTranslationCompleted {
		return nil
	}
	now := m.now()
	j.Status = job.StatusTranslationFailed
	j.ErrorMessage = reason
	j.FailedAt = &now
	j.UpdatedAt = now
	j.Version++
	return nil
}

func (m *MemoryJobStore) IncrementProgress(_ context.Context, jobID, userID string, chunkIndex int, tokensUsed int64, cost float64) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[key(jobID, userID)]
	if !ok {
		return false, false, notFound("job", fmt.Sprintf("%s/%s", userID, jobID))
	}

	if j.ProcessedChunks == nil {
		j.ProcessedChunks = make(map[int]bool)
	}
	if j.ProcessedChunks[chunkIndex] {
		return true, j.Status == job.StatusTranslationCompleted, nil
	}

	now := m.now()
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

	return false, completed, nil
}

func deepCopyJob(j *job.Job) *job.Job {
	clone := *j
	clone.ChunkKeys = append([]string(nil), j.ChunkKeys...)
	if j.ProcessedChunks != nil {
		clone.ProcessedChunks = make(map[int]bool, len(j.ProcessedChunks))
		for k, v := range j.ProcessedChunks {
			clone.ProcessedChunks[k] = v
		}
	}
	return &clone
}
