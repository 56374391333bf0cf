// Package storage provides the two persistence adapters this pipeline
// needs: an ObjectStore for source/chunk/translated-chunk bodies and a
// JobStore for the job record, each with a filesystem-backed
// implementation for local development and tests plus an AWS-backed
// implementation (S3 / DynamoDB) for production.
package storage

import (
	"context"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
	"github.com/lfmt-dev/translate-pipeline/internal/job"
)

// ObjectStore is the contract for keyed byte payloads with string
// metadata, used for source text, chunk JSON, and translated-chunk text.
type ObjectStore interface {
	// Put writes body under key, replacing any existing object. Overwrite
	// is explicitly permitted for translated-chunk keys, since a retried
	// worker re-translates and re-writes the same chunk.
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error

	// Get reads the object at key along with its metadata. Returns a
	// *apperrors.NotFoundError if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, map[string]string, error)

	// Head reads only the metadata at key, used by the Chunker to validate
	// the required source metadata (userid/jobid/fileid) without pulling
	// the full body. Returns a *apperrors.NotFoundError if the key does
	// not exist.
	Head(ctx context.Context, key string) (map[string]string, error)
}

// JobStore is the contract for job records keyed by (jobId, userId),
// supporting set-if, numeric add, and set-with-condition operations with
// item-level atomicity.
type JobStore interface {
	// Get loads the job record. Returns a *apperrors.NotFoundError if no
	// job matches (jobID, userID).
	Get(ctx context.Context, jobID, userID string) (*job.Job, error)

	// PutNew creates a job record, failing if one already exists at the
	// same (jobID, userID) (the key-value store's set-if-not-exists
	// primitive).
	PutNew(ctx context.Context, j *job.Job) error

	// SetChunked records the Chunker's output atomically: chunk metadata,
	// chunkKeys, and a status transition from CHUNKING to CHUNKED.
	SetChunked(ctx context.Context, jobID, userID string, chunkKeys []string, originalTokenCount, averageChunkSize int, processingTimeMs int64) error

	// SetChunkingFailed records a fatal chunking error, transitioning the
	// job to CHUNKING_FAILED.
	SetChunkingFailed(ctx context.Context, jobID, userID, reason string) error

	// SetTranslationFailed transitions the job to TRANSLATION_FAILED with
	// the first non-retryable worker error's message. Best-effort: callers
	// treat a failure of this write as non-fatal, since the worker error
	// itself is the one that matters to the caller.
	SetTranslationFailed(ctx context.Context, jobID, userID, reason string) error

	// IncrementProgress is the Translation Worker's step-7 "advance
	// progress" operation: a conditional, at-most-once-per-chunkIndex
	// update that increments translatedChunks/tokensUsed/estimatedCost,
	// flips CHUNKED -> TRANSLATION_IN_PROGRESS on the first call, and
	// flips to TRANSLATION_COMPLETED once translatedChunks reaches
	// totalChunks. alreadyProcessed is true (no mutation performed) when
	// chunkIndex was previously recorded as done, satisfying the
	// idempotent-increment requirement across worker retries.
	IncrementProgress(ctx context.Context, jobID, userID string, chunkIndex int, tokensUsed int64, cost float64) (alreadyProcessed, completed bool, err error)
}

// notFound builds the standard NotFoundError for a job lookup miss.
func notFound(resource, key string) error {
	return &apperrors.NotFoundError{Resource: resource, Key: key}
}
