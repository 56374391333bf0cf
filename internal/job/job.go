// Package job carries the Job record and the dispatcher's state machine:
// a job moves from upload through chunking into per-chunk translation and
// terminates in a completed or failed state. Nothing in this package talks
// to storage directly; see internal/storage for the JobStore persistence
// contracts.
package job

import "time"

// Status is one of the job lifecycle states.
type Status string

const (
	StatusPendingUpload          Status = "PENDING_UPLOAD"
	StatusChunking               Status = "CHUNKING"
	StatusChunked                Status = "CHUNKED"
	StatusChunkingFailed         Status = "CHUNKING_FAILED"
	StatusTranslationInProgress  Status = "TRANSLATION_IN_PROGRESS"
	StatusTranslationCompleted   Status = "TRANSLATION_COMPLETED"
	StatusTranslationFailed      Status = "TRANSLATION_FAILED"
)

// Tone is one of the three supported translation tones.
type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneInformal Tone = "informal"
	ToneNeutral  Tone = "neutral"
)

// Job is the durable record tracked in the key-value job store. Field
// names carry both json and dynamodbav tags so marshaling needs no
// translation layer.
type Job struct {
	JobID          string `json:"jobId" dynamodbav:"jobId"`
	UserID         string `json:"userId" dynamodbav:"userId"`
	Status         Status `json:"status" dynamodbav:"status"`
	TargetLanguage string `json:"targetLanguage" dynamodbav:"targetLanguage"`
	Tone           Tone   `json:"tone" dynamodbav:"tone"`

	// Chunking metadata, set once by the Chunker.
	TotalChunks              int      `json:"totalChunks" dynamodbav:"totalChunks"`
	ChunkKeys                []string `json:"chunkKeys" dynamodbav:"chunkKeys"`
	OriginalTokenCount       int      `json:"originalTokenCount" dynamodbav:"originalTokenCount"`
	AverageChunkSize         int      `json:"averageChunkSize" dynamodbav:"averageChunkSize"`
	ChunkingProcessingTimeMs int64    `json:"chunkingProcessingTimeMs" dynamodbav:"chunkingProcessingTimeMs"`

	// Translation progress, advanced by each Translation Worker.
	TranslatedChunks      int        `json:"translatedChunks" dynamodbav:"translatedChunks"`
	TokensUsed            int64      `json:"tokensUsed" dynamodbav:"tokensUsed"`
	EstimatedCost         float64    `json:"estimatedCost" dynamodbav:"estimatedCost"`
	TranslationStartedAt  *time.Time `json:"translationStartedAt,omitempty" dynamodbav:"translationStartedAt,omitempty"`
	TranslationCompletedAt *time.Time `json:"translationCompletedAt,omitempty" dynamodbav:"translationCompletedAt,omitempty"`
	FailedAt              *time.Time `json:"failedAt,omitempty" dynamodbav:"failedAt,omitempty"`
	ErrorMessage           string     `json:"errorMessage,omitempty" dynamodbav:"errorMessage,omitempty"`

	// ProcessedChunks tracks which chunk indexes have already advanced
	// progress, so a worker retry after a successful completion does not
	// double-count tokens or cost.
	ProcessedChunks map[int]bool `json:"processedChunks,omitempty" dynamodbav:"processedChunks,omitempty"`

	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`

	// Version is a write counter kept by the job stores: PutNew sets it to
	// 1, the memory and local stores bump it on every later write, and
	// DynamoDBJobStore leaves it at 1. Callers never set it directly.
	Version int64 `json:"version" dynamodbav:"version"`
}

// transitions enumerates the state machine's legal edges.
var transitions = map[Status][]Status{
	StatusPendingUpload:         {StatusChunking},
	StatusChunking:              {StatusChunked, StatusChunkingFailed},
	StatusChunked:               {StatusTranslationInProgress, StatusTranslationCompleted, StatusTranslationFailed},
	StatusTranslationInProgress: {StatusTranslationInProgress, StatusTranslationCompleted, StatusTranslationFailed},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// of the job state machine. Terminal states (CHUNKING_FAILED,
// TRANSLATION_COMPLETED, TRANSLATION_FAILED) have no outgoing edges.
func CanTransition(from, to Status) bool {
	if from == to {
		// Re-asserting TRANSLATION_IN_PROGRESS on every worker completion is
		// expected and harmless; every other self-edge is a no-op the
		// caller should simply skip.
		return from == StatusTranslationInProgress
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DispatchableFrom reports whether a translation run may begin from this
// job status: only CHUNKED or TRANSLATION_IN_PROGRESS are dispatchable.
func DispatchableFrom(s Status) bool {
	return s == StatusChunked || s == StatusTranslationInProgress
}

// SupportedTargetLanguages is the closed enumeration of target language
// codes accepted by the translate and worker commands.
var SupportedTargetLanguages = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"de": "German",
	"zh": "Chinese (Simplified)",
}

// ValidTone reports whether t is one of the three supported tones.
func ValidTone(t Tone) bool {
	switch t {
	case ToneFormal, ToneInformal, ToneNeutral:
		return true
	default:
		return false
	}
}
