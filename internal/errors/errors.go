// Package apperrors provides the domain error taxonomy for the translation
// pipeline. Each kind carries contextual fields to aid debugging and a
// Retryable() verdict so callers never have to string-match error messages.
package apperrors

import "fmt"

// ConfigurationError represents configuration-related errors.
// It includes the configuration file path and specific key that caused the error.
type ConfigurationError struct {
	ConfigPath string // Path to the configuration file
	Key        string // Configuration key that caused the error
	Err        error  // Underlying error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error in %s (key: %s): %v", e.ConfigPath, e.Key, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.ConfigPath, e.Err)
}

// Unwrap returns the underlying error for error wrapping chains.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *ConfigurationError) Retryable() bool { return false }

// ValidationError reports an input that fails a precondition: a bad
// language code, a negative chunk index, a missing job id. Never retryable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *ValidationError) Retryable() bool { return false }

// NotFoundError reports a missing job, chunk key, or source object.
// Non-retryable for the specific reference unless Transient is set, which
// signals the absence was observed during a flaky upstream read.
type NotFoundError struct {
	Resource  string
	Key       string
	Transient bool
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s %q", e.Resource, e.Key)
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *NotFoundError) Retryable() bool { return e.Transient }

// StatePreconditionError reports an operation requested against a job in an
// incompatible state, e.g. translating a job that was never chunked.
type StatePreconditionError struct {
	JobID string
	Got   string
	Want  []string
}

func (e *StatePreconditionError) Error() string {
	return fmt.Sprintf("job %s is in state %s, expected one of %v", e.JobID, e.Got, e.Want)
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *StatePreconditionError) Retryable() bool { return false }

// QuotaExhaustedError reports a rate-limiter denial. The caller should wait
// at least RetryAfterMs before acquiring again.
type QuotaExhaustedError struct {
	Bucket       string
	RetryAfterMs int64
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted on %s bucket, retry after %dms", e.Bucket, e.RetryAfterMs)
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *QuotaExhaustedError) Retryable() bool { return true }

// UpstreamTransientError reports an LLM 429/5xx response or a network blip,
// retryable within the translation client's bounded retry budget and, beyond
// that, retryable by the dispatcher at the job level.
type UpstreamTransientError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamTransientError) Error() string {
	return fmt.Sprintf("upstream transient error at %s (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *UpstreamTransientError) Unwrap() error { return e.Err }

// Retryable reports whether a caller may retry the operation unchanged.
func (e *UpstreamTransientError) Retryable() bool { return true }

// UpstreamPermanentError reports an LLM 400/401/403 response or an
// unrecognized error class. Never retryable.
type UpstreamPermanentError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamPermanentError) Error() string {
	return fmt.Sprintf("upstream permanent error at %s (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *UpstreamPermanentError) Unwrap() error { return e.Err }

// Retryable reports whether a caller may retry the operation unchanged.
func (e *UpstreamPermanentError) Retryable() bool { return false }

// StorageTransientError reports a conditional-update conflict or throttling
// from the object/key-value store. Retryable in-place with jitter.
type StorageTransientError struct {
	Store string
	Op    string
	Err   error
}

func (e *StorageTransientError) Error() string {
	return fmt.Sprintf("storage transient error in %s during %s: %v", e.Store, e.Op, e.Err)
}

func (e *StorageTransientError) Unwrap() error { return e.Err }

// Retryable reports whether a caller may retry the operation unchanged.
func (e *StorageTransientError) Retryable() bool { return true }

// FatalInvariantError reports a violated internal invariant, e.g. the
// chunker emitting an oversized chunk. Aborts the owning job loudly.
type FatalInvariantError struct {
	Invariant string
	Detail    string
}

func (e *FatalInvariantError) Error() string {
	return fmt.Sprintf("fatal invariant violated (%s): %s", e.Invariant, e.Detail)
}

// Retryable reports whether a caller may retry the operation unchanged.
func (e *FatalInvariantError) Retryable() bool { return false }

// retryableError is implemented by every error kind above.
type retryableError interface {
	Retryable() bool
}

// Retryable walks err for a known taxonomy kind and returns its retry
// verdict. An error outside the taxonomy (e.g. a raw stdlib error) is
// treated as non-retryable: the taxonomy exists precisely so callers never
// have to guess.
func Retryable(err error) bool {
	var re retryableError
	for {
		if re2, ok := err.(retryableError); ok {
			re = re2
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
		if err == nil {
			break
		}
	}
	if re == nil {
		return false
	}
	return re.Retryable()
}
