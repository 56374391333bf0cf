package ratelimit

import (
	"context"
	"math/rand"
	"time"

	apperrors "github.com/lfmt-dev/translate-pipeline/internal/errors"
)

// Config carries the Limiter's static quota parameters.
type Config struct {
	APIID              string
	RequestsPerMinute  int
	TokensPerMinute    int
	RequestsPerDay     int
	DailyResetTimezone string

	// MaxCASAttempts bounds the compare-and-swap retry loop on storage
	// conflicts to a fixed number of attempts rather than an unbounded spin.
	MaxCASAttempts int

	// InitialCASRetryDelay is the base of the backoff-with-jitter delay
	// between CAS retries. Zero disables the delay (tests run with no
	// contention and want deterministic single-pass behavior).
	InitialCASRetryDelay time.Duration

	Now func() time.Time

	// sleep is overridable in tests to avoid real waits.
	sleep func(time.Duration)
}

// Limiter is the distributed rate limiter, backed by a Store shared
// across worker processes.
type Limiter struct {
	store Store
	cfg   Config
	loc   *time.Location
}

// New constructs a Limiter. A bad timezone name is a configuration error,
// not a runtime surprise, so it is caught here rather than at first use.
func New(store Store, cfg Config) (*Limiter, error) {
	if cfg.MaxCASAttempts <= 0 {
		cfg.MaxCASAttempts = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.sleep == nil {
		cfg.sleep = time.Sleep
	}
	loc, err := time.LoadLocation(cfg.DailyResetTimezone)
	if err != nil {
		return nil, &apperrors.ConfigurationError{Key: "daily_reset_timezone", Err: err}
	}
	return &Limiter{store: store, cfg: cfg, loc: loc}, nil
}

// AcquireResult is the outcome of Acquire.
type AcquireResult struct {
	Granted      bool
	RetryAfterMs int64
	Usage        Usage
}

// Acquire reserves one request slot and estimatedTokens of TPM budget,
// atomically across all three buckets A denial never
// mutates any bucket; the caller (the Translation Worker) treats a denial
// as a retryable QuotaExhaustedError carrying RetryAfterMs.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) (AcquireResult, error) {
	var lastErr error
	for attempt := 0; attempt < l.cfg.MaxCASAttempts; attempt++ {
		rpm, err := l.store.Load(ctx, l.cfg.APIID, BucketRPM)
		if err != nil {
			return AcquireResult{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.rpm", Err: err}
		}
		tpm, err := l.store.Load(ctx, l.cfg.APIID, BucketTPM)
		if err != nil {
			return AcquireResult{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.tpm", Err: err}
		}
		rpd, err := l.store.Load(ctx, l.cfg.APIID, BucketRPD)
		if err != nil {
			return AcquireResult{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.rpd", Err: err}
		}

		now := l.cfg.Now()
		nextRPM := *rpm
		nextTPM := *tpm
		nextRPD := *rpd
		l.seedAndRefill(&nextRPM, &nextTPM, &nextRPD, now)

		result, ok := l.evaluate(&nextRPM, &nextTPM, &nextRPD, estimatedTokens, now)
		if !ok {
			return result, nil
		}

		okRPM, err := l.store.CompareAndSwap(ctx, l.cfg.APIID, rpm, &nextRPM)
		if err != nil {
			return AcquireResult{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "CompareAndSwap.rpm", Err: err}
		}
		if !okRPM {
			lastErr = &apperrors.StorageTransientError{Store: "ratelimit", Op: "CompareAndSwap.rpm", Err: errConflict}
			l.backoffBeforeRetry(attempt)
			continue
		}
		okTPM, err := l.store.CompareAndSwap(ctx, l.cfg.APIID, tpm, &nextTPM)
		if err != nil || !okTPM {
			l.rollback(ctx, &nextRPM, rpm)
			lastErr = &apperrors.StorageTransientError{Store: "ratelimit", Op: "CompareAndSwap.tpm", Err: errConflict}
			l.backoffBeforeRetry(attempt)
			continue
		}
		okRPD, err := l.store.CompareAndSwap(ctx, l.cfg.APIID, rpd, &nextRPD)
		if err != nil || !okRPD {
			l.rollback(ctx, &nextTPM, tpm)
			l.rollback(ctx, &nextRPM, rpm)
			lastErr = &apperrors.StorageTransientError{Store: "ratelimit", Op: "CompareAndSwap.rpd", Err: errConflict}
			l.backoffBeforeRetry(attempt)
			continue
		}

		return result, nil
	}
	if lastErr == nil {
		lastErr = &apperrors.StorageTransientError{Store: "ratelimit", Op: "Acquire", Err: errConflict}
	}
	return AcquireResult{}, lastErr
}

// rollback best-effort reverts a bucket write this Acquire attempt already
// committed, after a later bucket's CAS lost the race. Without it, a
// losing attempt leaves the earlier bucket's decrement in place with no
// completed grant: the next attempt's Load would simply build on top of
// the already-decremented value instead of the pre-acquire one. A failed
// rollback (itself outraced) is left for the next Acquire attempt to
// reconcile against the current stored value.
func (l *Limiter) rollback(ctx context.Context, committed, original *State) {
	written := *committed
	written.Version = original.Version + 1
	_, _ = l.store.CompareAndSwap(ctx, l.cfg.APIID, &written, original)
}

func (l *Limiter) backoffBeforeRetry(attempt int) {
	if l.cfg.InitialCASRetryDelay <= 0 {
		return
	}
	l.cfg.sleep(jitteredDelay(l.cfg.InitialCASRetryDelay, attempt))
}

// seedAndRefill fills in defaults for never-before-written bucket records
// and applies the continuous-refill / calendar-reset math.
func (l *Limiter) seedAndRefill(rpm, tpm, rpd *State, now time.Time) {
	if rpm.Capacity == 0 {
		rpm.Capacity = float64(l.cfg.RequestsPerMinute)
		rpm.Available = rpm.Capacity
	}
	if tpm.Capacity == 0 {
		tpm.Capacity = float64(l.cfg.TokensPerMinute)
		tpm.Available = tpm.Capacity
	}
	refill(rpm, now)
	refill(tpm, now)
	resetIfDayBoundaryCrossed(rpd, now, l.loc)
}

// evaluate decides grant/deny and computes the post-acquire bucket state
// in place. ok is true when the acquire was granted (the caller should
// persist rpm/tpm/rpd); ok is false on denial, and result carries the
// shortest required wait.
func (l *Limiter) evaluate(rpm, tpm, rpd *State, estimatedTokens int, now time.Time) (AcquireResult, bool) {
	rpmOK := rpm.Available-1 >= 0
	tpmOK := tpm.Available-float64(estimatedTokens) >= 0
	rpdOK := l.cfg.RequestsPerDay <= 0 || rpd.CountForDay < l.cfg.RequestsPerDay

	if rpmOK && tpmOK && rpdOK {
		rpm.Available -= 1
		tpm.Available -= float64(estimatedTokens)
		rpd.CountForDay++
		return AcquireResult{Granted: true, Usage: l.usageFrom(rpm, tpm, rpd)}, true
	}

	var retryAfterMs int64
	switch {
	case !rpdOK:
		retryAfterMs = rpd.DayBoundaryAt.Sub(now).Milliseconds()
	case !rpmOK:
		retryAfterMs = waitForTokens(rpm, 1, now)
	case !tpmOK:
		retryAfterMs = waitForTokens(tpm, float64(estimatedTokens), now)
	}
	if retryAfterMs < 0 {
		retryAfterMs = 0
	}

	return AcquireResult{Granted: false, RetryAfterMs: retryAfterMs, Usage: l.usageFrom(rpm, tpm, rpd)}, false
}

// waitForTokens returns how long, in milliseconds, until the bucket's
// continuous refill accumulates enough Available to satisfy need.
func waitForTokens(s *State, need float64, _ time.Time) int64 {
	deficit := need - s.Available
	if deficit <= 0 {
		return 0
	}
	perSecond := s.Capacity / 60.0
	if perSecond <= 0 {
		return 60_000
	}
	return int64((deficit / perSecond) * 1000)
}

func (l *Limiter) usageFrom(rpm, tpm, rpd *State) Usage {
	return Usage{
		RPMUsed:  int(rpm.Capacity - rpm.Available),
		RPMLimit: l.cfg.RequestsPerMinute,
		TPMUsed:  int(tpm.Capacity - tpm.Available),
		TPMLimit: l.cfg.TokensPerMinute,
		RPDUsed:  rpd.CountForDay,
		RPDLimit: l.cfg.RequestsPerDay,
	}
}

// Consume reconciles the TPM reservation to actual usage after a call
// completes, adjusting for the gap between the pre-call estimate and the
// tokens the upstream API actually reports. It is a best-effort refinement
// and swallows storage conflicts rather than failing an otherwise
// successful translation.
func (l *Limiter) Consume(ctx context.Context, actualTokens, estimatedTokens int) error {
	delta := actualTokens - estimatedTokens
	if delta == 0 {
		return nil
	}
	for attempt := 0; attempt < l.cfg.MaxCASAttempts; attempt++ {
		tpm, err := l.store.Load(ctx, l.cfg.APIID, BucketTPM)
		if err != nil {
			return nil // best-effort; see doc comment
		}
		next := *tpm
		next.Available -= float64(delta)
		if next.Available < 0 {
			next.Available = 0
		}
		if next.Available > next.Capacity {
			next.Available = next.Capacity
		}
		ok, err := l.store.CompareAndSwap(ctx, l.cfg.APIID, tpm, &next)
		if err != nil || ok {
			return nil
		}
	}
	return nil
}

// Usage returns the current quota snapshot across all three buckets.
func (l *Limiter) Usage(ctx context.Context) (Usage, error) {
	rpm, err := l.store.Load(ctx, l.cfg.APIID, BucketRPM)
	if err != nil {
		return Usage{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.rpm", Err: err}
	}
	tpm, err := l.store.Load(ctx, l.cfg.APIID, BucketTPM)
	if err != nil {
		return Usage{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.tpm", Err: err}
	}
	rpd, err := l.store.Load(ctx, l.cfg.APIID, BucketRPD)
	if err != nil {
		return Usage{}, &apperrors.StorageTransientError{Store: "ratelimit", Op: "Load.rpd", Err: err}
	}
	now := l.cfg.Now()
	l.seedAndRefill(rpm, tpm, rpd, now)
	return l.usageFrom(rpm, tpm, rpd), nil
}

// jitteredDelay implements exponential backoff with jitter for CAS
// retries within this package; the Translation Client has its own
// instance of the same formula for LLM call retries.
func jitteredDelay(initial time.Duration, attempt int) time.Duration {
	backoff := float64(initial) * pow2(attempt)
	jitter := 1 + (rand.Float64()*0.5 - 0.25) // nolint:gosec // jitter timing only, not security-sensitive
	return time.Duration(backoff * jitter)
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

var errConflict = errConflictType{}

type errConflictType struct{}

func (errConflictType) Error() string { return "rate limit bucket changed concurrently" }
