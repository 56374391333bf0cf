// Package ratelimit implements a distributed rate limiter: three
// simultaneous bucket limits (RPM, TPM, RPD) enforced against a shared
// remote API across many concurrent worker processes, using
// optimistic-concurrency (compare-and-swap) updates against a shared
// key-value store so no two workers ever both believe they hold the same
// slice of quota.
package ratelimit

import (
	"context"
	"time"
)

// BucketType names one of the three quota dimensions.
type BucketType string

const (
	BucketRPM BucketType = "rpm"
	BucketTPM BucketType = "tpm"
	BucketRPD BucketType = "rpd"
)

// State is the persisted record for one (apiId, bucketType) key.
// RPM/TPM use Capacity/Available/LastRefillAt; RPD additionally uses
// CountForDay/DayBoundaryAt and ignores Available/LastRefillAt.
type State struct {
	APIID        string     `json:"apiId" dynamodbav:"apiId"`
	BucketType   BucketType `json:"bucketType" dynamodbav:"bucketType"`
	Capacity     float64    `json:"capacity" dynamodbav:"capacity"`
	Available    float64    `json:"available" dynamodbav:"available"`
	LastRefillAt time.Time  `json:"lastRefillAt" dynamodbav:"lastRefillAt"`

	CountForDay   int       `json:"countForDay,omitempty" dynamodbav:"countForDay,omitempty"`
	DayBoundaryAt time.Time `json:"dayBoundaryAt,omitempty" dynamodbav:"dayBoundaryAt,omitempty"`

	// Version is the optimistic-concurrency token; CompareAndSwap fails if
	// the stored version no longer matches the value the caller read.
	Version int64 `json:"version" dynamodbav:"version"`
}

// Usage is the read-only observability view of current quota consumption.
type Usage struct {
	RPMUsed, RPMLimit int
	TPMUsed, TPMLimit int
	RPDUsed, RPDLimit int
}

// Store is the key-value contract keyed by (apiId, bucketType), with a
// conditional write (compare-and-swap on Version) as the only mutation
// primitive.
type Store interface {
	// Load reads the current state for (apiID, bucketType). A missing
	// record is not an error: implementations return a zero-Version State
	// with Capacity/Available left at their zero value so the caller can
	// seed it on the first CompareAndSwap.
	Load(ctx context.Context, apiID string, bucketType BucketType) (*State, error)

	// CompareAndSwap writes next in place of current, failing if the
	// store's value has changed since current was read (current.Version
	// does not match, or current.Version == 0 but a record already
	// exists). Returns (false, nil) on a lost race — never an error —
	// so the Limiter's retry loop can distinguish "retry" from "broken".
	CompareAndSwap(ctx context.Context, apiID string, current, next *State) (bool, error)
}
