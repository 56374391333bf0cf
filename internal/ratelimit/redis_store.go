package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists bucket state as a JSON blob per (apiId, bucketType)
// key, using WATCH/MULTI optimistic transactions for compare-and-swap.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client (a *redis.Client or
// *redis.ClusterClient both satisfy redis.UniversalClient, and a
// *miniredis.Miniredis-backed client in tests).
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (r *RedisStore) redisKey(apiID string, bucketType BucketType) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, apiID, bucketType)
}

func (r *RedisStore) Load(ctx context.Context, apiID string, bucketType BucketType) (*State, error) {
	raw, err := r.client.Get(ctx, r.redisKey(apiID, bucketType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{APIID: apiID, BucketType: bucketType}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket %s/%s: %w", apiID, bucketType, err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bucket %s/%s: %w", apiID, bucketType, err)
	}
	return &s, nil
}

// CompareAndSwap uses WATCH on the key plus a MULTI/EXEC transaction: the
// transaction aborts (without error) if another client wrote the watched
// key between WATCH and EXEC, which go-redis surfaces as
// redis.TxFailedErr — exactly the "lost race" signal the Limiter's retry
// loop expects.
func (r *RedisStore) CompareAndSwap(ctx context.Context, apiID string, current, next *State) (bool, error) {
	key := r.redisKey(apiID, current.BucketType)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		var existing State
		exists := err == nil
		if exists {
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
		}

		if current.Version == 0 {
			if exists {
				return errOptimisticConflict
			}
		} else if !exists || existing.Version != current.Version {
			return errOptimisticConflict
		}

		clone := *next
		clone.Version = current.Version + 1
		encoded, err := json.Marshal(clone)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errOptimisticConflict), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("failed to CAS bucket %s/%s: %w", apiID, current.BucketType, err)
	}
}

var errOptimisticConflict = errors.New("ratelimit: bucket version mismatch")
