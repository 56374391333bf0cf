package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lfmt-dev/translate-pipeline/internal/chunking"
	"github.com/lfmt-dev/translate-pipeline/internal/config"
	"github.com/lfmt-dev/translate-pipeline/internal/llm"
	"github.com/lfmt-dev/translate-pipeline/internal/llmlogger"
	"github.com/lfmt-dev/translate-pipeline/internal/ratelimit"
	"github.com/lfmt-dev/translate-pipeline/internal/storage"
	"github.com/lfmt-dev/translate-pipeline/internal/translate"
	"github.com/lfmt-dev/translate-pipeline/internal/worker"
)

// buildObjectStore wires the object store adapter selected by
// cfg.Storage.ObjectStore.
func buildObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.ObjectStore {
	case "s3":
		store, err := storage.NewS3ObjectStore(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 object store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalObjectStore(cfg.Storage.LocalObjectDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local object store: %w", err)
		}
		return store, nil
	}
}

// buildJobStore wires the job record store selected by cfg.Storage.KVStore
//. "memory" resolves to the filesystem-backed LocalJobStore
// rather than the pure in-process MemoryJobStore: a CLI invocation is its
// own process, and "chunk"/"translate"/"worker" are expected to run as
// separate invocations against the same job, so the store must outlive a
// single process even in local/default mode.
func buildJobStore(ctx context.Context, cfg *config.Config) (storage.JobStore, error) {
	switch cfg.Storage.KVStore {
	case "dynamodb":
		store, err := storage.NewDynamoDBJobStore(ctx, cfg.Storage.DynamoDBTable, cfg.Storage.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB job store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalJobStore(cfg.Storage.LocalKVDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local job store: %w", err)
		}
		return store, nil
	}
}

// buildRateLimitStore wires the rate-limit bucket store selected by
// cfg.RateLimit.Store.
func buildRateLimitStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, error) {
	switch cfg.RateLimit.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		return ratelimit.NewRedisStore(client, "lfmt"), nil
	case "dynamodb":
		store, err := ratelimit.NewDynamoDBStore(ctx, cfg.RateLimit.DynamoDBTable, cfg.Storage.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB rate limit store: %w", err)
		}
		return store, nil
	default:
		return ratelimit.NewMemoryStore(), nil
	}
}

// buildLimiter wires the Distributed Rate Limiter from cfg.RateLimit.
func buildLimiter(ctx context.Context, cfg *config.Config) (*ratelimit.Limiter, error) {
	store, err := buildRateLimitStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.New(store, ratelimit.Config{
		APIID:              cfg.RateLimit.APIID,
		RequestsPerMinute:  cfg.RateLimit.RequestsPerMinute,
		TokensPerMinute:    cfg.RateLimit.TokensPerMinute,
		RequestsPerDay:     cfg.RateLimit.RequestsPerDay,
		DailyResetTimezone: cfg.RateLimit.DailyResetTimezone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	return limiter, nil
}

// buildTokenizer wires the token counter shared by the Chunker and the
// Translation Worker's token estimate, so chunking and translation always
// agree on the same counter.
func buildTokenizer(cfg *config.Config) (chunking.TokenizerInterface, error) {
	tokenizer, err := chunking.NewTokenizer(cfg.Chunking.TokenizerModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return tokenizer, nil
}

// buildTranslateClient wires the Translation Client, attaching the
// Markdown audit logger when enabled.
func buildTranslateClient(cfg *config.Config) *translate.Client {
	llmClient := llm.NewClient(
		cfg.Translate.BaseURL,
		cfg.Translate.APIKey,
		cfg.Translate.Model,
		llm.WithRetryPolicy(cfg.Translate.MaxRetries, cfg.Translate.InitialRetryDelayMs),
	)

	if cfg.Output.LLMLogEnabled {
		llmClient.SetLogger(llmlogger.NewLogger(cfg.Output.LLMLogDir, true))
	}

	promptBuilder := translate.NewPromptBuilder("")
	return translate.NewClient(llmClient, promptBuilder, cfg.Translate.PricePerMillionInputTokens)
}

// wiring bundles the components shared by chunk/translate/worker/status so
// each command constructs them once from a single config load.
type wiring struct {
	objectStore storage.ObjectStore
	jobStore    storage.JobStore
	limiter     *ratelimit.Limiter
	tokenizer   chunking.TokenizerInterface
	translator  *translate.Client
}

func buildWiring(ctx context.Context, cfg *config.Config) (*wiring, error) {
	objectStore, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	jobStore, err := buildJobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	limiter, err := buildLimiter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tokenizer, err := buildTokenizer(cfg)
	if err != nil {
		return nil, err
	}

	return &wiring{
		objectStore: objectStore,
		jobStore:    jobStore,
		limiter:     limiter,
		tokenizer:   tokenizer,
		translator:  buildTranslateClient(cfg),
	}, nil
}

func (w *wiring) buildWorker() *worker.Worker {
	return worker.New(w.jobStore, w.objectStore, w.limiter, w.translator, w.tokenizer)
}
