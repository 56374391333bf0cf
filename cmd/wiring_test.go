package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lfmt-dev/translate-pipeline/internal/config"
	"github.com/lfmt-dev/translate-pipeline/internal/llm"
)

// newTestConfig builds a minimal working config rooted at t.TempDir(), with
// local filesystem storage and no LLM endpoint configured. Tests that need
// the translation client to actually respond should additionally set
// cfg.Translate.BaseURL to an httptest server, e.g. via newFakeLLMServer.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	tmp := t.TempDir()
	cfg := &config.Config{
		ConfigFilePath: filepath.Join(tmp, "config.yaml"),
		Chunking: config.ChunkingConfig{
			TokenizerModel: "cl100k_base",
		},
		RateLimit: config.RateLimitConfig{
			APIID:              "test-api",
			RequestsPerMinute:  1000,
			TokensPerMinute:    1_000_000,
			RequestsPerDay:     100000,
			DailyResetTimezone: "UTC",
			Store:              "memory",
		},
		Translate: config.TranslateConfig{
			Model:                      "test-model",
			MaxRetries:                 1,
			InitialRetryDelayMs:        10,
			PricePerMillionInputTokens: 1.0,
		},
		Worker: config.WorkerConfig{
			Concurrency: 2,
		},
		Storage: config.StorageConfig{
			ObjectStore:    "local",
			KVStore:        "memory",
			LocalObjectDir: filepath.Join(tmp, "objects"),
			LocalKVDir:     filepath.Join(tmp, "jobs"),
		},
		Output: config.OutputConfig{
			ReportsDir:          filepath.Join(tmp, "reports"),
			LLMLogDir:           filepath.Join(tmp, "logs"),
			LLMLogEnabled:       false,
			InstructionsDir:     filepath.Join(tmp, "instructions"),
			ReportRetentionDays: 30,
		},
	}

	for _, dir := range []string{cfg.Output.ReportsDir, cfg.Storage.LocalObjectDir, cfg.Output.InstructionsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create dir %s: %v", dir, err)
		}
	}

	return cfg
}

// newFakeLLMServer returns an httptest server that answers any chat
// completion request with translatedText as the assistant's message.
func newFakeLLMServer(t *testing.T, translatedText string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := llm.ChatResponse{
			ID:      "test-completion",
			Object:  "chat.completion",
			Choices: []llm.Choice{{Index: 0, Message: llm.ChatMessage{Role: "assistant", Content: translatedText}, FinishReason: "stop"}},
			Usage:   llm.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}
