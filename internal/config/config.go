// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Common errors
var (
	Err = errors.New("config error")
)

// Config represents the application configuration.
type Config struct {
	Chunking     ChunkingConfig     `mapstructure:"chunking"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Translate    TranslateConfig    `mapstructure:"translate"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Notification NotificationConfig `mapstructure:"notification"`
	Output       OutputConfig       `mapstructure:"output"`

	// ConfigFilePath stores the path to the loaded config file (not marshaled from YAML)
	ConfigFilePath string `mapstructure:"-"`
}

// ChunkingConfig controls the Sliding-Window Document Chunker.
type ChunkingConfig struct {
	PrimaryChunkSize    int      `mapstructure:"primary_chunk_size"`
	ContextSize         int      `mapstructure:"context_size"`
	MinChunkSize        int      `mapstructure:"min_chunk_size"`
	SentenceTerminators []string `mapstructure:"sentence_terminators"`
	TokenizerModel      string   `mapstructure:"tokenizer_model"`
}

// RateLimitConfig controls the distributed rate limiter's three buckets.
type RateLimitConfig struct {
	RequestsPerMinute  int    `mapstructure:"requests_per_minute"`
	TokensPerMinute    int    `mapstructure:"tokens_per_minute"`
	RequestsPerDay     int    `mapstructure:"requests_per_day"`
	DailyResetTimezone string `mapstructure:"daily_reset_timezone"`
	APIID              string `mapstructure:"api_id"`
	Store              string `mapstructure:"store"` // memory | dynamodb | redis
	RedisAddr          string `mapstructure:"redis_addr"`
	DynamoDBTable      string `mapstructure:"dynamodb_table"`
}

// TranslateConfig controls the Translation Client.
type TranslateConfig struct {
	BaseURL                    string  `mapstructure:"base_url"`
	APIKey                     string  `mapstructure:"api_key"`
	Model                      string  `mapstructure:"model"`
	MaxRetries                 int     `mapstructure:"max_retries"`
	InitialRetryDelayMs        int     `mapstructure:"initial_retry_delay_ms"`
	PricePerMillionInputTokens float64 `mapstructure:"price_per_million_input_tokens"`
}

// WorkerConfig controls the Translation Worker.
type WorkerConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// StorageConfig controls the object store and job key-value store adapters.
type StorageConfig struct {
	ObjectStore    string `mapstructure:"object_store"` // local | s3
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Region       string `mapstructure:"s3_region"`
	KVStore        string `mapstructure:"kv_store"` // memory | dynamodb
	DynamoDBTable  string `mapstructure:"dynamodb_table"`
	LocalObjectDir string `mapstructure:"local_object_dir"`
	LocalKVDir     string `mapstructure:"local_kv_dir"`
}

// NotificationConfig contains notification settings
type NotificationConfig struct {
	ShoutrrURL string `mapstructure:"shoutrrr_url"` // Shoutrrr URL format
	Enabled    bool   `mapstructure:"enabled"`
}

// OutputConfig contains output path settings
type OutputConfig struct {
	ReportsDir          string `mapstructure:"reports_dir"`
	LLMLogDir           string `mapstructure:"llm_log_dir"`
	LLMLogEnabled       bool   `mapstructure:"llm_log_enabled"`
	InstructionsDir     string `mapstructure:"instructions_dir"`
	ReportRetentionDays int    `mapstructure:"report_retention_days"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lfmt")
		v.AddConfigPath("/etc/lfmt")
	}

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			configFile := v.ConfigFileUsed()
			if configFile == "" {
				configFile = configPath
			}
			return nil, fmt.Errorf("error reading config file from %s: %w", configFile, err)
		}
		// Config file not found; using defaults and env vars
	}

	// Environment variable support
	v.SetEnvPrefix("LFMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		configFile := v.ConfigFileUsed()
		if configFile == "" {
			configFile = "(using defaults and environment variables)"
		}
		return nil, fmt.Errorf("error unmarshaling config from %s: %w", configFile, err)
	}

	// Store the config file path in the struct (DI approach, no global state)
	cfg.ConfigFilePath = v.ConfigFileUsed()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		configFile := v.ConfigFileUsed()
		if configFile == "" {
			configFile = "(using defaults and environment variables)"
		}
		return nil, fmt.Errorf("config validation failed for %s: %w", configFile, err)
	}

	return &cfg, nil
}

// LoadFromViper reads configuration from the global viper instance (for testing)
func LoadFromViper() (*Config, error) {
	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("LFMT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config from global viper instance: %w", err)
	}

	cfg.ConfigFilePath = viper.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for global viper instance: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Chunking defaults
	v.SetDefault("chunking.primary_chunk_size", 3500)
	v.SetDefault("chunking.context_size", 250)
	v.SetDefault("chunking.min_chunk_size", 0)
	v.SetDefault("chunking.sentence_terminators", []string{".", "!", "?"})
	v.SetDefault("chunking.tokenizer_model", "gpt-4o-mini")

	// Rate limiter defaults
	v.SetDefault("rate_limit.requests_per_minute", 5)
	v.SetDefault("rate_limit.tokens_per_minute", 250000)
	v.SetDefault("rate_limit.requests_per_day", 25)
	v.SetDefault("rate_limit.daily_reset_timezone", "America/Los_Angeles")
	v.SetDefault("rate_limit.api_id", "default")
	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.redis_addr", "")
	v.SetDefault("rate_limit.dynamodb_table", "lfmt-rate-limit")

	// Translation client defaults
	v.SetDefault("translate.base_url", "https://api.openai.com/v1")
	v.SetDefault("translate.api_key", "") // Required for AutomaticEnv to work
	v.SetDefault("translate.model", "gpt-4o-mini")
	v.SetDefault("translate.max_retries", 3)
	v.SetDefault("translate.initial_retry_delay_ms", 1000)
	v.SetDefault("translate.price_per_million_input_tokens", 0.075)

	// Worker defaults
	v.SetDefault("worker.timeout", "5m")
	v.SetDefault("worker.concurrency", 4)

	// Storage defaults
	v.SetDefault("storage.object_store", "local")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.kv_store", "memory")
	v.SetDefault("storage.dynamodb_table", "lfmt-jobs")
	v.SetDefault("storage.local_object_dir", "./data/objects")
	v.SetDefault("storage.local_kv_dir", "./data/jobs")

	// Notification defaults
	v.SetDefault("notification.shoutrrr_url", "") // Required for AutomaticEnv to work
	v.SetDefault("notification.enabled", false)

	// Output defaults
	v.SetDefault("output.reports_dir", "./reports")
	v.SetDefault("output.llm_log_dir", "./logs/llm")
	v.SetDefault("output.llm_log_enabled", false)
	v.SetDefault("output.instructions_dir", "./config/instructions")
	v.SetDefault("output.report_retention_days", 30)
}

// Validate ensures all required fields are set and values are within valid ranges.
func (c *Config) Validate() error {
	configSource := c.ConfigFilePath
	if configSource == "" {
		configSource = "(defaults/environment)"
	}

	if err := c.validateRequiredFields(configSource); err != nil {
		return err
	}

	if err := c.validateRanges(configSource); err != nil {
		return err
	}

	return c.validateTimezone(configSource)
}

func (c *Config) validateRequiredFields(configSource string) error {
	requiredFields := []struct {
		value   string
		message string
	}{
		{c.Translate.BaseURL, "translate.base_url is required in config %s"},
		{c.Translate.APIKey, "translate.api_key is required in config %s (set LFMT_TRANSLATE_API_KEY environment variable)"},
		{c.Translate.Model, "translate.model is required in config %s"},
		{c.Output.ReportsDir, "output.reports_dir is required in config %s"},
	}

	for _, field := range requiredFields {
		if field.value == "" {
			return fmt.Errorf(field.message, configSource)
		}
	}

	if c.Storage.ObjectStore == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required in config %s when storage.object_store is s3", configSource)
	}
	if c.Storage.KVStore == "dynamodb" && c.Storage.DynamoDBTable == "" {
		return fmt.Errorf("storage.dynamodb_table is required in config %s when storage.kv_store is dynamodb", configSource)
	}
	if c.RateLimit.Store == "dynamodb" && c.RateLimit.DynamoDBTable == "" {
		return fmt.Errorf("rate_limit.dynamodb_table is required in config %s when rate_limit.store is dynamodb", configSource)
	}
	if c.RateLimit.Store == "redis" && c.RateLimit.RedisAddr == "" {
		return fmt.Errorf("rate_limit.redis_addr is required in config %s when rate_limit.store is redis", configSource)
	}

	return nil
}

func (c *Config) validateRanges(configSource string) error {
	if c.Output.ReportRetentionDays < 1 || c.Output.ReportRetentionDays > 365 {
		return fmt.Errorf("output.report_retention_days must be between 1 and 365, got %d in config %s",
			c.Output.ReportRetentionDays, configSource)
	}
	if c.Chunking.PrimaryChunkSize <= 0 {
		return fmt.Errorf("chunking.primary_chunk_size must be positive, got %d in config %s",
			c.Chunking.PrimaryChunkSize, configSource)
	}
	if c.Chunking.ContextSize < 0 {
		return fmt.Errorf("chunking.context_size must be non-negative, got %d in config %s",
			c.Chunking.ContextSize, configSource)
	}
	if c.Chunking.MinChunkSize < 0 {
		return fmt.Errorf("chunking.min_chunk_size must be non-negative, got %d in config %s",
			c.Chunking.MinChunkSize, configSource)
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.TokensPerMinute <= 0 || c.RateLimit.RequestsPerDay <= 0 {
		return fmt.Errorf("rate_limit requests_per_minute/tokens_per_minute/requests_per_day must all be positive in config %s", configSource)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d in config %s", c.Worker.Concurrency, configSource)
	}
	return nil
}

func (c *Config) validateTimezone(configSource string) error {
	if _, err := time.LoadLocation(c.RateLimit.DailyResetTimezone); err != nil {
		return fmt.Errorf("rate_limit.daily_reset_timezone %q is invalid in config %s: %w",
			c.RateLimit.DailyResetTimezone, configSource, err)
	}
	return nil
}

// EffectiveMinChunkSize returns the configured MinChunkSize, or a value
// derived from PrimaryChunkSize when MinChunkSize is unset (0).
func (c *ChunkingConfig) EffectiveMinChunkSize() int {
	if c.MinChunkSize > 0 {
		return c.MinChunkSize
	}
	return c.PrimaryChunkSize / 4
}
