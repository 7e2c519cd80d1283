package config

import "time"

// Config holds all taskflow configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log" validate:"required"`
	Task        TaskConfig        `mapstructure:"task" validate:"required"`
	Cache       CacheConfig       `mapstructure:"cache" validate:"required"`
	Output      OutputConfig      `mapstructure:"output" validate:"required"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" validate:"required"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TaskConfig holds the orchestrator defaults.
type TaskConfig struct {
	Parallel       int           `mapstructure:"parallel" validate:"gte=1"`
	Cache          string        `mapstructure:"cache" validate:"required,oneof=off on refresh"`
	MaxRetry       int           `mapstructure:"max_retry" validate:"gte=0"`
	RetryWait      time.Duration `mapstructure:"retry_wait" validate:"gte=0"`
	Backoff        string        `mapstructure:"backoff" validate:"required,oneof=fixed exponential jittered decorrelated"`
	MaxWait        time.Duration `mapstructure:"max_wait" validate:"gte=0"`
	RaiseException bool          `mapstructure:"raise_exception"`
	ReuseResources bool          `mapstructure:"reuse_resources"`
	KeepAlive      bool          `mapstructure:"keep_alive"`
	RunAsync       bool          `mapstructure:"run_async"`
	AsyncQueue     bool          `mapstructure:"async_queue"`
	ErrorLogs      bool          `mapstructure:"error_logs"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int           `mapstructure:"rate_burst" validate:"gte=0"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=local memory minio"`
	Dir     string `mapstructure:"dir" validate:"required_if=Backend local"`

	MinioEndpoint  string `mapstructure:"minio_endpoint" validate:"required_if=Backend minio"`
	MinioBucket    string `mapstructure:"minio_bucket" validate:"required_if=Backend minio"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`
	MinioPrefix    string `mapstructure:"minio_prefix"`
}

// OutputConfig controls where results are written. An empty Name writes to
// a file named after the task.
type OutputConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Name    string   `mapstructure:"name"`
	Formats []string `mapstructure:"formats" validate:"dive,oneof=json csv"`
	Dir     string   `mapstructure:"dir" validate:"required"`
}

// DiagnosticsConfig controls where failure bundles are written.
type DiagnosticsConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}
