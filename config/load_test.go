package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1, cfg.Task.Parallel)
	assert.Equal(t, "off", cfg.Task.Cache)
	assert.False(t, cfg.Task.RaiseException)
	assert.True(t, cfg.Task.ReuseResources)
	assert.True(t, cfg.Task.ErrorLogs)
	assert.Equal(t, "local", cfg.Cache.Backend)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.Equal(t, []string{"json"}, cfg.Output.Formats)
	assert.Equal(t, "error_logs", cfg.Diagnostics.Dir)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
task:
  parallel: 8
  cache: refresh
  max_retry: 3
  retry_wait: 250ms
output:
  formats: [json, csv]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Task.Parallel)
	assert.Equal(t, "refresh", cfg.Task.Cache)
	assert.Equal(t, 3, cfg.Task.MaxRetry)
	assert.Equal(t, 250*time.Millisecond, cfg.Task.RetryWait)
	assert.Equal(t, []string{"json", "csv"}, cfg.Output.Formats)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "task:\n  parallel: 8\n")
	t.Setenv("TASKFLOW_TASK_PARALLEL", "2")
	t.Setenv("TASKFLOW_TASK_RETRY_WAIT", "2s")
	t.Setenv("TASKFLOW_CACHE_BACKEND", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Task.Parallel)
	assert.Equal(t, 2*time.Second, cfg.Task.RetryWait)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("TASKFLOW_CACHE_BACKEND", "minio")
	t.Setenv("TASKFLOW_CACHE_MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("TASKFLOW_CACHE_MINIO_BUCKET", "results")
	t.Setenv("TASKFLOW_CACHE_MINIO_ACCESS_KEY", "minio")
	t.Setenv("TASKFLOW_CACHE_MINIO_SECRET_KEY", "minio123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "minio", cfg.Cache.MinioAccessKey)
	assert.Equal(t, "minio123", cfg.Cache.MinioSecretKey)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad log level", env: map[string]string{"TASKFLOW_LOG_LEVEL": "verbose"}},
		{name: "zero parallel", env: map[string]string{"TASKFLOW_TASK_PARALLEL": "0"}},
		{name: "bad cache mode", env: map[string]string{"TASKFLOW_TASK_CACHE": "sometimes"}},
		{name: "negative retries", env: map[string]string{"TASKFLOW_TASK_MAX_RETRY": "-1"}},
		{name: "minio without endpoint", env: map[string]string{"TASKFLOW_CACHE_BACKEND": "minio"}},
		{name: "unknown format", env: map[string]string{"TASKFLOW_OUTPUT_FORMATS": "json,xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Equal(t, platformerrors.CodeInvalidConfig, platformerrors.GetCode(err))
		})
	}
}

func TestLoadConflictingModes(t *testing.T) {
	t.Setenv("TASKFLOW_TASK_RUN_ASYNC", "true")
	t.Setenv("TASKFLOW_TASK_ASYNC_QUEUE", "true")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrConflictingModes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, platformerrors.CodeInvalidConfig, platformerrors.GetCode(err))
}
