package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKFLOW"

// ErrConflictingModes is returned when both async execution modes are set.
var ErrConflictingModes = platformerrors.New(platformerrors.CodeInvalidConfig,
	"run_async and async_queue are mutually exclusive")

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("task.parallel", 1)
	v.SetDefault("task.cache", "off")
	v.SetDefault("task.max_retry", 0)
	v.SetDefault("task.retry_wait", "0s")
	v.SetDefault("task.backoff", "fixed")
	v.SetDefault("task.max_wait", "0s")
	v.SetDefault("task.raise_exception", false)
	v.SetDefault("task.reuse_resources", true)
	v.SetDefault("task.keep_alive", false)
	v.SetDefault("task.run_async", false)
	v.SetDefault("task.async_queue", false)
	v.SetDefault("task.error_logs", true)
	v.SetDefault("task.rate_limit", 0)
	v.SetDefault("task.rate_burst", 0)

	v.SetDefault("cache.backend", "local")
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.minio_endpoint", "")
	v.SetDefault("cache.minio_bucket", "")
	v.SetDefault("cache.minio_access_key", "")
	v.SetDefault("cache.minio_secret_key", "")
	v.SetDefault("cache.minio_use_ssl", false)
	v.SetDefault("cache.minio_prefix", "")

	v.SetDefault("output.enabled", true)
	v.SetDefault("output.name", "")
	v.SetDefault("output.formats", []string{"json"})
	v.SetDefault("output.dir", "output")

	v.SetDefault("diagnostics.dir", "error_logs")
}

// Load reads configuration from the YAML file at path (skipped when empty),
// then the environment. Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, platformerrors.WrapWithContext(err, platformerrors.CodeInvalidConfig,
				"failed to read config file", map[string]interface{}{"path": path})
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// secrets are never written to the file, bind them explicitly
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"cache.minio_access_key", EnvPrefix + "_CACHE_MINIO_ACCESS_KEY"},
		{"cache.minio_secret_key", EnvPrefix + "_CACHE_MINIO_SECRET_KEY"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, platformerrors.Wrapf(err, platformerrors.CodeInvalidConfig,
				"error binding environment variable %s", env.envVar)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig,
			"failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return platformerrors.WrapWithContext(err, platformerrors.CodeInvalidConfig,
				"configuration validation failed", map[string]interface{}{"field": verrs[0].Namespace()})
		}
		return platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "configuration validation failed")
	}
	if c.Task.RunAsync && c.Task.AsyncQueue {
		return ErrConflictingModes
	}
	return nil
}
