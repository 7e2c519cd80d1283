package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-git/go-billy/v5/osfs"
	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/config"
)

// Runtime is the process-wide state shared by orchestrators: the cache with
// its record of created namespaces, the diagnostics writer and the logger.
type Runtime struct {
	cache       *cache.Cache
	diagnostics *Diagnostics
	logger      *slog.Logger

	// first is done after the first run of any orchestrator using this
	// runtime
	first sync.Once
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithCacheStore sets the cache. Defaults to a local store under ./cache.
func WithCacheStore(c *cache.Cache) RuntimeOption {
	return func(rt *Runtime) {
		if c != nil {
			rt.cache = c
		}
	}
}

// WithDiagnostics sets the failure bundle writer. Defaults to ./error_logs.
func WithDiagnostics(d *Diagnostics) RuntimeOption {
	return func(rt *Runtime) {
		if d != nil {
			rt.diagnostics = d
		}
	}
}

// WithRuntimeLogger sets the runtime's logger.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// NewRuntime returns a runtime writing to the working directory unless
// configured otherwise.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.cache == nil {
		rt.cache = cache.New(cache.NewFSStore(osfs.New("."), cache.DefaultRoot), cache.WithLogger(rt.logger))
	}
	if rt.diagnostics == nil {
		rt.diagnostics = NewLocalDiagnostics(DefaultDiagnosticsDir, rt.logger)
	}
	return rt
}

// RuntimeFromConfig builds the cache backend and diagnostics writer named by
// cfg.
func RuntimeFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "memory":
		store = cache.NewMemoryStore()
	case "minio":
		ms, err := cache.NewMinioStore(ctx, cache.MinioConfig{
			Endpoint:  cfg.Cache.MinioEndpoint,
			AccessKey: cfg.Cache.MinioAccessKey,
			SecretKey: cfg.Cache.MinioSecretKey,
			Bucket:    cfg.Cache.MinioBucket,
			UseSSL:    cfg.Cache.MinioUseSSL,
			Prefix:    cfg.Cache.MinioPrefix,
		})
		if err != nil {
			return nil, err
		}
		store = ms
	case "local", "":
		ls, err := cache.NewLocalStore(cfg.Cache.Dir)
		if err != nil {
			return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "open cache directory")
		}
		store = ls
	default:
		return nil, platformerrors.Newf(platformerrors.CodeInvalidConfig, "unknown cache backend %q", cfg.Cache.Backend)
	}

	return NewRuntime(
		WithCacheStore(cache.New(store, cache.WithLogger(logger))),
		WithDiagnostics(NewLocalDiagnostics(cfg.Diagnostics.Dir, logger)),
		WithRuntimeLogger(logger),
	), nil
}

// Cache returns the runtime's cache.
func (rt *Runtime) Cache() *cache.Cache { return rt.cache }

// Diagnostics returns the runtime's failure bundle writer.
func (rt *Runtime) Diagnostics() *Diagnostics { return rt.diagnostics }

// started logs the first run in this runtime.
func (rt *Runtime) started(name string, mode Mode) {
	rt.first.Do(func() {
		rt.logger.Info("running", "task", name, "mode", mode.String())
	})
}
