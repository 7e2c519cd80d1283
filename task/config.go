package task

import (
	"strings"

	"github.com/utkarsh5026/taskflow/config"
	"github.com/utkarsh5026/taskflow/internal/algorithms"
	"github.com/utkarsh5026/taskflow/output"
)

// FromConfig converts the task and output sections into options. Options
// passed to New after these take precedence.
func FromConfig(cfg *config.Config) ([]Option, error) {
	tc := cfg.Task

	mode, err := ParseCacheMode(tc.Cache)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithParallel(tc.Parallel),
		WithCache(mode),
		WithMaxRetry(tc.MaxRetry),
		WithRaiseException(tc.RaiseException),
		WithReuseResources(tc.ReuseResources),
		WithKeepAlive(tc.KeepAlive),
		WithErrorLogs(tc.ErrorLogs),
	}

	kind := algorithms.ParseBackoffType(tc.Backoff)
	if kind == algorithms.BackoffFixed {
		opts = append(opts, WithRetryWait(tc.RetryWait))
	} else {
		opts = append(opts, WithBackoff(kind, tc.RetryWait, tc.MaxWait))
	}

	if tc.RunAsync {
		opts = append(opts, WithRunAsync())
	}
	if tc.AsyncQueue {
		opts = append(opts, WithAsyncQueue())
	}
	if tc.RateLimit > 0 {
		opts = append(opts, WithRateLimit(tc.RateLimit, tc.RateBurst))
	}

	if !cfg.Output.Enabled {
		return append(opts, WithoutOutput()), nil
	}
	formats, err := output.ParseFormats(strings.Join(cfg.Output.Formats, ","))
	if err != nil {
		return nil, err
	}
	fileOpts := []output.FileOption{output.WithFormats(formats...)}
	if cfg.Output.Name != "" {
		fileOpts = append(fileOpts, output.WithFilename(cfg.Output.Name))
	}
	opts = append(opts, WithOutput(output.NewLocalFileSink(cfg.Output.Dir, fileOpts...)))
	return opts, nil
}
