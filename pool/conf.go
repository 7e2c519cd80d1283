package pool

import (
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// WorkerPoolOption is a functional option for configuring the worker pool.
type WorkerPoolOption func(*workerPoolConfig)

type workerPoolConfig struct {
	workerCount     int
	taskBuffer      int
	rateLimiter     *rate.Limiter
	continueOnError bool
	logger          *slog.Logger

	// hooks are stored type-erased and checked against the pool's types in
	// NewWorkerPool
	beforeTaskStart     func(any)
	beforeTaskStartType string

	onTaskEnd           func(any, any, error)
	onTaskEndTaskType   string
	onTaskEndResultType string
}

// WithWorkerCount sets the number of concurrent workers. Defaults to 1, which
// processes tasks strictly in input order.
func WithWorkerCount(count int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the buffer size of the dispatch channel. Defaults to
// the worker count.
func WithTaskBuffer(size int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if size >= 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithRateLimit caps how many tasks start per second across all workers.
//
//	WithRateLimit(10, 5) // 10 tasks/sec with a burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithLimiter shares an existing limiter between pools.
func WithLimiter(l *rate.Limiter) WorkerPoolOption {
	return func(cfg *workerPoolConfig) { cfg.rateLimiter = l }
}

// WithContinueOnError keeps processing after a task fails. The first error
// is still returned once every task has run.
func WithContinueOnError(enabled bool) WorkerPoolOption {
	return func(cfg *workerPoolConfig) { cfg.continueOnError = enabled }
}

// WithLogger sets the logger used for recovered panics.
func WithLogger(l *slog.Logger) WorkerPoolOption {
	return func(cfg *workerPoolConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithBeforeTaskStart registers a hook called by the worker right before it
// runs a task. The hook's task type must match the pool's, otherwise
// NewWorkerPool panics.
func WithBeforeTaskStart[T any](fn func(task T)) WorkerPoolOption {
	var zero T
	return func(cfg *workerPoolConfig) {
		if fn == nil {
			return
		}
		cfg.beforeTaskStartType = fmt.Sprintf("%T", zero)
		cfg.beforeTaskStart = func(task any) {
			t, _ := task.(T)
			fn(t)
		}
	}
}

// WithOnTaskEnd registers a hook called after every task with its result and
// error. Type mismatches panic in NewWorkerPool.
func WithOnTaskEnd[T any, R any](fn func(task T, result R, err error)) WorkerPoolOption {
	var zeroT T
	var zeroR R
	return func(cfg *workerPoolConfig) {
		if fn == nil {
			return
		}
		cfg.onTaskEndTaskType = fmt.Sprintf("%T", zeroT)
		cfg.onTaskEndResultType = fmt.Sprintf("%T", zeroR)
		cfg.onTaskEnd = func(task, result any, err error) {
			t, _ := task.(T)
			r, _ := result.(R)
			fn(t, r, err)
		}
	}
}
