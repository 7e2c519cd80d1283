package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrWorkerPanic is wrapped by errors produced from a recovered panic.
var ErrWorkerPanic = errors.New("worker panic")

// WorkerPool runs a slice of tasks on a fixed number of goroutines and
// returns their results in input order.
//
// Type parameters:
//   - T: The input task type
//   - R: The result type
type WorkerPool[T any, R any] struct {
	workerCount     int
	taskBuffer      int
	rateLimiter     *rate.Limiter
	continueOnError bool
	logger          *slog.Logger

	beforeTaskStart func(T)
	onTaskEnd       func(T, R, error)
}

// NewWorkerPool creates a new worker pool with the given options.
// Default configuration: one worker, buffer = worker count.
func NewWorkerPool[T any, R any](opts ...WorkerPoolOption) *WorkerPool[T, R] {
	cfg := &workerPoolConfig{
		workerCount: 1,
		taskBuffer:  0,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer == 0 {
		cfg.taskBuffer = cfg.workerCount
	}

	var zeroT T
	var zeroR R
	expectedTaskType := fmt.Sprintf("%T", zeroT)
	expectedResultType := fmt.Sprintf("%T", zeroR)

	beforeTaskStart, onTaskEnd := checkfuncs[T, R](cfg, expectedTaskType, expectedResultType)

	return &WorkerPool[T, R]{
		workerCount:     cfg.workerCount,
		taskBuffer:      cfg.taskBuffer,
		rateLimiter:     cfg.rateLimiter,
		continueOnError: cfg.continueOnError,
		logger:          cfg.logger,
		beforeTaskStart: beforeTaskStart,
		onTaskEnd:       onTaskEnd,
	}
}

// Workers returns the configured worker count.
func (wp *WorkerPool[T, R]) Workers() int { return wp.workerCount }

// Process runs processFn over tasks using min(workers, len(tasks)) workers.
// Results are placed at the index of their task.
//
// The first error observed is returned after every worker has stopped; unless
// the pool continues on error, it also stops dispatching the remaining tasks.
// If ctx is cancelled Process returns ctx.Err() right away without waiting for
// tasks that ignore cancellation, and the results are nil.
func (wp *WorkerPool[T, R]) Process(
	ctx context.Context,
	tasks []T,
	processFn ProcessFunc[T, R],
) ([]R, error) {
	if len(tasks) == 0 {
		return []R{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	taskChan := make(chan indexedTask[T], wp.taskBuffer)
	resultChan := make(chan Result[R], len(tasks))

	numWorkers := max(min(wp.workerCount, len(tasks)), 1)
	for workerID := range numWorkers {
		g.Go(func() error {
			return wp.worker(gctx, workerID, taskChan, resultChan, processFn)
		})
	}

	g.Go(func() error {
		defer close(taskChan)
		for idx, task := range tasks {
			select {
			case taskChan <- indexedTask[T]{index: idx, task: task}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	results := make([]R, len(tasks))
	var collectionErr error
	var collectionWg sync.WaitGroup

	collectionWg.Go(func() {
		for result := range resultChan {
			if result.Error != nil {
				if collectionErr == nil {
					collectionErr = result.Error
				}
				continue
			}
			if result.Index >= 0 && result.Index < len(results) {
				results[result.Index] = result.Value
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(resultChan)
		collectionWg.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		if collectionErr != nil {
			return results, collectionErr
		}
		return results, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// worker pulls tasks until the channel closes or the context is cancelled.
func (wp *WorkerPool[T, R]) worker(
	ctx context.Context,
	workerID int,
	taskChan <-chan indexedTask[T],
	resultChan chan<- Result[R],
	processFn ProcessFunc[T, R],
) error {
	for {
		select {
		case task, ok := <-taskChan:
			if !ok {
				return nil
			}
			if wp.rateLimiter != nil {
				if err := wp.rateLimiter.Wait(ctx); err != nil {
					return err
				}
			}
			if wp.beforeTaskStart != nil {
				wp.beforeTaskStart(task.task)
			}
			result, err := wp.processWithRecovery(ctx, workerID, task.task, processFn)
			if wp.onTaskEnd != nil {
				wp.onTaskEnd(task.task, result, err)
			}

			// resultChan holds one slot per task, so this never blocks.
			resultChan <- Result[R]{Value: result, Error: err, Index: task.index}

			if err != nil && !wp.continueOnError {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processWithRecovery executes a task, turning a panic into an error so a
// single task cannot crash the pool.
func (wp *WorkerPool[T, R]) processWithRecovery(
	ctx context.Context,
	workerID int,
	task T,
	processFn ProcessFunc[T, R],
) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrWorkerPanic, r, buf[:n])
			wp.logger.Error("worker recovered from panic",
				"worker_id", workerID,
				"panic", fmt.Sprint(r))
		}
	}()

	return processFn(ctx, task)
}
