// Package pool is the execution engine of taskflow: a generic worker pool
// that keeps results in input order, plus a Future for background work.
//
// # Basic Usage
//
//	wp := pool.NewWorkerPool[string, Page](pool.WithWorkerCount(4))
//	pages, err := wp.Process(ctx, urls, func(ctx context.Context, url string) (Page, error) {
//	    return fetch(ctx, url)
//	})
//
// pages[i] is always the result for urls[i], whatever order the workers
// finish in. With one worker (the default) tasks run strictly in order.
//
// # Errors and Cancellation
//
// The first task error cancels the remaining work and is returned once every
// worker has stopped. WithContinueOnError runs every task anyway. Cancelling
// the caller's context makes Process return immediately with ctx.Err().
// Panics inside a task are recovered and reported as errors wrapping
// ErrWorkerPanic.
//
// # Rate Limiting
//
//	wp := pool.NewWorkerPool[string, Page](
//	    pool.WithWorkerCount(10),
//	    pool.WithRateLimit(5.0, 10), // 5 tasks/sec, burst of 10
//	)
//
// # Hooks
//
// WithBeforeTaskStart and WithOnTaskEnd observe every task. Their type
// parameters must match the pool's or NewWorkerPool panics.
//
// # Futures
//
//	f := pool.Go(ctx, func(ctx context.Context) ([]Page, error) {
//	    return wp.Process(ctx, urls, fetch)
//	})
//	// ...
//	pages, err := f.Get()
package pool
