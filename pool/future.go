package pool

import (
	"context"
	"fmt"
	"runtime"
)

// Future is the handle of work running in the background.
type Future[R any] struct {
	done  chan struct{}
	value R
	err   error
}

// Go runs fn on a new goroutine and returns its Future. A panic in fn is
// captured as the Future's error.
func Go[R any](ctx context.Context, fn func(ctx context.Context) (R, error)) *Future[R] {
	f := &Future[R]{done: make(chan struct{})}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				f.err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrWorkerPanic, r, buf[:n])
			}
		}()

		f.value, f.err = fn(ctx)
	}()

	return f
}

// Resolved returns an already completed Future.
func Resolved[R any](value R, err error) *Future[R] {
	f := &Future[R]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Get blocks until the work completes and returns its result.
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.value, f.err
}

// GetWithContext is Get with a deadline. It returns ctx.Err() if ctx ends
// first; the work keeps running.
func (f *Future[R]) GetWithContext(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// IsCompleted reports whether the work has finished, without blocking.
func (f *Future[R]) IsCompleted() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done is closed when the work finishes.
func (f *Future[R]) Done() <-chan struct{} { return f.done }
