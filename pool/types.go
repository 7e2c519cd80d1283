package pool

import "context"

// ProcessFunc processes one task. A non-nil error stops the batch unless the
// pool was built with WithContinueOnError.
type ProcessFunc[T any, R any] func(ctx context.Context, task T) (R, error)

// Result is the outcome of one task together with its position in the input
// slice.
type Result[R any] struct {
	Value R
	Error error
	Index int
}

type indexedTask[T any] struct {
	index int
	task  T
}
