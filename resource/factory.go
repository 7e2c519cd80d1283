package resource

import (
	"context"
	"errors"
)

// ErrStillUsable may be returned by Factory.Release when the handle could
// not be closed cleanly but is in no worse shape than before. The pool treats
// it as a successful teardown.
var ErrStillUsable = errors.New("resource: still usable")

// Factory creates and destroys resources of type R.
type Factory[R any] interface {
	Acquire(ctx context.Context) (R, error)
	Release(ctx context.Context, r R) error
}

// FactoryFunc builds a Factory from two functions. A nil release is a no-op.
func FactoryFunc[R any](
	acquire func(ctx context.Context) (R, error),
	release func(ctx context.Context, r R) error,
) Factory[R] {
	return funcFactory[R]{acquire: acquire, release: release}
}

type funcFactory[R any] struct {
	acquire func(ctx context.Context) (R, error)
	release func(ctx context.Context, r R) error
}

func (f funcFactory[R]) Acquire(ctx context.Context) (R, error) {
	return f.acquire(ctx)
}

func (f funcFactory[R]) Release(ctx context.Context, r R) error {
	if f.release == nil {
		return nil
	}
	return f.release(ctx, r)
}

// None is the resource of tasks that need no handle.
type None struct{}

// NoneFactory produces None values.
func NoneFactory() Factory[None] {
	return FactoryFunc(func(context.Context) (None, error) { return None{}, nil }, nil)
}

// Inspector is implemented by resources that can contribute artifacts (page
// source, screenshots, response dumps) to a failure report. Keys are file
// names.
type Inspector interface {
	Inspect(ctx context.Context) (map[string][]byte, error)
}
