package task

import (
	"context"
)

// Func is the unit of work. res is owned by the call until it returns.
type Func[R any, I any, O any] func(ctx context.Context, res R, in I) (Output[O], error)

// Output wraps a task result and records whether it may be cached.
type Output[O any] struct {
	Value     O
	dontCache bool
}

// Done returns a cacheable result.
func Done[O any](v O) Output[O] {
	return Output[O]{Value: v}
}

// DontCache returns v to the caller without storing it. A previously stored
// entry for the same input is removed.
func DontCache[O any](v O) Output[O] {
	return Output[O]{Value: v, dontCache: true}
}

// Cacheable reports whether the result may be stored.
func (o Output[O]) Cacheable() bool { return !o.dontCache }

// Plain adapts a function whose results are always cacheable.
func Plain[R any, I any, O any](fn func(ctx context.Context, res R, in I) (O, error)) Func[R, I, O] {
	return func(ctx context.Context, res R, in I) (Output[O], error) {
		v, err := fn(ctx, res, in)
		return Done(v), err
	}
}

// Compact drops nil results. When anything was dropped the aggregate is
// marked DontCache so a later run can fill the gaps.
func Compact[T any](items []*T) Output[[]T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	if len(out) < len(items) {
		return DontCache(out)
	}
	return Done(out)
}

// Outcome is the result of one input.
type Outcome[O any] struct {
	Value O
	// Err is set when the input failed and failures are not raised.
	Err error
	// Cached is true when Value came from the cache.
	Cached bool
}

// Value is a setting given either as a constant or as a function of the
// input.
type Value[I any, T any] struct {
	fixed  T
	derive func(I) T
}

// Fixed returns a Value that ignores the input.
func Fixed[I any, T any](v T) Value[I, T] {
	return Value[I, T]{fixed: v}
}

// Derived returns a Value computed from the input.
func Derived[I any, T any](fn func(I) T) Value[I, T] {
	return Value[I, T]{derive: fn}
}

// Resolve returns the setting for in.
func (v Value[I, T]) Resolve(in I) T {
	if v.derive != nil {
		return v.derive(in)
	}
	return v.fixed
}

// IsDerived reports whether the value depends on the input.
func (v Value[I, T]) IsDerived() bool { return v.derive != nil }
