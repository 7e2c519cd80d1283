package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Option configures a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	reuse  bool
	name   string
	logger *slog.Logger
}

// WithReuse keeps released resources idle for the next Acquire. When false,
// Release tears the resource down.
func WithReuse(reuse bool) Option {
	return func(cfg *poolConfig) { cfg.reuse = reuse }
}

// WithName labels log records.
func WithName(name string) Option {
	return func(cfg *poolConfig) { cfg.name = name }
}

// WithLogger sets the logger used for teardown failures.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *poolConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// Pool is a LIFO pool of resources. A resource is owned by the pool while
// idle and by exactly one caller between Acquire and Release or Discard.
type Pool[R any] struct {
	factory Factory[R]
	reuse   bool
	name    string
	logger  *slog.Logger

	mu   sync.Mutex
	idle []R

	created atomic.Int64
	closed  atomic.Int64
}

// NewPool returns an empty pool over factory.
func NewPool[R any](factory Factory[R], opts ...Option) *Pool[R] {
	cfg := &poolConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Pool[R]{
		factory: factory,
		reuse:   cfg.reuse,
		name:    cfg.name,
		logger:  cfg.logger,
	}
}

// Acquire returns the most recently released idle resource, or a new one.
func (p *Pool[R]) Acquire(ctx context.Context) (R, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		r := p.idle[n-1]
		var zero R
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := p.factory.Acquire(ctx)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("acquire resource: %w", err)
	}
	p.created.Add(1)
	return r, nil
}

// Release hands r back. With reuse enabled it becomes idle, otherwise it is
// torn down before Release returns.
func (p *Pool[R]) Release(ctx context.Context, r R) {
	if !p.reuse {
		p.teardown(ctx, r)
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, r)
	p.mu.Unlock()
}

// Discard tears r down regardless of the reuse setting. Used after a failed
// attempt so the retry starts from a fresh resource.
func (p *Pool[R]) Discard(ctx context.Context, r R) {
	p.teardown(ctx, r)
}

// Drain tears down every idle resource and returns how many there were.
func (p *Pool[R]) Drain(ctx context.Context) int {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	switch len(idle) {
	case 0:
		return 0
	case 1:
		p.teardown(ctx, idle[0])
		return 1
	}

	var g errgroup.Group
	for _, r := range idle {
		g.Go(func() error {
			p.teardown(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	return len(idle)
}

// Idle returns the number of idle resources.
func (p *Pool[R]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Created returns how many resources the factory has produced.
func (p *Pool[R]) Created() int64 { return p.created.Load() }

// Closed returns how many resources have been torn down.
func (p *Pool[R]) Closed() int64 { return p.closed.Load() }

// Reuse reports whether released resources are kept.
func (p *Pool[R]) Reuse() bool { return p.reuse }

// teardown releases r through the factory. Failures are logged, never
// returned.
func (p *Pool[R]) teardown(ctx context.Context, r R) {
	defer p.closed.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("resource teardown panicked",
				"task", p.name,
				"panic", fmt.Sprint(rec))
		}
	}()

	err := p.factory.Release(ctx, r)
	if err == nil || errors.Is(err, ErrStillUsable) {
		return
	}
	p.logger.Warn("resource teardown failed",
		"task", p.name,
		"error", err)
}
