package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/utkarsh5026/taskflow/internal/algorithms"
)

// Backoff selects the delay algorithm between attempts.
type Backoff = algorithms.BackoffType

const (
	BackoffFixed        = algorithms.BackoffFixed
	BackoffExponential  = algorithms.BackoffExponential
	BackoffJittered     = algorithms.BackoffJittered
	BackoffDecorrelated = algorithms.BackoffDecorrelated
)

// State describes the attempt in progress.
type State struct {
	// Attempt is 0 for the first try.
	Attempt     int
	MaxAttempts int
	// LastErr is the error of the previous attempt, nil on the first.
	LastErr error
}

// IsRetry reports whether this attempt follows a failure.
func (s State) IsRetry() bool { return s.Attempt > 0 }

// IsLast reports whether a failure of this attempt ends the loop.
func (s State) IsLast() bool { return s.Attempt >= s.MaxAttempts-1 }

// Hook observes a failed attempt.
type Hook func(ctx context.Context, st State, err error)

type hookEntry struct {
	match Matcher
	fn    Hook
}

// Policy is an immutable retry configuration, safe to share between
// goroutines.
type Policy struct {
	name             string
	maxRetries       int
	backoffType      Backoff
	initialDelay     time.Duration
	maxDelay         time.Duration
	jitter           float64
	mustRaise        []Matcher
	retryable        []Matcher
	hooks            []hookEntry
	onRetry          Hook
	onExhausted      Hook
	raiseOnExhausted bool
	logger           *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// New builds a policy. Without options it makes a single attempt.
func New(opts ...Option) *Policy {
	p := &Policy{
		backoffType:      BackoffFixed,
		jitter:           0.1,
		raiseOnExhausted: true,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithName labels log records with the task name.
func WithName(name string) Option {
	return func(p *Policy) { p.name = name }
}

// WithMaxRetries allows n retries, so n+1 attempts in total.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithWait waits d before every retry.
func WithWait(d time.Duration) Option {
	return func(p *Policy) {
		p.backoffType = BackoffFixed
		p.initialDelay = d
		p.maxDelay = d
	}
}

// WithBackoff selects a growing delay between initial and max.
func WithBackoff(kind Backoff, initial, max time.Duration) Option {
	return func(p *Policy) {
		p.backoffType = kind
		p.initialDelay = initial
		p.maxDelay = max
	}
}

// WithJitter sets the jitter factor of BackoffJittered.
func WithJitter(factor float64) Option {
	return func(p *Policy) { p.jitter = factor }
}

// WithMustRaise lists errors that end the loop immediately.
func WithMustRaise(ms ...Matcher) Option {
	return func(p *Policy) { p.mustRaise = append(p.mustRaise, ms...) }
}

// WithRetryable restricts retrying to matching errors. By default every
// error other than cancellation is retried.
func WithRetryable(ms ...Matcher) Option {
	return func(p *Policy) { p.retryable = append(p.retryable, ms...) }
}

// WithHook runs fn after a failed attempt whose error matches m, before the
// wait. Use it to reset state that the failure may have corrupted.
func WithHook(m Matcher, fn Hook) Option {
	return func(p *Policy) {
		if m != nil && fn != nil {
			p.hooks = append(p.hooks, hookEntry{match: m, fn: fn})
		}
	}
}

// WithOnRetry runs fn after every failed attempt that will be retried.
func WithOnRetry(fn Hook) Option {
	return func(p *Policy) { p.onRetry = fn }
}

// WithOnExhausted runs fn once the last attempt has failed.
func WithOnExhausted(fn Hook) Option {
	return func(p *Policy) { p.onExhausted = fn }
}

// WithRaiseOnExhausted controls whether Do returns an ExhaustedError (true,
// the default) or the last partial result with a nil error.
func WithRaiseOnExhausted(raise bool) Option {
	return func(p *Policy) { p.raiseOnExhausted = raise }
}

// WithLogger sets the logger for failed attempts.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p *Policy) MaxAttempts() int { return p.maxRetries + 1 }

// IsMustRaise reports whether err matches the must-raise set.
func (p *Policy) IsMustRaise(err error) bool {
	var mr *MustRaiseError
	return errors.As(err, &mr) || matchAny(p.mustRaise, err)
}

func (p *Policy) retryableErr(err error) bool {
	return len(p.retryable) == 0 || matchAny(p.retryable, err)
}

// Do runs fn until it succeeds or the policy gives up. The returned value is
// the result of the last attempt, which may be partial when err != nil.
func Do[T any](ctx context.Context, p *Policy, fn func(context.Context, State) (T, error)) (T, error) {
	if p == nil {
		p = New()
	}

	backoff := algorithms.NewBackoffStrategy(p.backoffType, p.initialDelay, p.maxDelay, p.jitter)
	st := State{MaxAttempts: p.MaxAttempts()}

	var last T
	for attempt := range st.MaxAttempts {
		st.Attempt = attempt
		if err := ctx.Err(); err != nil {
			return last, err
		}

		result, err := attemptOnce(ctx, st, fn)
		last = result
		if err == nil {
			return result, nil
		}
		st.LastErr = err

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return last, err
		}
		if p.IsMustRaise(err) {
			p.logger.Error("attempt failed with unrecoverable error",
				"task", p.name,
				"attempt", attempt+1,
				"error", err)
			return last, &MustRaiseError{Attempt: attempt, Err: err}
		}
		if !p.retryableErr(err) {
			return last, &PermanentError{Err: err}
		}
		if st.IsLast() {
			break
		}

		delay := backoff.NextDelay(attempt, err)
		p.logger.Warn("attempt failed, retrying",
			"task", p.name,
			"attempt", attempt+1,
			"max_attempts", st.MaxAttempts,
			"wait", delay,
			"error", err)

		for _, h := range p.hooks {
			if h.match(err) {
				h.fn(ctx, st, err)
			}
		}
		if p.onRetry != nil {
			p.onRetry(ctx, st, err)
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return last, ctx.Err()
			}
		}
	}

	if p.onExhausted != nil {
		p.onExhausted(ctx, st, st.LastErr)
	}
	if !p.raiseOnExhausted {
		return last, nil
	}
	return last, &ExhaustedError{Attempts: st.MaxAttempts, Err: st.LastErr}
}

// attemptOnce runs fn, converting a panic into a PanicError.
func attemptOnce[T any](ctx context.Context, st State, fn func(context.Context, State) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &PanicError{Value: r, Stack: buf[:n]}
		}
	}()

	return fn(ctx, st)
}

// String summarizes the policy for logs.
func (p *Policy) String() string {
	return fmt.Sprintf("retry(max_attempts=%d, backoff=%s, wait=%s)",
		p.MaxAttempts(), p.backoffType, p.initialDelay)
}
