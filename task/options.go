package task

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/output"
	"github.com/utkarsh5026/taskflow/retry"
)

// CacheMode controls cache reads and writes.
type CacheMode int

const (
	// CacheOff neither reads nor writes the cache.
	CacheOff CacheMode = iota
	// CacheOn returns stored results and stores new ones.
	CacheOn
	// CacheRefresh recomputes every input and overwrites stored results.
	CacheRefresh
)

func (m CacheMode) String() string {
	switch m {
	case CacheOn:
		return "on"
	case CacheRefresh:
		return "refresh"
	default:
		return "off"
	}
}

// ParseCacheMode parses "off", "on" or "refresh".
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false":
		return CacheOff, nil
	case "on", "true":
		return CacheOn, nil
	case "refresh":
		return CacheRefresh, nil
	}
	return CacheOff, platformerrors.WithContext(
		platformerrors.Newf(platformerrors.CodeInvalidConfig, "unknown cache mode %q", s),
		"cache", s)
}

// Mode is the preferred way of running an orchestrator.
type Mode int

const (
	ModeSync Mode = iota
	ModeAsync
	ModeQueue
)

func (m Mode) String() string {
	switch m {
	case ModeAsync:
		return "async"
	case ModeQueue:
		return "queue"
	default:
		return "sync"
	}
}

type retryHook struct {
	match retry.Matcher
	fn    retry.Hook
}

// settings is the resolved option set of an orchestrator or a single Put.
type settings struct {
	parallel     Value[any, int]
	parallelType string

	cache CacheMode

	maxRetry  int
	backoff   retry.Backoff
	wait      time.Duration
	maxWait   time.Duration
	mustRaise []retry.Matcher
	retryable []retry.Matcher
	hooks     []retryHook

	raiseException bool
	errorLogs      bool

	output output.Sink

	runAsync   bool
	asyncQueue bool

	reuse     bool
	keepAlive bool

	rateLimit float64
	rateBurst int

	progress func(done, total int)

	// onExhausted is stored type-erased and checked against the task's
	// input type in New
	onExhausted     func(ctx context.Context, in any, err error)
	onExhaustedType string

	logger  *slog.Logger
	runtime *Runtime
}

func defaultSettings() *settings {
	return &settings{
		parallel:       Fixed[any](1),
		backoff:        retry.BackoffFixed,
		errorLogs:      true,
	}
}

func (s *settings) clone() *settings {
	c := *s
	c.mustRaise = slices.Clone(s.mustRaise)
	c.retryable = slices.Clone(s.retryable)
	c.hooks = slices.Clone(s.hooks)
	return &c
}

// check verifies the cross-option rules and that the generic options were
// declared for the task's input type.
func (s *settings) check(inputType, batchType string) error {
	if s.runAsync && s.asyncQueue {
		return ErrConflictingModes
	}
	if s.parallelType != "" && s.parallelType != batchType {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig,
			"WithParallelFunc expects input type %s, but task takes %s", s.parallelType, batchType)
	}
	if s.onExhaustedType != "" && s.onExhaustedType != inputType {
		return platformerrors.Newf(platformerrors.CodeInvalidConfig,
			"WithOnExhausted expects input type %s, but task takes %s", s.onExhaustedType, inputType)
	}
	return nil
}

func (s *settings) mode() Mode {
	switch {
	case s.runAsync:
		return ModeAsync
	case s.asyncQueue:
		return ModeQueue
	default:
		return ModeSync
	}
}

func (s *settings) policy(name string) *retry.Policy {
	opts := []retry.Option{
		retry.WithName(name),
		retry.WithMaxRetries(s.maxRetry),
		retry.WithBackoff(s.backoff, s.wait, s.maxWait),
		retry.WithMustRaise(s.mustRaise...),
		retry.WithRetryable(s.retryable...),
		retry.WithLogger(s.logger),
	}
	for _, h := range s.hooks {
		opts = append(opts, retry.WithHook(h.match, h.fn))
	}
	return retry.New(opts...)
}

// Option configures an orchestrator, or overrides its settings for one Put.
type Option func(*settings)

// WithParallel sets the number of workers. Defaults to 1, which runs inputs
// strictly in order. The count is clamped to the batch size.
func WithParallel(n int) Option {
	return func(s *settings) {
		s.parallel = Fixed[any](n)
		s.parallelType = ""
	}
}

// WithParallelFunc computes the worker count from the batch, once before
// dispatch. The function's input type must match the task's.
func WithParallelFunc[I any](fn func(batch []I) int) Option {
	var zero []I
	return func(s *settings) {
		if fn == nil {
			return
		}
		s.parallelType = fmt.Sprintf("%T", zero)
		s.parallel = Derived(func(batch any) int {
			b, _ := batch.([]I)
			return fn(b)
		})
	}
}

// WithCache selects the cache mode.
func WithCache(mode CacheMode) Option {
	return func(s *settings) { s.cache = mode }
}

// WithMaxRetry allows n retries per input.
func WithMaxRetry(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxRetry = n
		}
	}
}

// WithRetryWait waits d between attempts.
func WithRetryWait(d time.Duration) Option {
	return func(s *settings) {
		s.backoff = retry.BackoffFixed
		s.wait = d
		s.maxWait = d
	}
}

// WithBackoff grows the wait between attempts from initial up to max.
func WithBackoff(kind retry.Backoff, initial, max time.Duration) Option {
	return func(s *settings) {
		s.backoff = kind
		s.wait = initial
		s.maxWait = max
	}
}

// WithMustRaise lists failures that are never retried and always end the
// batch.
func WithMustRaise(ms ...retry.Matcher) Option {
	return func(s *settings) { s.mustRaise = append(s.mustRaise, ms...) }
}

// WithRetryable restricts retries to matching failures.
func WithRetryable(ms ...retry.Matcher) Option {
	return func(s *settings) { s.retryable = append(s.retryable, ms...) }
}

// WithRetryHook runs fn between attempts when the failure matches m.
func WithRetryHook(m retry.Matcher, fn retry.Hook) Option {
	return func(s *settings) {
		if m != nil && fn != nil {
			s.hooks = append(s.hooks, retryHook{match: m, fn: fn})
		}
	}
}

// WithRaiseException controls whether an input that exhausts its retries
// fails the batch (true) or leaves a zero value in its slot (false, the
// default).
func WithRaiseException(raise bool) Option {
	return func(s *settings) { s.raiseException = raise }
}

// WithErrorLogs enables the failure bundles written by the runtime's
// Diagnostics. Enabled by default.
func WithErrorLogs(enabled bool) Option {
	return func(s *settings) { s.errorLogs = enabled }
}

// WithOnExhausted calls fn for every input that used up its retries, before
// the failure bundle is written. Must-raise failures and failures rejected by
// WithRetryable do not trigger it.
func WithOnExhausted[I any](fn func(ctx context.Context, in I, err error)) Option {
	var zero I
	return func(s *settings) {
		if fn == nil {
			return
		}
		s.onExhaustedType = fmt.Sprintf("%T", zero)
		s.onExhausted = func(ctx context.Context, in any, err error) {
			v, _ := in.(I)
			fn(ctx, v, err)
		}
	}
}

// WithOutput sends the results of every run to sink.
func WithOutput(sink output.Sink) Option {
	return func(s *settings) { s.output = sink }
}

// WithoutOutput disables output writing.
func WithoutOutput() Option {
	return func(s *settings) { s.output = nil }
}

// WithRunAsync marks the orchestrator as preferring background runs.
// It cannot be combined with WithAsyncQueue.
func WithRunAsync() Option {
	return func(s *settings) { s.runAsync = true }
}

// WithAsyncQueue marks the orchestrator as preferring a streaming queue.
func WithAsyncQueue() Option {
	return func(s *settings) { s.asyncQueue = true }
}

// WithReuseResources keeps released resources for the next input of the
// same run.
func WithReuseResources(reuse bool) Option {
	return func(s *settings) { s.reuse = reuse }
}

// WithKeepAlive keeps pooled resources between runs until Close.
func WithKeepAlive(keep bool) Option {
	return func(s *settings) { s.keepAlive = keep }
}

// WithRateLimit caps how many inputs start per second. A burst below 1 is
// raised to 1.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *settings) {
		s.rateLimit = perSecond
		s.rateBurst = max(burst, 1)
	}
}

// WithProgress reports completed inputs, cached ones included.
func WithProgress(fn func(done, total int)) Option {
	return func(s *settings) { s.progress = fn }
}

// WithLogger sets the logger of the orchestrator and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRuntime shares a runtime between orchestrators.
func WithRuntime(rt *Runtime) Option {
	return func(s *settings) {
		if rt != nil {
			s.runtime = rt
		}
	}
}
