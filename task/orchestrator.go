package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/config"
	"github.com/utkarsh5026/taskflow/pool"
	"github.com/utkarsh5026/taskflow/resource"
	"github.com/utkarsh5026/taskflow/retry"
)

// ErrConflictingModes is returned by New when both async modes are selected.
var ErrConflictingModes = config.ErrConflictingModes

// Orchestrator runs a task function over batches of inputs.
//
// Type parameters:
//   - R: the resource handed to the task
//   - I: the input type
//   - O: the output type
type Orchestrator[R any, I any, O any] struct {
	name     string
	fn       Func[R, I, O]
	settings *settings
	rt       *Runtime
	cache    cache.Typed[I, O]
	pool     *resource.Pool[R]

	inputType string
	batchType string
}

// New builds an orchestrator for fn. name identifies the task in logs, in
// the cache and in output file names.
func New[R any, I any, O any](
	name string,
	factory resource.Factory[R],
	fn Func[R, I, O],
	opts ...Option,
) (*Orchestrator[R, I, O], error) {
	if err := cache.ValidateNamespace(name); err != nil {
		return nil, platformerrors.Wrap(err, platformerrors.CodeInvalidConfig, "invalid task name")
	}
	if factory == nil || fn == nil {
		return nil, platformerrors.New(platformerrors.CodeInvalidConfig, "task needs a resource factory and a function")
	}

	var zeroI I
	var zeroBatch []I
	o := &Orchestrator[R, I, O]{
		name:      name,
		fn:        fn,
		inputType: fmt.Sprintf("%T", zeroI),
		batchType: fmt.Sprintf("%T", zeroBatch),
	}

	s := defaultSettings()
	for _, opt := range opts {
		opt(s)
	}
	if err := s.check(o.inputType, o.batchType); err != nil {
		return nil, err
	}
	if s.runtime == nil {
		s.runtime = NewRuntime(WithRuntimeLogger(s.logger))
	}
	if s.logger == nil {
		s.logger = s.runtime.logger
	}

	o.settings = s
	o.rt = s.runtime
	o.cache = cache.For[I, O](o.rt.cache, name)
	o.pool = resource.NewPool(factory,
		resource.WithReuse(s.reuse || s.keepAlive),
		resource.WithName(name),
		resource.WithLogger(s.logger))
	return o, nil
}

// Name returns the task name.
func (o *Orchestrator[R, I, O]) Name() string { return o.name }

// Mode returns the execution mode selected by WithRunAsync or
// WithAsyncQueue.
func (o *Orchestrator[R, I, O]) Mode() Mode { return o.settings.mode() }

// Cache returns the typed cache view of this task.
func (o *Orchestrator[R, I, O]) Cache() cache.Typed[I, O] { return o.cache }

// Resources returns the resource pool.
func (o *Orchestrator[R, I, O]) Resources() *resource.Pool[R] { return o.pool }

// Close tears down resources kept alive between runs.
func (o *Orchestrator[R, I, O]) Close(ctx context.Context) {
	o.pool.Drain(ctx)
}

// Run processes a single input. The output sink receives the bare input and
// result. A failure that is not raised yields the zero value and a nil
// error, as it would in RunBatch.
func (o *Orchestrator[R, I, O]) Run(ctx context.Context, in I) (O, error) {
	outs, err := o.execute(ctx, []I{in}, o.settings, true)
	if err != nil {
		var zero O
		return zero, err
	}
	o.write(ctx, o.settings, in, outs[0].Value)
	return outs[0].Value, nil
}

// RunBatch processes ins and returns one result per input, in input order.
// Inputs that failed without raising hold whatever their last attempt
// returned, usually the zero value.
func (o *Orchestrator[R, I, O]) RunBatch(ctx context.Context, ins []I) ([]O, error) {
	outs, err := o.execute(ctx, ins, o.settings, true)
	if err != nil {
		return nil, err
	}
	values := values(outs)
	o.write(ctx, o.settings, ins, values)
	return values, nil
}

// RunOutcomes is RunBatch with per-input errors and cache hits exposed. It
// does not write output.
func (o *Orchestrator[R, I, O]) RunOutcomes(ctx context.Context, ins []I) ([]Outcome[O], error) {
	return o.execute(ctx, ins, o.settings, true)
}

// Go runs RunBatch in the background.
func (o *Orchestrator[R, I, O]) Go(ctx context.Context, ins []I) *pool.Future[[]O] {
	return pool.Go(ctx, func(ctx context.Context) ([]O, error) {
		return o.RunBatch(ctx, ins)
	})
}

// GoOne runs Run in the background.
func (o *Orchestrator[R, I, O]) GoOne(ctx context.Context, in I) *pool.Future[O] {
	return pool.Go(ctx, func(ctx context.Context) (O, error) {
		return o.Run(ctx, in)
	})
}

func values[O any](outs []Outcome[O]) []O {
	vs := make([]O, len(outs))
	for i, out := range outs {
		vs[i] = out.Value
	}
	return vs
}

// write hands a finished run to the sink. Sink failures are logged.
func (o *Orchestrator[R, I, O]) write(ctx context.Context, s *settings, input, result any) {
	if s.output == nil {
		return
	}
	if _, err := s.output.Write(ctx, o.name, input, result); err != nil {
		s.logger.Error("write output failed", "task", o.name, "error", err)
	}
}

// execute runs the pipeline over ins. Cached inputs are answered from the
// cache, the rest go through the worker pool. Pooled resources are drained
// on a fatal error, and after the run when drain is set and they are not
// kept alive.
func (o *Orchestrator[R, I, O]) execute(ctx context.Context, ins []I, s *settings, drain bool) ([]Outcome[O], error) {
	o.rt.started(o.name, s.mode())

	outs := make([]Outcome[O], len(ins))
	if len(ins) == 0 {
		return outs, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []cache.Key
	if s.cache != CacheOff {
		var err error
		if keys, err = o.cache.Keys(ins); err != nil {
			return nil, err
		}
	}

	pending := o.lookup(ctx, s, ins, keys, outs)
	total := len(ins)
	cached := total - len(pending)
	if s.progress != nil && cached > 0 {
		s.progress(cached, total)
	}

	if len(pending) > 0 {
		if err := o.process(ctx, s, ins, keys, pending, outs, cached); err != nil {
			o.pool.Drain(context.WithoutCancel(ctx))
			return nil, err
		}
	}

	if drain && !s.keepAlive {
		o.pool.Drain(ctx)
	}
	return outs, nil
}

// lookup fills outs from the cache and returns the indexes still to run.
// A failed listing or read is logged and the input is recomputed.
func (o *Orchestrator[R, I, O]) lookup(ctx context.Context, s *settings, ins []I, keys []cache.Key, outs []Outcome[O]) []int {
	pending := make([]int, 0, len(ins))
	if s.cache != CacheOn {
		for i := range ins {
			pending = append(pending, i)
		}
		return pending
	}

	stored, err := o.rt.cache.Keys(ctx, o.name)
	if err != nil {
		s.logger.Warn("list cache failed", "task", o.name, "error", err)
	}

	for i := range ins {
		if stored.Has(keys[i]) {
			var v O
			hit, err := o.rt.cache.GetKey(ctx, o.name, keys[i], &v)
			if err != nil {
				s.logger.Warn("read cache failed", "task", o.name, "key", keys[i].Short(), "error", err)
			}
			if hit {
				outs[i] = Outcome[O]{Value: v, Cached: true}
				continue
			}
		}
		pending = append(pending, i)
	}
	return pending
}

func (o *Orchestrator[R, I, O]) process(
	ctx context.Context,
	s *settings,
	ins []I,
	keys []cache.Key,
	pending []int,
	outs []Outcome[O],
	cached int,
) error {
	workers := max(s.parallel.Resolve(ins), 1)
	policy := s.policy(o.name)

	var done atomic.Int64
	wopts := []pool.WorkerPoolOption{
		pool.WithWorkerCount(workers),
		pool.WithLogger(s.logger),
		pool.WithBeforeTaskStart(func(i int) {
			s.logger.Debug("task started", "task", o.name, "index", i)
		}),
	}
	if s.rateLimit > 0 {
		wopts = append(wopts, pool.WithRateLimit(s.rateLimit, s.rateBurst))
	}
	if s.progress != nil {
		total := len(ins)
		wopts = append(wopts, pool.WithOnTaskEnd(func(int, Outcome[O], error) {
			s.progress(cached+int(done.Add(1)), total)
		}))
	}

	wp := pool.NewWorkerPool[int, Outcome[O]](wopts...)
	results, err := wp.Process(ctx, pending, func(ctx context.Context, i int) (Outcome[O], error) {
		var key cache.Key
		if keys != nil {
			key = keys[i]
		}
		return o.invoke(ctx, s, policy, ins[i], key)
	})
	if err != nil {
		return err
	}

	for j, i := range pending {
		outs[i] = results[j]
	}
	return nil
}

// invoke runs one input under the retry policy. The returned error is fatal
// for the batch; failures that are not raised are reported in the Outcome.
func (o *Orchestrator[R, I, O]) invoke(
	ctx context.Context,
	s *settings,
	policy *retry.Policy,
	in I,
	key cache.Key,
) (Outcome[O], error) {
	var held R
	holding := false

	// resources are released after success and discarded before the next
	// attempt, so a retry never runs on the handle that just failed
	out, err := retry.Do(ctx, policy, func(ctx context.Context, st retry.State) (Output[O], error) {
		if holding {
			o.pool.Discard(ctx, held)
			holding = false
		}
		r, err := o.pool.Acquire(ctx)
		if err != nil {
			return Output[O]{}, err
		}
		held, holding = r, true

		res, err := o.fn(ctx, r, in)
		if err != nil {
			return res, err
		}
		holding = false
		if ctx.Err() != nil {
			o.pool.Discard(ctx, r)
		} else {
			o.pool.Release(ctx, r)
		}
		return res, nil
	})

	if err == nil {
		o.store(ctx, s, key, out)
		return Outcome[O]{Value: out.Value}, nil
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		if holding {
			o.pool.Discard(context.WithoutCancel(ctx), held)
		}
		return Outcome[O]{}, err
	}

	mustRaise := policy.IsMustRaise(err)
	var exhausted *retry.ExhaustedError
	if s.onExhausted != nil && errors.As(err, &exhausted) {
		s.onExhausted(ctx, in, err)
	}
	if s.errorLogs {
		rep := Report{Task: o.name, Input: in, Err: err}
		if holding {
			rep.Resource = held
		}
		if _, werr := o.rt.diagnostics.Write(ctx, rep); werr != nil {
			s.logger.Warn("write diagnostics failed", "task", o.name, "error", werr)
		}
	}
	if holding {
		o.pool.Release(ctx, held)
	}

	if mustRaise || s.raiseException {
		return Outcome[O]{Err: err}, err
	}
	s.logger.Error("task failed", "task", o.name, "error", err)
	return Outcome[O]{Value: out.Value, Err: err}, nil
}

// store writes a successful result back. Results marked DontCache remove
// the previous entry instead.
func (o *Orchestrator[R, I, O]) store(ctx context.Context, s *settings, key cache.Key, out Output[O]) {
	if s.cache == CacheOff || key == "" {
		return
	}
	if !out.Cacheable() {
		if err := o.rt.cache.RemoveKey(ctx, o.name, key); err != nil {
			s.logger.Warn("remove cache entry failed", "task", o.name, "key", key.Short(), "error", err)
		}
		return
	}
	if err := o.rt.cache.PutKey(ctx, o.name, key, out.Value); err != nil {
		s.logger.Warn("write cache entry failed", "task", o.name, "key", key.Short(), "error", err)
	}
}
