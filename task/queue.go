package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/pool"
)

// ErrQueueClosed is returned by Put after Close or Get.
var ErrQueueClosed = pool.ErrQueueClosed

type queuedBatch[I any] struct {
	items    []I
	settings *settings
}

// Queue is a long-lived consumer fed by Put. Every input is processed at
// most once during the queue's lifetime. Results are aggregated in the order
// the inputs were accepted and written to the output once, when the queue
// is drained.
type Queue[R any, I any, O any] struct {
	o        *Orchestrator[R, I, O]
	id       string
	settings *settings
	inbox    *pool.Inbox[queuedBatch[I]]

	mu   sync.Mutex
	seen map[cache.Key]struct{}

	// written by the consumer, read after done is closed
	inputs  []I
	results []O
	err     error

	done chan struct{}
}

// Queue starts a consumer. opts override the orchestrator's settings for
// every Put; Put may override them again.
func (o *Orchestrator[R, I, O]) Queue(ctx context.Context, opts ...Option) (*Queue[R, I, O], error) {
	s, err := o.override(o.settings, opts)
	if err != nil {
		return nil, err
	}

	q := &Queue[R, I, O]{
		o:        o,
		id:       uuid.NewString(),
		settings: s,
		inbox:    pool.NewInbox[queuedBatch[I]](),
		seen:     make(map[cache.Key]struct{}),
		done:     make(chan struct{}),
	}
	go q.consume(ctx)
	return q, nil
}

// override returns a copy of base with opts applied.
func (o *Orchestrator[R, I, O]) override(base *settings, opts []Option) (*settings, error) {
	if len(opts) == 0 {
		return base, nil
	}
	s := base.clone()
	for _, opt := range opts {
		opt(s)
	}
	if err := s.check(o.inputType, o.batchType); err != nil {
		return nil, err
	}
	return s, nil
}

// ID identifies the queue in logs.
func (q *Queue[R, I, O]) ID() string { return q.id }

// Put enqueues the inputs not seen before in this queue. Inputs that cannot
// be encoded fail the whole call.
func (q *Queue[R, I, O]) Put(items []I, overrides ...Option) error {
	s, err := q.o.override(q.settings, overrides)
	if err != nil {
		return err
	}

	keys := make([]cache.Key, len(items))
	for i, it := range items {
		if keys[i], err = cache.Hash(it); err != nil {
			return err
		}
	}

	// inputs count as seen only once they are queued; mu is held across
	// Enqueue, which never blocks, so concurrent Puts cannot both accept one
	q.mu.Lock()
	defer q.mu.Unlock()

	fresh := make([]I, 0, len(items))
	accepted := make([]cache.Key, 0, len(items))
	for i, it := range items {
		if _, dup := q.seen[keys[i]]; dup {
			continue
		}
		q.seen[keys[i]] = struct{}{}
		accepted = append(accepted, keys[i])
		fresh = append(fresh, it)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := q.inbox.Enqueue(queuedBatch[I]{items: fresh, settings: s}); err != nil {
		for _, k := range accepted {
			delete(q.seen, k)
		}
		return err
	}
	return nil
}

// Close stops accepting inputs. The consumer finishes what was queued.
func (q *Queue[R, I, O]) Close() {
	q.inbox.Close()
}

// Get closes the queue, waits for the consumer to finish and returns the
// results of every accepted input. After a failed batch the remaining
// batches are skipped and Get returns the results gathered so far with the
// error.
func (q *Queue[R, I, O]) Get(ctx context.Context) ([]O, error) {
	q.Close()
	select {
	case <-q.done:
		return q.results, q.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the consumer has written the output.
func (q *Queue[R, I, O]) Done() <-chan struct{} { return q.done }

func (q *Queue[R, I, O]) consume(ctx context.Context) {
	defer close(q.done)
	logger := q.settings.logger

	for {
		b, err := q.inbox.Dequeue(ctx)
		if errors.Is(err, pool.ErrQueueClosed) {
			break
		}
		if err != nil {
			q.err = err
			break
		}
		if q.err != nil {
			continue
		}

		outs, err := q.o.execute(ctx, b.items, b.settings, false)
		if err != nil {
			logger.Error("queued batch failed", "task", q.o.name, "queue", q.id, "error", err)
			q.err = err
			continue
		}
		q.inputs = append(q.inputs, b.items...)
		q.results = append(q.results, values(outs)...)
	}
	q.inbox.Close()

	if !q.settings.keepAlive {
		q.o.pool.Drain(context.WithoutCancel(ctx))
	}
	if q.err == nil {
		q.o.write(ctx, q.settings, q.inputs, q.results)
	}
}
