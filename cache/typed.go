package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Typed is a view of one namespace of a Cache with typed inputs and outputs.
type Typed[I any, O any] struct {
	c  *Cache
	fn string
}

// For returns the typed view of namespace fn.
func For[I any, O any](c *Cache, fn string) Typed[I, O] {
	return Typed[I, O]{c: c, fn: fn}
}

// Name returns the namespace.
func (t Typed[I, O]) Name() string { return t.fn }

// Cache returns the underlying untyped cache.
func (t Typed[I, O]) Cache() *Cache { return t.c }

func (t Typed[I, O]) Has(ctx context.Context, in I) (bool, error) {
	return t.c.Has(ctx, t.fn, in)
}

func (t Typed[I, O]) Get(ctx context.Context, in I) (O, bool, error) {
	var out O
	ok, err := t.c.Get(ctx, t.fn, in, &out)
	return out, ok, err
}

func (t Typed[I, O]) Put(ctx context.Context, in I, out O) error {
	return t.c.Put(ctx, t.fn, in, out)
}

func (t Typed[I, O]) Remove(ctx context.Context, in I) error {
	return t.c.Remove(ctx, t.fn, in)
}

func (t Typed[I, O]) Clear(ctx context.Context) error {
	return t.c.Clear(ctx, t.fn)
}

// Keys hashes every input. Inputs that cannot be encoded fail the call.
func (t Typed[I, O]) Keys(ins []I) ([]Key, error) {
	keys := make([]Key, len(ins))
	for i, in := range ins {
		k, err := t.c.key(t.fn, in)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// FilterNotCached returns the inputs that have no entry, in input order.
func (t Typed[I, O]) FilterNotCached(ctx context.Context, ins []I) ([]I, error) {
	return t.filter(ctx, ins, false)
}

// FilterCached returns the inputs that have an entry, in input order.
func (t Typed[I, O]) FilterCached(ctx context.Context, ins []I) ([]I, error) {
	return t.filter(ctx, ins, true)
}

func (t Typed[I, O]) filter(ctx context.Context, ins []I, cached bool) ([]I, error) {
	stored, err := t.c.Keys(ctx, t.fn)
	if err != nil {
		return nil, err
	}
	keys, err := t.Keys(ins)
	if err != nil {
		return nil, err
	}

	out := make([]I, 0, len(ins))
	for i, in := range ins {
		if stored.Has(keys[i]) == cached {
			out = append(out, in)
		}
	}
	return out, nil
}

// Items reads the cached outputs for ins in parallel. Uncached and corrupt
// entries are skipped and duplicate inputs are read once. A nil ins reads
// every entry of the namespace in key order.
func (t Typed[I, O]) Items(ctx context.Context, ins []I) ([]O, error) {
	keys, err := t.present(ctx, ins)
	if err != nil {
		return nil, err
	}

	results := make([]O, len(keys))
	found := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.c.concurrency)
	for i, k := range keys {
		g.Go(func() error {
			ok, err := t.c.GetKey(gctx, t.fn, k, &results[i])
			if err != nil {
				return err
			}
			found[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]O, 0, len(keys))
	for i := range keys {
		if found[i] {
			out = append(out, results[i])
		}
	}
	return out, nil
}

// RawItems is Items without decoding; corrupt entries are included.
func (t Typed[I, O]) RawItems(ctx context.Context, ins []I) ([]json.RawMessage, error) {
	keys, err := t.present(ctx, ins)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[Key]json.RawMessage, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.c.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			data, err := t.c.store.Read(gctx, t.fn, k)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			mu.Lock()
			out[k] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ordered := make([]json.RawMessage, 0, len(out))
	for _, k := range keys {
		if data, ok := out[k]; ok {
			ordered = append(ordered, data)
		}
	}
	return ordered, nil
}

// RemoveItems deletes the entries for ins in parallel and returns how many
// existed.
func (t Typed[I, O]) RemoveItems(ctx context.Context, ins []I) (int, error) {
	keys, err := t.present(ctx, ins)
	if err != nil {
		return 0, err
	}

	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.c.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			if err := t.c.RemoveKey(gctx, t.fn, k); err != nil {
				return err
			}
			removed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(removed.Load()), err
}

// present returns the stored keys among ins, deduplicated, in input order.
// A nil ins selects every stored key.
func (t Typed[I, O]) present(ctx context.Context, ins []I) ([]Key, error) {
	if err := ValidateNamespace(t.fn); err != nil {
		return nil, err
	}
	stored, err := t.c.store.List(ctx, t.fn)
	if err != nil {
		return nil, err
	}
	if ins == nil {
		return stored, nil
	}

	set := make(KeySet, len(stored))
	for _, k := range stored {
		set[k] = struct{}{}
	}

	keys, err := t.Keys(ins)
	if err != nil {
		return nil, err
	}

	seen := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup || !set.Has(k) {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}
