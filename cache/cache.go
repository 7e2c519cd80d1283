package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"runtime"
	"sync"

	platformerrors "github.com/jmgilman/go/errors"
	"golang.org/x/sync/singleflight"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for corrupt entries and namespace creation.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency bounds the fan-out of bulk reads and deletes.
// Defaults to 4 * GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Cache is a content-addressable store of task results. It is safe for
// concurrent use.
type Cache struct {
	store       Store
	logger      *slog.Logger
	concurrency int

	mu      sync.RWMutex
	created map[string]struct{}
	sf      singleflight.Group
}

// New returns a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:       store,
		logger:      slog.Default(),
		concurrency: 4 * runtime.GOMAXPROCS(0),
		created:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the backend of c.
func (c *Cache) Store() Store { return c.store }

// ensureNamespace creates the namespace the first time any single-entry
// operation touches it. Concurrent first callers share a single creation.
func (c *Cache) ensureNamespace(ctx context.Context, ns string) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	c.mu.RLock()
	_, ok := c.created[ns]
	c.mu.RUnlock()
	if ok {
		return nil
	}

	_, err, _ := c.sf.Do(ns, func() (any, error) {
		c.mu.RLock()
		_, ok := c.created[ns]
		c.mu.RUnlock()
		if ok {
			return nil, nil
		}

		if err := c.store.EnsureNamespace(ctx, ns); err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.created[ns] = struct{}{}
		c.mu.Unlock()
		c.logger.Debug("cache namespace ready", "task", ns)
		return nil, nil
	})
	return err
}

func (c *Cache) forget(ns string) {
	c.mu.Lock()
	delete(c.created, ns)
	c.mu.Unlock()
}

// Has reports whether an entry exists for input under fn.
func (c *Cache) Has(ctx context.Context, fn string, input any) (bool, error) {
	key, err := c.key(fn, input)
	if err != nil {
		return false, err
	}
	return c.HasKey(ctx, fn, key)
}

// HasKey is Has for a precomputed key.
func (c *Cache) HasKey(ctx context.Context, fn string, key Key) (bool, error) {
	if err := c.ensureNamespace(ctx, fn); err != nil {
		return false, err
	}
	return c.store.Exists(ctx, fn, key)
}

// Get decodes the entry for input under fn into out. It reports false when
// there is no entry or the entry is corrupt.
func (c *Cache) Get(ctx context.Context, fn string, input, out any) (bool, error) {
	key, err := c.key(fn, input)
	if err != nil {
		return false, err
	}
	return c.GetKey(ctx, fn, key, out)
}

// GetKey is Get for a precomputed key.
func (c *Cache) GetKey(ctx context.Context, fn string, key Key, out any) (bool, error) {
	if err := c.ensureNamespace(ctx, fn); err != nil {
		return false, err
	}
	data, err := c.store.Read(ctx, fn, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("corrupt cache entry treated as miss",
			"task", fn,
			"key", key.Short(),
			"error", err)
		return false, nil
	}
	return true, nil
}

// Put stores output as the entry for input under fn, replacing any previous
// entry.
func (c *Cache) Put(ctx context.Context, fn string, input, output any) error {
	key, err := c.key(fn, input)
	if err != nil {
		return err
	}
	return c.PutKey(ctx, fn, key, output)
}

// PutKey is Put for a precomputed key.
func (c *Cache) PutKey(ctx context.Context, fn string, key Key, output any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "encode cache entry")
	}
	if err := c.ensureNamespace(ctx, fn); err != nil {
		return err
	}
	return c.store.Write(ctx, fn, key, data)
}

// Remove deletes the entry for input under fn. Removing an absent entry is
// not an error.
func (c *Cache) Remove(ctx context.Context, fn string, input any) error {
	key, err := c.key(fn, input)
	if err != nil {
		return err
	}
	return c.RemoveKey(ctx, fn, key)
}

// RemoveKey is Remove for a precomputed key.
func (c *Cache) RemoveKey(ctx context.Context, fn string, key Key) error {
	if err := c.ensureNamespace(ctx, fn); err != nil {
		return err
	}
	return c.store.Delete(ctx, fn, key)
}

// Keys lists every key stored under fn with a single listing.
func (c *Cache) Keys(ctx context.Context, fn string) (KeySet, error) {
	if err := ValidateNamespace(fn); err != nil {
		return nil, err
	}
	keys, err := c.store.List(ctx, fn)
	if err != nil {
		return nil, err
	}
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// Clear removes every entry under fn. Clearing an absent namespace is a
// no-op.
func (c *Cache) Clear(ctx context.Context, fn string) error {
	if err := ValidateNamespace(fn); err != nil {
		return err
	}
	if err := c.store.DropNamespace(ctx, fn); err != nil {
		return err
	}
	c.forget(fn)
	return nil
}

// ClearAll removes every namespace.
func (c *Cache) ClearAll(ctx context.Context) error {
	if err := c.store.DropAll(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.created = make(map[string]struct{})
	c.mu.Unlock()
	return nil
}

func (c *Cache) key(fn string, input any) (Key, error) {
	if err := ValidateNamespace(fn); err != nil {
		return "", err
	}
	key, err := Hash(input)
	if err != nil {
		return "", platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "hash cache input")
	}
	return key, nil
}
