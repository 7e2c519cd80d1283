package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/internal/logger"
	"github.com/utkarsh5026/taskflow/resource"
)

type conn struct {
	id int
}

// connFactory counts created and released connections.
type connFactory struct {
	created  atomic.Int32
	released atomic.Int32
}

func (f *connFactory) Acquire(context.Context) (*conn, error) {
	return &conn{id: int(f.created.Add(1))}, nil
}

func (f *connFactory) Release(context.Context, *conn) error {
	f.released.Add(1)
	return nil
}

type testEnv struct {
	rt     *Runtime
	diagFS billy.Filesystem
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	fs := memfs.New()
	log := logger.Discard()
	rt := NewRuntime(
		WithCacheStore(cache.New(cache.NewMemoryStore(), cache.WithLogger(log))),
		WithDiagnostics(NewDiagnostics(fs, DefaultDiagnosticsDir, log)),
		WithRuntimeLogger(log),
	)
	return testEnv{rt: rt, diagFS: fs}
}

// opts returns the options every test orchestrator needs.
func (e testEnv) opts(extra ...Option) []Option {
	return append([]Option{
		WithRuntime(e.rt),
		WithoutOutput(),
		WithLogger(logger.Discard()),
	}, extra...)
}

func (e testEnv) bundles(t *testing.T) []string {
	t.Helper()
	infos, err := e.diagFS.ReadDir(DefaultDiagnosticsDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

type write struct {
	input  any
	result any
}

// recordingSink keeps every write.
type recordingSink struct {
	mu     sync.Mutex
	writes []write
}

func (s *recordingSink) Write(_ context.Context, _ string, input, result any) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, write{input: input, result: result})
	return nil, nil
}

func (s *recordingSink) all() []write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]write(nil), s.writes...)
}

func double(_ context.Context, _ resource.None, in int) (Output[int], error) {
	return Done(in * 2), nil
}
