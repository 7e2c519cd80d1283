package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultRoot is the directory that holds every namespace when the cache is
// created without an explicit location.
const DefaultRoot = "cache"

// FSStore is a Store over a billy filesystem. Each namespace is a directory
// under root and each entry a "<key>.json" file.
//
// billy filesystems other than osfs (memfs in particular) are not safe for
// concurrent use, so unless the store is local every call is serialized
// through mu: reads share it, writes hold it exclusively.
type FSStore struct {
	fs   billy.Filesystem
	root string
	mu   *sync.RWMutex
}

// NewFSStore returns a store keeping its namespaces under root inside fsys.
func NewFSStore(fsys billy.Filesystem, root string) *FSStore {
	if root == "" {
		root = DefaultRoot
	}
	return &FSStore{fs: fsys, root: root, mu: &sync.RWMutex{}}
}

// NewLocalStore returns a store rooted at dir on the local disk.
func NewLocalStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = DefaultRoot
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir %q: %w", dir, err)
	}
	// the operating system handles concurrent access to the disk
	return &FSStore{fs: osfs.New(filepath.Dir(abs)), root: filepath.Base(abs)}, nil
}

// NewMemoryStore returns a store backed by an in-memory filesystem.
func NewMemoryStore() *FSStore {
	return NewFSStore(memfs.New(), DefaultRoot)
}

// Root returns the directory holding the namespaces, relative to the
// underlying filesystem.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *FSStore) rlock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *FSStore) dir(ns string) string {
	return s.fs.Join(s.root, ns)
}

func (s *FSStore) path(ns string, key Key) string {
	return s.fs.Join(s.root, ns, string(key)+entrySuffix)
}

func (s *FSStore) Exists(ctx context.Context, ns string, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer s.rlock()()
	_, err := s.fs.Stat(s.path(ns, key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s/%s: %w", ns, key.Short(), err)
	}
}

func (s *FSStore) Read(ctx context.Context, ns string, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.rlock()()
	data, err := util.ReadFile(s.fs, s.path(ns, key))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", ns, key.Short(), err)
	}
	return data, nil
}

// Write stores data through a temp file and a rename, so readers never see a
// partially written entry.
func (s *FSStore) Write(ctx context.Context, ns string, key Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()

	tmp, err := util.TempFile(s.fs, s.dir(ns), "."+string(key)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp entry %s/%s: %w", ns, key.Short(), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write entry %s/%s: %w", ns, key.Short(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close entry %s/%s: %w", ns, key.Short(), err)
	}

	if err := s.fs.Rename(tmpName, s.path(ns, key)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("commit entry %s/%s: %w", ns, key.Short(), err)
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, ns string, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()
	err := s.fs.Remove(s.path(ns, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", ns, key.Short(), err)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, ns string) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.rlock()()
	infos, err := s.fs.ReadDir(s.dir(ns))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Key{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", ns, err)
	}

	keys := make([]Key, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if k, ok := keyFromName(info.Name()); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *FSStore) EnsureNamespace(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()
	if err := s.fs.MkdirAll(s.dir(ns), 0o755); err != nil {
		return fmt.Errorf("create namespace %s: %w", ns, err)
	}
	return nil
}

func (s *FSStore) DropNamespace(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()
	if err := util.RemoveAll(s.fs, s.dir(ns)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop namespace %s: %w", ns, err)
	}
	return nil
}

func (s *FSStore) DropAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.lock()()
	if err := util.RemoveAll(s.fs, s.root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop cache root: %w", err)
	}
	return nil
}

// Namespaces lists the namespace directories currently present.
func (s *FSStore) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer s.rlock()()
	infos, err := s.fs.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
