package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// entrySuffix is appended to every key to form the stored file or object name.
const entrySuffix = ".json"

// ErrInvalidNamespace is returned for namespace names that cannot be used as
// a single path segment.
var ErrInvalidNamespace = errors.New("cache: invalid namespace")

// Store is the storage backend of a Cache. Namespaces map to directories (or
// key prefixes) and keys to entries inside them.
//
// Read returns an error satisfying errors.Is(err, fs.ErrNotExist) when the
// entry is absent. Delete, DropNamespace and DropAll succeed when there is
// nothing to remove, and List returns an empty slice for a missing namespace.
type Store interface {
	Exists(ctx context.Context, ns string, key Key) (bool, error)
	Read(ctx context.Context, ns string, key Key) ([]byte, error)
	Write(ctx context.Context, ns string, key Key, data []byte) error
	Delete(ctx context.Context, ns string, key Key) error
	List(ctx context.Context, ns string) ([]Key, error)
	EnsureNamespace(ctx context.Context, ns string) error
	DropNamespace(ctx context.Context, ns string) error
	DropAll(ctx context.Context) error
}

// ValidateNamespace checks that ns is usable as a single path segment.
func ValidateNamespace(ns string) error {
	switch {
	case ns == "", ns == ".", ns == "..":
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	case strings.ContainsAny(ns, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidNamespace, ns)
	}
	return nil
}

// keyFromName turns a stored entry name back into a key. Temp files and
// foreign files are rejected.
func keyFromName(name string) (Key, bool) {
	if !strings.HasSuffix(name, entrySuffix) || strings.HasPrefix(name, ".") {
		return "", false
	}
	k := strings.TrimSuffix(name, entrySuffix)
	if k == "" {
		return "", false
	}
	return Key(k), true
}
