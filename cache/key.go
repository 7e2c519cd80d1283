package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key is the lowercase hex SHA-256 digest of an input's canonical encoding.
type Key string

// String returns the key as a plain string.
func (k Key) String() string { return string(k) }

// Short returns the first eight characters of the key, for log lines.
func (k Key) Short() string {
	if len(k) <= 8 {
		return string(k)
	}
	return string(k[:8])
}

// Canonical returns the canonical JSON encoding of v. Object keys are sorted
// at every depth and numbers are kept verbatim, so values with equal logical
// content encode to identical bytes.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode canonical input: %w", err)
	}
	return out, nil
}

// Hash computes the cache key of v.
func Hash(v any) (Key, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return Key(hex.EncodeToString(sum[:])), nil
}

// MustHash is Hash for inputs known to be encodable. It panics on error.
func MustHash(v any) Key {
	k, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return k
}

// KeySet is the set of keys stored under one namespace.
type KeySet map[Key]struct{}

// Has reports whether k is in the set.
func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Len returns the number of keys.
func (s KeySet) Len() int { return len(s) }
