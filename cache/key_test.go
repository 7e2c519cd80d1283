package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type query struct {
	Term  string `json:"term"`
	Page  int    `json:"page"`
	Extra any    `json:"extra,omitempty"`
}

func TestHash_FieldOrderDoesNotMatter(t *testing.T) {
	a := map[string]any{"term": "coffee", "page": 2, "nested": map[string]any{"x": 1, "y": []int{1, 2}}}
	b := map[string]any{"nested": map[string]any{"y": []int{1, 2}, "x": 1}, "page": 2, "term": "coffee"}

	ka, err := Hash(a)
	require.NoError(t, err)
	kb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)
}

func TestHash_StructAndMapAgree(t *testing.T) {
	ks, err := Hash(query{Term: "coffee", Page: 2})
	require.NoError(t, err)
	km, err := Hash(map[string]any{"page": 2, "term": "coffee"})
	require.NoError(t, err)
	assert.Equal(t, ks, km)
}

func TestHash_Deterministic(t *testing.T) {
	k := MustHash("https://example.com")
	assert.Len(t, k.String(), 64)
	assert.Equal(t, k, MustHash("https://example.com"))
	assert.NotEqual(t, k, MustHash("https://example.org"))
	assert.Equal(t, k.String()[:8], k.Short())
}

func TestCanonical_PreservesNumbers(t *testing.T) {
	b, err := Canonical(map[string]any{"big": uint64(18446744073709551615), "f": 1.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"big":18446744073709551615,"f":1.5}`, string(b))
	assert.Equal(t, `{"big":18446744073709551615,"f":1.5}`, string(b))
}

func TestKeyFromName(t *testing.T) {
	tests := []struct {
		name string
		want Key
		ok   bool
	}{
		{"abc.json", "abc", true},
		{".abc.tmp-123", "", false},
		{".hidden.json", "", false},
		{"notes.txt", "", false},
		{".json", "", false},
	}
	for _, tt := range tests {
		got, ok := keyFromName(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
