package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarsh5026/taskflow/cache"
)

func TestListAndClearCache(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())
	require.NoError(t, c.Put(ctx, "fetch_pages", "https://a", Page{URL: "https://a", Status: 200}))
	require.NoError(t, c.Put(ctx, "fetch_pages", "https://b", Page{URL: "https://b", Status: 200}))
	require.NoError(t, c.Put(ctx, "other", 1, 2))

	var out bytes.Buffer
	require.NoError(t, listCache(ctx, &out, c, "fetch_pages"))
	assert.Contains(t, out.String(), "2 cached results for fetch_pages")
	assert.Contains(t, out.String(), cache.MustHash("https://a").String())

	out.Reset()
	require.NoError(t, clearCache(ctx, &out, c, "fetch_pages"))
	assert.Contains(t, out.String(), "cleared cached results for fetch_pages")

	out.Reset()
	require.NoError(t, listCache(ctx, &out, c, "fetch_pages"))
	assert.Contains(t, out.String(), "no cached results")

	require.NoError(t, clearCache(ctx, &out, c, ""))
	keys, err := c.Keys(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, keys.Len())
}

func TestRunCache_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.ErrorIs(t, run(context.Background(), []string{"cache"}, &stdout, &stderr), errUsage)
}
