// Package cache implements a content-addressable result cache.
//
// Results are namespaced by task function name and keyed by the SHA-256 of
// the input's canonical JSON encoding, so two inputs with the same logical
// content always share one entry regardless of field order. Storage is
// pluggable through Store; FSStore keeps one directory per namespace holding
// "<key>.json" files, MinioStore keeps the same layout as object keys.
//
// Basic usage:
//
//	c := cache.New(cache.NewMemoryStore())
//	_ = c.Put(ctx, "double", 2, 4)
//
//	var out int
//	hit, _ := c.Get(ctx, "double", 2, &out) // hit == true, out == 4
//
// Bulk helpers on Typed list a namespace once and test membership in memory:
//
//	t := cache.For[string, Page](c, "scrape")
//	todo, _ := t.FilterNotCached(ctx, urls)
//
// Corrupt entries are treated as misses. Namespaces are created lazily, at
// most once per Cache even under concurrent first use.
package cache
