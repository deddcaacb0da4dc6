// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memo

import (
	"sync/atomic"
)

// Table is an unbounded keyed cache with hit/miss accounting.
//
// Description:
//
//	Entries are computed on first request and kept until Clear. Unlike an
//	LRU cache nothing is evicted, which is what recursive algorithms that
//	rely on sub-results staying available need.
//
//	The compute function passed to GetOrCompute may itself call
//	GetOrCompute on the same table (recursive memoization). No lock is held
//	while it runs.
//
// Thread Safety: NOT safe for concurrent use.
//
// Performance:
//
//	| Operation    | Complexity |
//	|--------------|------------|
//	| GetOrCompute | O(1) + fn  |
//	| Lookup       | O(1)       |
//	| Clear        | O(1)       |
type Table[K comparable, V any] struct {
	items map[K]V

	hits   atomic.Int64
	misses atomic.Int64
}

// TableStats is a snapshot of a Table's counters.
type TableStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// NewTable creates an empty Table.
func NewTable[K comparable, V any]() *Table[K, V] {
	return &Table[K, V]{items: make(map[K]V)}
}

// GetOrCompute returns the value cached under key, computing and storing
// it with fn on a miss.
//
// Inputs:
//   - key: The cache key.
//   - fn: Computes the value on a miss. Errors are returned as-is and
//     nothing is cached.
//
// Outputs:
//   - V: The cached or computed value.
//   - bool: True if the value came from the cache.
//   - error: The error from fn, if any.
func (t *Table[K, V]) GetOrCompute(key K, fn func() (V, error)) (V, bool, error) {
	if v, ok := t.items[key]; ok {
		t.hits.Add(1)
		return v, true, nil
	}
	t.misses.Add(1)

	v, err := fn()
	if err != nil {
		var zero V
		return zero, false, err
	}
	t.items[key] = v
	return v, false, nil
}

// Lookup returns the cached value for key without computing it.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	v, ok := t.items[key]
	return v, ok
}

// Len returns the number of cached entries.
func (t *Table[K, V]) Len() int { return len(t.items) }

// Clear drops every entry and resets the counters.
func (t *Table[K, V]) Clear() {
	t.items = make(map[K]V)
	t.hits.Store(0)
	t.misses.Store(0)
}

// Stats returns the current counters.
func (t *Table[K, V]) Stats() TableStats {
	return TableStats{
		Hits:   t.hits.Load(),
		Misses: t.misses.Load(),
		Size:   len(t.items),
	}
}
