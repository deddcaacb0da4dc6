// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dict

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sync/atomic"
)

// Observable is implemented by mutable values that announce changes.
//
// Subscribe registers fn to be called after every change that adds new
// information to the value and returns a function that removes the
// registration.
type Observable interface {
	Subscribe(fn func()) (cancel func())
}

// MonitorMap is a mapping with a version stamp that advances on every
// observable change.
//
// Description:
//
//	The version starts at zero and increases by one when a new key is
//	inserted, a key is deleted, or a key is overwritten with a different
//	value. Storing a value equal to the one already present under the key
//	changes nothing; values that == cannot compare, such as slices, are
//	compared with reflect.DeepEqual. Values implementing Observable are watched while they are
//	held: each change notification from a held value also advances the
//	version. Watching stops when the value is replaced or deleted.
//
//	Consumers compare Version before and after a step to detect whether
//	anything changed, without diffing contents.
//
// Thread Safety: NOT safe for concurrent mutation. Version may be read
// from any goroutine.
type MonitorMap[K comparable, V any] struct {
	store   map[K]V
	cancels map[K]func()
	order   []K
	version atomic.Int64
}

// NewMonitorMap creates an empty MonitorMap at version 0.
func NewMonitorMap[K comparable, V any]() *MonitorMap[K, V] {
	return &MonitorMap[K, V]{
		store:   make(map[K]V),
		cancels: make(map[K]func()),
	}
}

// Version returns the current mutation stamp.
func (m *MonitorMap[K, V]) Version() int64 { return m.version.Load() }

// Set stores value under key.
//
// Outputs:
//
//   - bool: True if the map changed (and the version advanced).
func (m *MonitorMap[K, V]) Set(key K, value V) bool {
	old, exists := m.store[key]
	if exists && sameValue(old, value) {
		return false
	}

	if exists {
		m.unwatch(key)
	} else {
		m.order = append(m.order, key)
	}
	m.store[key] = value
	m.watch(key, value)
	m.version.Add(1)
	return true
}

// Get returns the value for key, or ErrKeyNotFound.
func (m *MonitorMap[K, V]) Get(key K) (V, error) {
	v, ok := m.store[key]
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return v, nil
}

// Lookup returns the value for key and whether it exists.
func (m *MonitorMap[K, V]) Lookup(key K) (V, bool) {
	v, ok := m.store[key]
	return v, ok
}

// Delete removes key, or returns ErrKeyNotFound.
func (m *MonitorMap[K, V]) Delete(key K) error {
	if _, ok := m.store[key]; !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	m.unwatch(key)
	delete(m.store, key)
	if i := slices.Index(m.order, key); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	m.version.Add(1)
	return nil
}

// Contains reports whether key holds a value.
func (m *MonitorMap[K, V]) Contains(key K) bool {
	_, ok := m.store[key]
	return ok
}

// Len returns the number of entries.
func (m *MonitorMap[K, V]) Len() int { return len(m.store) }

// Keys returns the keys in insertion order.
func (m *MonitorMap[K, V]) Keys() []K { return slices.Clone(m.order) }

// All iterates entries in insertion order.
func (m *MonitorMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.order {
			if !yield(k, m.store[k]) {
				return
			}
		}
	}
}

// Close stops watching every held value. The entries and the version are
// kept.
func (m *MonitorMap[K, V]) Close() {
	for key := range m.cancels {
		m.unwatch(key)
	}
}

func (m *MonitorMap[K, V]) watch(key K, value V) {
	o, ok := any(value).(Observable)
	if !ok {
		return
	}
	m.cancels[key] = o.Subscribe(func() { m.version.Add(1) })
}

func (m *MonitorMap[K, V]) unwatch(key K) {
	if cancel, ok := m.cancels[key]; ok {
		if cancel != nil {
			cancel()
		}
		delete(m.cancels, key)
	}
}

func sameValue[V any](a, b V) bool {
	x, y := any(a), any(b)
	if canCompare(x) && canCompare(y) {
		return x == y
	}
	return reflect.DeepEqual(x, y)
}

// canCompare reports whether v can be used with == without panicking.
func canCompare(v any) bool {
	return v == nil || reflect.ValueOf(v).Comparable()
}
