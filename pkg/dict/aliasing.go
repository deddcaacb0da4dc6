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
	"slices"

	"github.com/hashicorp/go-set/v3"
)

// AliasMap is a mapping in which several keys can name the same entry.
//
// Description:
//
//	An indirection table maps each alias straight to its canonical key
//	(chains are flattened when declared) and a backing store holds entries
//	under canonical keys only. Every operation resolves its key first, so
//	after AddAlias("alias", "name") the keys "alias" and "name" are
//	interchangeable. Aliases may be declared before either key holds an
//	entry, and chains may be declared in any order.
//
//	Iteration yields canonical keys in insertion order.
//
// Thread Safety: NOT safe for concurrent use.
type AliasMap[K comparable, V any] struct {
	aliases map[K]K
	store   map[K]V
	order   []K
}

// NewAliasMap creates an empty AliasMap.
func NewAliasMap[K comparable, V any]() *AliasMap[K, V] {
	return &AliasMap[K, V]{
		aliases: make(map[K]K),
		store:   make(map[K]V),
	}
}

// AddAlias declares alias as another name for target.
//
// Description:
//
//	target is resolved to its canonical key c first. Declaring an alias
//	that already resolves to c is a no-op, which makes redundant and
//	circular declarations harmless. If alias is currently the canonical key
//	of other aliases, those aliases are moved over to c, so a chain
//	declared from the far end still collapses into one group.
//
// Inputs:
//
//   - alias: The key to redirect.
//   - target: The key alias should resolve to.
//
// Outputs:
//
//   - error: *AliasConflictError (errors.Is ErrAliasConflict) if alias
//     already resolves to a different canonical key, or if alias holds an
//     entry of its own. The map is unchanged on error.
//
// Example:
//
//	m := dict.NewAliasMap[string, int]()
//	_ = m.AddAlias("alias2", "alias1")
//	_ = m.AddAlias("alias1", "name")
//	m.Set("alias2", 1)
//	v, _ := m.Get("name") // 1
func (m *AliasMap[K, V]) AddAlias(alias, target K) error {
	canonical := m.Resolve(target)
	if alias == canonical {
		return nil
	}

	if existing, ok := m.aliases[alias]; ok {
		if existing == canonical {
			return nil
		}
		return &AliasConflictError[K]{Alias: alias, Target: target, Existing: existing}
	}
	if _, ok := m.store[alias]; ok {
		return &AliasConflictError[K]{Alias: alias, Target: target, Existing: alias, HasEntry: true}
	}

	for k, c := range m.aliases {
		if c == alias {
			m.aliases[k] = canonical
		}
	}
	m.aliases[alias] = canonical
	return nil
}

// Resolve returns the canonical key of key. Keys without an alias are
// their own canonical key.
func (m *AliasMap[K, V]) Resolve(key K) K {
	if c, ok := m.aliases[key]; ok {
		return c
	}
	return key
}

// SameKey reports whether a and b resolve to the same canonical key.
func (m *AliasMap[K, V]) SameKey(a, b K) bool {
	return m.Resolve(a) == m.Resolve(b)
}

// Get returns the entry for key, or ErrKeyNotFound.
func (m *AliasMap[K, V]) Get(key K) (V, error) {
	v, ok := m.Lookup(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	return v, nil
}

// Lookup returns the entry for key and whether it exists.
func (m *AliasMap[K, V]) Lookup(key K) (V, bool) {
	v, ok := m.store[m.Resolve(key)]
	return v, ok
}

// Set stores value under the canonical key of key.
func (m *AliasMap[K, V]) Set(key K, value V) {
	c := m.Resolve(key)
	if _, ok := m.store[c]; !ok {
		m.order = append(m.order, c)
	}
	m.store[c] = value
}

// Delete removes the entry for key, or returns ErrKeyNotFound. Aliases
// stay declared.
func (m *AliasMap[K, V]) Delete(key K) error {
	c := m.Resolve(key)
	if _, ok := m.store[c]; !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	delete(m.store, c)
	if i := slices.Index(m.order, c); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return nil
}

// Contains reports whether key holds an entry.
func (m *AliasMap[K, V]) Contains(key K) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Len returns the number of entries. Aliases do not count.
func (m *AliasMap[K, V]) Len() int { return len(m.store) }

// Keys returns the canonical keys holding entries, in insertion order.
func (m *AliasMap[K, V]) Keys() []K { return slices.Clone(m.order) }

// All iterates entries by canonical key in insertion order.
func (m *AliasMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.order {
			if !yield(k, m.store[k]) {
				return
			}
		}
	}
}

// Matches reports whether keys, after alias resolution, name exactly the
// entries of m.
//
// Every query key must resolve to a canonical key holding an entry, and
// every entry must be named by at least one query key. Several query keys
// naming the same entry count once.
//
// Example:
//
//	// entries: name1, name2; aliases: alias2 -> name2
//	m.Matches(slices.Values([]string{"name1", "alias2"})) // true
//	m.Matches(slices.Values([]string{"name2", "alias2"})) // false
func (m *AliasMap[K, V]) Matches(keys iter.Seq[K]) bool {
	named := set.New[K](len(m.store))
	for k := range keys {
		c := m.Resolve(k)
		if _, ok := m.store[c]; !ok {
			return false
		}
		named.Insert(c)
	}
	return named.Size() == len(m.store)
}
