// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package product

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// Identified is satisfied by values with a stable integer ID.
type Identified interface {
	comparable
	ID() int
}

// Combination is an unordered set of bindings produced by a deep product.
type Combination[B Identified] struct {
	bindings *set.Set[B]
	key      string
}

func newCombination[B Identified](row []B) Combination[B] {
	s := set.From(row)
	return Combination[B]{bindings: s, key: idKey(s.Slice())}
}

// Contains reports whether b is part of the combination.
func (c Combination[B]) Contains(b B) bool {
	return c.bindings != nil && c.bindings.Contains(b)
}

// Len returns the number of distinct bindings.
func (c Combination[B]) Len() int {
	if c.bindings == nil {
		return 0
	}
	return c.bindings.Size()
}

// Bindings returns the bindings ordered by ID.
func (c Combination[B]) Bindings() []B {
	if c.bindings == nil {
		return nil
	}
	out := c.bindings.Slice()
	slices.SortFunc(out, func(a, b B) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Key identifies the combination by its sorted binding IDs, e.g. "1,3,4".
// Two combinations are equal exactly when their keys are.
func (c Combination[B]) Key() string { return c.key }

func (c Combination[B]) String() string {
	parts := make([]string, 0, c.Len())
	for _, b := range c.Bindings() {
		parts = append(parts, fmt.Sprint(b))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// idKey renders the sorted IDs of items.
func idKey[T Identified](items []T) string {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}
	slices.Sort(ids)

	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}
