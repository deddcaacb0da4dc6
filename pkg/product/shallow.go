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
	"iter"
	"maps"
	"slices"
)

// Variable is a program variable with a list of bindings.
type Variable[B any] interface {
	comparable
	ID() int
	Bindings() []B
}

// Binding is one value of a variable. Parameters returns the variables the
// value is parameterized by, empty for plain values.
//
// IDs must be unique among all bindings a product sees; they identify
// combinations.
type Binding[V any] interface {
	comparable
	ID() int
	Parameters() []V
}

// VariableProduct yields the cartesian product of the bindings of vars.
//
// Description:
//
//	Each row holds one binding per variable, in the order of vars. The
//	last variable varies fastest. An empty vars yields exactly one empty
//	row; a variable without bindings makes the product empty. Every row is
//	a fresh slice the caller may keep.
//
// Example:
//
//	// u1 = {1, 2}, u2 = {3, 4}
//	for row := range product.VariableProduct[*typegraph.Binding](vars) {
//	    // [1 3], [1 4], [2 3], [2 4]
//	}
//
// Complexity: O(∏|bindings|) rows, produced lazily.
func VariableProduct[B any, V Variable[B]](vars []V) iter.Seq[[]B] {
	lists := make([][]B, len(vars))
	for i, v := range vars {
		lists[i] = v.Bindings()
	}
	return cartesian(lists)
}

// VariableProductDict is VariableProduct over named variables. Each row maps
// every name to one binding of its variable. Names are iterated in sorted
// order, so the row sequence is deterministic.
func VariableProductDict[B any, V Variable[B]](vars map[string]V) iter.Seq[map[string]B] {
	names := slices.Sorted(maps.Keys(vars))
	lists := make([][]B, len(names))
	for i, name := range names {
		lists[i] = vars[name].Bindings()
	}

	return func(yield func(map[string]B) bool) {
		for row := range cartesian(lists) {
			out := make(map[string]B, len(names))
			for i, name := range names {
				out[name] = row[i]
			}
			if !yield(out) {
				return
			}
		}
	}
}

// cartesian yields one fresh row per element of the product of lists, last
// list varying fastest.
func cartesian[B any](lists [][]B) iter.Seq[[]B] {
	return func(yield func([]B) bool) {
		for _, l := range lists {
			if len(l) == 0 {
				return
			}
		}

		idx := make([]int, len(lists))
		for {
			row := make([]B, len(lists))
			for i, l := range lists {
				row[i] = l[idx[i]]
			}
			if !yield(row) {
				return
			}

			pos := len(lists) - 1
			for ; pos >= 0; pos-- {
				idx[pos]++
				if idx[pos] < len(lists[pos]) {
					break
				}
				idx[pos] = 0
			}
			if pos < 0 {
				return
			}
		}
	}
}
