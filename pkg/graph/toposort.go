// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"iter"
)

// PredecessorReporting is implemented by items that declare which other
// items must come before them.
type PredecessorReporting[T any] interface {
	Incoming() []T
}

// PredecessorFunc reports the required predecessors of an item.
type PredecessorFunc[T any] func(item T) []T

// NoPredecessors is the default adapter for items without ordering
// requirements.
func NoPredecessors[T any](T) []T { return nil }

// Incoming adapts items implementing PredecessorReporting.
func Incoming[T PredecessorReporting[T]](item T) []T { return item.Incoming() }

// IncomingAny is the adapter for heterogeneous items: items implementing
// PredecessorReporting[any] report their Incoming, every other item has no
// predecessors.
//
//	order, err := graph.TopologicalSortSlice([]any{job, 3, "x"}, graph.IncomingAny)
func IncomingAny(item any) []any {
	if r, ok := item.(PredecessorReporting[any]); ok {
		return r.Incoming()
	}
	return nil
}

// TopologicalSort lazily orders items so that every item comes after the
// predecessors preds reports for it.
//
// Description:
//
//	Kahn's algorithm with a FIFO ready queue seeded in input order, so the
//	result is stable with respect to the caller's ordering among ties.
//	Predecessors that are not part of items are ignored, as are duplicate
//	edges. Duplicate items are collapsed to their first occurrence. A nil
//	preds behaves like NoPredecessors.
//
//	No work happens until the sequence is consumed. If at some point items
//	remain but none of them is ready, the sequence yields a zero item with
//	a *CycleError (errors.Is(err, ErrCycleDetected)) and stops. Items
//	yielded before that point are still valid in order.
//
// Inputs:
//
//   - items: The items to order.
//   - preds: Predecessor relation. Use Incoming for PredecessorReporting items.
//
// Outputs:
//
//   - iter.Seq2[T, error]: Items in topological order; a non-nil error is
//     always the last element.
//
// Example:
//
//	for item, err := range graph.TopologicalSort(items, graph.Incoming[*Task]) {
//	    if err != nil {
//	        return fmt.Errorf("order tasks: %w", err)
//	    }
//	    run(item)
//	}
//
// Thread Safety: Each returned sequence may be consumed by one goroutine.
//
// Complexity: O(V + E).
func TopologicalSort[T comparable](items []T, preds PredecessorFunc[T]) iter.Seq2[T, error] {
	if preds == nil {
		preds = NoPredecessors[T]
	}

	return func(yield func(T, error) bool) {
		index := make(map[T]int, len(items))
		unique := make([]T, 0, len(items))
		for _, item := range items {
			if _, dup := index[item]; dup {
				continue
			}
			index[item] = len(unique)
			unique = append(unique, item)
		}

		waiting := make([]int, len(unique))
		dependents := make([][]int, len(unique))
		for i, item := range unique {
			seen := make(map[int]struct{})
			for _, p := range preds(item) {
				j, ok := index[p]
				if !ok {
					continue
				}
				if _, dup := seen[j]; dup {
					continue
				}
				seen[j] = struct{}{}
				waiting[i]++
				dependents[j] = append(dependents[j], i)
			}
		}

		ready := make([]int, 0, len(unique))
		for i := range unique {
			if waiting[i] == 0 {
				ready = append(ready, i)
			}
		}

		for emitted := 0; emitted < len(unique); emitted++ {
			if len(ready) == 0 {
				var zero T
				yield(zero, &CycleError[T]{Remaining: remaining(unique, waiting)})
				return
			}

			i := ready[0]
			ready = ready[1:]
			if !yield(unique[i], nil) {
				return
			}

			for _, d := range dependents[i] {
				waiting[d]--
				if waiting[d] == 0 {
					ready = append(ready, d)
				}
			}
		}
	}
}

// TopologicalSortSlice collects TopologicalSort into a slice.
//
// On a cycle it returns the items ordered so far together with the error.
func TopologicalSortSlice[T comparable](items []T, preds PredecessorFunc[T]) ([]T, error) {
	out := make([]T, 0, len(items))
	for item, err := range TopologicalSort(items, preds) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// remaining returns the items still waiting on a predecessor.
func remaining[T any](items []T, waiting []int) []T {
	out := make([]T, 0)
	for i, item := range items {
		if waiting[i] > 0 {
			out = append(out, item)
		}
	}
	return out
}
