// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides ordering algorithms over control-flow graphs.
//
// The package works on any node type that reports its identity and its
// outgoing edges, so the typegraph CFG and test doubles both plug in:
//
//   - ComputePredecessors: transitive predecessor closure of every node
//   - OrderNodes: deterministic visitation order over reachable nodes
//   - TopologicalSort: lazy ordering of arbitrary items by declared
//     incoming edges, failing with ErrCycleDetected on cycles
//
// # Cycles
//
// Cycles are a normal part of control-flow graphs. ComputePredecessors and
// OrderNodes handle them and never fail because of them. TopologicalSort
// is the only operation for which a cycle is an error.
//
// # Thread Safety
//
// All functions are safe for concurrent use as long as the caller does not
// mutate the graph while they run.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph operations.
var (
	// ErrCycleDetected is returned by TopologicalSort when the remaining
	// items all wait on each other and no further progress is possible.
	ErrCycleDetected = errors.New("cycle detected")
)

// CycleError describes a failed topological sort.
//
// Remaining holds the items that could not be ordered, in input order.
type CycleError[T any] struct {
	Remaining []T
}

func (e *CycleError[T]) Error() string {
	if e == nil || len(e.Remaining) == 0 {
		return ErrCycleDetected.Error()
	}
	parts := make([]string, 0, len(e.Remaining))
	for _, item := range e.Remaining {
		parts = append(parts, fmt.Sprint(item))
	}
	return fmt.Sprintf("%s: %d items unordered [%s]", ErrCycleDetected, len(e.Remaining), strings.Join(parts, ", "))
}

func (e *CycleError[T]) Unwrap() error { return ErrCycleDetected }
