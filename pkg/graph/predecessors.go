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
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-set/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/typecore/pkg/telemetry"
)

var graphTracer = otel.Tracer("typecore.graph")

// contextCheckInterval is how many traversal steps run between checks
// for context cancellation.
const contextCheckInterval = 256

// Node is a control-flow graph vertex.
//
// ID must be stable for the lifetime of the graph; OrderNodes uses it to
// break ties deterministically. Outgoing returns successors in edge order.
type Node[N any] interface {
	comparable
	ID() int
	Outgoing() []N
}

// Predecessors maps each node to the set of nodes it is reachable from.
// Every node is its own predecessor.
type Predecessors[N comparable] map[N]*set.Set[N]

// Of returns the predecessor set of n, or an empty set if n was never seen.
func (p Predecessors[N]) Of(n N) *set.Set[N] {
	if s, ok := p[n]; ok {
		return s
	}
	return set.New[N](0)
}

// ComputePredecessors builds the transitive predecessor closure of nodes.
//
// Description:
//
//	Runs an exhaustive breadth-first traversal from every input node and
//	records the start node as a predecessor of every node it reaches,
//	itself included. Nodes outside the input slice that are reached through
//	outgoing edges get entries too. A visited set per traversal guarantees
//	termination on cyclic graphs.
//
// Inputs:
//
//   - ctx: Context for cancellation and tracing. Checked periodically.
//   - nodes: The nodes to start traversals from. May be empty.
//
// Outputs:
//
//   - Predecessors[N]: node -> set of nodes that reach it. Never nil.
//   - error: Non-nil only if ctx was cancelled.
//
// Example:
//
//	preds, err := graph.ComputePredecessors(ctx, program.Nodes())
//	if err != nil {
//	    return err
//	}
//	if preds.Of(exit).Contains(entry) {
//	    // exit is reachable from entry
//	}
//
// Thread Safety: Safe for concurrent use (read-only on the graph).
//
// Complexity: O(V·(V+E)).
func ComputePredecessors[N Node[N]](ctx context.Context, nodes []N) (Predecessors[N], error) {
	result := make(Predecessors[N], len(nodes))
	for _, n := range nodes {
		result.add(n, n)
	}
	if len(nodes) == 0 {
		return result, nil
	}

	startTime := time.Now()
	ctx, span := graphTracer.Start(ctx, "graph.ComputePredecessors",
		trace.WithAttributes(attribute.Int("node_count", len(nodes))),
	)
	defer span.End()

	steps := 0
	for _, start := range nodes {
		visited := map[N]struct{}{start: {}}
		queue := []N{start}
		for len(queue) > 0 {
			steps++
			if steps%contextCheckInterval == 0 && ctx.Err() != nil {
				telemetry.RecordError(span, ctx.Err())
				return result, ctx.Err()
			}

			current := queue[0]
			queue = queue[1:]
			result.add(current, start)

			for _, next := range current.Outgoing() {
				if _, seen := visited[next]; seen {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("reached_count", len(result)),
		attribute.Int("steps", steps),
	)
	telemetry.LoggerWithTrace(ctx, slog.Default()).Debug("graph: predecessors computed",
		slog.Int("nodes", len(nodes)),
		slog.Int("reached", len(result)),
		slog.Duration("duration", time.Since(startTime)),
	)
	telemetry.SetSpanOK(span)

	return result, nil
}

// add records pred as a predecessor of n.
func (p Predecessors[N]) add(n, pred N) {
	s, ok := p[n]
	if !ok {
		s = set.New[N](1)
		p[n] = s
	}
	s.Insert(pred)
}
