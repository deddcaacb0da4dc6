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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/typecore/pkg/telemetry"
)

// OrderNodes builds an ancestors-first visitation order of CFG nodes.
//
// Description:
//
//	The first input node is the root. Only nodes reachable from it appear
//	in the result; the rest are dropped silently. At every step the
//	scheduler picks, among the discovered but unscheduled nodes, the one
//	with the fewest predecessors still unscheduled (ties go to the lowest
//	ID). This schedules at least one predecessor of every node before the
//	node itself, as many as possible, puts the entry point of a loop
//	before the rest of the loop, and finishes a branch before returning
//	to its branch point. Cycles are expected and never reported as errors.
//
// Inputs:
//
//   - ctx: Context for cancellation and tracing.
//   - nodes: The nodes to order. nodes[0] is the root. May be empty.
//
// Outputs:
//
//   - []N: Reachable nodes in visitation order. Empty for empty input.
//   - error: Non-nil only if ctx was cancelled.
//
// Example:
//
//	//  n1 --> n2 --> n3
//	//  ^             |
//	//  +-------------+
//	order, _ := graph.OrderNodes(ctx, []*typegraph.CFGNode{n1, n2, n3})
//	// order == [n1, n2, n3]
//
// Thread Safety: Safe for concurrent use (read-only on the graph).
//
// Complexity: O(V·(V+E)) for the predecessor closure plus O(V²) scheduling.
func OrderNodes[N Node[N]](ctx context.Context, nodes []N) ([]N, error) {
	if len(nodes) == 0 {
		return []N{}, nil
	}

	startTime := time.Now()
	root := nodes[0]
	ctx, span := graphTracer.Start(ctx, "graph.OrderNodes",
		trace.WithAttributes(
			attribute.Int("node_count", len(nodes)),
			attribute.Int("root_id", root.ID()),
		),
	)
	defer span.End()

	preds, err := ComputePredecessors(ctx, nodes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	scheduled := make(map[N]struct{}, len(nodes))
	pending := func(n N) *set.Set[N] {
		all := preds.Of(n)
		out := set.New[N](all.Size())
		for _, p := range all.Slice() {
			if _, done := scheduled[p]; !done {
				out.Insert(p)
			}
		}
		return out
	}

	queue := map[N]*set.Set[N]{root: pending(root)}
	order := make([]N, 0, len(nodes))
	steps := 0

	for len(queue) > 0 {
		steps++
		if steps%contextCheckInterval == 0 && ctx.Err() != nil {
			telemetry.RecordError(span, ctx.Err())
			return nil, ctx.Err()
		}

		node := nextScheduled(queue)
		delete(queue, node)
		if _, done := scheduled[node]; done {
			continue
		}

		order = append(order, node)
		scheduled[node] = struct{}{}
		for _, waiting := range queue {
			waiting.Remove(node)
		}
		for _, succ := range node.Outgoing() {
			if _, queued := queue[succ]; !queued {
				queue[succ] = pending(succ)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("ordered_count", len(order)),
		attribute.Int("dead_count", len(nodes)-countIn(order, nodes)),
	)
	telemetry.LoggerWithTrace(ctx, slog.Default()).Debug("graph: nodes ordered",
		slog.Int("nodes", len(nodes)),
		slog.Int("ordered", len(order)),
		slog.Duration("duration", time.Since(startTime)),
	)
	telemetry.SetSpanOK(span)

	return order, nil
}

// nextScheduled returns the queued node with the fewest unscheduled
// predecessors, lowest ID first on ties.
func nextScheduled[N Node[N]](queue map[N]*set.Set[N]) N {
	var best N
	bestCount, bestID := -1, 0
	for n, waiting := range queue {
		count := waiting.Size()
		if bestCount < 0 || count < bestCount || (count == bestCount && n.ID() < bestID) {
			best, bestCount, bestID = n, count, n.ID()
		}
	}
	return best
}

// countIn counts how many of nodes appear in order.
func countIn[N comparable](order, nodes []N) int {
	in := make(map[N]struct{}, len(order))
	for _, n := range order {
		in[n] = struct{}{}
	}
	count := 0
	for _, n := range nodes {
		if _, ok := in[n]; ok {
			count++
		}
	}
	return count
}
