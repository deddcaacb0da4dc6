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
	"context"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-set/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/typecore/pkg/memo"
	"github.com/AleutianAI/typecore/pkg/telemetry"
)

// contextCheckInterval is how many rows are built between checks for
// context cancellation.
const contextCheckInterval = 128

// Option configures DeepVariableProduct.
type Option func(*deepOptions)

type deepOptions struct {
	limit int
}

// WithComplexityLimit stops the product with ErrComplexityLimit once more
// than limit rows have been built, counting intermediate rows of nested
// expansions. A limit <= 0 means unlimited, the default.
func WithComplexityLimit(limit int) Option {
	return func(o *deepOptions) { o.limit = limit }
}

// DeepVariableProduct yields every consistent choice of bindings across
// vars and, recursively, the parameter variables of the chosen bindings.
//
// Description:
//
//	For each root variable exactly one binding is chosen. For each chosen
//	binding with parameters, exactly one binding is chosen from every
//	parameter variable, and so on down. A combination is the set of all
//	bindings chosen; the same set reached along different paths is
//	emitted once.
//
//	Variables without bindings contribute nothing and are skipped, at the
//	root as well as below it.
//
//	Cycles end silently: a binding that is already part of the current
//	expansion path is not expanded again. A variable re-entered through a
//	cycle still has one of its bindings chosen, but the chosen binding
//	adds no further parameters on that path.
//
//	Expansions are memoized by (parameter variables, bindings on the
//	path), so shared sub-structure is expanded once per context. The root
//	level is lazy: combinations are yielded as each root row is expanded.
//
// Inputs:
//
//   - ctx: Context for cancellation and tracing.
//   - vars: The root variables.
//   - opts: WithComplexityLimit.
//
// Outputs:
//
//   - iter.Seq2[Combination[B], error]: Distinct combinations. A non-nil
//     error (ErrComplexityLimit or a context error) is always the last
//     element.
//
// Example:
//
//	// v1 = {x1, x2}, v4 = {x6}, x1 parameterized by v2 = {x3}, v3 = {x4, x5}
//	for c, err := range product.DeepVariableProduct[*typegraph.Binding](ctx, []*typegraph.Variable{v1, v4}) {
//	    // {x1 x3 x4 x6}, {x1 x3 x5 x6}, {x2 x6}
//	}
//
// Thread Safety: Each returned sequence may be consumed by one goroutine.
// The variables must not change while it is consumed.
func DeepVariableProduct[B Binding[V], V Variable[B]](ctx context.Context, vars []V, opts ...Option) iter.Seq2[Combination[B], error] {
	o := deepOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Combination[B], error) bool) {
		startTime := time.Now()
		ctx, span := productTracer.Start(ctx, "product.DeepVariableProduct",
			trace.WithAttributes(
				attribute.Int("root_count", len(vars)),
				attribute.Int("complexity_limit", o.limit),
			),
		)
		defer span.End()

		e := &expander[B, V]{
			ctx:   ctx,
			table: memo.NewTable[string, [][]B](),
			limit: o.limit,
		}
		emitted := make(map[string]struct{})
		fail := func(err error) {
			telemetry.RecordError(span, err)
			yield(Combination[B]{}, err)
		}

		for row := range cartesian(nonEmptyBindings[B](vars)) {
			rows, err := e.extend(row, set.New[B](0))
			if err != nil {
				fail(err)
				return
			}
			for _, r := range rows {
				if err := e.count(); err != nil {
					fail(err)
					return
				}
				c := newCombination(r)
				if _, dup := emitted[c.Key()]; dup {
					continue
				}
				emitted[c.Key()] = struct{}{}
				recordCombination(ctx)
				if !yield(c, nil) {
					return
				}
			}
		}

		stats := e.table.Stats()
		span.SetAttributes(
			attribute.Int("combination_count", len(emitted)),
			attribute.Int("rows_built", e.built),
			attribute.Int64("memo_hits", stats.Hits),
			attribute.Int("memo_size", stats.Size),
		)
		telemetry.LoggerWithTrace(ctx, slog.Default()).Debug("product: deep product done",
			slog.Int("roots", len(vars)),
			slog.Int("combinations", len(emitted)),
			slog.Int("rows_built", e.built),
			slog.Duration("duration", time.Since(startTime)),
		)
		telemetry.SetSpanOK(span)
	}
}

// DeepVariableProductSlice collects DeepVariableProduct into a slice.
func DeepVariableProductSlice[B Binding[V], V Variable[B]](ctx context.Context, vars []V, opts ...Option) ([]Combination[B], error) {
	var out []Combination[B]
	for c, err := range DeepVariableProduct[B](ctx, vars, opts...) {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// expander carries the state of one deep product.
type expander[B Binding[V], V Variable[B]] struct {
	ctx   context.Context
	table *memo.Table[string, [][]B]
	limit int
	built int
}

// extend returns row followed by every expansion of the parameters of
// those bindings in row that are not yet on the path.
func (e *expander[B, V]) extend(row []B, seen *set.Set[B]) ([][]B, error) {
	var params []V
	for _, b := range row {
		if !seen.Contains(b) {
			params = append(params, b.Parameters()...)
		}
	}
	if len(params) == 0 {
		return [][]B{row}, nil
	}

	next := set.From(seen.Slice())
	for _, b := range row {
		next.Insert(b)
	}
	subRows, err := e.expand(params, next)
	if err != nil {
		return nil, err
	}
	if len(subRows) == 0 {
		return [][]B{row}, nil
	}

	out := make([][]B, len(subRows))
	for i, sub := range subRows {
		out[i] = append(slices.Clone(row), sub...)
	}
	return out, nil
}

// expand returns the distinct rows for vars given the bindings on the
// path, memoized.
func (e *expander[B, V]) expand(vars []V, seen *set.Set[B]) ([][]B, error) {
	rows, hit, err := e.table.GetOrCompute(expansionKey[B](vars, seen), func() ([][]B, error) {
		return e.compute(vars, seen)
	})
	if err == nil {
		recordExpansion(e.ctx, hit)
	}
	return rows, err
}

func (e *expander[B, V]) compute(vars []V, seen *set.Set[B]) ([][]B, error) {
	var rows [][]B
	keys := make(map[string]struct{})
	for row := range cartesian(nonEmptyBindings[B](vars)) {
		extended, err := e.extend(row, seen)
		if err != nil {
			return nil, err
		}
		for _, r := range extended {
			key := idKey(r)
			if _, dup := keys[key]; dup {
				continue
			}
			keys[key] = struct{}{}
			if err := e.count(); err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// count accounts for one built row and enforces the limit and the
// context.
func (e *expander[B, V]) count() error {
	e.built++
	if e.limit > 0 && e.built > e.limit {
		return &LimitError{Limit: e.limit, Built: e.built}
	}
	if e.built%contextCheckInterval == 0 {
		return e.ctx.Err()
	}
	return nil
}

// nonEmptyBindings returns the binding lists of vars, skipping variables
// without bindings.
func nonEmptyBindings[B any, V Variable[B]](vars []V) [][]B {
	lists := make([][]B, 0, len(vars))
	for _, v := range vars {
		if b := v.Bindings(); len(b) > 0 {
			lists = append(lists, b)
		}
	}
	return lists
}

// expansionKey identifies an expansion context: the variables to expand,
// in order, and the set of bindings already on the path.
func expansionKey[B Identified, V Identified](vars []V, seen *set.Set[B]) string {
	var sb strings.Builder
	for i, v := range vars {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(v.ID()))
	}
	sb.WriteByte('|')
	sb.WriteString(idKey(seen.Slice()))
	return sb.String()
}
