// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package product_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/typecore/pkg/product"
	"github.com/AleutianAI/typecore/pkg/typegraph"
)

type (
	variable    = *typegraph.Variable
	binding     = *typegraph.Binding
	combination = product.Combination[*typegraph.Binding]
)

// values creates plain Values named x1..xn.
func values(n int) []*typegraph.Value {
	out := make([]*typegraph.Value, n)
	for i := range out {
		out[i] = &typegraph.Value{Name: fmt.Sprintf("x%d", i+1)}
	}
	return out
}

func newVariable(p *typegraph.Program, name string, data ...any) variable {
	v := p.NewVariable(name)
	for _, d := range data {
		v.AddBinding(d)
	}
	return v
}

// rowData renders each row as the data of its bindings.
func rowData(rows [][]binding) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, b := range row {
			out[i][j] = b.Data()
		}
	}
	return out
}

// comboNames renders each combination as its sorted data names, e.g. "x1 x3".
func comboNames(combos []combination) []string {
	out := make([]string, len(combos))
	for i, c := range combos {
		names := make([]string, 0, c.Len())
		for _, b := range c.Bindings() {
			names = append(names, fmt.Sprint(b.Data()))
		}
		slices.Sort(names)
		out[i] = strings.Join(names, " ")
	}
	return out
}

func deep(t *testing.T, roots ...variable) []string {
	t.Helper()
	combos, err := product.DeepVariableProductSlice[binding](context.Background(), roots)
	require.NoError(t, err)
	return comboNames(combos)
}

func TestVariableProduct(t *testing.T) {
	p := typegraph.NewProgram()
	u1 := newVariable(p, "u1", 1, 2)
	u2 := newVariable(p, "u2", 3, 4)

	rows := slices.Collect(product.VariableProduct[binding]([]variable{u1, u2}))
	assert.Equal(t, [][]any{{1, 3}, {1, 4}, {2, 3}, {2, 4}}, rowData(rows))
}

func TestVariableProduct_Edges(t *testing.T) {
	p := typegraph.NewProgram()
	empty := newVariable(p, "empty")
	u := newVariable(p, "u", 1, 2)

	rows := slices.Collect(product.VariableProduct[binding]([]variable(nil)))
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0])

	rows = slices.Collect(product.VariableProduct[binding]([]variable{u, empty}))
	assert.Empty(t, rows)
}

func TestVariableProduct_Size(t *testing.T) {
	p := typegraph.NewProgram()
	sizes := []int{2, 3, 1, 4}
	vars := make([]variable, len(sizes))
	want := 1
	for i, n := range sizes {
		vars[i] = p.NewVariable(fmt.Sprintf("v%d", i))
		for j := 0; j < n; j++ {
			vars[i].AddBinding(fmt.Sprintf("d%d_%d", i, j))
		}
		want *= n
	}

	count := 0
	for row := range product.VariableProduct[binding](vars) {
		require.Len(t, row, len(vars))
		count++
	}
	assert.Equal(t, want, count)
}

func TestVariableProduct_EarlyStop(t *testing.T) {
	p := typegraph.NewProgram()
	u1 := newVariable(p, "u1", 1, 2, 3)
	u2 := newVariable(p, "u2", 4, 5, 6)

	count := 0
	for range product.VariableProduct[binding]([]variable{u1, u2}) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestVariableProductDict(t *testing.T) {
	p := typegraph.NewProgram()
	u1 := newVariable(p, "u1", 1, 2)
	u2 := newVariable(p, "u2", 3, 4)

	var got []map[string]any
	for row := range product.VariableProductDict[binding](map[string]variable{"a": u1, "b": u2}) {
		m := make(map[string]any, len(row))
		for k, b := range row {
			m[k] = b.Data()
		}
		got = append(got, m)
	}

	assert.Equal(t, []map[string]any{
		{"a": 1, "b": 3},
		{"a": 1, "b": 4},
		{"a": 2, "b": 3},
		{"a": 2, "b": 4},
	}, got)
}

func TestDeepVariableProduct(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(6)
	v1 := newVariable(p, "v1", x[0], x[1])
	v2 := newVariable(p, "v2", x[2])
	v3 := newVariable(p, "v3", x[3], x[4])
	v4 := newVariable(p, "v4", x[5])
	x[0].Params = []variable{v2, v3}

	assert.ElementsMatch(t, []string{
		"x1 x3 x4 x6",
		"x1 x3 x5 x6",
		"x2 x6",
	}, deep(t, v1, v4))
}

func TestDeepVariableProduct_EmptyVariables(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(1)
	v1 := newVariable(p, "v1", x[0])
	v2 := newVariable(p, "v2")
	x[0].Params = []variable{v2}

	assert.Equal(t, []string{"x1"}, deep(t, v1))
}

func TestDeepVariableProduct_EmptyTopLayer(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(1)
	v1 := newVariable(p, "v1", x[0])
	v2 := newVariable(p, "v2")

	assert.Equal(t, []string{"x1"}, deep(t, v1, v2))
}

func TestDeepVariableProduct_NoRoots(t *testing.T) {
	assert.Equal(t, []string{""}, deep(t))
}

func TestDeepVariableProduct_Cycle(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(6)
	v1 := newVariable(p, "v1", x[0], x[1])
	v2 := newVariable(p, "v2", x[2])
	v3 := newVariable(p, "v3", x[3], x[4])
	v4 := newVariable(p, "v4", x[5])
	x[0].Params = []variable{v2, v3}
	x[4].Params = []variable{v1}

	assert.ElementsMatch(t, []string{
		"x1 x3 x4 x6",
		"x1 x2 x3 x5 x6",
		"x1 x3 x5 x6",
		"x2 x6",
	}, deep(t, v1, v4))
}

func TestDeepVariableProduct_SelfCycle(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(2)
	v := newVariable(p, "v", x[0], x[1])
	x[0].Params = []variable{v}

	assert.ElementsMatch(t, []string{"x1", "x1 x2", "x2"}, deep(t, v))
}

func TestDeepVariableProduct_Deduplicates(t *testing.T) {
	p := typegraph.NewProgram()
	v := newVariable(p, "v", "a", "b")

	assert.ElementsMatch(t, []string{"a", "a b", "b"}, deep(t, v, v))
}

func TestDeepVariableProduct_Idempotent(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(6)
	v1 := newVariable(p, "v1", x[0], x[1])
	v2 := newVariable(p, "v2", x[2], x[3])
	v3 := newVariable(p, "v3", x[4], x[5])
	x[0].Params = []variable{v2, v3}
	x[2].Params = []variable{v3}

	first := deep(t, v1)
	for range 3 {
		assert.Equal(t, first, deep(t, v1))
	}
	assert.ElementsMatch(t, []string{
		"x1 x3 x5", "x1 x3 x6", "x1 x3 x5 x6",
		"x1 x4 x5", "x1 x4 x6",
		"x2",
	}, first)
}

func TestDeepVariableProduct_ComplexityLimit(t *testing.T) {
	p := typegraph.NewProgram()
	x := values(6)
	v1 := newVariable(p, "v1", x[0], x[1])
	v2 := newVariable(p, "v2", x[2])
	v3 := newVariable(p, "v3", x[3], x[4])
	v4 := newVariable(p, "v4", x[5])
	x[0].Params = []variable{v2, v3}

	combos, err := product.DeepVariableProductSlice[binding](context.Background(), []variable{v1, v4},
		product.WithComplexityLimit(2))
	require.ErrorIs(t, err, product.ErrComplexityLimit)
	var limitErr *product.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, limitErr.Limit)
	assert.Empty(t, combos)

	combos, err = product.DeepVariableProductSlice[binding](context.Background(), []variable{v1, v4},
		product.WithComplexityLimit(100))
	require.NoError(t, err)
	assert.Len(t, combos, 3)
}

func TestDeepVariableProduct_Cancelled(t *testing.T) {
	p := typegraph.NewProgram()
	vars := make([]variable, 8)
	for i := range vars {
		vars[i] = newVariable(p, fmt.Sprintf("v%d", i), "a"+fmt.Sprint(i), "b"+fmt.Sprint(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := product.DeepVariableProductSlice[binding](ctx, vars)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeepVariableProduct_EarlyStop(t *testing.T) {
	p := typegraph.NewProgram()
	v := newVariable(p, "v", "a", "b", "c")

	count := 0
	for c, err := range product.DeepVariableProduct[binding](context.Background(), []variable{v}) {
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len())
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestCombination(t *testing.T) {
	p := typegraph.NewProgram()
	v := newVariable(p, "v", "a", "b")
	w := newVariable(p, "w", "c")
	a, b := v.Bindings()[0], v.Bindings()[1]
	c := w.Bindings()[0]

	combos, err := product.DeepVariableProductSlice[binding](context.Background(), []variable{w, v})
	require.NoError(t, err)
	require.Len(t, combos, 2)

	first := combos[0]
	assert.True(t, first.Contains(c))
	assert.True(t, first.Contains(a))
	assert.False(t, first.Contains(b))
	assert.Equal(t, []binding{a, c}, first.Bindings())
	assert.Equal(t, fmt.Sprintf("%d,%d", a.ID(), c.ID()), first.Key())
	assert.Equal(t, "{a, c}", first.String())

	var zero combination
	assert.Zero(t, zero.Len())
	assert.False(t, zero.Contains(a))
}
