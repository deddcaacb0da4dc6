// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeySpec(t *testing.T) {
	tests := []struct {
		expr string
		want KeySpec
	}{
		{"x", KeySpec{{Name: "x"}}},
		{"(x)", KeySpec{{Name: "x"}}},
		{"(x, y)", KeySpec{{Name: "x"}, {Name: "y"}}},
		{"(x, y,)", KeySpec{{Name: "x"}, {Name: "y"}}},
		{"(x, id(y))", KeySpec{{Name: "x"}, {Name: "y", Identity: true}}},
		{"id(self)", KeySpec{{Name: "self", Identity: true}}},
		{" ( self ,x,  y ) ", KeySpec{{Name: "self"}, {Name: "x"}, {Name: "y"}}},
		{"(id, x)", KeySpec{{Name: "id"}, {Name: "x"}}},
		{"node_2", KeySpec{{Name: "node_2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseKeySpec(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeySpec_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"()",
		"(,)",
		"(x",
		"(x y)",
		"x)",
		"id(",
		"id()",
		"id(x",
		"(x, id(y z))",
		"1x",
		"x + y",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseKeySpec(expr)
			assert.ErrorIs(t, err, ErrInvalidKeyExpr)
		})
	}
}

func TestKeySpec_String(t *testing.T) {
	spec := MustParseKeySpec("(self,x,id(y))")
	assert.Equal(t, "(self, x, id(y))", spec.String())
}

func TestIdentityOf(t *testing.T) {
	a, b := []int{1}, []int{1}
	ida, refA := identityOf(a)
	idb, _ := identityOf(b)
	assert.True(t, refA)
	assert.NotEqual(t, ida, idb)

	same, _ := identityOf(a)
	assert.Equal(t, ida, same)

	v, ref := identityOf(42)
	assert.False(t, ref)
	assert.Equal(t, 42, v)

	v, ref = identityOf(nil)
	assert.False(t, ref)
	assert.Nil(t, v)
}

func TestTable_GetOrCompute(t *testing.T) {
	table := NewTable[string, int]()
	calls := 0
	compute := func() (int, error) {
		calls++
		return calls, nil
	}

	v, hit, err := table.GetOrCompute("a", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, v)

	v, hit, err = table.GetOrCompute("a", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v)

	got, ok := table.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)
	_, ok = table.Lookup("b")
	assert.False(t, ok)

	assert.Equal(t, TableStats{Hits: 1, Misses: 1, Size: 1}, table.Stats())

	table.Clear()
	assert.Zero(t, table.Len())
	assert.Equal(t, TableStats{}, table.Stats())
}

func TestTable_ErrorNotCached(t *testing.T) {
	table := NewTable[int, string]()
	_, _, err := table.GetOrCompute(1, func() (string, error) { return "", assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, table.Len())
}

func TestTable_Reentrant(t *testing.T) {
	table := NewTable[int, int]()
	var paths func(n int) int
	paths = func(n int) int {
		v, _, _ := table.GetOrCompute(n, func() (int, error) {
			if n <= 1 {
				return 1, nil
			}
			return paths(n-1) + paths(n-2), nil
		})
		return v
	}

	assert.Equal(t, 89, paths(10))
	assert.Equal(t, 11, table.Len())
}
