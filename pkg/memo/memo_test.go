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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// concat joins the int slices bound to x and y into a new slice.
func concat(c Call) (*[]int, error) {
	x, _ := c.Arg("x").([]int)
	y, _ := c.Arg("y").([]int)
	out := append(append([]int{}, x...), y...)
	return &out, nil
}

func xy() Option {
	return WithParams(Param{Name: "x", Required: true}, Param{Name: "y", Required: true})
}

func TestMemoizer_DefaultKeyBindsLikeACallSite(t *testing.T) {
	f1 := MustNew(concat, WithName("f1"), xy())

	l1, err := f1.Call([]int{1}, []int{2})
	require.NoError(t, err)
	l2, err := f1.Invoke(nil, nil, map[string]any{"x": []int{1}, "y": []int{2}})
	require.NoError(t, err)
	l3, err := f1.Invoke(nil, []any{[]int{1}}, map[string]any{"y": []int{2}})
	require.NoError(t, err)

	assert.Same(t, l1, l2)
	assert.Same(t, l2, l3)

	l1, _ = f1.Call([]int{1}, []int{2})
	l2, _ = f1.Call([]int{1}, []int{3})
	assert.NotSame(t, l1, l2)
	assert.Equal(t, []int{1, 3}, *l2)
}

func TestMemoizer_KeyOnSingleParameter(t *testing.T) {
	f2 := MustNew(concat, xy(), WithKeyExpr("x"))

	l1, _ := f2.Call([]int{1}, []int{2})
	l2, _ := f2.Call([]int{1}, []int{3})
	assert.Same(t, l1, l2)

	l1, _ = f2.Invoke(nil, nil, map[string]any{"x": []int{1}, "y": []int{2}})
	l2, _ = f2.Invoke(nil, nil, map[string]any{"x": []int{1}, "y": []int{3}})
	assert.Same(t, l1, l2)

	l1, _ = f2.Call([]int{1}, []int{2})
	l2, _ = f2.Call([]int{2}, []int{2})
	assert.NotSame(t, l1, l2)
}

func TestMemoizer_IdentityKey(t *testing.T) {
	f3 := MustNew(concat, xy(), WithKeyExpr("(x, id(y))"))

	y1, y2 := []int{2}, []int{2}
	l1, _ := f3.Call([]int{1}, y1)
	l2, _ := f3.Call([]int{1}, y2)
	assert.NotSame(t, l1, l2, "equal but distinct slices have different identities")

	y := []int{2}
	l1, _ = f3.Call([]int{1}, y)
	l2, _ = f3.Call([]int{1}, y)
	l3, _ := f3.Invoke(nil, nil, map[string]any{"x": []int{1}, "y": y})
	assert.Same(t, l1, l2)
	assert.Same(t, l2, l3)
}

func TestMemoizer_DefaultsShareEntries(t *testing.T) {
	sum := func(c Call) (*int, error) {
		s := c.Arg("x").(int) + c.Arg("y").(int)
		return &s, nil
	}
	f4 := MustNew(sum,
		WithParams(Param{Name: "x", Default: 1}, Param{Name: "y", Default: 2}),
		WithKeyExpr("(x, y)"),
	)

	z1, _ := f4.Call(1, 2)
	z2, _ := f4.Call(1, 3)
	assert.NotEqual(t, *z1, *z2)

	z1, _ = f4.Call(1, 2)
	z2, _ = f4.Call(1, 2)
	assert.Same(t, z1, z2)

	z1, _ = f4.Call()
	z2, _ = f4.Call()
	assert.Same(t, z1, z2)

	z1, _ = f4.Call()
	z2, _ = f4.Call(1, 2)
	assert.Same(t, z1, z2)
	assert.Equal(t, 3, *z1)
}

type receiver struct {
	name string
}

func TestMemoizer_ReceiverIdentity(t *testing.T) {
	f5 := MustNew(concat, xy(), WithKeyExpr("(self, x, y)"))

	foo1 := &receiver{name: "foo"}
	foo2 := &receiver{name: "foo"}

	z1, _ := f5.Invoke(foo1, []any{[]int{1}, []int{2}}, nil)
	z2, _ := f5.Invoke(foo2, []any{[]int{1}, []int{2}}, nil)
	z3, _ := f5.Invoke(foo2, []any{[]int{1}, []int{2}}, nil)

	assert.NotSame(t, z1, z2)
	assert.Same(t, z2, z3)
	assert.Equal(t, 2, f5.Len())
}

func TestMemoizer_BindingErrors(t *testing.T) {
	f := MustNew(concat, WithName("binding"), xy())

	tests := []struct {
		name       string
		positional []any
		named      map[string]any
		want       error
	}{
		{"too many", []any{[]int{1}, []int{2}, []int{3}}, nil, ErrTooManyArguments},
		{"unknown", []any{[]int{1}, []int{2}}, map[string]any{"z": 1}, ErrUnknownArgument},
		{"duplicate", []any{[]int{1}}, map[string]any{"x": []int{1}}, ErrDuplicateArgument},
		{"missing", []any{[]int{1}}, nil, ErrMissingArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Invoke(nil, tt.positional, tt.named)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "binding")
		})
	}
	assert.Zero(t, f.Len())
}

func TestMemoizer_UnhashableKey(t *testing.T) {
	f := MustNew(func(c Call) (int, error) { return 1, nil },
		WithParams(Param{Name: "cb", Required: true}),
	)

	_, err := f.Call(func() {})
	assert.ErrorIs(t, err, ErrUnhashableKey)

	g := MustNew(func(c Call) (int, error) { return 1, nil },
		WithParams(Param{Name: "cb", Required: true}),
		WithKeyExpr("id(cb)"),
	)
	_, err = g.Call(func() {})
	assert.NoError(t, err, "functions key fine by identity")
}

type listNode struct {
	Name string
	Next *listNode
}

func TestMemoizer_PointersKeyByAddress(t *testing.T) {
	calls := 0
	f := MustNew(func(c Call) (string, error) {
		calls++
		return c.Arg("n").(*listNode).Name, nil
	}, WithParams(Param{Name: "n", Required: true}))

	loop := &listNode{Name: "loop"}
	loop.Next = loop

	v, err := f.Call(loop)
	require.NoError(t, err)
	assert.Equal(t, "loop", v)

	loop.Name = "renamed"
	v, err = f.Call(loop)
	require.NoError(t, err)
	assert.Equal(t, "loop", v, "same pointer hits even after mutation")
	assert.Equal(t, 1, calls)

	_, err = f.Call(&listNode{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "equal content at another address is another key")
}

func TestMemoizer_CyclicContentIsUnhashable(t *testing.T) {
	f := MustNew(func(c Call) (int, error) { return 1, nil },
		WithParams(Param{Name: "xs", Required: true}),
	)

	self := make([]any, 1)
	self[0] = self
	_, err := f.Call(self)
	assert.ErrorIs(t, err, ErrUnhashableKey)

	loop := &listNode{Name: "loop"}
	loop.Next = loop
	_, err = f.Call([]*listNode{loop})
	assert.ErrorIs(t, err, ErrUnhashableKey)

	_, err = f.Call([]*listNode{{Name: "a"}})
	assert.NoError(t, err)
}

func TestMemoizer_StructHoldingSliceKeysByContent(t *testing.T) {
	type wrapper struct{ V any }
	calls := 0
	f := MustNew(func(c Call) (int, error) {
		calls++
		return calls, nil
	}, WithParams(Param{Name: "w", Required: true}))

	a, err := f.Call(wrapper{V: []int{1, 2}})
	require.NoError(t, err)
	b, err := f.Call(wrapper{V: []int{1, 2}})
	require.NoError(t, err)
	c, err := f.Call(wrapper{V: 7})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, calls)
}

func TestMemoizer_ErrorsAreNotCached(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	f := MustNew(func(c Call) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return calls, nil
	}, WithParams(Param{Name: "x"}))

	_, err := f.Call(1)
	assert.ErrorIs(t, err, boom)

	v, err := f.Call(1)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = f.Call(1)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)

	stats := f.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestMemoizer_Recursive(t *testing.T) {
	var fib *Memoizer[int]
	calls := 0
	fib = MustNew(func(c Call) (int, error) {
		calls++
		n := c.Arg("n").(int)
		if n < 2 {
			return n, nil
		}
		a, err := fib.Call(n - 1)
		if err != nil {
			return 0, err
		}
		b, err := fib.Call(n - 2)
		return a + b, err
	}, WithParams(Param{Name: "n", Required: true}))

	v, err := fib.Call(40)
	require.NoError(t, err)
	assert.Equal(t, 102334155, v)
	assert.Equal(t, 41, calls)

	fib.Clear()
	assert.Zero(t, fib.Len())
	assert.Zero(t, fib.Stats().Hits)
}

func TestNew_Validation(t *testing.T) {
	_, err := New[int](nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	fn := func(Call) (int, error) { return 0, nil }

	_, err = New(fn, WithParams(Param{Name: "x"}, Param{Name: "x"}))
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = New(fn, WithParams(Param{Name: "self"}))
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = New(fn, WithParams(Param{Name: "x"}), WithKeyExpr("(x, y)"))
	assert.ErrorIs(t, err, ErrInvalidKeyExpr)

	_, err = New(fn, WithParams(Param{Name: "x"}), WithKeyExpr("(x"))
	assert.ErrorIs(t, err, ErrInvalidKeyExpr)

	m, err := New(fn, WithParams(Param{Name: "x"}), WithKey(KeySpec{{Name: "x", Identity: true}}))
	require.NoError(t, err)
	assert.Equal(t, "(id(x))", m.Key().String())

	assert.Panics(t, func() { MustNew(fn, WithKeyExpr(")")) })
}
