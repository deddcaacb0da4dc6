// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/typecore/pkg/dict"
	"github.com/AleutianAI/typecore/pkg/typegraph"
)

func TestMonitorMap_TracksVariableChanges(t *testing.T) {
	prog := typegraph.NewProgram()
	d := dict.NewMonitorMap[string, *typegraph.Variable]()

	stamp := d.Version()
	v := prog.NewVariable("var")
	d.Set("key", v)
	assert.Greater(t, d.Version(), stamp)

	stamp = d.Version()
	v.AddBinding("data")
	assert.Greater(t, d.Version(), stamp)

	stamp = d.Version()
	v.AddBinding("data")
	assert.Equal(t, stamp, d.Version(), "duplicate data is not a change")

	stamp = d.Version()
	require.NoError(t, d.Delete("key"))
	assert.Greater(t, d.Version(), stamp)

	stamp = d.Version()
	v.AddBinding("after delete")
	assert.Equal(t, stamp, d.Version(), "deleted values are no longer watched")
}

func TestMonitorMap_Overwrite(t *testing.T) {
	prog := typegraph.NewProgram()
	d := dict.NewMonitorMap[string, *typegraph.Variable]()
	v1 := prog.NewVariable("v1")
	v2 := prog.NewVariable("v2")

	assert.True(t, d.Set("key", v1))
	stamp := d.Version()
	assert.False(t, d.Set("key", v1))
	assert.Equal(t, stamp, d.Version())

	assert.True(t, d.Set("key", v2))
	assert.Greater(t, d.Version(), stamp)

	stamp = d.Version()
	v1.AddBinding("x")
	assert.Equal(t, stamp, d.Version(), "replaced value is no longer watched")
	v2.AddBinding("x")
	assert.Greater(t, d.Version(), stamp)

	d.Close()
	stamp = d.Version()
	v2.AddBinding("y")
	assert.Equal(t, stamp, d.Version())
	assert.Equal(t, 1, d.Len())
}

func TestMonitorMap_PlainValues(t *testing.T) {
	d := dict.NewMonitorMap[string, int]()
	assert.Zero(t, d.Version())

	d.Set("a", 1)
	d.Set("b", 2)
	d.Set("a", 1)
	d.Set("a", 3)
	assert.Equal(t, int64(3), d.Version())

	v, err := d.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	_, err = d.Get("zzz")
	assert.ErrorIs(t, err, dict.ErrKeyNotFound)
	assert.ErrorIs(t, d.Delete("zzz"), dict.ErrKeyNotFound)
	assert.Equal(t, int64(3), d.Version(), "failed delete is not a change")

	assert.Equal(t, []string{"a", "b"}, d.Keys())
	assert.True(t, d.Contains("b"))
	n := 0
	for range d.All() {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestMonitorMap_UncomparableValues(t *testing.T) {
	d := dict.NewMonitorMap[string, any]()

	assert.True(t, d.Set("k", []int{1}))
	assert.True(t, d.Set("k", []int{2}))
	assert.False(t, d.Set("k", []int{2}), "equal slice is not a change")
	assert.Equal(t, int64(2), d.Version())

	type holder struct{ V any }
	assert.True(t, d.Set("h", holder{V: []string{"a"}}))
	assert.False(t, d.Set("h", holder{V: []string{"a"}}))
	assert.True(t, d.Set("h", holder{V: 1}))
	assert.Equal(t, int64(4), d.Version())

	slices := dict.NewMonitorMap[string, []int]()
	slices.Set("k", []int{1})
	assert.False(t, slices.Set("k", []int{1}))
	assert.Equal(t, int64(1), slices.Version())
}
