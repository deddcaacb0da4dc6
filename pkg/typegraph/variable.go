// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package typegraph

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ParameterOwner is implemented by binding data that is parameterized by
// other variables, such as a generic instance whose type parameters are
// themselves variables.
type ParameterOwner interface {
	Parameters() []*Variable
}

// Value is plain binding data with an optional list of parameter
// variables. Fixtures create their binding data as Values.
type Value struct {
	Name   string
	Params []*Variable
}

// Parameters implements ParameterOwner.
func (v *Value) Parameters() []*Variable { return slices.Clone(v.Params) }

func (v *Value) String() string { return v.Name }

// Variable is a program variable holding a set of possible values, one
// Binding per distinct datum.
type Variable struct {
	program  *Program
	id       int
	name     string
	bindings []*Binding

	subscribers map[int]func()
	nextSub     int
}

// ID returns the creation-order number of the variable.
func (v *Variable) ID() int { return v.id }

// Name returns the variable label.
func (v *Variable) Name() string { return v.name }

// Program returns the owning program.
func (v *Variable) Program() *Program { return v.program }

// Bindings returns the bindings in insertion order.
func (v *Variable) Bindings() []*Binding { return slices.Clone(v.bindings) }

// Data returns the data of every binding in insertion order.
func (v *Variable) Data() []any {
	out := make([]any, len(v.bindings))
	for i, b := range v.bindings {
		out[i] = b.data
	}
	return out
}

// AddBinding adds data to the variable and returns its binding.
//
// If an equal datum is already bound, its binding is returned and nothing
// changes. Otherwise subscribers are notified. Comparable data is compared
// with ==, so pointer data is deduplicated by identity; other data by deep
// equality.
func (v *Variable) AddBinding(data any) *Binding {
	for _, b := range v.bindings {
		if sameData(b.data, data) {
			return b
		}
	}

	b := &Binding{variable: v, id: v.program.allocID(), data: data}
	v.bindings = append(v.bindings, b)
	for _, key := range slices.Sorted(maps.Keys(v.subscribers)) {
		v.subscribers[key]()
	}
	return b
}

// Subscribe registers fn to run after each AddBinding that adds a new
// datum. Implements dict.Observable.
func (v *Variable) Subscribe(fn func()) (cancel func()) {
	if v.subscribers == nil {
		v.subscribers = make(map[int]func())
	}
	key := v.nextSub
	v.nextSub++
	v.subscribers[key] = fn
	return func() { delete(v.subscribers, key) }
}

func (v *Variable) String() string {
	names := make([]string, len(v.bindings))
	for i, b := range v.bindings {
		names[i] = fmt.Sprint(b.data)
	}
	return fmt.Sprintf("<%d>%s{%s}", v.id, v.name, strings.Join(names, ", "))
}

// Binding is one possible value of a Variable.
type Binding struct {
	variable *Variable
	id       int
	data     any
}

// ID returns the creation-order number of the binding.
func (b *Binding) ID() int { return b.id }

// Data returns the bound datum.
func (b *Binding) Data() any { return b.data }

// Variable returns the variable the binding belongs to.
func (b *Binding) Variable() *Variable { return b.variable }

// Parameters returns the parameter variables of the datum, if it has any.
func (b *Binding) Parameters() []*Variable {
	if owner, ok := b.data.(ParameterOwner); ok {
		return owner.Parameters()
	}
	return nil
}

func (b *Binding) String() string {
	return fmt.Sprint(b.data)
}

func sameData(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
