// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dynvar provides dynamically scoped variables.
//
// A DynamicVar holds a stack of bindings on top of a default value. Code
// deep inside a call tree reads the innermost binding without it being
// threaded through every signature, and the binding disappears when the
// scope that established it exits, however it exits.
package dynvar

// DynamicVar is a dynamically scoped variable.
//
// Thread Safety: NOT safe for concurrent use. Bindings are scoped to the
// call tree of one goroutine.
type DynamicVar[T any] struct {
	def   T
	stack []T
}

// New creates a DynamicVar whose value outside any binding is def.
func New[T any](def T) *DynamicVar[T] {
	return &DynamicVar[T]{def: def}
}

// Get returns the innermost bound value, or the default when nothing is
// bound.
func (v *DynamicVar[T]) Get() T {
	if len(v.stack) == 0 {
		return v.def
	}
	return v.stack[len(v.stack)-1]
}

// Bind runs fn with value bound and returns fn's error.
//
// The previous value is restored when fn returns, whether it returns an
// error or panics.
//
// Example:
//
//	err := depth.Bind(depth.Get()+1, func() error {
//	    return visit(child)
//	})
func (v *DynamicVar[T]) Bind(value T, fn func() error) error {
	defer v.Push(value)()
	return fn()
}

// Push binds value until the returned function is called. The returned
// function must be called exactly once, in reverse order of pushes; the
// usual form is
//
//	defer v.Push(value)()
func (v *DynamicVar[T]) Push(value T) (restore func()) {
	v.stack = append(v.stack, value)
	depth := len(v.stack)
	return func() {
		// Unwinding out of order would restore the wrong value.
		if len(v.stack) != depth {
			panic("dynvar: bindings restored out of order")
		}
		var zero T
		v.stack[depth-1] = zero
		v.stack = v.stack[:depth-1]
	}
}

// Depth returns the number of active bindings.
func (v *DynamicVar[T]) Depth() int { return len(v.stack) }
