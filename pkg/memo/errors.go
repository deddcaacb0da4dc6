// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memo memoizes functions by a configurable projection of their
// arguments.
//
// A Memoizer wraps a function together with a declared parameter list. Calls
// go through Invoke, which binds positional and named arguments the way a
// call site would, fills in defaults, and projects the bound arguments onto a
// cache key. The key projection is described by a KeySpec, usually parsed
// from a short expression:
//
//	x              key on x by value
//	(x, y)         key on x and y by value
//	(x, id(y))     key on x by value and on the identity of y
//	(self, x)      key on the receiver and x
//
// Table is the lower-level building block: a plain keyed cache with hit and
// miss accounting, used directly where the key is already comparable.
//
// Entries are never evicted. A cache lives exactly as long as the Memoizer
// or Table holding it.
package memo

import (
	"errors"
	"fmt"
)

// Sentinel errors for argument binding and key projection.
var (
	// ErrUnknownArgument is returned when a named argument matches no
	// declared parameter.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrMissingArgument is returned when a required parameter receives no
	// value.
	ErrMissingArgument = errors.New("missing argument")

	// ErrDuplicateArgument is returned when a parameter is bound both
	// positionally and by name.
	ErrDuplicateArgument = errors.New("duplicate argument")

	// ErrTooManyArguments is returned when more positional arguments are
	// passed than parameters are declared.
	ErrTooManyArguments = errors.New("too many positional arguments")

	// ErrUnhashableKey is returned when a by-value key part cannot be hashed.
	ErrUnhashableKey = errors.New("unhashable key")

	// ErrInvalidKeyExpr is returned for malformed key expressions or
	// expressions naming undeclared parameters.
	ErrInvalidKeyExpr = errors.New("invalid key expression")

	// ErrInvalidParam is returned by New for an empty or repeated
	// parameter name.
	ErrInvalidParam = errors.New("invalid parameter declaration")

	// ErrNilFunc is returned by New when no function is given.
	ErrNilFunc = errors.New("memoized function must not be nil")
)

// errCyclicValue is wrapped in ErrUnhashableKey for content-hashed values
// that reach themselves.
var errCyclicValue = errors.New("value refers to itself")

// ArgumentError reports an argument binding failure for one parameter.
type ArgumentError struct {
	Memoizer string
	Param    string
	Err      error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("memo %s: %s: %q", e.Memoizer, e.Err, e.Param)
}

func (e *ArgumentError) Unwrap() error { return e.Err }
