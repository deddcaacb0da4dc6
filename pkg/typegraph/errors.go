// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package typegraph is a small in-memory program model: a control-flow
// graph of CFGNodes and a data-flow layer of Variables and their Bindings.
//
// It is the reference collaborator for the graph, product and dict
// packages. CFGNode satisfies graph.Node, Variable and Binding satisfy the
// product constraints, and Variable is a dict.Observable. Fixtures in YAML
// describe whole programs for tests and for the typecore CLI.
//
// # Identity
//
// Every node, variable and binding gets an ID from a per-program counter in
// creation order. IDs are what the ordering algorithms use to break ties.
//
// # Thread Safety
//
// A Program and everything created from it belong to one goroutine.
package typegraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for fixture loading.
var (
	// ErrInvalidFixture is returned when a fixture fails validation.
	ErrInvalidFixture = errors.New("invalid fixture")

	// ErrDuplicateName is returned when a fixture declares a name twice in
	// the same section.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownReference is returned when a fixture refers to a name it
	// never declares.
	ErrUnknownReference = errors.New("unknown reference")
)

// FixtureError locates a fixture problem.
type FixtureError struct {
	Section string
	Name    string
	Err     error
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Section, e.Name, e.Err)
}

func (e *FixtureError) Unwrap() error { return e.Err }
