// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package product enumerates binding combinations of program variables.
//
//   - VariableProduct and VariableProductDict: the plain cartesian product,
//     one binding per variable.
//   - DeepVariableProduct: the cycle-safe product that also chooses a
//     binding for every parameter variable reachable through the chosen
//     bindings, to any depth.
//
// The functions are generic over the variable and binding types, so any
// program model satisfying Variable and Binding plugs in. Because Go cannot
// infer the binding type from the variable type, callers name it:
//
//	for row := range product.VariableProduct[*typegraph.Binding](vars) { ... }
package product

import (
	"errors"
	"fmt"
)

// Sentinel errors for product enumeration.
var (
	// ErrComplexityLimit is returned when a deep product builds more rows
	// than the configured limit.
	ErrComplexityLimit = errors.New("deep product complexity limit exceeded")
)

// LimitError reports which limit a deep product ran into.
type LimitError struct {
	Limit int
	Built int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: built %d rows, limit %d", ErrComplexityLimit, e.Built, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrComplexityLimit }
