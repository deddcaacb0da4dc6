// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dict provides the specialized mappings used while building
// type-inference state.
//
//   - AliasMap resolves keys through declared aliases before every access,
//     so several names share one entry.
//   - MonitorMap carries a monotonic version that advances on every
//     observable change, including changes inside the values it holds.
//
// Neither type is safe for concurrent mutation; an analysis pass owns its
// maps.
package dict

import (
	"errors"
	"fmt"
)

// Sentinel errors for mapping operations.
var (
	// ErrKeyNotFound is returned when a key (after alias resolution) holds
	// no entry.
	ErrKeyNotFound = errors.New("key not found")

	// ErrAliasConflict is returned when declaring an alias would contradict
	// existing aliases or entries.
	ErrAliasConflict = errors.New("alias conflict")
)

// AliasConflictError describes a rejected AddAlias call.
type AliasConflictError[K any] struct {
	// Alias and Target are the arguments of the rejected call.
	Alias  K
	Target K

	// Existing is the canonical key Alias already resolves to.
	Existing K

	// HasEntry is set when Alias is rejected because it holds an entry of
	// its own.
	HasEntry bool
}

func (e *AliasConflictError[K]) Error() string {
	if e.HasEntry {
		return fmt.Sprintf("%s: cannot alias %v to %v: %v already holds an entry",
			ErrAliasConflict, e.Alias, e.Target, e.Alias)
	}
	return fmt.Sprintf("%s: cannot alias %v to %v: already an alias of %v",
		ErrAliasConflict, e.Alias, e.Target, e.Existing)
}

func (e *AliasConflictError[K]) Unwrap() error { return ErrAliasConflict }
