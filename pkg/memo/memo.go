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
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"maps"
	"reflect"
	"slices"
	"sync/atomic"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Param declares one parameter of a memoized function.
type Param struct {
	// Name is the parameter name used by named arguments and key parts.
	Name string

	// Default is used when the caller omits the argument.
	Default any

	// Required makes omitting the argument an error instead of using Default.
	Required bool
}

// Call carries the bound arguments of one invocation.
type Call struct {
	// Receiver is the value "self" refers to. May be nil.
	Receiver any

	params []Param
	values []any
}

// Arg returns the bound value of the named parameter, or nil if no such
// parameter is declared.
func (c Call) Arg(name string) any {
	for i, p := range c.params {
		if p.Name == name {
			return c.values[i]
		}
	}
	return nil
}

// Args returns the bound values in declaration order.
func (c Call) Args() []any {
	return slices.Clone(c.values)
}

// Option configures a Memoizer.
type Option func(*options)

type options struct {
	name    string
	params  []Param
	key     KeySpec
	keyExpr string
}

// WithName names the memoizer in errors and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithParams declares the parameter list, in positional order.
func WithParams(params ...Param) Option {
	return func(o *options) { o.params = append(o.params, params...) }
}

// WithKey sets the key projection. Defaults to every parameter by value.
func WithKey(spec KeySpec) Option {
	return func(o *options) { o.key = slices.Clone(spec) }
}

// WithKeyExpr sets the key projection from an expression, see ParseKeySpec.
func WithKeyExpr(expr string) Option {
	return func(o *options) { o.keyExpr = expr }
}

// Memoizer caches the results of a function by a projection of its
// arguments.
//
// Description:
//
//	Results are cached under a key made of the KeySpec parts. A by-value
//	part compares the way a Go map key does when its value is comparable,
//	so pointers key by address and a mutated object still hits its entry.
//	Slices, maps and structs holding them compare by content, so two
//	distinct but equal slices share an entry. id() parts and the receiver
//	compare by identity. A cached result is returned as-is; callers observe the
//	very same value on a hit.
//
//	Errors returned by the wrapped function are not cached.
//
// Thread Safety: NOT safe for concurrent use. The wrapped function may call
// back into the same Memoizer.
type Memoizer[R any] struct {
	name   string
	fn     func(Call) (R, error)
	params []Param
	index  map[string]int
	key    KeySpec

	seed    maphash.Seed
	buckets map[uint64][]memoEntry[R]
	size    int

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
	hits        atomic.Int64
	misses      atomic.Int64
}

// memoEntry is one cached result. pins keeps identity-keyed values alive
// so their addresses cannot be reused while the entry exists.
type memoEntry[R any] struct {
	key    []any
	pins   []any
	result R
}

// New creates a Memoizer for fn.
//
// Description:
//
//	Validates the parameter declarations and the key projection. Every
//	key part must name a declared parameter or "self".
//
// Inputs:
//
//   - fn: The function to memoize. Must not be nil.
//   - opts: WithParams, WithKey/WithKeyExpr, WithName.
//
// Outputs:
//
//   - *Memoizer[R]: The memoizer. Nil on error.
//   - error: ErrNilFunc, ErrInvalidParam or ErrInvalidKeyExpr (wrapped).
//
// Example:
//
//	m, err := memo.New(func(c memo.Call) (*Result, error) {
//	    return analyze(c.Arg("node").(*Node), c.Arg("depth").(int))
//	},
//	    memo.WithName("analyze"),
//	    memo.WithParams(memo.Param{Name: "node", Required: true}, memo.Param{Name: "depth", Default: 3}),
//	    memo.WithKeyExpr("(id(node), depth)"),
//	)
func New[R any](fn func(Call) (R, error), opts ...Option) (*Memoizer[R], error) {
	o := options{name: "anonymous"}
	for _, opt := range opts {
		opt(&o)
	}
	if fn == nil {
		return nil, fmt.Errorf("memo %s: %w", o.name, ErrNilFunc)
	}

	index := make(map[string]int, len(o.params))
	for i, p := range o.params {
		if p.Name == "" || p.Name == SelfName {
			return nil, fmt.Errorf("memo %s: %w: parameter %d named %q", o.name, ErrInvalidParam, i, p.Name)
		}
		if _, dup := index[p.Name]; dup {
			return nil, fmt.Errorf("memo %s: %w: %q declared twice", o.name, ErrInvalidParam, p.Name)
		}
		index[p.Name] = i
	}

	key := o.key
	if o.keyExpr != "" {
		parsed, err := ParseKeySpec(o.keyExpr)
		if err != nil {
			return nil, fmt.Errorf("memo %s: %w", o.name, err)
		}
		key = parsed
	}
	if key == nil {
		key = make(KeySpec, len(o.params))
		for i, p := range o.params {
			key[i] = KeyPart{Name: p.Name}
		}
	}
	for _, part := range key {
		if _, ok := index[part.Name]; !ok && part.Name != SelfName {
			return nil, fmt.Errorf("memo %s: %w: %s names no parameter %q", o.name, ErrInvalidKeyExpr, key, part.Name)
		}
	}

	return &Memoizer[R]{
		name:        o.name,
		fn:          fn,
		params:      slices.Clone(o.params),
		index:       index,
		key:         key,
		seed:        maphash.MakeSeed(),
		buckets:     make(map[uint64][]memoEntry[R]),
		hitCounter:  memoHits.WithLabelValues(o.name),
		missCounter: memoMisses.WithLabelValues(o.name),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[R any](fn func(Call) (R, error), opts ...Option) *Memoizer[R] {
	m, err := New(fn, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Invoke calls the memoized function, or returns the cached result.
//
// Description:
//
//	Binds positional arguments to parameters in order, then named
//	arguments by name, then fills the remaining parameters from their
//	defaults. The bound call is projected onto the key; on a hit the cached
//	result is returned without calling the function. Omitting a defaulted
//	argument therefore hits the same entry as passing its default.
//
// Inputs:
//
//   - receiver: What "self" refers to. May be nil.
//   - positional: Positional arguments.
//   - named: Named arguments. May be nil.
//
// Outputs:
//
//   - R: The cached or freshly computed result.
//   - error: A binding error (ErrTooManyArguments, ErrUnknownArgument,
//     ErrDuplicateArgument, ErrMissingArgument), ErrUnhashableKey, or the
//     function's own error.
func (m *Memoizer[R]) Invoke(receiver any, positional []any, named map[string]any) (R, error) {
	var zero R

	call, err := m.bind(receiver, positional, named)
	if err != nil {
		return zero, err
	}
	key, pins, hash, err := m.keyOf(call)
	if err != nil {
		return zero, err
	}

	for _, e := range m.buckets[hash] {
		if keysEqual(e.key, key) {
			m.hits.Add(1)
			m.hitCounter.Inc()
			return e.result, nil
		}
	}
	m.misses.Add(1)
	m.missCounter.Inc()

	result, err := m.fn(call)
	if err != nil {
		return zero, err
	}
	m.buckets[hash] = append(m.buckets[hash], memoEntry[R]{key: key, pins: pins, result: result})
	m.size++
	return result, nil
}

// Call invokes the memoizer with positional arguments and no receiver.
func (m *Memoizer[R]) Call(args ...any) (R, error) {
	return m.Invoke(nil, args, nil)
}

// Name returns the memoizer name.
func (m *Memoizer[R]) Name() string { return m.name }

// Key returns the key projection in use.
func (m *Memoizer[R]) Key() KeySpec { return slices.Clone(m.key) }

// Len returns the number of cached results.
func (m *Memoizer[R]) Len() int { return m.size }

// Clear drops every cached result and resets the counters.
func (m *Memoizer[R]) Clear() {
	m.buckets = make(map[uint64][]memoEntry[R])
	m.size = 0
	m.hits.Store(0)
	m.misses.Store(0)
}

// Stats returns the hit/miss counters and the number of entries.
func (m *Memoizer[R]) Stats() TableStats {
	return TableStats{Hits: m.hits.Load(), Misses: m.misses.Load(), Size: m.size}
}

// bind maps call-site arguments onto the declared parameters.
func (m *Memoizer[R]) bind(receiver any, positional []any, named map[string]any) (Call, error) {
	if len(positional) > len(m.params) {
		return Call{}, fmt.Errorf("memo %s: %w: got %d, want at most %d",
			m.name, ErrTooManyArguments, len(positional), len(m.params))
	}

	values := make([]any, len(m.params))
	bound := make([]bool, len(m.params))
	copy(values, positional)
	for i := range positional {
		bound[i] = true
	}

	for _, name := range slices.Sorted(maps.Keys(named)) {
		i, ok := m.index[name]
		if !ok {
			return Call{}, &ArgumentError{Memoizer: m.name, Param: name, Err: ErrUnknownArgument}
		}
		if bound[i] {
			return Call{}, &ArgumentError{Memoizer: m.name, Param: name, Err: ErrDuplicateArgument}
		}
		values[i] = named[name]
		bound[i] = true
	}

	for i, p := range m.params {
		if bound[i] {
			continue
		}
		if p.Required {
			return Call{}, &ArgumentError{Memoizer: m.name, Param: p.Name, Err: ErrMissingArgument}
		}
		values[i] = p.Default
	}

	return Call{Receiver: receiver, params: m.params, values: values}, nil
}

// keyOf projects a bound call onto its cache key and hashes it.
//
// The receiver always keys by identity; for non-reference receivers that
// is the same as keying by value.
func (m *Memoizer[R]) keyOf(call Call) ([]any, []any, uint64, error) {
	key := make([]any, len(m.key))
	var pins []any
	var h maphash.Hash
	h.SetSeed(m.seed)
	var buf [8]byte

	for i, part := range m.key {
		var v any
		if part.Name == SelfName {
			v = call.Receiver
		} else {
			v = call.values[m.index[part.Name]]
		}

		if part.Identity || part.Name == SelfName {
			id, ref := identityOf(v)
			if ref {
				pins = append(pins, v)
			}
			v = id
		}
		key[i] = v

		sum, err := m.partHash(v)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("memo %s: %w: %s: %w", m.name, ErrUnhashableKey, part, err)
		}
		binary.LittleEndian.PutUint64(buf[:], sum)
		h.Write(buf[:])
	}
	return key, pins, h.Sum64(), nil
}

// partHash hashes one key part consistently with partEqual.
func (m *Memoizer[R]) partHash(v any) (uint64, error) {
	if isComparable(v) {
		return maphash.Comparable(m.seed, v), nil
	}
	if cyclic(reflect.ValueOf(v)) {
		return 0, errCyclicValue
	}
	return hashstructure.Hash(v, hashstructure.FormatV2, nil)
}

func keysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !partEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func partEqual(a, b any) bool {
	if isComparable(a) && isComparable(b) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// isComparable reports whether v can be used with == without panicking,
// looking through interface-typed fields at what they hold.
func isComparable(v any) bool {
	return v == nil || reflect.ValueOf(v).Comparable()
}

// visit identifies a reference on the current walk path.
type visit struct {
	addr uintptr
	typ  reflect.Type
}

// cyclic reports whether v reaches itself through the pointers, slices,
// maps and exported fields hashstructure descends into.
func cyclic(v reflect.Value) bool {
	return walkCyclic(v, make(map[visit]struct{}))
}

func walkCyclic(v reflect.Value, path map[visit]struct{}) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return false
		}
		at := visit{addr: v.Pointer(), typ: v.Type()}
		if _, onPath := path[at]; onPath {
			return true
		}
		path[at] = struct{}{}
		defer delete(path, at)
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return false
		}
		return walkCyclic(v.Elem(), path)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if walkCyclic(v.Index(i), path) {
				return true
			}
		}
	case reflect.Map:
		it := v.MapRange()
		for it.Next() {
			if walkCyclic(it.Key(), path) || walkCyclic(it.Value(), path) {
				return true
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() && walkCyclic(v.Field(i), path) {
				return true
			}
		}
	}
	return false
}
