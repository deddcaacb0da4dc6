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
	"fmt"
	"reflect"
	"strings"
	"text/scanner"
)

// SelfName is the key part name that refers to the receiver of a call.
const SelfName = "self"

// KeyPart is one component of a cache key.
type KeyPart struct {
	// Name is a declared parameter name or SelfName.
	Name string

	// Identity keys on the identity of the value instead of its contents.
	Identity bool
}

func (p KeyPart) String() string {
	if p.Identity {
		return "id(" + p.Name + ")"
	}
	return p.Name
}

// KeySpec is an ordered projection of call arguments onto a cache key.
type KeySpec []KeyPart

func (s KeySpec) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParseKeySpec parses a key expression.
//
// Description:
//
//	Grammar:
//
//	  expr := part | "(" part {"," part} [","] ")"
//	  part := name | "id(" name ")"
//
//	where name is an identifier and "self" names the receiver. Whitespace
//	is ignored. A parameter literally called "id" is still usable as long
//	as it is not followed by "(".
//
// Inputs:
//
//   - expr: The expression, e.g. "(x, id(y))".
//
// Outputs:
//
//   - KeySpec: The parsed projection. Never empty on success.
//   - error: Wraps ErrInvalidKeyExpr on malformed input.
//
// Example:
//
//	spec, err := memo.ParseKeySpec("(self, id(node))")
//	// spec == KeySpec{{Name: "self"}, {Name: "node", Identity: true}}
func ParseKeySpec(expr string) (KeySpec, error) {
	p := newKeyParser(expr)

	var spec KeySpec
	if p.tok == '(' {
		p.next()
		for p.tok != ')' {
			part, err := p.part()
			if err != nil {
				return nil, err
			}
			spec = append(spec, part)
			if p.tok == ',' {
				p.next()
				continue
			}
			if p.tok != ')' {
				return nil, p.errorf("expected ',' or ')'")
			}
		}
		p.next()
		if len(spec) == 0 {
			return nil, p.errorf("empty key")
		}
	} else {
		part, err := p.part()
		if err != nil {
			return nil, err
		}
		spec = KeySpec{part}
	}

	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected trailing input")
	}
	if p.scanErr != "" {
		return nil, p.errorf("%s", p.scanErr)
	}
	return spec, nil
}

// MustParseKeySpec is like ParseKeySpec but panics on error. Intended for
// package-level key declarations.
func MustParseKeySpec(expr string) KeySpec {
	spec, err := ParseKeySpec(expr)
	if err != nil {
		panic(err)
	}
	return spec
}

type keyParser struct {
	expr    string
	s       scanner.Scanner
	tok     rune
	scanErr string
}

func newKeyParser(expr string) *keyParser {
	p := &keyParser{expr: expr}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents
	p.s.Error = func(_ *scanner.Scanner, msg string) { p.scanErr = msg }
	p.next()
	return p
}

func (p *keyParser) next() { p.tok = p.s.Scan() }

func (p *keyParser) part() (KeyPart, error) {
	if p.tok != scanner.Ident {
		return KeyPart{}, p.errorf("expected name")
	}
	name := p.s.TokenText()
	p.next()
	if name != "id" || p.tok != '(' {
		return KeyPart{Name: name}, nil
	}

	p.next()
	if p.tok != scanner.Ident {
		return KeyPart{}, p.errorf("expected name inside id()")
	}
	inner := p.s.TokenText()
	p.next()
	if p.tok != ')' {
		return KeyPart{}, p.errorf("expected ')' after id(%s", inner)
	}
	p.next()
	return KeyPart{Name: inner, Identity: true}, nil
}

func (p *keyParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %q at offset %d: %s", ErrInvalidKeyExpr, p.expr, p.s.Position.Offset, fmt.Sprintf(format, args...))
}

// Identity is the key contribution of an id() part.
//
// Reference kinds (pointers, slices, maps, funcs, channels) are keyed by
// address; slices additionally by length. Other values have no identity
// separate from their contents and are keyed by value.
type Identity struct {
	Kind string
	Addr uint64
	Len  int
}

// identityOf returns the identity key of v and whether v is a reference
// kind that must be kept alive while the key is in use.
func identityOf(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return Identity{Kind: rv.Kind().String(), Addr: uint64(rv.Pointer())}, true
	case reflect.Slice:
		return Identity{Kind: rv.Kind().String(), Addr: uint64(rv.Pointer()), Len: rv.Len()}, true
	default:
		return v, false
	}
}
