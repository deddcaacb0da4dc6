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
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// fixtureValidate validates decoded fixture documents.
var fixtureValidate *validator.Validate

func init() {
	fixtureValidate = validator.New()
	if err := fixtureValidate.RegisterValidation("label", validateLabel); err != nil {
		panic(fmt.Sprintf("typegraph: register label validation: %v", err))
	}
}

// validateLabel accepts non-empty names without whitespace or commas, so
// every label prints unambiguously in CLI output.
func validateLabel(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

// fixtureDoc is the YAML shape of a fixture.
//
//	nodes:
//	  - name: n1
//	    to: [n2, n3]
//	variables:
//	  - name: v1
//	    bindings:
//	      - data: x1
//	        params: [v2]
//	sort:
//	  - name: a
//	    after: [b]
type fixtureDoc struct {
	Nodes     []nodeDoc     `yaml:"nodes" validate:"dive"`
	Variables []variableDoc `yaml:"variables" validate:"dive"`
	Sort      []itemDoc     `yaml:"sort" validate:"dive"`
}

type nodeDoc struct {
	Name string   `yaml:"name" validate:"label"`
	To   []string `yaml:"to" validate:"dive,label"`
}

type variableDoc struct {
	Name     string       `yaml:"name" validate:"label"`
	Bindings []bindingDoc `yaml:"bindings" validate:"dive"`
}

type bindingDoc struct {
	Data   string   `yaml:"data" validate:"label"`
	Params []string `yaml:"params" validate:"dive,label"`
}

type itemDoc struct {
	Name  string   `yaml:"name" validate:"label"`
	After []string `yaml:"after" validate:"dive,label"`
}

// Item is a named unit of work with ordering requirements, used to drive
// topological sorts from fixtures. Implements graph.PredecessorReporting.
type Item struct {
	name  string
	after []*Item
}

// Name returns the item label.
func (i *Item) Name() string { return i.name }

// Incoming returns the items that must come before i.
func (i *Item) Incoming() []*Item { return slices.Clone(i.after) }

func (i *Item) String() string { return i.name }

// Fixture is a program built from a YAML description.
type Fixture struct {
	Program   *Program
	Nodes     []*CFGNode
	Variables []*Variable
	Items     []*Item

	nodes     map[string]*CFGNode
	variables map[string]*Variable
}

// Node returns the node declared under name.
func (f *Fixture) Node(name string) (*CFGNode, bool) {
	n, ok := f.nodes[name]
	return n, ok
}

// Variable returns the variable declared under name.
func (f *Fixture) Variable(name string) (*Variable, bool) {
	v, ok := f.variables[name]
	return v, ok
}

// VariablesNamed looks up several variables, failing on the first unknown
// name.
func (f *Fixture) VariablesNamed(names ...string) ([]*Variable, error) {
	out := make([]*Variable, 0, len(names))
	for _, name := range names {
		v, ok := f.variables[name]
		if !ok {
			return nil, &FixtureError{Section: "variables", Name: name, Err: ErrUnknownReference}
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadFixtureFile reads a fixture from a YAML file.
func LoadFixtureFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	fixture, err := LoadFixture(f)
	if err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return fixture, nil
}

// LoadFixture builds a program from a YAML fixture.
//
// Description:
//
//	Nodes are created in declaration order, then connected, so forward
//	references in "to" lists work and node IDs follow the file. Variables
//	are likewise all created before any binding, so "params" may name
//	variables declared further down, including the variable itself.
//	Unknown YAML fields are rejected.
//
// Inputs:
//
//   - r: The YAML source. An empty document yields an empty fixture.
//
// Outputs:
//
//   - *Fixture: The built program.
//   - error: Wraps ErrInvalidFixture, ErrDuplicateName or
//     ErrUnknownReference.
//
// Example:
//
//	fixture, err := typegraph.LoadFixture(strings.NewReader(`
//	nodes:
//	  - {name: entry, to: [exit]}
//	  - {name: exit}
//	`))
func LoadFixture(r io.Reader) (*Fixture, error) {
	var doc fixtureDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if err := fixtureValidate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}

	f := &Fixture{
		Program:   NewProgram(),
		nodes:     make(map[string]*CFGNode, len(doc.Nodes)),
		variables: make(map[string]*Variable, len(doc.Variables)),
	}
	if err := f.buildNodes(doc.Nodes); err != nil {
		return nil, err
	}
	if err := f.buildVariables(doc.Variables); err != nil {
		return nil, err
	}
	if err := f.buildItems(doc.Sort); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fixture) buildNodes(docs []nodeDoc) error {
	for _, d := range docs {
		if _, dup := f.nodes[d.Name]; dup {
			return &FixtureError{Section: "nodes", Name: d.Name, Err: ErrDuplicateName}
		}
		n := f.Program.NewCFGNode(d.Name)
		f.nodes[d.Name] = n
		f.Nodes = append(f.Nodes, n)
	}
	for _, d := range docs {
		from := f.nodes[d.Name]
		for _, to := range d.To {
			succ, ok := f.nodes[to]
			if !ok {
				return &FixtureError{Section: "nodes", Name: to, Err: ErrUnknownReference}
			}
			from.ConnectTo(succ)
		}
	}
	return nil
}

func (f *Fixture) buildVariables(docs []variableDoc) error {
	for _, d := range docs {
		if _, dup := f.variables[d.Name]; dup {
			return &FixtureError{Section: "variables", Name: d.Name, Err: ErrDuplicateName}
		}
		v := f.Program.NewVariable(d.Name)
		f.variables[d.Name] = v
		f.Variables = append(f.Variables, v)
	}
	for _, d := range docs {
		v := f.variables[d.Name]
		for _, b := range d.Bindings {
			params, err := f.VariablesNamed(b.Params...)
			if err != nil {
				return err
			}
			v.AddBinding(&Value{Name: b.Data, Params: params})
		}
	}
	return nil
}

func (f *Fixture) buildItems(docs []itemDoc) error {
	byName := make(map[string]*Item, len(docs))
	for _, d := range docs {
		if _, dup := byName[d.Name]; dup {
			return &FixtureError{Section: "sort", Name: d.Name, Err: ErrDuplicateName}
		}
		item := &Item{name: d.Name}
		byName[d.Name] = item
		f.Items = append(f.Items, item)
	}
	for _, d := range docs {
		item := byName[d.Name]
		for _, name := range d.After {
			pred, ok := byName[name]
			if !ok {
				return &FixtureError{Section: "sort", Name: name, Err: ErrUnknownReference}
			}
			item.after = append(item.after, pred)
		}
	}
	return nil
}
