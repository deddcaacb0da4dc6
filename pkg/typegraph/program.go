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
	"slices"

	"github.com/google/uuid"
)

// Program owns the nodes and variables of one analysed program.
type Program struct {
	id        uuid.UUID
	nextID    int
	nodes     []*CFGNode
	variables []*Variable
}

// NewProgram creates an empty program with a fresh random ID.
func NewProgram() *Program {
	return &Program{id: uuid.New()}
}

// ID identifies the program in logs and spans.
func (p *Program) ID() uuid.UUID { return p.id }

// NewCFGNode creates an unconnected node.
func (p *Program) NewCFGNode(name string) *CFGNode {
	n := &CFGNode{program: p, id: p.allocID(), name: name}
	p.nodes = append(p.nodes, n)
	return n
}

// NewVariable creates a variable without bindings.
func (p *Program) NewVariable(name string) *Variable {
	v := &Variable{program: p, id: p.allocID(), name: name}
	p.variables = append(p.variables, v)
	return v
}

// Nodes returns every node in creation order.
func (p *Program) Nodes() []*CFGNode { return slices.Clone(p.nodes) }

// Variables returns every variable in creation order.
func (p *Program) Variables() []*Variable { return slices.Clone(p.variables) }

// allocID hands out IDs. Nodes, variables and bindings share one counter,
// so IDs are unique program-wide and follow creation order.
func (p *Program) allocID() int {
	id := p.nextID
	p.nextID++
	return id
}

// CFGNode is a control-flow graph node.
type CFGNode struct {
	program  *Program
	id       int
	name     string
	outgoing []*CFGNode
	incoming []*CFGNode
}

// ID returns the creation-order number of the node.
func (n *CFGNode) ID() int { return n.id }

// Name returns the node label.
func (n *CFGNode) Name() string { return n.name }

// Program returns the owning program.
func (n *CFGNode) Program() *Program { return n.program }

// Outgoing returns the successors in edge insertion order.
func (n *CFGNode) Outgoing() []*CFGNode { return slices.Clone(n.outgoing) }

// Incoming returns the direct predecessors in edge insertion order.
func (n *CFGNode) Incoming() []*CFGNode { return slices.Clone(n.incoming) }

// ConnectNew creates a node and adds an edge from n to it.
func (n *CFGNode) ConnectNew(name string) *CFGNode {
	succ := n.program.NewCFGNode(name)
	n.ConnectTo(succ)
	return succ
}

// ConnectTo adds an edge from n to succ. Repeated edges are ignored.
func (n *CFGNode) ConnectTo(succ *CFGNode) {
	if slices.Contains(n.outgoing, succ) {
		return
	}
	n.outgoing = append(n.outgoing, succ)
	succ.incoming = append(succ.incoming, n)
}

func (n *CFGNode) String() string {
	return fmt.Sprintf("<%d>%s", n.id, n.name)
}
