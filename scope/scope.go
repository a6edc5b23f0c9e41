// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scope reconstructs the lexical scope structure of a Starlark
// syntax tree.
//
// Syntax nodes carry no parent pointers, so scope queries go through a
// Parents table built by Index. A Resolver answers three questions
// about a node: which scopes enclose it (Chain), where an anonymous
// scope sits among its same-kind siblings (Ordinal), and whether a node
// lies in the else branch of a conditional (InAlternate).
//
// Scopes are either named (the module and def statements) or
// anonymous (lambdas, conditionals, loops and comprehensions).
// Anonymous scopes are identified by their kind and ordinal.
package scope // import "github.com/typetrace/typetrace/scope"

import (
	"go.starlark.net/syntax"
)

// Kind is the kind of a scope-introducing node.
type Kind uint8

const (
	NotScope Kind = iota
	Module        // *syntax.File
	Function      // *syntax.DefStmt
	Lambda        // *syntax.LambdaExpr
	If            // *syntax.IfStmt
	For           // *syntax.ForStmt
	While         // *syntax.WhileStmt
	Comp          // *syntax.Comprehension
)

var kindNames = [...]string{
	NotScope: "",
	Module:   "Module",
	Function: "Function",
	Lambda:   "Lambda",
	If:       "If",
	For:      "For",
	While:    "While",
	Comp:     "Comp",
}

// String returns the tag used for the kind in qualified names.
func (k Kind) String() string { return kindNames[k] }

// Anonymous reports whether scopes of this kind have no name of their
// own and are identified by ordinal instead.
func (k Kind) Anonymous() bool {
	switch k {
	case Lambda, If, For, While, Comp:
		return true
	}
	return false
}

// KindOf returns the scope kind of n, or NotScope.
//
// This switch is the single definition of which nodes introduce scopes.
func KindOf(n syntax.Node) Kind {
	switch n.(type) {
	case *syntax.File:
		return Module
	case *syntax.DefStmt:
		return Function
	case *syntax.LambdaExpr:
		return Lambda
	case *syntax.IfStmt:
		return If
	case *syntax.ForStmt:
		return For
	case *syntax.WhileStmt:
		return While
	case *syntax.Comprehension:
		return Comp
	}
	return NotScope
}

// A Chain is the sequence of scopes enclosing a node, outermost first.
type Chain []syntax.Node

// Innermost returns the innermost scope of the chain, or nil.
func (c Chain) Innermost() syntax.Node {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// A Resolver answers scope queries over an indexed tree.
// It is read-only and safe for concurrent use.
type Resolver struct {
	parents *Parents
}

// NewResolver returns a resolver over the given parent table.
func NewResolver(parents *Parents) *Resolver {
	return &Resolver{parents: parents}
}

// Parents returns the resolver's parent table.
func (r *Resolver) Parents() *Parents { return r.parents }

// Chain returns the scopes enclosing n, outermost first.
// The chain never contains n itself.
func (r *Resolver) Chain(n syntax.Node) Chain {
	var chain Chain
	for p, ok := r.parents.Parent(n); ok; p, ok = r.parents.Parent(p) {
		if KindOf(p) != NotScope {
			chain = append(chain, p)
		}
	}
	// reverse: outermost first
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Ordinal returns the zero-based position of n among those children of
// its parent that have the same kind as n, counting in traversal order
// up to and including n.
//
// The ordinal is unique only among siblings of one parent. It is -1 if
// n is the root or is not a scope.
func (r *Resolver) Ordinal(n syntax.Node) int {
	kind := KindOf(n)
	parent, ok := r.parents.Parent(n)
	if kind == NotScope || !ok {
		return -1
	}
	count := -1
	for _, sibling := range Children(parent) {
		if KindOf(sibling) == kind {
			count++
		}
		if sibling == n {
			break
		}
	}
	return count
}

// InAlternate reports whether n lies within the else branch of cond.
//
// The answer comes from n's ancestry: n is in the alternate branch iff
// n, or one of its ancestors, is a statement of cond.False.
func (r *Resolver) InAlternate(n syntax.Node, cond *syntax.IfStmt) bool {
	for cur := n; ; {
		parent, ok := r.parents.Parent(cur)
		if !ok {
			return false
		}
		if parent == syntax.Node(cond) {
			for _, stmt := range cond.False {
				if syntax.Node(stmt) == cur {
					return true
				}
			}
			return false
		}
		cur = parent
	}
}
