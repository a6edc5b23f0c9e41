// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

import (
	"fmt"

	"go.starlark.net/syntax"
)

// Parents records the structural parent of every node beneath a root.
//
// The table is keyed by node identity and lives only as long as the
// traversal that uses it; the syntax tree itself is never modified, so
// one tree may be indexed by any number of concurrent passes.
type Parents struct {
	root   syntax.Node
	parent map[syntax.Node]syntax.Node
}

// Index traverses the tree rooted at root once, recording for each
// node its immediate parent before descending into it.
func Index(root syntax.Node) *Parents {
	p := &Parents{root: root, parent: make(map[syntax.Node]syntax.Node)}
	var visit func(n syntax.Node)
	visit = func(n syntax.Node) {
		for _, child := range Children(n) {
			p.parent[child] = n
			visit(child)
		}
	}
	visit(root)
	return p
}

// Root returns the node the table was built from.
func (p *Parents) Root() syntax.Node { return p.root }

// Parent returns the parent of n.
// It reports false for the root and for nodes outside the indexed tree.
func (p *Parents) Parent(n syntax.Node) (syntax.Node, bool) {
	parent, ok := p.parent[n]
	return parent, ok
}

// Len returns the number of nodes that have a recorded parent.
func (p *Parents) Len() int { return len(p.parent) }

// Children returns the direct children of n in traversal order.
// The children of an IfStmt are its condition, then the statements of
// the True branch, then those of the False branch.
//
// Every node kind of the syntax package is handled here; a kind this
// switch does not know is a programming error.
func Children(n syntax.Node) []syntax.Node {
	var children []syntax.Node
	add := func(nodes ...syntax.Node) {
		for _, c := range nodes {
			if c != nil { // absent optional field
				children = append(children, c)
			}
		}
	}
	exprs := func(list []syntax.Expr) {
		for _, x := range list {
			add(x)
		}
	}
	stmts := func(list []syntax.Stmt) {
		for _, s := range list {
			add(s)
		}
	}

	switch n := n.(type) {
	case *syntax.File:
		stmts(n.Stmts)

	// statements
	case *syntax.AssignStmt:
		add(n.LHS, n.RHS)
	case *syntax.BranchStmt:
	case *syntax.DefStmt:
		add(n.Name)
		exprs(n.Params)
		stmts(n.Body)
	case *syntax.ExprStmt:
		add(n.X)
	case *syntax.ForStmt:
		add(n.Vars, n.X)
		stmts(n.Body)
	case *syntax.WhileStmt:
		add(n.Cond)
		stmts(n.Body)
	case *syntax.IfStmt:
		add(n.Cond)
		stmts(n.True)
		stmts(n.False)
	case *syntax.LoadStmt:
		add(n.Module)
		for i, from := range n.From {
			add(n.To[i], from)
		}
	case *syntax.ReturnStmt:
		add(n.Result)

	// expressions
	case *syntax.Ident, *syntax.Literal:
	case *syntax.BinaryExpr:
		add(n.X, n.Y)
	case *syntax.CallExpr:
		add(n.Fn)
		exprs(n.Args)
	case *syntax.Comprehension:
		for _, clause := range n.Clauses {
			add(clause)
		}
		add(n.Body)
	case *syntax.ForClause:
		add(n.Vars, n.X)
	case *syntax.IfClause:
		add(n.Cond)
	case *syntax.CondExpr:
		add(n.Cond, n.True, n.False)
	case *syntax.DictEntry:
		add(n.Key, n.Value)
	case *syntax.DictExpr:
		exprs(n.List)
	case *syntax.DotExpr:
		add(n.X, n.Name)
	case *syntax.IndexExpr:
		add(n.X, n.Y)
	case *syntax.LambdaExpr:
		exprs(n.Params)
		add(n.Body)
	case *syntax.ListExpr:
		exprs(n.List)
	case *syntax.ParenExpr:
		add(n.X)
	case *syntax.SliceExpr:
		add(n.X, n.Lo, n.Hi, n.Step)
	case *syntax.TupleExpr:
		exprs(n.List)
	case *syntax.UnaryExpr:
		add(n.X)

	default:
		panic(fmt.Sprintf("scope: unexpected node %T", n))
	}
	return children
}

// Walk calls f for n and every node beneath it, in depth-first
// order, parents before children. If f returns false, the children of
// that node are skipped.
func Walk(n syntax.Node, f func(syntax.Node) bool) {
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, f)
	}
}
