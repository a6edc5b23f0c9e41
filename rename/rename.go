// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rename alpha-renames a Starlark program so that every
// binding has a name unique across the whole program.
//
// Renaming keeps references intact: a use of a name is renamed to the
// binding it refers to under Starlark's lexical scoping rules, and names
// with no binding in the program (predeclared and universal names, or
// names of other modules) are left alone.
//
// The module, each def, each lambda and each comprehension is a block.
// A name bound anywhere in a block is local to the whole block, so all
// bindings of a block are declared when it is entered:
//
//	a = 10            # main__a__0
//	def foo(x):       # main__foo__1, x is main__foo__x__2
//	    return x + a  # main__foo__x__2 + main__a__0
package rename // import "github.com/typetrace/typetrace/rename"

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/scope"
)

// A Rename records the unique name given to one binding.
type Rename struct {
	Original string
	Unique   string
	Pos      syntax.Position // first binding occurrence
}

// A Result lists the renames performed, in declaration order.
type Result struct {
	Renames []Rename
}

// File returns an alpha-renamed copy of f. The input is not modified.
// Unique names start with module, if it is not empty.
func File(f *syntax.File, module string) (*syntax.File, *Result) {
	r := &renamer{
		taken:  make(map[string]bool),
		params: make(map[string]map[string]string),
		result: new(Result),
	}
	scope.Walk(f, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok {
			r.taken[id.Name] = true
		}
		return true
	})

	r.push(identPrefix(module))
	r.declareAll(f.Stmts)
	stmts := r.stmts(f.Stmts)
	r.pop()

	// Keyword arguments can precede the def they name.
	for _, kw := range r.keywords {
		if m, ok := r.params[kw.fn]; ok {
			if unique, ok := m[kw.id.Name]; ok {
				kw.id.Name = unique
			}
		}
	}

	out := *f
	out.Stmts = stmts
	return &out, r.result
}

// identPrefix maps module to a string usable at the start of an
// identifier, replacing other characters with '_'.
func identPrefix(module string) string {
	b := []byte(module)
	for i, c := range b {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

type renamer struct {
	counter  int
	taken    map[string]bool // identifiers that may not be generated
	blocks   []*block
	params   map[string]map[string]string // unique def name -> param renames
	keywords []keyword
	result   *Result
}

type block struct {
	name  string
	names map[string]string // original -> unique
}

// A keyword is a keyword argument in a call to a named function,
// whose name may need to follow the renamed parameter.
type keyword struct {
	fn string
	id *syntax.Ident
}

func (r *renamer) push(name string) {
	r.blocks = append(r.blocks, &block{name: name, names: make(map[string]string)})
}

func (r *renamer) pop() { r.blocks = r.blocks[:len(r.blocks)-1] }

func (r *renamer) current() *block { return r.blocks[len(r.blocks)-1] }

// fresh returns a new name for original that collides with no
// identifier of the program and no earlier result.
func (r *renamer) fresh(original string) string {
	var path []string
	for _, b := range r.blocks {
		if b.name != "" {
			path = append(path, b.name)
		}
	}
	path = append(path, original)
	base := strings.Join(path, "__")
	for {
		name := fmt.Sprintf("%s__%d", base, r.counter)
		r.counter++
		if !r.taken[name] {
			r.taken[name] = true
			return name
		}
	}
}

// declare binds id in the current block unless the block already has it.
func (r *renamer) declare(id *syntax.Ident) {
	b := r.current()
	if _, ok := b.names[id.Name]; ok {
		return
	}
	unique := r.fresh(id.Name)
	b.names[id.Name] = unique
	r.result.Renames = append(r.result.Renames, Rename{Original: id.Name, Unique: unique, Pos: id.NamePos})
}

// declareAll declares every name bound by the statements of a block,
// not counting those of nested blocks.
func (r *renamer) declareAll(stmts []syntax.Stmt) {
	for _, stmt := range stmts {
		switch stmt := stmt.(type) {
		case *syntax.AssignStmt:
			r.declareTargets(stmt.LHS)
		case *syntax.DefStmt:
			r.declare(stmt.Name)
		case *syntax.ForStmt:
			r.declareTargets(stmt.Vars)
			r.declareAll(stmt.Body)
		case *syntax.WhileStmt:
			r.declareAll(stmt.Body)
		case *syntax.IfStmt:
			r.declareAll(stmt.True)
			r.declareAll(stmt.False)
		case *syntax.LoadStmt:
			for _, to := range stmt.To {
				r.declare(to)
			}
		}
	}
}

func (r *renamer) declareTargets(lhs syntax.Expr) {
	switch lhs := lhs.(type) {
	case *syntax.Ident:
		r.declare(lhs)
	case *syntax.ParenExpr:
		r.declareTargets(lhs.X)
	case *syntax.TupleExpr:
		for _, x := range lhs.List {
			r.declareTargets(x)
		}
	case *syntax.ListExpr:
		for _, x := range lhs.List {
			r.declareTargets(x)
		}
	}
}

func (r *renamer) lookup(name string) (string, bool) {
	for i := len(r.blocks) - 1; i >= 0; i-- {
		if unique, ok := r.blocks[i].names[name]; ok {
			return unique, true
		}
	}
	return "", false
}

// -- statements --

func (r *renamer) stmts(list []syntax.Stmt) []syntax.Stmt {
	if list == nil {
		return nil
	}
	out := make([]syntax.Stmt, len(list))
	for i, stmt := range list {
		out[i] = r.stmt(stmt)
	}
	return out
}

func (r *renamer) stmt(stmt syntax.Stmt) syntax.Stmt {
	switch stmt := stmt.(type) {
	case *syntax.AssignStmt:
		cp := *stmt
		cp.LHS = r.expr(stmt.LHS)
		cp.RHS = r.expr(stmt.RHS)
		return &cp

	case *syntax.ExprStmt:
		cp := *stmt
		cp.X = r.expr(stmt.X)
		return &cp

	case *syntax.BranchStmt:
		cp := *stmt
		return &cp

	case *syntax.ReturnStmt:
		cp := *stmt
		if stmt.Result != nil {
			cp.Result = r.expr(stmt.Result)
		}
		return &cp

	case *syntax.LoadStmt:
		cp := *stmt
		cp.To = make([]*syntax.Ident, len(stmt.To))
		for i, to := range stmt.To {
			cp.To[i] = r.ident(to)
		}
		cp.From = make([]*syntax.Ident, len(stmt.From))
		for i, from := range stmt.From {
			id := *from
			cp.From[i] = &id
		}
		return &cp

	case *syntax.IfStmt:
		cp := *stmt
		cp.Cond = r.expr(stmt.Cond)
		cp.True = r.stmts(stmt.True)
		cp.False = r.stmts(stmt.False)
		return &cp

	case *syntax.ForStmt:
		cp := *stmt
		cp.Vars = r.expr(stmt.Vars)
		cp.X = r.expr(stmt.X)
		cp.Body = r.stmts(stmt.Body)
		return &cp

	case *syntax.WhileStmt:
		cp := *stmt
		cp.Cond = r.expr(stmt.Cond)
		cp.Body = r.stmts(stmt.Body)
		return &cp

	case *syntax.DefStmt:
		cp := *stmt
		cp.Function = nil
		cp.Name = r.ident(stmt.Name)
		var renamed map[string]string
		cp.Params, renamed = r.function(stmt.Name.Name, stmt.Params, func() {
			r.declareAll(stmt.Body)
			cp.Body = r.stmts(stmt.Body)
		})
		r.params[cp.Name.Name] = renamed
		return &cp
	}
	panic(fmt.Sprintf("rename: unexpected statement %T", stmt))
}

// function renames the parameters of a def or lambda and runs body
// inside the function's block. Default values belong to the enclosing
// block. It returns the new parameters and the parameter renames.
func (r *renamer) function(name string, params []syntax.Expr, body func()) ([]syntax.Expr, map[string]string) {
	defaults := make([]syntax.Expr, len(params))
	for i, param := range params {
		if b, ok := param.(*syntax.BinaryExpr); ok {
			defaults[i] = r.expr(b.Y)
		}
	}

	r.push(name)
	out := make([]syntax.Expr, len(params))
	for i, param := range params {
		switch param := param.(type) {
		case *syntax.Ident:
			r.declare(param)
			out[i] = r.ident(param)
		case *syntax.BinaryExpr: // name=default
			cp := *param
			id := param.X.(*syntax.Ident)
			r.declare(id)
			cp.X = r.ident(id)
			cp.Y = defaults[i]
			out[i] = &cp
		case *syntax.UnaryExpr: // *, *args, **kwargs
			cp := *param
			if id, ok := param.X.(*syntax.Ident); ok {
				r.declare(id)
				cp.X = r.ident(id)
			}
			out[i] = &cp
		default:
			panic(fmt.Sprintf("rename: unexpected parameter %T", param))
		}
	}
	renamed := make(map[string]string, len(r.current().names))
	for orig, unique := range r.current().names {
		renamed[orig] = unique
	}
	body()
	r.pop()
	return out, renamed
}

// -- expressions --

// ident returns a copy of id naming the binding it refers to.
func (r *renamer) ident(id *syntax.Ident) *syntax.Ident {
	cp := *id
	cp.Binding = nil
	if unique, ok := r.lookup(id.Name); ok {
		cp.Name = unique
	}
	return &cp
}

func (r *renamer) exprs(list []syntax.Expr) []syntax.Expr {
	if list == nil {
		return nil
	}
	out := make([]syntax.Expr, len(list))
	for i, x := range list {
		out[i] = r.expr(x)
	}
	return out
}

func (r *renamer) expr(e syntax.Expr) syntax.Expr {
	switch e := e.(type) {
	case *syntax.Ident:
		return r.ident(e)

	case *syntax.Literal:
		cp := *e
		return &cp

	case *syntax.ParenExpr:
		cp := *e
		cp.X = r.expr(e.X)
		return &cp

	case *syntax.TupleExpr:
		cp := *e
		cp.List = r.exprs(e.List)
		return &cp

	case *syntax.ListExpr:
		cp := *e
		cp.List = r.exprs(e.List)
		return &cp

	case *syntax.DictExpr:
		cp := *e
		cp.List = r.exprs(e.List)
		return &cp

	case *syntax.DictEntry:
		cp := *e
		cp.Key = r.expr(e.Key)
		cp.Value = r.expr(e.Value)
		return &cp

	case *syntax.CallExpr:
		cp := *e
		cp.Fn = r.expr(e.Fn)
		cp.Args = make([]syntax.Expr, len(e.Args))
		for i, arg := range e.Args {
			if b, ok := arg.(*syntax.BinaryExpr); ok && b.Op == syntax.EQ {
				kw := *b
				name := *b.X.(*syntax.Ident)
				kw.X = &name
				kw.Y = r.expr(b.Y)
				if fn, ok := cp.Fn.(*syntax.Ident); ok {
					r.keywords = append(r.keywords, keyword{fn: fn.Name, id: &name})
				}
				cp.Args[i] = &kw
				continue
			}
			cp.Args[i] = r.expr(arg)
		}
		return &cp

	case *syntax.DotExpr:
		cp := *e
		cp.X = r.expr(e.X)
		name := *e.Name
		cp.Name = &name
		return &cp

	case *syntax.IndexExpr:
		cp := *e
		cp.X = r.expr(e.X)
		cp.Y = r.expr(e.Y)
		return &cp

	case *syntax.SliceExpr:
		cp := *e
		cp.X = r.expr(e.X)
		cp.Lo = r.optExpr(e.Lo)
		cp.Hi = r.optExpr(e.Hi)
		cp.Step = r.optExpr(e.Step)
		return &cp

	case *syntax.UnaryExpr:
		cp := *e
		cp.X = r.optExpr(e.X)
		return &cp

	case *syntax.BinaryExpr:
		cp := *e
		cp.X = r.expr(e.X)
		cp.Y = r.expr(e.Y)
		return &cp

	case *syntax.CondExpr:
		cp := *e
		cp.Cond = r.expr(e.Cond)
		cp.True = r.expr(e.True)
		cp.False = r.expr(e.False)
		return &cp

	case *syntax.LambdaExpr:
		cp := *e
		cp.Function = nil
		cp.Params, _ = r.function("lambda", e.Params, func() {
			cp.Body = r.expr(e.Body)
		})
		return &cp

	case *syntax.Comprehension:
		return r.comprehension(e)
	}
	panic(fmt.Sprintf("rename: unexpected expression %T", e))
}

func (r *renamer) optExpr(e syntax.Expr) syntax.Expr {
	if e == nil {
		return nil
	}
	return r.expr(e)
}

// comprehension renames a comprehension. The operand of the first for
// clause is evaluated in the enclosing block; everything else,
// including all loop variables, belongs to the comprehension's block.
func (r *renamer) comprehension(e *syntax.Comprehension) *syntax.Comprehension {
	cp := *e
	var firstX syntax.Expr
	if first, ok := e.Clauses[0].(*syntax.ForClause); ok {
		firstX = r.expr(first.X)
	}

	r.push("comp")
	for _, clause := range e.Clauses {
		if clause, ok := clause.(*syntax.ForClause); ok {
			r.declareTargets(clause.Vars)
		}
	}
	cp.Clauses = make([]syntax.Node, len(e.Clauses))
	for i, clause := range e.Clauses {
		switch clause := clause.(type) {
		case *syntax.ForClause:
			c := *clause
			c.Vars = r.expr(clause.Vars)
			if i == 0 {
				c.X = firstX
			} else {
				c.X = r.expr(clause.X)
			}
			cp.Clauses[i] = &c
		case *syntax.IfClause:
			c := *clause
			c.Cond = r.expr(clause.Cond)
			cp.Clauses[i] = &c
		}
	}
	cp.Body = r.expr(e.Body)
	r.pop()
	return &cp
}
