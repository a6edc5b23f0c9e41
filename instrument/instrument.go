// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package instrument rewrites assignments so that every value bound to
// a variable is reported to a type registry.
//
// The statement
//
//	x = f()
//
// becomes
//
//	x = _typetrace_record(f(), ["main.x"])
//
// and a tuple assignment a, b = f() becomes
//
//	a, b = _typetrace_record(f(), ["main.a", "main.b"], unpack=True)
//
// The recording function returns its first argument unchanged, so the
// program computes exactly what it computed before. See Recorder.
//
// Only plain assignments are rewritten. Targets that are not simple
// identifiers (attributes, indices, nested tuples) are not recorded;
// an assignment with no identifier target and every augmented
// assignment is left as it was.
package instrument // import "github.com/typetrace/typetrace/instrument"

import (
	"strconv"

	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/label"
	"github.com/typetrace/typetrace/scope"
)

// DefaultFunc is the name under which instrumented code calls the
// recording function.
const DefaultFunc = "_typetrace_record"

// Options control the rewrite.
type Options struct {
	Module string // name of the module scope in qualified names
	Sep    string // qualified name separator; label.DefaultSep if empty
	Func   string // recording function name; DefaultFunc if empty
}

func (o Options) fn() string {
	if o.Func == "" {
		return DefaultFunc
	}
	return o.Func
}

// A Site describes one instrumented assignment.
type Site struct {
	Pos    syntax.Position // position of the assignment operator
	Labels []string        // one per target position; "" if not recorded
	Unpack bool
}

// A Report summarizes a rewrite.
type Report struct {
	Sites   []Site
	Skipped []syntax.Position // plain assignments with no identifier target
}

// File returns an instrumented copy of f.
//
// The input is not modified: statements on the path to a rewritten
// assignment are copied, and every other node is shared between the
// input and the result.
func File(f *syntax.File, opts Options) (*syntax.File, *Report) {
	parents := scope.Index(f)
	labeler := label.New(parents, opts.Module)
	if opts.Sep != "" {
		labeler.Sep = opts.Sep
	}
	in := &instrumenter{opts: opts, labeler: labeler, report: new(Report)}

	stmts, changed := in.stmts(f.Stmts)
	if !changed {
		return f, in.report
	}
	out := *f
	out.Stmts = stmts
	return &out, in.report
}

type instrumenter struct {
	opts    Options
	labeler *label.Labeler
	report  *Report
}

// stmts rewrites a statement list, returning the input slice itself
// when nothing in it changed.
func (in *instrumenter) stmts(list []syntax.Stmt) ([]syntax.Stmt, bool) {
	var out []syntax.Stmt
	for i, stmt := range list {
		repl := in.stmt(stmt)
		if repl != stmt && out == nil {
			out = make([]syntax.Stmt, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = repl
		}
	}
	if out == nil {
		return list, false
	}
	return out, true
}

func (in *instrumenter) stmt(stmt syntax.Stmt) syntax.Stmt {
	switch stmt := stmt.(type) {
	case *syntax.AssignStmt:
		return in.assign(stmt)

	case *syntax.DefStmt:
		if body, ok := in.stmts(stmt.Body); ok {
			cp := *stmt
			cp.Body = body
			return &cp
		}

	case *syntax.IfStmt:
		t, okT := in.stmts(stmt.True)
		f, okF := in.stmts(stmt.False)
		if okT || okF {
			cp := *stmt
			cp.True, cp.False = t, f
			return &cp
		}

	case *syntax.ForStmt:
		if body, ok := in.stmts(stmt.Body); ok {
			cp := *stmt
			cp.Body = body
			return &cp
		}

	case *syntax.WhileStmt:
		if body, ok := in.stmts(stmt.Body); ok {
			cp := *stmt
			cp.Body = body
			return &cp
		}
	}
	return stmt
}

func (in *instrumenter) assign(stmt *syntax.AssignStmt) syntax.Stmt {
	if stmt.Op != syntax.EQ {
		return stmt
	}
	idents, unpack := label.Targets(stmt.LHS)

	labels := make([]string, len(idents))
	found := false
	for i, id := range idents {
		if id != nil {
			labels[i] = in.labeler.Of(id)
			found = true
		}
	}
	if !found {
		in.report.Skipped = append(in.report.Skipped, stmt.OpPos)
		return stmt
	}
	in.report.Sites = append(in.report.Sites, Site{Pos: stmt.OpPos, Labels: labels, Unpack: unpack})

	cp := *stmt
	cp.RHS = in.call(stmt.RHS, labels, unpack)
	return &cp
}

// call builds fn(rhs, [labels...]) carrying the position of rhs.
func (in *instrumenter) call(rhs syntax.Expr, labels []string, unpack bool) *syntax.CallExpr {
	start, end := rhs.Span()

	names := &syntax.ListExpr{Lbrack: start, Rbrack: end}
	for _, l := range labels {
		if l == "" {
			names.List = append(names.List, &syntax.Ident{NamePos: start, Name: "None"})
			continue
		}
		names.List = append(names.List, &syntax.Literal{
			Token:    syntax.STRING,
			TokenPos: start,
			Raw:      strconv.Quote(l),
			Value:    l,
		})
	}

	args := []syntax.Expr{rhs, names}
	if unpack {
		args = append(args, &syntax.BinaryExpr{
			X:     &syntax.Ident{NamePos: start, Name: "unpack"},
			OpPos: start,
			Op:    syntax.EQ,
			Y:     &syntax.Ident{NamePos: start, Name: "True"},
		})
	}
	return &syntax.CallExpr{
		Fn:     &syntax.Ident{NamePos: start, Name: in.opts.fn()},
		Lparen: start,
		Args:   args,
		Rparen: end,
	}
}
