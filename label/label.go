// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package label derives qualified names for assignment targets.
//
// A qualified name encodes the scope chain of a binding:
//
//	def foo(x):
//	    if x != 10:
//	        y = 1     # main.foo.If#0.y
//	    else:
//	        y = 2     # main.foo.If#0Else.y
//
// Named scopes contribute their name, anonymous scopes contribute their
// kind tag, "#" and their ordinal among same-kind siblings, and a conditional
// whose else branch contains the binding adds the suffix "Else".
//
// Labels depend only on the shape of the tree, so the same binding gets
// the same label in every run of the same program. Observations from
// many runs therefore accumulate under one key.
//
// An elif clause is a conditional nested in the else branch of the
// previous one, and it counts its ordinal afresh inside that branch.
// The body of an elif and the body of an if that is the only statement
// of an else block are indistinguishable, and get the same label.
package label // import "github.com/typetrace/typetrace/label"

import (
	"strconv"
	"strings"

	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/scope"
)

// DefaultSep separates the segments of a qualified name.
// Starlark identifiers cannot contain it.
const DefaultSep = "."

// OrdinalMark joins the kind tag of an anonymous scope to its ordinal.
// Starlark identifiers cannot contain it, so no def shares a segment
// with an anonymous scope.
const OrdinalMark = "#"

// ElseSuffix marks a conditional segment whose else branch holds the binding.
const ElseSuffix = "Else"

// A Labeler computes qualified names over one indexed tree.
// It keeps no state between calls.
type Labeler struct {
	Module string // name contributed by the module scope; omitted if empty
	Sep    string // segment separator; DefaultSep if empty

	resolver *scope.Resolver
}

// New returns a Labeler for the tree indexed by parents.
func New(parents *scope.Parents, module string) *Labeler {
	return &Labeler{Module: module, Sep: DefaultSep, resolver: scope.NewResolver(parents)}
}

// Resolver returns the scope resolver used by the labeler.
func (l *Labeler) Resolver() *scope.Resolver { return l.resolver }

// Of returns the qualified name of the binding target id.
func (l *Labeler) Of(id *syntax.Ident) string {
	segs := l.Segments(id)
	segs = append(segs, id.Name)
	return strings.Join(segs, l.sep())
}

// Segments returns the scope part of the qualified name of n,
// outermost first.
func (l *Labeler) Segments(n syntax.Node) []string {
	var segs []string
	for _, s := range l.resolver.Chain(n) {
		if seg := l.segment(n, s); seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

func (l *Labeler) segment(n, s syntax.Node) string {
	kind := scope.KindOf(s)
	switch s := s.(type) {
	case *syntax.File:
		return l.Module
	case *syntax.DefStmt:
		return s.Name.Name
	case *syntax.IfStmt:
		seg := l.anonymous(kind, s)
		if l.resolver.InAlternate(n, s) {
			seg += ElseSuffix
		}
		return seg
	}
	return l.anonymous(kind, s)
}

func (l *Labeler) anonymous(kind scope.Kind, s syntax.Node) string {
	return kind.String() + OrdinalMark + strconv.Itoa(l.resolver.Ordinal(s))
}

func (l *Labeler) sep() string {
	if l.Sep == "" {
		return DefaultSep
	}
	return l.Sep
}

// A Site is a simple-identifier assignment target and its label.
type Site struct {
	Ident *syntax.Ident
	Label string
}

// Pos returns the position of the target identifier.
func (s Site) Pos() syntax.Position { return s.Ident.NamePos }

// Targets returns the identifiers bound by the left-hand side of an
// assignment, in order. Elements that are not simple identifiers
// (attributes, indices, nested tuples) yield nil. Parentheses around a
// single identifier are ignored.
//
// unpack reports whether the left-hand side is a tuple or list.
func Targets(lhs syntax.Expr) (idents []*syntax.Ident, unpack bool) {
	switch lhs := unparen(lhs).(type) {
	case *syntax.Ident:
		return []*syntax.Ident{lhs}, false
	case *syntax.TupleExpr:
		return elemIdents(lhs.List), true
	case *syntax.ListExpr:
		return elemIdents(lhs.List), true
	}
	return []*syntax.Ident{nil}, false
}

func elemIdents(list []syntax.Expr) []*syntax.Ident {
	idents := make([]*syntax.Ident, len(list))
	for i, x := range list {
		if id, ok := unparen(x).(*syntax.Ident); ok {
			idents[i] = id
		}
	}
	return idents
}

func unparen(e syntax.Expr) syntax.Expr {
	for {
		p, ok := e.(*syntax.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

// Sites returns every simple-identifier target of a plain assignment
// in f, with its qualified name, in source order.
func Sites(f *syntax.File, module string) []Site {
	return New(scope.Index(f), module).Sites(f)
}

// Sites returns the assignment sites of f, which must be the tree
// indexed by the labeler.
func (l *Labeler) Sites(f *syntax.File) []Site {
	var sites []Site
	scope.Walk(f, func(n syntax.Node) bool {
		if assign, ok := n.(*syntax.AssignStmt); ok && assign.Op == syntax.EQ {
			idents, _ := Targets(assign.LHS)
			for _, id := range idents {
				if id != nil {
					sites = append(sites, Site{Ident: id, Label: l.Of(id)})
				}
			}
		}
		return true
	})
	return sites
}
