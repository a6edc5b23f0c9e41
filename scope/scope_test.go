// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/scope"
)

const src = `
def f(a):
    if a:
        x = 1
    else:
        for i in a:
            x = i
    g = lambda y: [z for z in y]
    while a:
        a = a[1:]
`

func parse(t *testing.T) *syntax.File {
	t.Helper()
	f, err := syntax.Parse("test.star", src, 0)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// find returns the first node in f satisfying pred, in Walk order.
func find(f *syntax.File, pred func(syntax.Node) bool) syntax.Node {
	var found syntax.Node
	scope.Walk(f, func(n syntax.Node) bool {
		if found != nil || n == nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func ident(f *syntax.File, name string, line int32) *syntax.Ident {
	n := find(f, func(n syntax.Node) bool {
		id, ok := n.(*syntax.Ident)
		return ok && id.Name == name && id.NamePos.Line == line
	})
	if n == nil {
		return nil
	}
	return n.(*syntax.Ident)
}

func kinds(chain scope.Chain) []string {
	var out []string
	for _, n := range chain {
		out = append(out, scope.KindOf(n).String())
	}
	return out
}

func TestIndex(t *testing.T) {
	f := parse(t)
	p := scope.Index(f)
	if p.Root() != f {
		t.Errorf("Root() = %v, want file", p.Root())
	}
	if _, ok := p.Parent(f); ok {
		t.Errorf("root has a parent")
	}

	// Every node but the root has exactly one parent, and it is the
	// node whose Children include it.
	n := 0
	scope.Walk(f, func(node syntax.Node) bool {
		if node == nil || node == f {
			return true
		}
		n++
		parent, ok := p.Parent(node)
		if !ok {
			t.Errorf("%T at %v has no parent", node, node)
			return true
		}
		found := false
		for _, c := range scope.Children(parent) {
			if c == node {
				found = true
			}
		}
		if !found {
			t.Errorf("%T is not among the children of its parent %T", node, parent)
		}
		return true
	})
	if p.Len() != n {
		t.Errorf("Len() = %d, want %d", p.Len(), n)
	}
}

func TestChain(t *testing.T) {
	f := parse(t)
	r := scope.NewResolver(scope.Index(f))
	for _, test := range []struct {
		name string
		line int32
		want []string
	}{
		{"x", 4, []string{"Module", "Function", "If"}},
		{"x", 7, []string{"Module", "Function", "If", "For"}},
		{"g", 8, []string{"Module", "Function"}},
		{"z", 8, []string{"Module", "Function", "Lambda", "Comp"}},
		{"a", 10, []string{"Module", "Function", "While"}},
		{"f", 2, []string{"Module", "Function"}},
	} {
		id := ident(f, test.name, test.line)
		if id == nil {
			t.Fatalf("no %s on line %d", test.name, test.line)
		}
		if diff := cmp.Diff(test.want, kinds(r.Chain(id))); diff != "" {
			t.Errorf("Chain(%s@%d) (-want +got):\n%s", test.name, test.line, diff)
		}
	}
	if got := r.Chain(f); len(got) != 0 {
		t.Errorf("Chain(root) = %v, want empty", kinds(got))
	}
}

func TestOrdinal(t *testing.T) {
	f, err := syntax.Parse("test.star", `
for a in b:
    pass
if c:
    pass
for d in e:
    if f:
        pass
    if g:
        pass
    else:
        if h:
            pass
`, 0)
	if err != nil {
		t.Fatal(err)
	}
	r := scope.NewResolver(scope.Index(f))

	var got []int
	scope.Walk(f, func(n syntax.Node) bool {
		switch n.(type) {
		case *syntax.ForStmt, *syntax.IfStmt:
			got = append(got, r.Ordinal(n))
		}
		return true
	})
	// for a, if c, for d, if f, if g, if h
	want := []int{0, 0, 1, 0, 1, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ordinals (-want +got):\n%s", diff)
	}
	if got := r.Ordinal(f); got != -1 {
		t.Errorf("Ordinal(root) = %d, want -1", got)
	}
	if got := r.Ordinal(f.Stmts[1].(*syntax.IfStmt).Cond); got != -1 {
		t.Errorf("Ordinal(non-scope) = %d, want -1", got)
	}
}

func TestInAlternate(t *testing.T) {
	f := parse(t)
	r := scope.NewResolver(scope.Index(f))
	cond := find(f, func(n syntax.Node) bool {
		_, ok := n.(*syntax.IfStmt)
		return ok
	}).(*syntax.IfStmt)

	for _, test := range []struct {
		name string
		line int32
		want bool
	}{
		{"x", 4, false},
		{"x", 7, true},
		{"i", 6, true},
		{"a", 3, false}, // the condition
		{"g", 8, false}, // outside
	} {
		id := ident(f, test.name, test.line)
		if got := r.InAlternate(id, cond); got != test.want {
			t.Errorf("InAlternate(%s@%d) = %t, want %t", test.name, test.line, got, test.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	for _, test := range []struct {
		node      syntax.Node
		kind      scope.Kind
		anonymous bool
	}{
		{new(syntax.File), scope.Module, false},
		{new(syntax.DefStmt), scope.Function, false},
		{new(syntax.LambdaExpr), scope.Lambda, true},
		{new(syntax.IfStmt), scope.If, true},
		{new(syntax.ForStmt), scope.For, true},
		{new(syntax.WhileStmt), scope.While, true},
		{new(syntax.Comprehension), scope.Comp, true},
		{new(syntax.AssignStmt), scope.NotScope, false},
		{new(syntax.Ident), scope.NotScope, false},
	} {
		if got := scope.KindOf(test.node); got != test.kind {
			t.Errorf("KindOf(%T) = %v, want %v", test.node, got, test.kind)
		}
		if got := test.kind.Anonymous(); got != test.anonymous {
			t.Errorf("%v.Anonymous() = %t, want %t", test.kind, got, test.anonymous)
		}
	}
}

func TestChildren(t *testing.T) {
	f, err := syntax.Parse("test.star", `
load("m", "a")
def f(p, *q, **r):
    while p:
        p = p[1:]
    return [x for x in q if x]
`, 0)
	if err != nil {
		t.Fatal(err)
	}

	while := f.Stmts[1].(*syntax.DefStmt).Body[0].(*syntax.WhileStmt)
	var types []string
	for _, c := range scope.Children(while) {
		types = append(types, fmt.Sprintf("%T", c))
	}
	if diff := cmp.Diff([]string{"*syntax.Ident", "*syntax.AssignStmt"}, types); diff != "" {
		t.Errorf("children of while (-want +got):\n%s", diff)
	}

	// Every identifier is reached, in source order except that a
	// comprehension's clauses precede its body.
	var names []string
	scope.Walk(f, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	want := []string{"a", "a", "f", "p", "q", "r", "p", "p", "p", "x", "q", "x", "x"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("identifiers (-want +got):\n%s", diff)
	}

	// Absent optional fields are not children.
	ret := &syntax.ReturnStmt{}
	if got := scope.Children(ret); len(got) != 0 {
		t.Errorf("Children(bare return) = %v", got)
	}
}
