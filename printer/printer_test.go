// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package printer_test

import (
	"bytes"
	"strings"
	"testing"

	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/printer"
	"github.com/typetrace/typetrace/scope"
)

func parse(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := syntax.Parse("test.star", src, 0)
	if err != nil {
		t.Fatalf("%v\n%s", err, src)
	}
	return f
}

// Each of these is already in the printer's canonical form.
var canonical = []string{
	"x = 1\n",
	"a, b = 1, 2\n",
	"(a, b) = (1, 2)\n",
	"[a, b] = [1, 2]\n",
	"t = ()\nu = (1,)\n",
	"x += 1\ny //= 2\nz |= 3\n",
	"o.f = l[0]\nl[1:2] = l[::-1]\nm = l[a:b:c]\n",
	"d = {\"k\": 1, 2: [3]}\n",
	"s = 'single'\nr = r\"raw\\n\"\nb = b\"bytes\"\n",
	"f = 1.5\ng = 0x1F\nh = 12345678901234567890\n",
	"print(a, b=1, *c, **d)\n",
	"x = a if b else c\n",
	"x = lambda: 1\ny = lambda a, b=2, *c, **d: a\n",
	"x = [a for a in b if a for c in a]\ny = {k: v for k, v in d}\n",
	"x = not a == b\ny = -a + ~b\nz = a and b or c\n",
	"x = (a + b) * c\ny = a + b * c\nz = a - (b - c)\n",
	"x = a in b\ny = a not in b\n",
	"load(\"lib.star\", \"f\", g=\"h\")\n",
	"def f(a, *, b):\n    return\n",
	"def f():\n    pass\n",
	"def f(x):\n    for i in x:\n        if i:\n            break\n        continue\n    while x:\n        x = x[1:]\n    return x\n",
	"if a:\n    x = 1\nelif b:\n    x = 2\nelif c:\n    x = 3\nelse:\n    x = 4\n",
	"if a:\n    x = 1\nelse:\n    if b:\n        x = 2\n",
	"if a:\n    pass\nelse:\n    if b:\n        x = 2\n    y = 3\n",
}

func TestRoundTrip(t *testing.T) {
	for _, src := range canonical {
		if got := printer.String(parse(t, src)); got != src {
			t.Errorf("got:\n%s\nwant:\n%s", got, src)
		}
	}
}

// Printing is idempotent for source in any form.
func TestIdempotent(t *testing.T) {
	const src = `
# comment
def  f ( a ,b = 1 ):
  if a :   return [ x for x in a ]
  elif b: pass
  return (a)

x = (1,
     2)
`
	first := printer.String(parse(t, src))
	second := printer.String(parse(t, first))
	if first != second {
		t.Errorf("not idempotent:\n%s\nthen\n%s", first, second)
	}
	if strings.Contains(first, "#") {
		t.Errorf("comment retained:\n%s", first)
	}
}

// Hand-built trees get the parentheses their shape needs.
func TestPrecedence(t *testing.T) {
	id := func(name string) *syntax.Ident { return &syntax.Ident{Name: name} }
	bin := func(op syntax.Token, x, y syntax.Expr) syntax.Expr {
		return &syntax.BinaryExpr{Op: op, X: x, Y: y}
	}
	for _, test := range []struct {
		expr syntax.Expr
		want string
	}{
		{bin(syntax.STAR, bin(syntax.PLUS, id("a"), id("b")), id("c")), "(a + b) * c"},
		{bin(syntax.MINUS, id("a"), bin(syntax.MINUS, id("b"), id("c"))), "a - (b - c)"},
		{bin(syntax.MINUS, bin(syntax.MINUS, id("a"), id("b")), id("c")), "a - b - c"},
		{bin(syntax.LT, bin(syntax.LT, id("a"), id("b")), id("c")), "(a < b) < c"},
		{&syntax.UnaryExpr{Op: syntax.MINUS, X: bin(syntax.PLUS, id("a"), id("b"))}, "-(a + b)"},
		{&syntax.DotExpr{X: bin(syntax.PLUS, id("a"), id("b")), Name: id("f")}, "(a + b).f"},
		{&syntax.CallExpr{
			Fn:   id("f"),
			Args: []syntax.Expr{&syntax.TupleExpr{List: []syntax.Expr{id("a"), id("b")}}},
		}, "f((a, b))"},
		{&syntax.CondExpr{
			Cond:  id("c"),
			True:  &syntax.LambdaExpr{Body: id("a")},
			False: id("b"),
		}, "(lambda: a) if c else b"},
	} {
		if got := printer.String(test.expr); got != test.want {
			t.Errorf("got %s, want %s", got, test.want)
		}
	}
}

func TestEmptyBody(t *testing.T) {
	f := parse(t, "def f():\n    x = 1\nwhile a:\n    b = 2\n")
	f.Stmts[0].(*syntax.DefStmt).Body = nil
	f.Stmts[1].(*syntax.WhileStmt).Body = nil
	want := "def f():\n    pass\nwhile a:\n    pass\n"
	if got := printer.String(f); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestEmptyBodyAligned(t *testing.T) {
	f := parse(t, "x = 1\n\ndef f():\n    x = 1\nfor i in x:\n    pass\nif x:\n    pass\n")
	f.Stmts[1].(*syntax.DefStmt).Body = nil
	f.Stmts[2].(*syntax.ForStmt).Body = nil
	f.Stmts[3].(*syntax.IfStmt).True = nil
	cfg := printer.Config{AlignLines: true}
	want := "x = 1\n\ndef f():\n    pass\nfor i in x:\n    pass\nif x:\n    pass\n"
	if got := cfg.String(f); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestAlignLines(t *testing.T) {
	const src = `

x = 1

def f():
    # comment

    return x

if x:
    pass

else:
    y = 2
`
	f := parse(t, src)
	cfg := printer.Config{AlignLines: true}
	got := cfg.String(f)

	// Every statement starts on its original line.
	want, have := stmtLines(f), stmtLines(parse(t, got))
	if len(want) != len(have) {
		t.Fatalf("got %d statements, want %d:\n%s", len(have), len(want), got)
	}
	for i := range want {
		if want[i] != have[i] {
			t.Errorf("statement %d on line %d, want %d:\n%s", i, have[i], want[i], got)
		}
	}
}

func stmtLines(f *syntax.File) []int32 {
	var lines []int32
	scope.Walk(f, func(n syntax.Node) bool {
		if s, ok := n.(syntax.Stmt); ok {
			start, _ := s.Span()
			lines = append(lines, start.Line)
		}
		return true
	})
	return lines
}

func TestIndent(t *testing.T) {
	cfg := printer.Config{Indent: "\t"}
	var buf bytes.Buffer
	if err := cfg.Fprint(&buf, parse(t, "def f():\n    if a:\n        pass\n")); err != nil {
		t.Fatal(err)
	}
	if want := "def f():\n\tif a:\n\t\tpass\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestStatement(t *testing.T) {
	f := parse(t, "def f():\n    return 1\n")
	if got, want := printer.String(f.Stmts[0]), "def f():\n    return 1\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
