// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package printer converts Starlark syntax trees back to source text.
//
// The output of Fprint parses to a tree of the same shape as its input.
// Parentheses present in the source survive as ParenExpr nodes;
// the printer adds others only where a hand-built tree needs them.
// Comments are not retained.
package printer // import "github.com/typetrace/typetrace/printer"

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"go.starlark.net/syntax"
)

// A Config controls the output of Fprint.
type Config struct {
	Indent string // one level of indentation; four spaces if empty

	// AlignLines pads the output with blank lines so that each
	// statement starts on the line it occupied in the original source,
	// where that is still possible. Run-time errors in the printed
	// program then report the original line numbers.
	AlignLines bool
}

// Fprint prints n to w using the default configuration.
func Fprint(w io.Writer, n syntax.Node) error {
	return new(Config).Fprint(w, n)
}

// String returns the source text of n using the default configuration.
func String(n syntax.Node) string {
	return new(Config).String(n)
}

// String returns the source text of n.
func (c *Config) String(n syntax.Node) string {
	var buf bytes.Buffer
	c.Fprint(&buf, n) // can't fail
	return buf.String()
}

// Fprint prints the file, statement or expression n to w.
func (c *Config) Fprint(w io.Writer, n syntax.Node) error {
	p := &printer{cfg: c, line: 1}
	switch n := n.(type) {
	case *syntax.File:
		p.stmts(n.Stmts)
	case syntax.Stmt:
		p.stmt(n)
	case syntax.Expr:
		p.exprTop(n)
	default:
		return fmt.Errorf("printer: unexpected node %T", n)
	}
	_, err := w.Write(p.buf.Bytes())
	return err
}

type printer struct {
	cfg   *Config
	buf   bytes.Buffer
	line  int // current output line, 1-based
	depth int // indentation level
}

func (p *printer) write(s string) {
	p.buf.WriteString(s)
	p.line += strings.Count(s, "\n")
}

func (p *printer) newline() { p.write("\n") }

func (p *printer) indent() {
	unit := p.cfg.Indent
	if unit == "" {
		unit = "    "
	}
	for i := 0; i < p.depth; i++ {
		p.buf.WriteString(unit)
	}
}

// align emits blank lines until the output reaches pos.Line.
func (p *printer) align(pos syntax.Position) {
	if !p.cfg.AlignLines {
		return
	}
	for int(pos.Line) > p.line {
		p.newline()
	}
}

// -- statements --

func (p *printer) stmts(list []syntax.Stmt) {
	for _, stmt := range list {
		p.stmt(stmt)
	}
}

func (p *printer) block(body []syntax.Stmt) {
	p.depth++
	if len(body) == 0 {
		p.indent()
		p.write("pass\n")
	}
	p.stmts(body)
	p.depth--
}

func (p *printer) stmt(stmt syntax.Stmt) {
	if p.cfg.AlignLines {
		p.align(stmtStart(stmt))
	}
	p.indent()

	switch stmt := stmt.(type) {
	case *syntax.AssignStmt:
		p.exprTop(stmt.LHS)
		p.write(" " + stmt.Op.String() + " ")
		p.exprTop(stmt.RHS)
		p.newline()

	case *syntax.ExprStmt:
		p.exprTop(stmt.X)
		p.newline()

	case *syntax.BranchStmt:
		p.write(stmt.Token.String())
		p.newline()

	case *syntax.ReturnStmt:
		p.write("return")
		if stmt.Result != nil {
			p.write(" ")
			p.exprTop(stmt.Result)
		}
		p.newline()

	case *syntax.LoadStmt:
		p.write("load(")
		p.expr(stmt.Module, precAtom)
		for i, from := range stmt.From {
			p.write(", ")
			if to := stmt.To[i]; to.Name != from.Name {
				p.write(to.Name + "=")
			}
			p.write(strconv.Quote(from.Name))
		}
		p.write(")\n")

	case *syntax.DefStmt:
		p.write("def " + stmt.Name.Name + "(")
		p.params(stmt.Params)
		p.write("):\n")
		p.block(stmt.Body)

	case *syntax.IfStmt:
		p.ifStmt(stmt, "if")

	case *syntax.ForStmt:
		p.write("for ")
		p.exprTop(stmt.Vars)
		p.write(" in ")
		p.exprTop(stmt.X)
		p.write(":\n")
		p.block(stmt.Body)

	case *syntax.WhileStmt:
		p.write("while ")
		p.expr(stmt.Cond, precLowest)
		p.write(":\n")
		p.block(stmt.Body)

	default:
		panic(fmt.Sprintf("printer: unexpected statement %T", stmt))
	}
}

// stmtStart returns the position of the first token of stmt.
// Unlike Span it does not look at the body, which may be empty in a
// hand-built tree.
func stmtStart(stmt syntax.Stmt) syntax.Position {
	switch stmt := stmt.(type) {
	case *syntax.AssignStmt:
		start, _ := stmt.LHS.Span()
		return start
	case *syntax.ExprStmt:
		start, _ := stmt.X.Span()
		return start
	case *syntax.BranchStmt:
		return stmt.TokenPos
	case *syntax.ReturnStmt:
		return stmt.Return
	case *syntax.LoadStmt:
		return stmt.Load
	case *syntax.DefStmt:
		return stmt.Def
	case *syntax.IfStmt:
		return stmt.If
	case *syntax.ForStmt:
		return stmt.For
	case *syntax.WhileStmt:
		return stmt.While
	}
	return syntax.Position{}
}

// ifStmt prints an if or elif clause and its continuation.
// The caller has already indented.
func (p *printer) ifStmt(stmt *syntax.IfStmt, keyword string) {
	p.write(keyword + " ")
	p.expr(stmt.Cond, precLowest)
	p.write(":\n")
	p.block(stmt.True)
	if len(stmt.False) == 0 {
		return
	}
	p.align(stmt.ElsePos)
	p.indent()
	if elif := elifOf(stmt); elif != nil {
		p.ifStmt(elif, "elif")
		return
	}
	p.write("else:\n")
	p.block(stmt.False)
}

// elifOf returns the nested conditional that the parser built from an
// elif clause of stmt, or nil.
func elifOf(stmt *syntax.IfStmt) *syntax.IfStmt {
	if len(stmt.False) != 1 {
		return nil
	}
	inner, ok := stmt.False[0].(*syntax.IfStmt)
	if !ok || inner.If != stmt.ElsePos {
		return nil
	}
	return inner
}

// -- expressions --

// Precedence levels, lowest first.
const (
	precLowest  = iota // lambda, conditional expression
	precOr             // or
	precAnd            // and
	precNot            // not
	precCompare        // == != < > <= >= in, not in
	precPipe           // |
	precCaret          // ^
	precAmp            // &
	precShift          // << >>
	precAdd            // + -
	precMul            // * / // %
	precUnary          // + - ~
	precAtom           // operands, calls, selectors, brackets
)

func binaryPrec(op syntax.Token) int {
	switch op {
	case syntax.OR:
		return precOr
	case syntax.AND:
		return precAnd
	case syntax.EQL, syntax.NEQ, syntax.LT, syntax.GT, syntax.LE, syntax.GE, syntax.IN, syntax.NOT_IN:
		return precCompare
	case syntax.PIPE:
		return precPipe
	case syntax.CIRCUMFLEX:
		return precCaret
	case syntax.AMP:
		return precAmp
	case syntax.LTLT, syntax.GTGT:
		return precShift
	case syntax.PLUS, syntax.MINUS:
		return precAdd
	case syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
		return precMul
	}
	panic(fmt.Sprintf("printer: unexpected binary operator %s", op))
}

func precOf(e syntax.Expr) int {
	switch e := e.(type) {
	case *syntax.LambdaExpr, *syntax.CondExpr:
		return precLowest
	case *syntax.BinaryExpr:
		if e.Op == syntax.EQ {
			return precLowest
		}
		return binaryPrec(e.Op)
	case *syntax.UnaryExpr:
		if e.Op == syntax.NOT {
			return precNot
		}
		return precUnary
	}
	return precAtom
}

// exprTop prints e where an unparenthesized tuple is allowed:
// either side of an assignment, a return value, a loop header.
func (p *printer) exprTop(e syntax.Expr) {
	if t, ok := e.(*syntax.TupleExpr); ok && !t.Lparen.IsValid() && len(t.List) > 0 {
		p.exprList(t.List)
		if len(t.List) == 1 {
			p.write(",")
		}
		return
	}
	p.expr(e, precLowest)
}

// expr prints e, parenthesized if it binds less tightly than prec.
func (p *printer) expr(e syntax.Expr, prec int) {
	if precOf(e) < prec {
		p.write("(")
		p.expr(e, precLowest)
		p.write(")")
		return
	}

	switch e := e.(type) {
	case *syntax.Ident:
		p.write(e.Name)

	case *syntax.Literal:
		p.write(literal(e))

	case *syntax.ParenExpr:
		p.write("(")
		p.exprTop(e.X)
		p.write(")")

	case *syntax.TupleExpr:
		p.write("(")
		p.exprList(e.List)
		if len(e.List) == 1 {
			p.write(",")
		}
		p.write(")")

	case *syntax.ListExpr:
		p.write("[")
		p.exprList(e.List)
		p.write("]")

	case *syntax.DictExpr:
		p.write("{")
		p.exprList(e.List)
		p.write("}")

	case *syntax.DictEntry:
		p.expr(e.Key, precLowest)
		p.write(": ")
		p.expr(e.Value, precLowest)

	case *syntax.Comprehension:
		if e.Curly {
			p.write("{")
		} else {
			p.write("[")
		}
		p.expr(e.Body, precLowest)
		for _, clause := range e.Clauses {
			switch clause := clause.(type) {
			case *syntax.ForClause:
				p.write(" for ")
				p.exprTop(clause.Vars)
				p.write(" in ")
				p.expr(clause.X, precOr)
			case *syntax.IfClause:
				p.write(" if ")
				p.expr(clause.Cond, precOr)
			}
		}
		if e.Curly {
			p.write("}")
		} else {
			p.write("]")
		}

	case *syntax.CallExpr:
		p.expr(e.Fn, precAtom)
		p.write("(")
		p.args(e.Args)
		p.write(")")

	case *syntax.DotExpr:
		p.expr(e.X, precAtom)
		p.write("." + e.Name.Name)

	case *syntax.IndexExpr:
		p.expr(e.X, precAtom)
		p.write("[")
		p.exprTop(e.Y)
		p.write("]")

	case *syntax.SliceExpr:
		p.expr(e.X, precAtom)
		p.write("[")
		if e.Lo != nil {
			p.expr(e.Lo, precLowest)
		}
		p.write(":")
		if e.Hi != nil {
			p.expr(e.Hi, precLowest)
		}
		if e.Step != nil {
			p.write(":")
			p.expr(e.Step, precLowest)
		}
		p.write("]")

	case *syntax.LambdaExpr:
		p.write("lambda")
		if len(e.Params) > 0 {
			p.write(" ")
			p.params(e.Params)
		}
		p.write(": ")
		p.expr(e.Body, precLowest)

	case *syntax.CondExpr:
		p.expr(e.True, precOr)
		p.write(" if ")
		p.expr(e.Cond, precOr)
		p.write(" else ")
		p.expr(e.False, precLowest)

	case *syntax.UnaryExpr:
		// Params and args print their own * and ** forms.
		p.write(e.Op.String())
		if e.Op == syntax.NOT {
			p.write(" ")
			p.expr(e.X, precNot)
		} else if e.X != nil {
			p.expr(e.X, precUnary)
		}

	case *syntax.BinaryExpr:
		if e.Op == syntax.EQ { // keyword argument or parameter default
			p.expr(e.X, precAtom)
			p.write("=")
			p.expr(e.Y, precLowest)
			return
		}
		prec := binaryPrec(e.Op)
		right := prec + 1
		left := prec
		if prec == precCompare {
			left = right // comparisons don't chain
		}
		p.expr(e.X, left)
		p.write(" " + e.Op.String() + " ")
		p.expr(e.Y, right)

	default:
		panic(fmt.Sprintf("printer: unexpected expression %T", e))
	}
}

func (p *printer) exprList(list []syntax.Expr) {
	for i, x := range list {
		if i > 0 {
			p.write(", ")
		}
		p.expr(x, precLowest)
	}
}

// args prints call arguments: expr, name=expr, *expr, **expr.
func (p *printer) args(args []syntax.Expr) {
	for i, arg := range args {
		if i > 0 {
			p.write(", ")
		}
		if u, ok := arg.(*syntax.UnaryExpr); ok && (u.Op == syntax.STAR || u.Op == syntax.STARSTAR) {
			p.write(u.Op.String())
			if u.X != nil {
				p.expr(u.X, precLowest)
			}
			continue
		}
		p.expr(arg, precLowest)
	}
}

// params prints parameters: name, name=default, *, *name, **name.
func (p *printer) params(params []syntax.Expr) { p.args(params) }

func literal(lit *syntax.Literal) string {
	if lit.Raw != "" {
		return lit.Raw
	}
	switch v := lit.Value.(type) {
	case string:
		if lit.Token == syntax.BYTES {
			return "b" + strconv.Quote(v)
		}
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case *big.Int:
		return v.String()
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	}
	return fmt.Sprint(lit.Value)
}
