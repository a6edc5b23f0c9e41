// Package repl provides an instrumented read/eval/print loop for
// Starlark.
//
// It supports readline-style command editing,
// and interrupts through Control-C.
//
// Each chunk of input is instrumented before it is executed, so the
// types of values assigned at the prompt accumulate in a registry under
// qualified names that start with the session's module name:
//
//	>>> x = 1
//	>>> def f(v):
//	...     w = v
//	...     return w
//	...
//	>>> f("s")
//	"s"
//	>>> :types
//	repl.f.w  string
//	repl.x    int
//
// Lines that start with a colon are session commands: :types prints the
// registry and :reset clears it.
package repl // import "github.com/typetrace/typetrace/repl"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/instrument"
	"github.com/typetrace/typetrace/registry"
)

// DefaultModule is the module name of qualified names recorded at the prompt.
const DefaultModule = "repl"

var interrupted = make(chan os.Signal, 1)

// A Session is the state of one read/eval/print loop.
type Session struct {
	Thread   *starlark.Thread
	Globals  starlark.StringDict
	Registry *registry.Registry
	Options  instrument.Options
	Stdout   io.Writer
	Stderr   io.Writer
}

// NewSession returns a session whose globals hold the recording
// function under the name given by opts.
func NewSession(thread *starlark.Thread, predeclared starlark.StringDict, reg *registry.Registry, opts instrument.Options) *Session {
	if opts.Module == "" {
		opts.Module = DefaultModule
	}
	fn := opts.Func
	if fn == "" {
		fn = instrument.DefaultFunc
	}
	globals := make(starlark.StringDict, len(predeclared)+1)
	for k, v := range predeclared {
		globals[k] = v
	}
	globals[fn] = instrument.Recorder(reg, fn)
	return &Session{
		Thread:   thread,
		Globals:  globals,
		Registry: reg,
		Options:  opts,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// REPL executes a read, eval, print loop.
//
// Before evaluating each chunk, it sets the Starlark thread local
// variable named "context" to a context.Context that is cancelled by a
// SIGINT (Control-C). Client-supplied global functions may use this
// context to make long-running operations interruptable.
func (s *Session) REPL() {
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New(">>> ")
	if err != nil {
		s.PrintError(err)
		return
	}
	defer rl.Close()
	for {
		if err := s.rep(rl); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Fprintln(s.Stdout, err)
				continue
			}
			break
		}
	}
	fmt.Fprintln(s.Stdout)
}

// rep reads, evaluates, and prints one item.
//
// It returns an error (possibly readline.ErrInterrupt)
// only if readline failed. Starlark errors are printed.
func (s *Session) rep(rl *readline.Instance) error {
	// Note: during Readline calls, Control-C causes Readline to return
	// ErrInterrupt but does not generate a SIGINT.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupted:
			cancel()
		case <-ctx.Done():
		}
	}()

	rl.SetPrompt(">>> ")
	first, err := rl.Readline()
	if err != nil {
		return err
	}
	if cmd := strings.TrimSpace(first); strings.HasPrefix(cmd, ":") {
		s.Command(cmd)
		return nil
	}

	eof := false
	pending := []byte(first + "\n")
	readline := func() ([]byte, error) {
		if pending != nil {
			line := pending
			pending = nil
			return line, nil
		}
		rl.SetPrompt("... ")
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF {
				eof = true
			}
			return nil, err
		}
		return []byte(line + "\n"), nil
	}

	f, err := syntax.ParseCompoundStmt("<stdin>", readline)
	if err != nil {
		if eof {
			return io.EOF
		}
		s.PrintError(err)
		return nil
	}
	s.Exec(ctx, f)
	return nil
}

// Exec instruments and executes one parsed chunk, printing the value of
// a sole expression, or any error.
func (s *Session) Exec(ctx context.Context, f *syntax.File) {
	s.Thread.SetLocal("context", ctx)

	// Treat load bindings as global in the REPL.
	// See github.com/google/starlark-go/issues/224.
	defer func(prev bool) { resolve.LoadBindsGlobally = prev }(resolve.LoadBindsGlobally)
	resolve.LoadBindsGlobally = true

	if expr := soleExpr(f); expr != nil {
		v, err := starlark.EvalExpr(s.Thread, expr, s.Globals)
		if err != nil {
			s.PrintError(err)
			return
		}
		if v != starlark.None {
			fmt.Fprintln(s.Stdout, v)
		}
		return
	}

	inst, _ := instrument.File(f, s.Options)
	if err := starlark.ExecREPLChunk(inst, s.Thread, s.Globals); err != nil {
		s.PrintError(err)
	}
}

// Command runs a session command such as ":types".
func (s *Session) Command(cmd string) {
	switch strings.TrimPrefix(cmd, ":") {
	case "types":
		s.printTypes()
	case "reset":
		s.Registry.Reset()
	default:
		s.PrintError(fmt.Errorf("unknown command %s (want :types or :reset)", cmd))
	}
}

func (s *Session) printTypes() {
	snap := s.Registry.Types()
	tw := tabwriter.NewWriter(s.Stdout, 0, 8, 2, ' ', 0)
	for _, name := range snap.Names() {
		kinds := make([]string, len(snap[name]))
		for i, k := range snap[name] {
			kinds[i] = string(k)
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(kinds, ", "))
	}
	tw.Flush()
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// PrintError prints the error to the session's error stream,
// or its backtrace if it is a Starlark evaluation error.
func (s *Session) PrintError(err error) {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		fmt.Fprintln(s.Stderr, evalErr.Backtrace())
	} else {
		fmt.Fprintln(s.Stderr, err)
	}
}
