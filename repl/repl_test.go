package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/instrument"
	"github.com/typetrace/typetrace/registry"
)

func newTestSession() (*Session, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	thread := &starlark.Thread{Name: "repl test"}
	s := NewSession(thread, nil, registry.New(), instrument.Options{})
	s.Stdout = &stdout
	s.Stderr = &stderr
	return s, &stdout, &stderr
}

func (s *Session) run(t *testing.T, chunk string) {
	t.Helper()
	f, err := syntax.Parse("<stdin>", chunk, 0)
	if err != nil {
		t.Fatalf("parsing %q: %v", chunk, err)
	}
	s.Exec(context.Background(), f)
}

func TestSessionRecords(t *testing.T) {
	s, stdout, stderr := newTestSession()
	s.run(t, "x = 1\n")
	s.run(t, "def f(v):\n    w = v\n    return w\n\n")
	s.run(t, "f('s')\n")
	s.run(t, "a, b = f(x), f([])\n")

	if stderr.Len() > 0 {
		t.Fatalf("unexpected errors: %s", stderr)
	}
	if got, want := stdout.String(), "\"s\"\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	want := registry.Snapshot{
		"repl.x":   {"int"},
		"repl.f.w": {"int", "list", "string"},
		"repl.a":   {"int"},
		"repl.b":   {"list"},
	}
	if diff := cmp.Diff(want, s.Registry.Types()); diff != "" {
		t.Errorf("types (-want +got):\n%s", diff)
	}
}

func TestSessionCommands(t *testing.T) {
	s, stdout, stderr := newTestSession()
	s.run(t, "x = 1\n")
	s.run(t, "longer_name = 'v'\n")

	s.Command(":types")
	want := "repl.longer_name  string\nrepl.x            int\n"
	if got := stdout.String(); got != want {
		t.Errorf(":types printed\n%s\nwant\n%s", got, want)
	}

	s.Command(":reset")
	if n := s.Registry.Len(); n != 0 {
		t.Errorf("after :reset, registry has %d names", n)
	}

	s.Command(":bogus")
	if !strings.Contains(stderr.String(), "unknown command :bogus") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestSessionError(t *testing.T) {
	s, _, stderr := newTestSession()
	s.run(t, "x = 1\n")
	s.run(t, "y = x + 'a'\n")
	if !strings.Contains(stderr.String(), "Traceback") {
		t.Errorf("missing backtrace in %q", stderr)
	}
	if _, ok := s.Registry.Types()["repl.y"]; ok {
		t.Errorf("failed assignment was recorded")
	}
	// The session goes on.
	s.run(t, "z = x\n")
	if got := s.Registry.Kinds("repl.z"); len(got) != 1 || got[0] != "int" {
		t.Errorf("repl.z kinds = %v", got)
	}
}

func TestSessionGlobalsHoldRecorder(t *testing.T) {
	s, _, _ := newTestSession()
	if _, ok := s.Globals[instrument.DefaultFunc]; !ok {
		t.Errorf("globals lack %s", instrument.DefaultFunc)
	}
}
