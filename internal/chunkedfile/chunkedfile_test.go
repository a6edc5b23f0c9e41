// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package chunkedfile

import (
	"fmt"
	"testing"
)

type testReporter struct {
	reported []string
}

func (r *testReporter) Errorf(format string, args ...any) {
	formatted := fmt.Sprintf(format, args...)
	r.reported = append(r.reported, formatted)
}

func (r *testReporter) assertNone(t *testing.T) {
	t.Helper()
	if len(r.reported) > 0 {
		t.Errorf("reporter expected no errors, got %q", r.reported)
	}
}

func (r *testReporter) assertOne(t *testing.T, exp string) {
	t.Helper()
	if len(r.reported) != 1 {
		t.Fatalf("reporter expected 1 error, got %q", r.reported)
	}
	if r.reported[0] != exp {
		t.Fatalf("reporter expected %q, got %q", exp, r.reported[0])
	}
}

func (r *testReporter) reset() {
	r.reported = nil
}

func TestChunkedFile(t *testing.T) {
	data := []byte(`a, b = 1, 2 ### "main.a" "main.b"
---
x = 1
y = 2 ### "main.y"
`)

	reporter := &testReporter{}
	chunks := readBytes("test_file", data, reporter, "\n")
	reporter.assertNone(t)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	chunk := chunks[0]
	if exp := `a, b = 1, 2 ### "main.a" "main.b"`; chunk.Source != exp {
		t.Fatalf("expected %q, got %q", exp, chunk.Source)
	}
	if got := chunk.want[1]; len(got) != 2 || got[0] != "main.a" || got[1] != "main.b" {
		t.Fatalf("expected labels [main.a main.b] on line 1, got %q", got)
	}

	// Labels arrive in order.
	chunk.GotLabel(1, "main.a")
	chunk.GotLabel(1, "main.b")
	chunk.Done()
	reporter.assertNone(t)

	// A label beyond those expected.
	chunk.GotLabel(1, "main.c")
	reporter.assertOne(t, "\ntest_file:1: unexpected label \"main.c\"")

	// The second chunk is padded to its line in the file.
	chunk = chunks[1]
	if exp := "\n\nx = 1\ny = 2 ### \"main.y\"\n"; chunk.Source != exp {
		t.Fatalf("expected %q, got %q", exp, chunk.Source)
	}

	reporter.reset()
	chunk.GotLabel(4, "main.x")
	reporter.assertOne(t, "\ntest_file:4: got label \"main.x\", want \"main.y\"")

	reporter.reset()
	chunk.Done()
	reporter.assertNone(t)
}

func TestChunkedFileMissingLabel(t *testing.T) {
	reporter := &testReporter{}
	chunks := readBytes("test_file", []byte("x = 1 ### \"main.x\"\n"), reporter, "\n")
	chunks[0].Done()
	reporter.assertOne(t, "\ntest_file:1: expected label \"main.x\"")
}

func TestChunkedFileBadQuote(t *testing.T) {
	reporter := &testReporter{}
	readBytes("test_file", []byte("x = 1 ### main.x\n"), reporter, "\n")
	reporter.assertOne(t, "\ntest_file:1: not a quoted label: main.x")
}
