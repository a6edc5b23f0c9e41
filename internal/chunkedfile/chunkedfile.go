// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chunkedfile provides utilities for testing that qualified
// names are given to the appropriate assignments.
//
// A chunked file consists of several chunks of input text separated by
// "---" lines. Each chunk is a separate program. Lines containing "###"
// carry expectations: the following text is a sequence of Go string
// literals, the qualified names expected for the assignment targets on
// that line, in order.
//
// Example:
//
//	def foo(x):
//	    if x:
//	        y = 1     ### "main.foo.If#0.y"
//	    else:
//	        y = "a"   ### "main.foo.If#0Else.y"
//	---
//	a, b = 1, 2       ### "main.a" "main.b"
//
// A client test labels each chunk, then calls chunk.GotLabel for each
// label it computed. Any discrepancy between the actual and expected
// labels is reported using the client's reporter, which is typically a
// testing.T.
package chunkedfile // import "github.com/typetrace/typetrace/internal/chunkedfile"

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// A Chunk is a portion of a source file.
// It contains the labels expected on each line.
type Chunk struct {
	Source   string
	filename string
	report   Reporter
	want     map[int][]string
}

// Reporter is implemented by *testing.T.
type Reporter interface {
	Errorf(format string, args ...any)
}

// Read parses a chunked file and returns its chunks.
// It reports failures using the reporter.
//
// Error messages of the form "file.star:line: ..." are prefixed
// by a newline so that the Go source position added by (*testing.T).Errorf
// appears on a separate line.
func Read(filename string, report Reporter) []Chunk {
	data, err := os.ReadFile(filename)
	if err != nil {
		report.Errorf("%s", err)
		return nil
	}
	eol := "\n"
	if runtime.GOOS == "windows" {
		eol = "\r\n"
	}
	return readBytes(filename, data, report, eol)
}

func readBytes(filename string, data []byte, report Reporter, eol string) (chunks []Chunk) {
	linenum := 1
	for _, chunk := range strings.Split(string(data), eol+"---"+eol) {
		// Pad with newlines so the line numbers match the original file.
		src := strings.Repeat("\n", linenum-1) + chunk

		want := make(map[int][]string)
		lines := strings.Split(chunk, "\n")
		for j := 0; j < len(lines); j, linenum = j+1, linenum+1 {
			line := lines[j]
			hashes := strings.Index(line, "###")
			if hashes < 0 {
				continue
			}
			labels, err := unquoteAll(line[hashes+len("###"):])
			if err != nil {
				report.Errorf("\n%s:%d: %v", filename, linenum, err)
				continue
			}
			want[linenum] = labels
		}
		linenum++

		chunks = append(chunks, Chunk{src, filename, report, want})
	}
	return chunks
}

// unquoteAll parses a space-separated sequence of Go string literals.
func unquoteAll(s string) ([]string, error) {
	var labels []string
	for s = strings.TrimSpace(s); s != ""; s = strings.TrimSpace(s) {
		q, err := strconv.QuotedPrefix(s)
		if err != nil {
			return nil, &quoteError{s}
		}
		label, _ := strconv.Unquote(q)
		labels = append(labels, label)
		s = s[len(q):]
	}
	return labels, nil
}

type quoteError struct{ rest string }

func (e *quoteError) Error() string { return "not a quoted label: " + e.rest }

// GotLabel should be called by the client for each label computed for
// a target on line linenum, in source order. GotLabel reports labels
// that differ from the next one expected on that line.
func (chunk *Chunk) GotLabel(linenum int, label string) {
	want := chunk.want[linenum]
	if len(want) == 0 {
		chunk.report.Errorf("\n%s:%d: unexpected label %q", chunk.filename, linenum, label)
		return
	}
	if want[0] != label {
		chunk.report.Errorf("\n%s:%d: got label %q, want %q", chunk.filename, linenum, label, want[0])
	}
	if len(want) == 1 {
		delete(chunk.want, linenum)
	} else {
		chunk.want[linenum] = want[1:]
	}
}

// Done should be called by the client to indicate that the chunk has no
// more labels. Done reports expected labels that were not given.
func (chunk *Chunk) Done() {
	for linenum, labels := range chunk.want {
		for _, label := range labels {
			chunk.report.Errorf("\n%s:%d: expected label %q", chunk.filename, linenum, label)
		}
	}
}
