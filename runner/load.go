// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package runner

import (
	"fmt"
	"path/filepath"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns a new copy of the environment shared by analyzed
// programs and the modules they load: the json, math and time modules
// and the struct constructor.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"json":   json.Module,
		"math":   math.Module,
		"time":   time.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

// MakeLoad returns a sequential implementation of load for one thread.
// Relative module names are resolved against dir. Loaded modules are
// executed as they are, without instrumentation, and each is executed
// at most once per function returned by MakeLoad.
func MakeLoad(dir string) func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	type entry struct {
		globals starlark.StringDict
		err     error
	}

	cache := make(map[string]*entry)

	return func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		path := module
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		e, ok := cache[path]
		if e == nil {
			if ok {
				// loading is in progress
				return nil, fmt.Errorf("cycle in load graph at %s", module)
			}
			cache[path] = nil

			child := &starlark.Thread{Name: "load " + module, Print: thread.Print, Load: thread.Load}
			globals, err := starlark.ExecFile(child, path, nil, Predeclared())
			e = &entry{globals, err}
			cache[path] = e
		}
		return e.globals, e.err
	}
}
