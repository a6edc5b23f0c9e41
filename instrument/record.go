// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instrument

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/typetrace/typetrace/registry"
)

// A Sink receives type observations. *registry.Registry is a Sink.
type Sink interface {
	AddType(name string, k registry.Kind)
}

// KindOf returns the kind under which v is recorded.
func KindOf(v starlark.Value) registry.Kind { return registry.Kind(v.Type()) }

// Recorder returns the recording function that instrumented code calls
// as name(value, names, unpack=False).
//
// With unpack false, names holds one qualified name and the kind of
// value is recorded under it. With unpack true, value is iterated and
// the kind of each element is recorded under the name in the same
// position; None names are skipped. If the number of elements does not
// match the number of names, the assignment is about to fail in the
// program itself and nothing is recorded.
//
// In every case the result is value itself.
func Recorder(sink Sink, name string) *starlark.Builtin {
	if name == "" {
		name = DefaultFunc
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			value  starlark.Value
			names  starlark.Indexable
			unpack bool
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "names", &names, "unpack?", &unpack); err != nil {
			return nil, err
		}
		if !unpack {
			if names.Len() != 1 {
				return nil, fmt.Errorf("%s: got %d names for a single target, want 1", b.Name(), names.Len())
			}
			if s, ok := starlark.AsString(names.Index(0)); ok {
				sink.AddType(s, KindOf(value))
			}
			return value, nil
		}

		iter := starlark.Iterate(value)
		if iter == nil {
			return value, nil // not iterable: let the assignment report it
		}
		defer iter.Done()
		var elems []starlark.Value
		var x starlark.Value
		for iter.Next(&x) {
			elems = append(elems, x)
		}
		if len(elems) != names.Len() {
			return value, nil
		}
		for i, elem := range elems {
			if s, ok := starlark.AsString(names.Index(i)); ok {
				sink.AddType(s, KindOf(elem))
			}
		}
		return value, nil
	})
}
