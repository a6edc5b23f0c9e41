// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry accumulates the kinds of runtime values observed at
// each qualified binding site.
//
// A Registry maps a qualified name to the set of value kinds ever
// recorded for it. The mapping only grows: recording a kind twice is a
// no-op, and nothing is removed except by an explicit Reset.
//
// Default returns the process-wide registry, created on first use and
// never torn down. Code that needs isolation (tests, per-run analysis)
// creates its own with New and passes it where it is needed.
package registry // import "github.com/typetrace/typetrace/registry"

import (
	"sort"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"
)

// A Kind identifies the runtime type of a value, such as "int",
// "string" or "list".
type Kind string

// A Registry is a concurrency-safe map from qualified name to the set
// of kinds observed there.
type Registry struct {
	mu    sync.RWMutex
	types map[string]map[Kind]struct{} // guarded by mu
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{types: make(map[string]map[Kind]struct{})}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New() })
	return defaultReg
}

// AddType records that a value of kind k was bound at name.
func (r *Registry) AddType(name string, k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(name, k)
}

func (r *Registry) addLocked(name string, k Kind) {
	set, ok := r.types[name]
	if !ok {
		set = make(map[Kind]struct{})
		r.types[name] = set
	}
	set[k] = struct{}{}
}

// Types returns a snapshot of the registry.
// Concurrent writers may or may not be reflected, but every entry in
// the snapshot is complete as of some moment.
func (r *Registry) Types() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(Snapshot, len(r.types))
	for name, set := range r.types {
		kinds := make([]Kind, 0, len(set))
		for k := range set {
			kinds = append(kinds, k)
		}
		sortKinds(kinds)
		snap[name] = kinds
	}
	return snap
}

// Kinds returns the sorted kinds recorded for name, or nil.
func (r *Registry) Kinds(name string) []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.types[name]
	if len(set) == 0 {
		return nil
	}
	kinds := make([]Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sortKinds(kinds)
	return kinds
}

// Merge adds every observation of snap to the registry.
func (r *Registry) Merge(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, kinds := range snap {
		for _, k := range kinds {
			r.addLocked(name, k)
		}
	}
}

// Len returns the number of qualified names with at least one observation.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Reset discards all observations.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]map[Kind]struct{})
}

// A Snapshot is a point-in-time copy of a registry.
// Each list of kinds is sorted and free of duplicates.
type Snapshot map[string][]Kind

// Names returns the qualified names of the snapshot in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strings returns the snapshot with kinds as plain strings,
// for encoders that do not know about Kind.
func (s Snapshot) Strings() map[string][]string {
	m := make(map[string][]string, len(s))
	for name, kinds := range s {
		strs := make([]string, len(kinds))
		for i, k := range kinds {
			strs[i] = string(k)
		}
		m[name] = strs
	}
	return m
}

// Proto returns the snapshot as a protobuf Struct whose fields are the
// qualified names and whose values are lists of kind names.
func (s Snapshot) Proto() (*structpb.Struct, error) {
	fields := make(map[string]interface{}, len(s))
	for name, kinds := range s {
		list := make([]interface{}, len(kinds))
		for i, k := range kinds {
			list[i] = string(k)
		}
		fields[name] = list
	}
	return structpb.NewStruct(fields)
}

func sortKinds(kinds []Kind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
}
