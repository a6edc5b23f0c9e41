// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typestore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/typetrace/typetrace/internal/typestore"
	"github.com/typetrace/typetrace/registry"
)

func TestSaveMerges(t *testing.T) {
	ctx := context.Background()
	s, err := typestore.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, registry.Snapshot{
		"main.x": {"int"},
		"main.y": {"string"},
	}))
	require.NoError(t, s.Save(ctx, registry.Snapshot{
		"main.x": {"string", "int"},
		"main.z": {"NoneType"},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, registry.Snapshot{
		"main.x": {"int", "string"},
		"main.y": {"string"},
		"main.z": {"NoneType"},
	}, got)
}

// Concurrent saves of the same binding all land.
func TestSaveConcurrent(t *testing.T) {
	ctx := context.Background()
	s, err := typestore.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap := registry.Snapshot{"main.x": {registry.Kind(fmt.Sprintf("k%02d", i))}}
			snap[fmt.Sprintf("main.own%02d", i)] = []registry.Kind{"int"}
			errs[i] = s.Save(ctx, snap)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "save %d", i)
	}

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, n+1)
	require.Len(t, got["main.x"], n)
}

func TestLoadEmpty(t *testing.T) {
	s, err := typestore.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := typestore.Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, registry.Snapshot{"m.a": {"list"}}))
	require.NoError(t, s.Close())

	s, err = typestore.Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, registry.Snapshot{"m.a": {"dict"}}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, registry.Snapshot{"m.a": {"dict", "list"}}, got)
}

func TestOpenEmptyDir(t *testing.T) {
	_, err := typestore.Open("", nil)
	require.Error(t, err)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s, err := typestore.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	second := typestore.RunRecord{ID: "b", Entry: "main.star", Started: t0.Add(time.Minute), Failed: true, Error: "boom"}
	first := typestore.RunRecord{ID: "a", Entry: "main.star", Started: t0, Duration: time.Second, Bindings: 3}
	require.NoError(t, s.Record(ctx, second))
	require.NoError(t, s.Record(ctx, first))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "a", runs[0].ID)
	require.Equal(t, 3, runs[0].Bindings)
	require.True(t, runs[0].Started.Equal(t0))
	require.Equal(t, "b", runs[1].ID)
	require.Equal(t, "boom", runs[1].Error)
	require.True(t, runs[1].Failed)

	// Run records are not observations.
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, snap)
}

func TestCancelledContext(t *testing.T) {
	s, err := typestore.OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Save(ctx, registry.Snapshot{"x": {"int"}}), context.Canceled)
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
