// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.starlark.net/resolve"

	"github.com/typetrace/typetrace/internal/config"
)

func write(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := write(t, t.TempDir(), `
module: app
separator: /
record_func: rec
timeout: 1m30s
max_steps: 1000
parallel: 2
fresh_registry: true
dialect:
  recursion: false
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "app", cfg.Module)
	require.Equal(t, "/", cfg.Separator)
	require.Equal(t, "rec", cfg.RecordFunc)
	require.Equal(t, 90*time.Second, cfg.Timeout)
	require.Equal(t, uint64(1000), cfg.MaxSteps)
	require.Equal(t, 2, cfg.Parallel)
	require.True(t, cfg.FreshRegistry)
	require.Nil(t, cfg.Dialect.Set)
	require.NotNil(t, cfg.Dialect.Recursion)
	require.False(t, *cfg.Dialect.Recursion)

	// Unset keys keep their defaults.
	require.Equal(t, config.DefaultSuffix, cfg.OutputSuffix)
	require.True(t, cfg.AlignLines)
}

func TestLoadErrors(t *testing.T) {
	for _, text := range []string{
		"module: [",
		"parallel: many",
		"record_func: not-an-ident",
		"output_suffix: a/b",
		"timeout: -1s",
		"parallel: -1",
	} {
		_, err := config.Load(write(t, t.TempDir(), text))
		require.Error(t, err, text)
	}
}

func TestForEntry(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "module: beside\n")
	cfg, err := config.ForEntry(filepath.Join(dir, "main.star"))
	require.NoError(t, err)
	require.Equal(t, "beside", cfg.Module)
}

func TestNames(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "main", cfg.ModuleName(filepath.Join("dir", "main.star")))
	require.Equal(t, "BUILD", cfg.ModuleName("BUILD"))
	require.Equal(t, filepath.Join("dir", "main_typetrace.star"), cfg.OutputPath(filepath.Join("dir", "main.star")))
	require.Equal(t, "BUILD_typetrace", cfg.OutputPath("BUILD"))

	cfg.Module = "fixed"
	cfg.OutputSuffix = ".out"
	require.Equal(t, "fixed", cfg.ModuleName("main.star"))
	require.Equal(t, "main.out.star", cfg.OutputPath("main.star"))

	cfg.OutputSuffix = ""
	require.Equal(t, "main_typetrace.star", cfg.OutputPath("main.star"))
}

func TestDialectApply(t *testing.T) {
	defer config.Dialect{}.Apply()

	no := false
	config.Dialect{Set: &no, Recursion: &no}.Apply()
	require.False(t, resolve.AllowSet)
	require.True(t, resolve.AllowGlobalReassign)
	require.False(t, resolve.AllowRecursion)

	config.Dialect{}.Apply()
	require.True(t, resolve.AllowSet)
	require.True(t, resolve.AllowRecursion)
}
