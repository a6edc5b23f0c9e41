// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads typetrace settings from YAML.
//
// Settings are read from an explicit file or from typetrace.yaml in the
// directory of the entry point. A missing file is not an error: every
// setting has a usable default.
package config // import "github.com/typetrace/typetrace/internal/config"

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.starlark.net/resolve"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the per-project settings file.
const FileName = "typetrace.yaml"

// DefaultSuffix is appended to the entry file's base name to form the
// name of the instrumented program.
const DefaultSuffix = "_typetrace"

// Config holds the settings of an analysis run.
type Config struct {
	// Module names the module scope in qualified names.
	// Empty means the entry file's base name without extension.
	Module string `yaml:"module"`

	// Separator joins qualified name segments. Default ".".
	Separator string `yaml:"separator"`

	// RecordFunc is the name of the recording function in instrumented code.
	RecordFunc string `yaml:"record_func"`

	// OutputSuffix is appended to the entry's base name for the
	// instrumented file, which is written beside the entry.
	OutputSuffix string `yaml:"output_suffix"`

	// AlignLines keeps statements of the instrumented file on their
	// original lines.
	AlignLines bool `yaml:"align_lines"`

	// Timeout bounds the execution of one program. Zero means none.
	Timeout time.Duration `yaml:"timeout"`

	// MaxSteps bounds the number of Starlark computation steps of one
	// program. Zero means none.
	MaxSteps uint64 `yaml:"max_steps"`

	// Parallel bounds the number of programs run at once by RunAll.
	Parallel int `yaml:"parallel"`

	// FreshRegistry gives each run a private registry that is merged
	// into the shared one when the run ends.
	FreshRegistry bool `yaml:"fresh_registry"`

	// Store is a directory holding persisted observations. Empty
	// means observations live only as long as the process.
	Store string `yaml:"store"`

	Dialect Dialect `yaml:"dialect"`
}

// Dialect selects the non-standard Starlark features accepted in
// analyzed programs. All are enabled by default.
type Dialect struct {
	Set *bool `yaml:"set"`

	// GlobalReassign also permits if and for statements at top level.
	GlobalReassign *bool `yaml:"global_reassign"`

	// Recursion also permits while loops.
	Recursion *bool `yaml:"recursion"`
}

var dialectMu sync.Mutex

// Apply installs the dialect in the resolver. The resolver's flags are
// process-wide, so programs of different dialects cannot be resolved
// at the same time.
func (d Dialect) Apply() {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	resolve.AllowSet = enabled(d.Set)
	resolve.AllowGlobalReassign = enabled(d.GlobalReassign)
	resolve.AllowRecursion = enabled(d.Recursion)
}

func enabled(b *bool) bool { return b == nil || *b }

// Default returns the default configuration.
func Default() Config {
	return Config{
		Separator:    ".",
		OutputSuffix: DefaultSuffix,
		AlignLines:   true,
		Parallel:     4,
	}
}

// Load reads the configuration from path, starting from the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ForEntry loads the settings file that sits beside the entry point.
func ForEntry(entry string) (Config, error) {
	return Load(filepath.Join(filepath.Dir(entry), FileName))
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if strings.ContainsAny(c.OutputSuffix, `/\`) {
		return fmt.Errorf("output_suffix %q must not contain a path separator", c.OutputSuffix)
	}
	if c.RecordFunc != "" && !isIdent(c.RecordFunc) {
		return fmt.Errorf("record_func %q is not an identifier", c.RecordFunc)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout %s is negative", c.Timeout)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel %d is negative", c.Parallel)
	}
	return nil
}

// ModuleName returns the module name to use for entry.
func (c Config) ModuleName(entry string) string {
	if c.Module != "" {
		return c.Module
	}
	base := filepath.Base(entry)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns where the instrumented form of entry is written.
func (c Config) OutputPath(entry string) string {
	suffix := c.OutputSuffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	ext := filepath.Ext(entry)
	return strings.TrimSuffix(entry, ext) + suffix + ext
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}
