// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"github.com/typetrace/typetrace/internal/config"
	"github.com/typetrace/typetrace/internal/typestore"
	"github.com/typetrace/typetrace/registry"
	"github.com/typetrace/typetrace/runner"
)

var runFlags struct {
	format     string
	store      string
	module     string
	timeout    time.Duration
	maxSteps   uint64
	parallel   int
	fresh      bool
	showenv    bool
	cpuprofile string
	profile    string
}

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Run programs and print the types of their variables",
	Long: `run instruments each FILE, writes the instrumented program beside it
(FILE with _typetrace before the extension), executes it, and prints
every qualified name with the types of the values bound to it.

Several files run in parallel and share one registry. A program that
fails still contributes the observations made before the failure.

Settings come from the typetrace.yaml beside the first FILE, or from
--config, and apply to every FILE.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.format, "format", "f", formatAuto, formatUsage())
	f.StringVar(&runFlags.store, "store", "", "merge observations into the store in `dir`")
	f.StringVar(&runFlags.module, "module", "", "module `name` in qualified names (default: file base name)")
	f.DurationVar(&runFlags.timeout, "timeout", 0, "stop each program after `duration`")
	f.Uint64Var(&runFlags.maxSteps, "max-steps", 0, "stop each program after `n` computation steps")
	f.IntVar(&runFlags.parallel, "parallel", 0, "run at most `n` programs at once")
	f.BoolVar(&runFlags.fresh, "fresh", false, "give each program a private registry, merged when it ends")
	f.BoolVar(&runFlags.showenv, "showenv", false, "print the final global environment of each program")
	f.StringVar(&runFlags.cpuprofile, "cpuprofile", "", "gather Go CPU profile in this `file`")
	f.StringVar(&runFlags.profile, "profile", "", "gather Starlark time profile in this `file`")
}

// runConfig loads the settings for entry and applies the flags set on cmd.
func runConfig(cmd *cobra.Command, entry string) (config.Config, error) {
	cfg, err := loadConfig(entry)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = runFlags.store
	}
	if flags.Changed("module") {
		cfg.Module = runFlags.module
	}
	if flags.Changed("timeout") {
		cfg.Timeout = runFlags.timeout
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = runFlags.maxSteps
	}
	if flags.Changed("parallel") {
		cfg.Parallel = runFlags.parallel
	}
	if flags.Changed("fresh") {
		cfg.FreshRegistry = runFlags.fresh
	}
	return cfg, cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) (err error) {
	format, err := resolveFormat(runFlags.format, os.Stdout)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := runConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if cfg.Module != "" && len(args) > 1 {
		return errors.New("--module applies to a single file")
	}

	if runFlags.cpuprofile != "" {
		f, ferr := os.Create(runFlags.cpuprofile)
		if ferr != nil {
			return ferr
		}
		if ferr := pprof.StartCPUProfile(f); ferr != nil {
			return ferr
		}
		defer func() {
			pprof.StopCPUProfile()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
	}
	if runFlags.profile != "" {
		f, ferr := os.Create(runFlags.profile)
		if ferr != nil {
			return ferr
		}
		if ferr := starlark.StartProfile(f); ferr != nil {
			return ferr
		}
		defer func() {
			if perr := starlark.StopProfile(); err == nil {
				err = perr
			}
		}()
	}

	opts := []runner.Option{
		runner.WithConfig(cfg),
		runner.WithLogger(logger),
		runner.WithRegistry(registry.New()),
	}
	if cfg.Store != "" {
		store, serr := typestore.Open(cfg.Store, logger)
		if serr != nil {
			return serr
		}
		defer store.Close()
		opts = append(opts, runner.WithStore(store))
	}
	d := runner.New(opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	results, err := runAll(ctx, d, args)

	failed := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Err != nil {
			failed++
			printProgramError(res)
		}
		if runFlags.showenv {
			for _, name := range res.Globals.Keys() {
				if !strings.HasPrefix(name, "_") {
					fmt.Fprintf(os.Stderr, "%s: %s = %s\n", res.Program.Entry, name, res.Globals[name])
				}
			}
		}
	}
	if werr := writeTypes(os.Stdout, d.Registry.Types(), format); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d programs failed", failed, len(args))
	}
	return nil
}

func runAll(ctx context.Context, d *runner.Driver, paths []string) ([]*runner.Result, error) {
	if len(paths) == 1 {
		res, err := d.Run(ctx, paths[0])
		return []*runner.Result{res}, err
	}
	return d.RunAll(ctx, paths)
}

func printProgramError(res *runner.Result) {
	var evalErr *starlark.EvalError
	if errors.As(res.Err, &evalErr) {
		fmt.Fprintln(os.Stderr, evalErr.Backtrace())
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v\n", res.Program.Entry, res.Err)
	}
}
