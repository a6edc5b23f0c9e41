// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.starlark.net/syntax"

	"github.com/typetrace/typetrace/instrument"
	"github.com/typetrace/typetrace/internal/config"
	"github.com/typetrace/typetrace/label"
	"github.com/typetrace/typetrace/printer"
	"github.com/typetrace/typetrace/rename"
	"github.com/typetrace/typetrace/scope"
)

// Commands that transform or inspect one file without running it.

var (
	outputPath string
	moduleName string
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument FILE",
	Short: "Print the instrumented form of a program",
	Long: `instrument rewrites every assignment of FILE to record the type of
the assigned value, and prints the result. With -o it writes the
result to a file instead; -o - means standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, cfg, err := parseEntry(args[0])
		if err != nil {
			return err
		}
		out, report := instrument.File(f, instrument.Options{
			Module: cfg.ModuleName(args[0]),
			Sep:    cfg.Separator,
			Func:   cfg.RecordFunc,
		})
		logger, err := newLogger()
		if err != nil {
			return err
		}
		logger.Info("instrumented", "file", args[0], "sites", len(report.Sites), "skipped", len(report.Skipped))
		pc := printer.Config{AlignLines: cfg.AlignLines}
		return writeOutput(func(w io.Writer) error { return pc.Fprint(w, out) })
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename FILE",
	Short: "Print a program with every binding given a unique name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, cfg, err := parseEntry(args[0])
		if err != nil {
			return err
		}
		out, _ := rename.File(f, cfg.ModuleName(args[0]))
		pc := printer.Config{AlignLines: cfg.AlignLines}
		return writeOutput(func(w io.Writer) error { return pc.Fprint(w, out) })
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels FILE",
	Short: "List the assignment sites of a program and their qualified names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, cfg, err := parseEntry(args[0])
		if err != nil {
			return err
		}
		return writeOutput(func(w io.Writer) error {
			tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
			for _, site := range sites(f, cfg, args[0]) {
				fmt.Fprintf(tw, "%s\t%s\n", site.Pos(), site.Label)
			}
			return tw.Flush()
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{instrumentCmd, renameCmd, labelsCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "write to `file`")
		cmd.Flags().StringVar(&moduleName, "module", "", "module `name` (default: file base name)")
	}
}

// parseEntry parses the file at path with the settings that apply to it.
func parseEntry(path string) (*syntax.File, config.Config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, cfg, err
	}
	if moduleName != "" {
		cfg.Module = moduleName
	}
	f, err := syntax.Parse(path, nil, 0)
	if err != nil {
		return nil, cfg, err
	}
	return f, cfg, nil
}

func sites(f *syntax.File, cfg config.Config, path string) []label.Site {
	l := label.New(scope.Index(f), cfg.ModuleName(path))
	if cfg.Separator != "" {
		l.Sep = cfg.Separator
	}
	return l.Sites(f)
}

// writeOutput calls write with the destination named by -o.
func writeOutput(write func(io.Writer) error) error {
	if outputPath == "" || outputPath == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
