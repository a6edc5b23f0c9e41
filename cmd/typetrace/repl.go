// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"github.com/typetrace/typetrace/instrument"
	"github.com/typetrace/typetrace/registry"
	"github.com/typetrace/typetrace/repl"
	"github.com/typetrace/typetrace/runner"
)

var replModule string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an instrumented read-eval-print loop",
	Long: `repl reads Starlark statements and expressions, records the types of
the values they assign, and prints the values of expressions.

:types prints the names and types recorded so far; :reset forgets them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		cfg.Dialect.Apply()
		thread := &starlark.Thread{Name: "REPL", Load: runner.MakeLoad(".")}
		s := repl.NewSession(thread, runner.Predeclared(), registry.New(), instrument.Options{
			Module: replModule,
			Sep:    cfg.Separator,
			Func:   cfg.RecordFunc,
		})
		fmt.Println("Welcome to typetrace (:types lists recorded types, :reset clears them)")
		s.REPL()
		return nil
	},
}

func init() {
	replCmd.Flags().StringVar(&replModule, "module", repl.DefaultModule, "module `name` in qualified names")
}
