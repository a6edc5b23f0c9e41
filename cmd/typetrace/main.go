// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The typetrace command records the types of the values bound to the
// variables of Starlark programs.
//
// Usage:
//
//	typetrace run [flags] FILE...     run programs and print observed types
//	typetrace instrument FILE         print or write the instrumented program
//	typetrace rename FILE             print the program with unique names
//	typetrace labels FILE             list assignment sites and their names
//	typetrace types --store DIR       print persisted observations
//	typetrace repl                    instrumented read-eval-print loop
package main // import "github.com/typetrace/typetrace/cmd/typetrace"

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typetrace/typetrace/internal/config"
)

// flags shared by all commands
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "typetrace",
	Short: "Record the run-time types of Starlark variables",
	Long: `typetrace instruments every assignment of a Starlark program so that
the type of each value bound to a variable is recorded under the
variable's qualified name, then runs the program and reports what
it saw.

Settings are read from typetrace.yaml beside the entry file, or from
the file named by --config.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings `file` (default: typetrace.yaml beside the entry)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd, instrumentCmd, renameCmd, labelsCmd, typesCmd, replCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "typetrace:", err)
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadConfig reads the settings for entry, which may be empty.
func loadConfig(entry string) (config.Config, error) {
	switch {
	case configPath != "":
		return config.Load(configPath)
	case entry != "":
		return config.ForEntry(entry)
	default:
		return config.Load(config.FileName)
	}
}
