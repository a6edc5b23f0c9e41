// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/typetrace/typetrace/internal/typestore"
)

var typesFlags struct {
	store  string
	format string
	runs   bool
}

var typesCmd = &cobra.Command{
	Use:   "types --store DIR",
	Short: "Print the observations persisted in a store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if typesFlags.store == "" {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			typesFlags.store = cfg.Store
		}
		if typesFlags.store == "" {
			return errors.New("no store: use --store or set store in " + configPathOrDefault())
		}
		format, err := resolveFormat(typesFlags.format, os.Stdout)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		store, err := typestore.Open(typesFlags.store, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if typesFlags.runs {
			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tBINDINGS\tENTRY\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Started.Format(time.RFC3339), r.Duration.Round(time.Millisecond), r.Bindings, r.Entry, r.Error)
			}
			return tw.Flush()
		}

		snap, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		return writeTypes(os.Stdout, snap, format)
	},
}

func init() {
	typesCmd.Flags().StringVar(&typesFlags.store, "store", "", "store `dir`")
	typesCmd.Flags().StringVarP(&typesFlags.format, "format", "f", formatAuto, formatUsage())
	typesCmd.Flags().BoolVar(&typesFlags.runs, "runs", false, "list recorded runs instead of types")
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	return "./typetrace.yaml"
}
