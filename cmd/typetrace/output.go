// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
	"google.golang.org/protobuf/encoding/protojson"
	"gopkg.in/yaml.v3"

	"github.com/typetrace/typetrace/registry"
)

// Output formats of observed types.
const (
	formatAuto      = "auto"
	formatTable     = "table"
	formatPlain     = "plain"
	formatYAML      = "yaml"
	formatJSON      = "json"
	formatProtoJSON = "protojson"
)

var formats = []string{formatAuto, formatTable, formatPlain, formatYAML, formatJSON, formatProtoJSON}

func formatUsage() string {
	return "output `format`: " + strings.Join(formats, ", ")
}

// resolveFormat replaces auto by table on a terminal and plain elsewhere.
func resolveFormat(format string, out *os.File) (string, error) {
	for _, f := range formats {
		if f == format {
			if f == formatAuto {
				if term.IsTerminal(int(out.Fd())) {
					return formatTable, nil
				}
				return formatPlain, nil
			}
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(formats, ", "))
}

// writeTypes writes snap to w in the given format, which must not be auto.
func writeTypes(w io.Writer, snap registry.Snapshot, format string) error {
	switch format {
	case formatTable:
		_, err := fmt.Fprintln(w, typesTable(snap))
		return err

	case formatPlain:
		for _, name := range snap.Names() {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", name, joinKinds(snap[name])); err != nil {
				return err
			}
		}
		return nil

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap.Strings()); err != nil {
			return err
		}
		return enc.Close()

	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Strings())

	case formatProtoJSON:
		msg, err := snap.Proto()
		if err != nil {
			return err
		}
		data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	nameStyle   = lipgloss.NewStyle().Padding(0, 1)
	kindStyle   = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("6"))
)

func typesTable(snap registry.Snapshot) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("NAME", "TYPES").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return nameStyle
			default:
				return kindStyle
			}
		})
	for _, name := range snap.Names() {
		t.Row(name, joinKinds(snap[name]))
	}
	return t.String()
}

func joinKinds(kinds []registry.Kind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
