// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/export"
)

// Output formats accepted by --format.
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatTSV   = "tsv"
)

// maxCellWidth truncates long sentences in table output.
const maxCellWidth = 80

// resolveFormat turns "auto" into "table" for terminals and "tsv" for
// pipes and files.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case formatTable, formatTSV:
		return format, nil
	case formatAuto, "":
		if isTerminal(w) {
			return formatTable, nil
		}
		return formatTSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want auto, table or tsv)", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeTable prints table as TSV, identical to the HTTP download, or as
// aligned columns followed by a row count.
func writeTable(w io.Writer, table datatypes.Table, format string) error {
	if format == formatTSV {
		return export.WriteTSV(w, table)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(table.Labels, "\t")))
	for _, row := range table.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = truncate(cell, maxCellWidth)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", table.Len())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
