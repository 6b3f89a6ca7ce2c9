// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes computed tables as tab-separated text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// ContentType is the media type of exported tables.
const ContentType = "text/tsv"

// Extension is appended to export file names.
const Extension = ".tsv"

// WriteTSV writes the labels followed by every row, tab-separated with
// "\n" line endings. Fields containing tabs, quotes or newlines are quoted.
func WriteTSV(w io.Writer, table datatypes.Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(table.Labels); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Filename returns the attachment name for an export called name.
func Filename(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return name + Extension
}

// ContentDisposition returns the Content-Disposition header value for an
// attachment called name.
func ContentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", Filename(name))
}
