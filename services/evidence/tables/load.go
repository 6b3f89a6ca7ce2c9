// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tables loads the gene and disease evidence datasets and implements
// the per-table operations: dimensions, previews, pagination slices,
// distinct values and evidence lookups.
//
// # Description
//
// Both datasets are flat tab-separated files with a header row. A loaded
// pair of tables is an immutable Dataset snapshot; Store swaps snapshots
// atomically so readers never take a lock.
//
// # Thread Safety
//
// GeneTable, DiseaseTable and Dataset are read-only after loading and safe
// for concurrent use. Store is safe for concurrent use.
package tables

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrMissingColumn is returned when a required header label is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrMalformedRow is returned when a row has too few fields or a
	// numeric column does not parse.
	ErrMalformedRow = errors.New("malformed row")

	// ErrEmptyTable is returned when a file has no header row.
	ErrEmptyTable = errors.New("empty table")
)

// =============================================================================
// Options
// =============================================================================

// DefaultReferenceCondition is the condition evidences are filtered by.
const DefaultReferenceCondition = "COVID-19"

// PreviewRows is the number of rows returned by Head and Tail.
const PreviewRows = 5

// Options configures how tables are interpreted.
//
// # Fields
//
//   - ReferenceCondition: Annotated mention that marks an evidence sentence.
//     A sentence is an evidence when it contains ">" + ReferenceCondition + "<".
//     Default: "COVID-19"
type Options struct {
	ReferenceCondition string
}

func (o Options) withDefaults() Options {
	if o.ReferenceCondition == "" {
		o.ReferenceCondition = DefaultReferenceCondition
	}
	return o
}

// =============================================================================
// Raw TSV Reading
// =============================================================================

// rawTable is the header and stringified rows of a TSV file, shared by both
// typed tables for the generic browse operations.
type rawTable struct {
	labels []string
	rows   [][]string
}

// maxLineBytes bounds a single TSV line. Annotated sentences can be long.
const maxLineBytes = 4 << 20

// readTSV reads a tab-separated stream with a header row. Every line is one
// record and quotes are ordinary text. Blank lines are skipped and a
// trailing "\r" is dropped.
func readTSV(r io.Reader) (rawTable, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var header []string
	rows := make([][]string, 0, 1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if header == nil {
			header = fields
			continue
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		if header == nil {
			return rawTable{}, fmt.Errorf("read header: %w", err)
		}
		return rawTable{}, fmt.Errorf("read row %d: %w", len(rows)+2, err)
	}
	if header == nil {
		return rawTable{}, ErrEmptyTable
	}

	return rawTable{labels: header, rows: rows}, nil
}

// columnIndex resolves header labels to field positions.
func columnIndex(labels []string, required ...string) (map[string]int, error) {
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		if _, seen := index[label]; !seen {
			index[label] = i
		}
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return index, nil
}

// field returns row[i] or a malformed-row error carrying the file line.
// Line numbers are 1-based and count the header.
func field(row []string, i, rowIdx int, name string) (string, error) {
	if i >= len(row) {
		return "", fmt.Errorf("%w: line %d: no value for %q", ErrMalformedRow, rowIdx+2, name)
	}
	return row[i], nil
}

func intField(row []string, i, rowIdx int, name string) (int64, error) {
	s, err := field(row, i, rowIdx, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s=%q is not an integer", ErrMalformedRow, rowIdx+2, name, s)
	}
	return v, nil
}

// =============================================================================
// Dataset
// =============================================================================

// Dataset is an immutable snapshot of both tables.
type Dataset struct {
	Genes    *GeneTable
	Diseases *DiseaseTable
	LoadedAt time.Time
}

// LoadDataset loads both tables concurrently.
//
// # Description
//
// Reads the gene and disease files in parallel. If either load fails the
// other is cancelled and the first error is returned.
//
// # Inputs
//
//   - ctx: Cancels the load between files.
//   - genePath, diseasePath: TSV files with header rows.
//   - opts: Interpretation options; zero value uses defaults.
//
// # Outputs
//
//   - *Dataset: The loaded snapshot.
//   - error: Wraps ErrMissingColumn, ErrMalformedRow, ErrEmptyTable or an I/O error.
func LoadDataset(ctx context.Context, genePath, diseasePath string, opts Options) (*Dataset, error) {
	g, ctx := errgroup.WithContext(ctx)

	var genes *GeneTable
	var diseases *DiseaseTable

	g.Go(func() error {
		t, err := LoadGeneTable(genePath, opts)
		if err != nil {
			return fmt.Errorf("load gene table %s: %w", genePath, err)
		}
		genes = t
		return ctx.Err()
	})
	g.Go(func() error {
		t, err := LoadDiseaseTable(diseasePath, opts)
		if err != nil {
			return fmt.Errorf("load disease table %s: %w", diseasePath, err)
		}
		diseases = t
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dataset{Genes: genes, Diseases: diseases, LoadedAt: time.Now()}, nil
}

func openTSV(path string) (rawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return rawTable{}, err
	}
	defer f.Close()
	return readTSV(f)
}
