// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "strconv"

// =============================================================================
// Table
// =============================================================================

// Table is the export shape of any computed result.
//
// # Description
//
// Every operation result (distinct, evidence, correlation, related lookups)
// converts into a Table before it is stored in the export cache or written
// as TSV. Rows are pre-stringified so the cache and the writers never need
// to know the originating record type.
//
// # Fields
//
//   - Name: Suggested export file name without extension
//   - Labels: Column headers, in output order
//   - Rows: One []string per row, len(row) == len(Labels)
type Table struct {
	Name   string     `json:"name"`
	Labels []string   `json:"labels"`
	Rows   [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// GenesTable converts distinct or related genes into a Table.
func GenesTable(name string, genes []Gene) Table {
	rows := make([][]string, 0, len(genes))
	for _, g := range genes {
		rows = append(rows, []string{g.GeneSymbol, strconv.FormatInt(g.GeneID, 10)})
	}
	return Table{Name: name, Labels: []string{ColGeneSymbol, ColGeneID}, Rows: rows}
}

// DiseasesTable converts distinct or related diseases into a Table.
func DiseasesTable(name string, diseases []Disease) Table {
	rows := make([][]string, 0, len(diseases))
	for _, d := range diseases {
		rows = append(rows, []string{d.DiseaseName, d.DiseaseID})
	}
	return Table{Name: name, Labels: []string{ColDiseaseName, ColDiseaseID}, Rows: rows}
}

// EvidenceTable converts evidence rows into a Table.
func EvidenceTable(name string, evidences []EvidenceRow) Table {
	rows := make([][]string, 0, len(evidences))
	for _, e := range evidences {
		rows = append(rows, []string{
			e.Sentence,
			strconv.FormatInt(e.NSentence, 10),
			strconv.FormatInt(e.PMID, 10),
		})
	}
	return Table{Name: name, Labels: []string{ColSentence, ColNSentence, ColPMID}, Rows: rows}
}

// CorrelationsTable converts correlation rows into a Table.
func CorrelationsTable(name string, correlations []CorrelationRow) Table {
	rows := make([][]string, 0, len(correlations))
	for _, c := range correlations {
		rows = append(rows, []string{c.GeneSymbol, c.DiseaseName, strconv.Itoa(c.Occurrences)})
	}
	return Table{
		Name:   name,
		Labels: []string{ColGeneSymbol, ColDiseaseName, ColOccurrences},
		Rows:   rows,
	}
}
