// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis implements the operations that combine the gene and
// disease tables: co-occurrence correlations and related lookups.
//
// # Description
//
// The pure functions (Correlations, FilterCorrelations,
// DiseasesRelatedToGene, GenesRelatedToDisease) take a dataset snapshot
// and never mutate it. Analyzer wraps them, together with the per-table
// operations, with tracing spans and Prometheus metrics for the HTTP
// handlers and the CLI.
//
// # Thread Safety
//
// All functions are safe for concurrent use on the same snapshot.
package analysis

import (
	"sort"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

// DefaultCorrelationRows is the number of correlations shown when the
// caller does not ask for a specific count.
const DefaultCorrelationRows = 10

// sentenceKey locates a sentence inside the literature.
type sentenceKey struct {
	pmid      int64
	nsentence int64
}

// mentionKey identifies one gene/disease co-mention in one sentence.
type mentionKey struct {
	pmid      int64
	geneID    int64
	diseaseID string
	nsentence int64
}

type pairKey struct {
	gene    string
	disease string
}

// Correlations counts gene/disease co-occurrences.
//
// # Description
//
// Joins the disease and gene tables on (pmid, nsentence), drops duplicate
// (pmid, geneid, diseaseid, nsentence) combinations and counts the
// remaining rows per (gene_symbol, disease_name). The count is the number
// of distinct sentences in which the pair co-occurs, so duplicate source
// rows never inflate it.
//
// # Outputs
//
//   - []datatypes.CorrelationRow: Sorted by occurrences descending, then by
//     gene symbol and disease name ascending. Never nil.
func Correlations(ds *tables.Dataset) []datatypes.CorrelationRow {
	genesBySentence := make(map[sentenceKey][]datatypes.GeneRecord)
	for _, g := range ds.Genes.Records() {
		k := sentenceKey{pmid: g.PMID, nsentence: g.NSentence}
		genesBySentence[k] = append(genesBySentence[k], g)
	}

	seen := make(map[mentionKey]struct{})
	counts := make(map[pairKey]int)
	for _, d := range ds.Diseases.Records() {
		genes := genesBySentence[sentenceKey{pmid: d.PMID, nsentence: d.NSentence}]
		for _, g := range genes {
			mk := mentionKey{pmid: d.PMID, geneID: g.GeneID, diseaseID: d.DiseaseID, nsentence: d.NSentence}
			if _, dup := seen[mk]; dup {
				continue
			}
			seen[mk] = struct{}{}
			counts[pairKey{gene: g.GeneSymbol, disease: d.DiseaseName}]++
		}
	}

	rows := make([]datatypes.CorrelationRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, datatypes.CorrelationRow{GeneSymbol: k.gene, DiseaseName: k.disease, Occurrences: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Occurrences != rows[j].Occurrences {
			return rows[i].Occurrences > rows[j].Occurrences
		}
		if rows[i].GeneSymbol != rows[j].GeneSymbol {
			return rows[i].GeneSymbol < rows[j].GeneSymbol
		}
		return rows[i].DiseaseName < rows[j].DiseaseName
	})
	return rows
}

// FilterCorrelations selects the correlations to show.
//
// # Description
//
// The minimum occurrence takes priority over the row count:
//   - minOccurrence == 0: numRows == 0 returns everything, otherwise the
//     first numRows rows (all of them when there are fewer).
//   - minOccurrence > 0: rows with fewer occurrences are dropped first,
//     then the first numRows of the remainder are kept unless numRows is 0
//     or not smaller than the remainder.
//
// # Inputs
//
//   - rows: Correlations sorted as returned by Correlations.
//   - numRows: Maximum rows to return, 0 for all. Negative is treated as 0.
//   - minOccurrence: Minimum occurrences, 0 for no threshold.
//
// # Outputs
//
//   - []datatypes.CorrelationRow: A new slice; rows is not modified.
func FilterCorrelations(rows []datatypes.CorrelationRow, numRows, minOccurrence int) []datatypes.CorrelationRow {
	if numRows < 0 {
		numRows = 0
	}

	kept := rows
	if minOccurrence > 0 {
		kept = make([]datatypes.CorrelationRow, 0, len(rows))
		for _, r := range rows {
			if r.Occurrences >= minOccurrence {
				kept = append(kept, r)
			}
		}
	}

	if numRows != 0 && numRows < len(kept) {
		kept = kept[:numRows]
	}
	return append(make([]datatypes.CorrelationRow, 0, len(kept)), kept...)
}
