// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tables

import (
	"sort"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// GeneTable is the loaded gene evidences dataset.
//
// # Description
//
// Embeds the raw header/rows for browsing (Dimensions, Labels, Head, Tail,
// Slice) and keeps typed records, in file order, for lookups and joins.
type GeneTable struct {
	rawTable
	records   []datatypes.GeneRecord
	reference string
}

// LoadGeneTable reads a gene evidences TSV file.
//
// # Inputs
//
//   - path: File with at least the gene_symbol, geneid, sentence,
//     nsentence and pmid columns, in any order.
//   - opts: Interpretation options.
//
// # Outputs
//
//   - *GeneTable: The loaded table.
//   - error: Wraps ErrMissingColumn, ErrMalformedRow, ErrEmptyTable or an I/O error.
func LoadGeneTable(path string, opts Options) (*GeneTable, error) {
	raw, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	return newGeneTable(raw, opts)
}

func newGeneTable(raw rawTable, opts Options) (*GeneTable, error) {
	opts = opts.withDefaults()

	idx, err := columnIndex(raw.labels,
		datatypes.ColGeneSymbol, datatypes.ColGeneID,
		datatypes.ColSentence, datatypes.ColNSentence, datatypes.ColPMID)
	if err != nil {
		return nil, err
	}

	records := make([]datatypes.GeneRecord, 0, len(raw.rows))
	for i, row := range raw.rows {
		var rec datatypes.GeneRecord
		if rec.GeneSymbol, err = field(row, idx[datatypes.ColGeneSymbol], i, datatypes.ColGeneSymbol); err != nil {
			return nil, err
		}
		if rec.GeneID, err = intField(row, idx[datatypes.ColGeneID], i, datatypes.ColGeneID); err != nil {
			return nil, err
		}
		if rec.Sentence, err = field(row, idx[datatypes.ColSentence], i, datatypes.ColSentence); err != nil {
			return nil, err
		}
		if rec.NSentence, err = intField(row, idx[datatypes.ColNSentence], i, datatypes.ColNSentence); err != nil {
			return nil, err
		}
		if rec.PMID, err = intField(row, idx[datatypes.ColPMID], i, datatypes.ColPMID); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return &GeneTable{rawTable: raw, records: records, reference: opts.ReferenceCondition}, nil
}

// Records returns the typed rows in file order. The slice is shared with
// the snapshot and must not be modified.
func (t *GeneTable) Records() []datatypes.GeneRecord {
	return t.records
}

// ReferenceCondition returns the condition evidences are filtered by.
func (t *GeneTable) ReferenceCondition() string {
	return t.reference
}

// Distinct returns unique genes sorted by symbol.
//
// # Description
//
// Projects (gene_symbol, geneid), keeps the first occurrence of every
// symbol and sorts by symbol in byte order.
func (t *GeneTable) Distinct() []datatypes.Gene {
	return DistinctGenes(t.records)
}

// DistinctGenes dedupes genes by symbol, keeping the first occurrence, and
// sorts them by symbol.
func DistinctGenes(records []datatypes.GeneRecord) []datatypes.Gene {
	seen := make(map[string]struct{}, len(records))
	out := make([]datatypes.Gene, 0)
	for _, r := range records {
		if _, dup := seen[r.GeneSymbol]; dup {
			continue
		}
		seen[r.GeneSymbol] = struct{}{}
		out = append(out, datatypes.Gene{GeneSymbol: r.GeneSymbol, GeneID: r.GeneID})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneSymbol < out[j].GeneSymbol })
	return out
}

// Evidence returns the sentences relating a gene to the reference condition.
//
// # Description
//
// A query that parses as an integer is a gene id and matches geneid;
// anything else matches gene_symbol exactly. Only sentences that mention
// the reference condition are kept, in file order.
//
// # Examples
//
//	table.Evidence("183")  // by gene id
//	table.Evidence("AGT")  // by symbol
func (t *GeneTable) Evidence(query string) []datatypes.EvidenceRow {
	id, byID := datatypes.ParseGeneID(query)

	out := make([]datatypes.EvidenceRow, 0)
	for _, r := range t.records {
		if byID && r.GeneID != id {
			continue
		}
		if !byID && r.GeneSymbol != query {
			continue
		}
		if !ContainsMention(r.Sentence, t.reference) {
			continue
		}
		out = append(out, datatypes.EvidenceRow{Sentence: r.Sentence, NSentence: r.NSentence, PMID: r.PMID})
	}
	return out
}

// SymbolForID returns the symbol of the first row with the given gene id.
func (t *GeneTable) SymbolForID(id int64) (string, bool) {
	for _, r := range t.records {
		if r.GeneID == id {
			return r.GeneSymbol, true
		}
	}
	return "", false
}
