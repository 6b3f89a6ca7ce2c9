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

// DiseaseTable is the loaded disease evidences dataset.
type DiseaseTable struct {
	rawTable
	records   []datatypes.DiseaseRecord
	reference string
}

// LoadDiseaseTable reads a disease evidences TSV file.
//
// # Inputs
//
//   - path: File with at least the disease_name, diseaseid, sentence,
//     nsentence and pmid columns, in any order.
//   - opts: Interpretation options.
//
// # Outputs
//
//   - *DiseaseTable: The loaded table.
//   - error: Wraps ErrMissingColumn, ErrMalformedRow, ErrEmptyTable or an I/O error.
func LoadDiseaseTable(path string, opts Options) (*DiseaseTable, error) {
	raw, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	return newDiseaseTable(raw, opts)
}

func newDiseaseTable(raw rawTable, opts Options) (*DiseaseTable, error) {
	opts = opts.withDefaults()

	idx, err := columnIndex(raw.labels,
		datatypes.ColDiseaseName, datatypes.ColDiseaseID,
		datatypes.ColSentence, datatypes.ColNSentence, datatypes.ColPMID)
	if err != nil {
		return nil, err
	}

	records := make([]datatypes.DiseaseRecord, 0, len(raw.rows))
	for i, row := range raw.rows {
		var rec datatypes.DiseaseRecord
		if rec.DiseaseName, err = field(row, idx[datatypes.ColDiseaseName], i, datatypes.ColDiseaseName); err != nil {
			return nil, err
		}
		if rec.DiseaseID, err = field(row, idx[datatypes.ColDiseaseID], i, datatypes.ColDiseaseID); err != nil {
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

	return &DiseaseTable{rawTable: raw, records: records, reference: opts.ReferenceCondition}, nil
}

// Records returns the typed rows in file order. The slice is shared with
// the snapshot and must not be modified.
func (t *DiseaseTable) Records() []datatypes.DiseaseRecord {
	return t.records
}

// Distinct returns unique diseases sorted by title-cased name.
//
// # Description
//
// Names are title-cased first, so "acute disease" and "Acute Disease"
// collapse into one entry and sort next to each other. The first
// occurrence of every title-cased name wins.
func (t *DiseaseTable) Distinct() []datatypes.Disease {
	diseases := make([]datatypes.Disease, 0, len(t.records))
	for _, r := range t.records {
		diseases = append(diseases, datatypes.Disease{DiseaseName: r.DiseaseName, DiseaseID: r.DiseaseID})
	}
	return DistinctDiseases(diseases)
}

// DistinctDiseases title-cases names, dedupes by the title-cased name
// keeping the first occurrence, and sorts by name.
func DistinctDiseases(diseases []datatypes.Disease) []datatypes.Disease {
	seen := make(map[string]struct{}, len(diseases))
	out := make([]datatypes.Disease, 0)
	for _, d := range diseases {
		name := TitleCase(d.DiseaseName)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, datatypes.Disease{DiseaseName: name, DiseaseID: d.DiseaseID})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DiseaseName < out[j].DiseaseName })
	return out
}

// Evidence returns the sentences relating a disease to the reference
// condition.
//
// # Description
//
// A query shaped like a disease id (C followed by at least seven digits)
// matches diseaseid; anything else matches disease_name exactly.
func (t *DiseaseTable) Evidence(query string) []datatypes.EvidenceRow {
	byID := datatypes.IsDiseaseID(query)

	out := make([]datatypes.EvidenceRow, 0)
	for _, r := range t.records {
		if byID && r.DiseaseID != query {
			continue
		}
		if !byID && r.DiseaseName != query {
			continue
		}
		if !ContainsMention(r.Sentence, t.reference) {
			continue
		}
		out = append(out, datatypes.EvidenceRow{Sentence: r.Sentence, NSentence: r.NSentence, PMID: r.PMID})
	}
	return out
}

// NameForID returns the name of the first row with the given disease id.
func (t *DiseaseTable) NameForID(id string) (string, bool) {
	for _, r := range t.records {
		if r.DiseaseID == id {
			return r.DiseaseName, true
		}
	}
	return "", false
}
