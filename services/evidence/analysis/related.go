// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

var (
	// ErrUnknownGene is returned when a numeric gene query matches no geneid.
	ErrUnknownGene = errors.New("unknown gene id")

	// ErrUnknownDisease is returned when a disease id query matches no diseaseid.
	ErrUnknownDisease = errors.New("unknown disease id")
)

// sharedKey is the set of columns both tables have in common.
type sharedKey struct {
	sentence  string
	nsentence int64
	pmid      int64
}

// DiseasesRelatedToGene returns the diseases mentioned in the same
// sentences as a gene.
//
// # Description
//
// The tables are joined on all shared columns (sentence, nsentence, pmid).
// A numeric query is a gene id and is resolved to its symbol first. Joined
// rows whose sentence mentions the symbol (">" + symbol + "<") contribute
// their disease, and the result is title-cased, deduplicated and sorted
// like the distinct disease list.
//
// # Inputs
//
//   - ds: Dataset snapshot.
//   - query: Gene symbol, or gene id when it parses as an integer.
//
// # Outputs
//
//   - []datatypes.Disease: Related diseases, possibly empty. Never nil.
//   - error: Wraps ErrUnknownGene when a gene id matches no row.
//
// # Examples
//
//	diseases, err := analysis.DiseasesRelatedToGene(ds, "ACE2")
//	diseases, err := analysis.DiseasesRelatedToGene(ds, "59272")
func DiseasesRelatedToGene(ds *tables.Dataset, query string) ([]datatypes.Disease, error) {
	symbol := query
	if id, ok := datatypes.ParseGeneID(query); ok {
		s, found := ds.Genes.SymbolForID(id)
		if !found {
			return []datatypes.Disease{}, fmt.Errorf("%w: %d", ErrUnknownGene, id)
		}
		symbol = s
	}

	geneSentences := make(map[sharedKey]struct{}, len(ds.Genes.Records()))
	for _, g := range ds.Genes.Records() {
		geneSentences[sharedKey{sentence: g.Sentence, nsentence: g.NSentence, pmid: g.PMID}] = struct{}{}
	}

	related := make([]datatypes.Disease, 0)
	for _, d := range ds.Diseases.Records() {
		if _, joined := geneSentences[sharedKey{sentence: d.Sentence, nsentence: d.NSentence, pmid: d.PMID}]; !joined {
			continue
		}
		if !tables.ContainsMention(d.Sentence, symbol) {
			continue
		}
		related = append(related, datatypes.Disease{DiseaseName: d.DiseaseName, DiseaseID: d.DiseaseID})
	}
	return tables.DistinctDiseases(related), nil
}

// GenesRelatedToDisease returns the genes mentioned in the same sentences
// as a disease.
//
// # Description
//
// Mirror of DiseasesRelatedToGene: a query shaped like a disease id is
// resolved to its name first, and the genes of joined rows whose sentence
// mentions the name are deduplicated by symbol and sorted.
//
// # Outputs
//
//   - []datatypes.Gene: Related genes, possibly empty. Never nil.
//   - error: Wraps ErrUnknownDisease when a disease id matches no row.
func GenesRelatedToDisease(ds *tables.Dataset, query string) ([]datatypes.Gene, error) {
	name := query
	if datatypes.IsDiseaseID(query) {
		n, found := ds.Diseases.NameForID(query)
		if !found {
			return []datatypes.Gene{}, fmt.Errorf("%w: %s", ErrUnknownDisease, query)
		}
		name = n
	}

	diseaseSentences := make(map[sharedKey]struct{}, len(ds.Diseases.Records()))
	for _, d := range ds.Diseases.Records() {
		diseaseSentences[sharedKey{sentence: d.Sentence, nsentence: d.NSentence, pmid: d.PMID}] = struct{}{}
	}

	related := make([]datatypes.GeneRecord, 0)
	for _, g := range ds.Genes.Records() {
		if _, joined := diseaseSentences[sharedKey{sentence: g.Sentence, nsentence: g.NSentence, pmid: g.PMID}]; !joined {
			continue
		}
		if !tables.ContainsMention(g.Sentence, name) {
			continue
		}
		related = append(related, g)
	}
	return tables.DistinctGenes(related), nil
}
