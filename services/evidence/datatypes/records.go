// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the records, results and request types shared by
// the evidence service packages.
package datatypes

import (
	"regexp"
	"strconv"
)

// =============================================================================
// Column Names
// =============================================================================

// Header labels of the two source datasets.
const (
	ColGeneSymbol  = "gene_symbol"
	ColGeneID      = "geneid"
	ColDiseaseName = "disease_name"
	ColDiseaseID   = "diseaseid"
	ColSentence    = "sentence"
	ColNSentence   = "nsentence"
	ColPMID        = "pmid"
	ColOccurrences = "occurrences"
)

// diseaseIDPattern matches UMLS concept identifiers such as C0000727.
var diseaseIDPattern = regexp.MustCompile(`^C\d{7,}$`)

// IsDiseaseID reports whether s looks like a disease identifier rather than
// a disease name.
func IsDiseaseID(s string) bool {
	return diseaseIDPattern.MatchString(s)
}

// ParseGeneID returns the gene id encoded in s, if s is a base-10 integer.
func ParseGeneID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// =============================================================================
// Source Records
// =============================================================================

// GeneRecord is one row of the gene evidences dataset.
//
// # Fields
//
//   - GeneSymbol: HGNC symbol, e.g. "ACE2"
//   - GeneID: NCBI gene identifier
//   - Sentence: Annotated sentence text with <span> markers
//   - NSentence: Index of the sentence inside the publication
//   - PMID: PubMed identifier of the publication
type GeneRecord struct {
	GeneSymbol string `json:"gene_symbol"`
	GeneID     int64  `json:"geneid"`
	Sentence   string `json:"sentence"`
	NSentence  int64  `json:"nsentence"`
	PMID       int64  `json:"pmid"`
}

// DiseaseRecord is one row of the disease evidences dataset.
type DiseaseRecord struct {
	DiseaseName string `json:"disease_name"`
	DiseaseID   string `json:"diseaseid"`
	Sentence    string `json:"sentence"`
	NSentence   int64  `json:"nsentence"`
	PMID        int64  `json:"pmid"`
}

// =============================================================================
// Derived Results
// =============================================================================

// Gene is a distinct (symbol, id) pair.
type Gene struct {
	GeneSymbol string `json:"gene_symbol"`
	GeneID     int64  `json:"geneid"`
}

// Disease is a distinct (name, id) pair.
type Disease struct {
	DiseaseName string `json:"disease_name"`
	DiseaseID   string `json:"diseaseid"`
}

// EvidenceRow is a sentence evidencing a relation to the reference condition.
type EvidenceRow struct {
	Sentence  string `json:"sentence"`
	NSentence int64  `json:"nsentence"`
	PMID      int64  `json:"pmid"`
}

// CorrelationRow counts the distinct (publication, sentence) pairs in which
// a gene and a disease are mentioned together.
type CorrelationRow struct {
	GeneSymbol  string `json:"gene_symbol"`
	DiseaseName string `json:"disease_name"`
	Occurrences int    `json:"occurrences"`
}
