// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Identifier Disambiguation Tests
// =============================================================================

func TestIsDiseaseID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"C0000727", true},
		{"C00007270", true},
		{"C000072", false},
		{"c0000727", false},
		{"Communicable Diseases", false},
		{"C000072X", false},
		{"Cough", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDiseaseID(tt.input))
		})
	}
}

func TestParseGeneID(t *testing.T) {
	id, ok := ParseGeneID("59272")
	assert.True(t, ok)
	assert.Equal(t, int64(59272), id)

	_, ok = ParseGeneID("ACE2")
	assert.False(t, ok)

	_, ok = ParseGeneID("")
	assert.False(t, ok)
}

// =============================================================================
// Table Conversion Tests
// =============================================================================

func TestGenesTable(t *testing.T) {
	table := GenesTable("distinct_genes", []Gene{{"ACE2", 59272}, {"AGT", 183}})

	assert.Equal(t, "distinct_genes", table.Name)
	assert.Equal(t, []string{"gene_symbol", "geneid"}, table.Labels)
	assert.Equal(t, [][]string{{"ACE2", "59272"}, {"AGT", "183"}}, table.Rows)
	assert.Equal(t, 2, table.Len())
}

func TestEvidenceTable(t *testing.T) {
	table := EvidenceTable("ACE2_evidences", []EvidenceRow{{Sentence: "s", NSentence: 3, PMID: 42}})

	assert.Equal(t, []string{"sentence", "nsentence", "pmid"}, table.Labels)
	assert.Equal(t, [][]string{{"s", "3", "42"}}, table.Rows)
}

func TestCorrelationsTable(t *testing.T) {
	table := CorrelationsTable("correlation", []CorrelationRow{{"ACE2", "Infection", 7}})

	assert.Equal(t, []string{"gene_symbol", "disease_name", "occurrences"}, table.Labels)
	assert.Equal(t, [][]string{{"ACE2", "Infection", "7"}}, table.Rows)
}

func TestEmptyTablesHaveNonNilRows(t *testing.T) {
	assert.NotNil(t, DiseasesTable("x", nil).Rows)
	assert.NotNil(t, GenesTable("x", nil).Rows)
	assert.NotNil(t, EvidenceTable("x", nil).Rows)
	assert.NotNil(t, CorrelationsTable("x", nil).Rows)
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestGeneLookupRequest_Validate(t *testing.T) {
	t.Run("trims and accepts symbol", func(t *testing.T) {
		req := GeneLookupRequest{Gene: "  ACE2 "}
		require.NoError(t, req.Validate())
		assert.Equal(t, "ACE2", req.Gene)
	})

	t.Run("rejects empty", func(t *testing.T) {
		req := GeneLookupRequest{Gene: "   "}
		assert.Error(t, req.Validate())
	})

	t.Run("rejects oversized input", func(t *testing.T) {
		req := GeneLookupRequest{Gene: strings.Repeat("A", 300)}
		assert.Error(t, req.Validate())
	})
}

func TestDiseaseLookupRequest_Validate(t *testing.T) {
	req := DiseaseLookupRequest{Disease: "C0009450"}
	require.NoError(t, req.Validate())

	empty := DiseaseLookupRequest{}
	assert.Error(t, empty.Validate())
}

func TestDownloadRequest_Validate(t *testing.T) {
	ok := DownloadRequest{NameFile: "correlation"}
	assert.NoError(t, ok.Validate())

	empty := DownloadRequest{}
	assert.NoError(t, empty.Validate())

	traversal := DownloadRequest{NameFile: "../etc/passwd"}
	assert.Error(t, traversal.Validate())
}

func TestCorrelationRequest_JSONScalars(t *testing.T) {
	tests := []struct {
		body           string
		wantRows       FormValue
		wantOccurrence FormValue
	}{
		{`{"rows": 5, "occurrence": "2"}`, "5", "2"},
		{`{"rows": "ten"}`, "ten", ""},
		{`{"rows": -3, "occurrence": 1.5}`, "-3", "1.5"},
		{`{"rows": null, "occurrence": true}`, "", "true"},
		{`{}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req CorrelationRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantRows, req.Rows)
			assert.Equal(t, tt.wantOccurrence, req.Occurrence)
		})
	}
}
