// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/params"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

// DefaultRowsPerPage is the browse page size.
const DefaultRowsPerPage = 30

// Cache names of the distinct lists.
const (
	DistinctGenesName    = "distinct_genes"
	DistinctDiseasesName = "distinct_diseases"
	evidencesSuffix      = "_evidences"
)

// =============================================================================
// Browse
// =============================================================================

// browsable is the row access shared by both tables.
type browsable interface {
	Len() int
	Labels() []string
	Slice(start, end int) [][]string
}

type browseResponse struct {
	params.Page
	Labels    []string            `json:"labels"`
	Rows      [][]string          `json:"rows"`
	PubMedURL string              `json:"pubmed_url"`
	Warnings  []datatypes.Warning `json:"warnings"`
}

func browse(analyzer *analysis.Analyzer, perPage int, pubmedURL string, pick func(*tables.Dataset) browsable) gin.HandlerFunc {
	if perPage < 1 {
		perPage = DefaultRowsPerPage
	}
	return func(c *gin.Context) {
		page, current := params.ParsePage(c.Query("page"))
		table := pick(analyzer.Dataset())

		p := params.Paginate(page, perPage, table.Len())
		c.JSON(http.StatusOK, browseResponse{
			Page:      p,
			Labels:    table.Labels(),
			Rows:      table.Slice(p.Start, p.End),
			PubMedURL: pubmedURL,
			Warnings:  warnings(c, current...),
		})
	}
}

// BrowseGenes pages through the gene dataset.
//
// # Description
//
// Serves GET /v1/genes?page=N. A page below 1 or a non-numeric page shows
// the first page with a warning; a page past the end is empty.
//
// # Inputs
//
//   - analyzer: Source of the current snapshot.
//   - perPage: Rows per page. Values below 1 use DefaultRowsPerPage.
//   - pubmedURL: Base URL echoed to clients for linking pmids.
func BrowseGenes(analyzer *analysis.Analyzer, perPage int, pubmedURL string) gin.HandlerFunc {
	return browse(analyzer, perPage, pubmedURL, func(ds *tables.Dataset) browsable { return ds.Genes })
}

// BrowseDiseases pages through the disease dataset. See BrowseGenes.
func BrowseDiseases(analyzer *analysis.Analyzer, perPage int, pubmedURL string) gin.HandlerFunc {
	return browse(analyzer, perPage, pubmedURL, func(ds *tables.Dataset) browsable { return ds.Diseases })
}

// =============================================================================
// Info
// =============================================================================

type tableInfo struct {
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Labels  []string   `json:"labels"`
	Head    [][]string `json:"head"`
	Tail    [][]string `json:"tail"`
}

type previewable interface {
	Dimensions() (rows, cols int)
	Labels() []string
	Head() [][]string
	Tail() [][]string
}

func infoOf(t previewable) tableInfo {
	rows, cols := t.Dimensions()
	return tableInfo{Rows: rows, Columns: cols, Labels: t.Labels(), Head: t.Head(), Tail: t.Tail()}
}

// Info reports dimensions, labels, head and tail of both tables.
func Info(analyzer *analysis.Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ds := analyzer.Dataset()
		c.JSON(http.StatusOK, gin.H{
			"genes":               infoOf(ds.Genes),
			"diseases":            infoOf(ds.Diseases),
			"reference_condition": ds.Genes.ReferenceCondition(),
			"loaded_at":           ds.LoadedAt,
			"warnings":            warnings(c),
		})
	}
}

// =============================================================================
// Distinct
// =============================================================================

// DistinctGenes lists the distinct genes and caches them for download.
func DistinctGenes(analyzer *analysis.Analyzer, exports *Exports) gin.HandlerFunc {
	return func(c *gin.Context) {
		genes := analyzer.DistinctGenes(c.Request.Context())
		exports.remember(c, datatypes.GenesTable(DistinctGenesName, genes))

		c.JSON(http.StatusOK, gin.H{
			"name":     DistinctGenesName,
			"count":    len(genes),
			"rows":     genes,
			"warnings": warnings(c),
		})
	}
}

// DistinctDiseases lists the distinct diseases and caches them for download.
func DistinctDiseases(analyzer *analysis.Analyzer, exports *Exports) gin.HandlerFunc {
	return func(c *gin.Context) {
		diseases := analyzer.DistinctDiseases(c.Request.Context())
		exports.remember(c, datatypes.DiseasesTable(DistinctDiseasesName, diseases))

		c.JSON(http.StatusOK, gin.H{
			"name":     DistinctDiseasesName,
			"count":    len(diseases),
			"rows":     diseases,
			"warnings": warnings(c),
		})
	}
}

// =============================================================================
// Evidences
// =============================================================================

type evidenceView struct {
	datatypes.EvidenceRow
	PubMedURL string `json:"pubmed_url"`
}

func evidenceViews(rows []datatypes.EvidenceRow, pubmedURL string) []evidenceView {
	views := make([]evidenceView, 0, len(rows))
	for _, r := range rows {
		views = append(views, evidenceView{EvidenceRow: r, PubMedURL: pubmedURL + strconv.FormatInt(r.PMID, 10)})
	}
	return views
}

// GeneEvidences lists the sentences relating a gene to the reference
// condition.
//
// # Description
//
// Serves POST /v1/genes/evidences with a form or JSON field "gene" holding
// a symbol or a numeric gene id. The result is cached for download as
// "<gene>_evidences".
//
// # Outputs
//
//   - 200 with name, query, count, rows and warnings.
//   - 400 when "gene" is missing or blank.
func GeneEvidences(analyzer *analysis.Analyzer, exports *Exports, pubmedURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GeneLookupRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err)
			return
		}

		rows := analyzer.GeneEvidence(c.Request.Context(), req.Gene)
		name := req.Gene + evidencesSuffix
		exports.remember(c, datatypes.EvidenceTable(name, rows))

		c.JSON(http.StatusOK, gin.H{
			"name":     name,
			"query":    req.Gene,
			"count":    len(rows),
			"rows":     evidenceViews(rows, pubmedURL),
			"warnings": warnings(c),
		})
	}
}

// DiseaseEvidences lists the sentences evidencing a disease. See
// GeneEvidences; the field is "disease" and holds a name or a disease id.
func DiseaseEvidences(analyzer *analysis.Analyzer, exports *Exports, pubmedURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DiseaseLookupRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, err)
			return
		}

		rows := analyzer.DiseaseEvidence(c.Request.Context(), req.Disease)
		name := req.Disease + evidencesSuffix
		exports.remember(c, datatypes.EvidenceTable(name, rows))

		c.JSON(http.StatusOK, gin.H{
			"name":     name,
			"query":    req.Disease,
			"count":    len(rows),
			"rows":     evidenceViews(rows, pubmedURL),
			"warnings": warnings(c),
		})
	}
}
