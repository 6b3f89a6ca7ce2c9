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
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/params"
)

// Cache names of the analysis results.
const (
	CorrelationName         = "correlation"
	diseasesRelatedToPrefix = "diseases_rel_to_"
	genesRelatedToPrefix    = "genes_rel_to_"
)

const msgCorrelationFormUnreadable = "I could not read the form. Here are the first top 10 correlations."

// Correlations lists the gene/disease pairs mentioned together most often.
//
// # Description
//
// GET shows the top 10. POST reads the fields "rows" and "occurrence"
// from a form or a JSON body (strings or numbers); malformed values and
// unreadable bodies fall back to defaults with warnings instead of failing (see params.ParseCorrelationForm). The result is
// cached for download as "correlation".
//
// # Outputs
//
//   - 200 with name, rows_requested, min_occurrence, count, rows and warnings.
func Correlations(analyzer *analysis.Analyzer, exports *Exports) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form datatypes.CorrelationRequest
		var current []datatypes.Warning
		if c.Request.Method == http.MethodPost {
			if err := c.ShouldBind(&form); err != nil {
				form = datatypes.CorrelationRequest{}
				current = append(current, datatypes.Warning{
					Type:    datatypes.WarningTypeWarning,
					Header:  "Warning!",
					Message: msgCorrelationFormUnreadable,
					Details: err.Error(),
				})
			}
		}
		numRows, minOccurrence, parsed := params.ParseCorrelationForm(c.Request.Method, string(form.Rows), string(form.Occurrence))
		current = append(current, parsed...)

		rows := analyzer.Correlations(c.Request.Context(), numRows, minOccurrence)
		exports.remember(c, datatypes.CorrelationsTable(CorrelationName, rows))

		c.JSON(http.StatusOK, gin.H{
			"name":           CorrelationName,
			"rows_requested": numRows,
			"min_occurrence": minOccurrence,
			"count":          len(rows),
			"rows":           rows,
			"warnings":       warnings(c, current...),
		})
	}
}

// DiseasesRelatedToGene lists the diseases mentioned with a gene.
//
// # Description
//
// Serves POST /v1/genes/related-diseases with the field "gene" (symbol or
// numeric id). An id matching no gene answers 200 with no rows and a
// warning. The result is cached as "diseases_rel_to_<gene>".
func DiseasesRelatedToGene(analyzer *analysis.Analyzer, exports *Exports) gin.HandlerFunc {
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

		diseases, err := analyzer.DiseasesRelatedToGene(c.Request.Context(), req.Gene)
		var current []datatypes.Warning
		if errors.Is(err, analysis.ErrUnknownGene) {
			current = append(current, unknownWarning(fmt.Sprintf("There is no gene with id %s!", req.Gene), err))
		}

		name := diseasesRelatedToPrefix + req.Gene
		exports.remember(c, datatypes.DiseasesTable(name, diseases))

		c.JSON(http.StatusOK, gin.H{
			"name":     name,
			"query":    req.Gene,
			"count":    len(diseases),
			"rows":     diseases,
			"warnings": warnings(c, current...),
		})
	}
}

// GenesRelatedToDisease lists the genes mentioned with a disease. See
// DiseasesRelatedToGene; the field is "disease" (name or disease id).
func GenesRelatedToDisease(analyzer *analysis.Analyzer, exports *Exports) gin.HandlerFunc {
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

		genes, err := analyzer.GenesRelatedToDisease(c.Request.Context(), req.Disease)
		var current []datatypes.Warning
		if errors.Is(err, analysis.ErrUnknownDisease) {
			current = append(current, unknownWarning(fmt.Sprintf("There is no disease with id %s!", req.Disease), err))
		}

		name := genesRelatedToPrefix + req.Disease
		exports.remember(c, datatypes.GenesTable(name, genes))

		c.JSON(http.StatusOK, gin.H{
			"name":     name,
			"query":    req.Disease,
			"count":    len(genes),
			"rows":     genes,
			"warnings": warnings(c, current...),
		})
	}
}

func unknownWarning(message string, err error) datatypes.Warning {
	return datatypes.Warning{
		Type:    datatypes.WarningTypeWarning,
		Header:  headerWarning,
		Message: message,
		Details: err.Error(),
	}
}
