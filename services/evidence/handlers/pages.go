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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/docs"
)

// Warning headers.
const (
	headerWarning        = "Warning!"
	headerSomethingWrong = "Something went wrong!"
)

const msgDocumentationFailed = "There was an error in loading the documentation. " +
	"You are redirected to the Project Overview"

type datasetLink struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	BrowseURL   string `json:"browse_url"`
}

// Home lists the datasets with their browse and download links.
func Home(files []DatasetFile) gin.HandlerFunc {
	return func(c *gin.Context) {
		links := make([]datasetLink, 0, len(files))
		for _, f := range files {
			links = append(links, datasetLink{
				Label:       f.Label,
				Name:        f.Name(),
				DownloadURL: "/datasets/" + f.Name(),
				BrowseURL:   f.BrowseURL,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"title":    "COVID-19 gene and disease evidence browser",
			"datasets": links,
			"warnings": warnings(c),
		})
	}
}

// About describes the project.
func About(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"project": "COVID-19 gene and disease evidence browser",
		"description": "Browse literature sentences annotated with genes and diseases, " +
			"find the evidences relating them to COVID-19 and the gene/disease pairs " +
			"mentioned together most often.",
		"sources":  []string{"PubMed"},
		"warnings": warnings(c),
	})
}

type operation struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

var operations = []operation{
	{http.MethodGet, "/v1/info", "dimensions, labels, head and tail of both datasets"},
	{http.MethodGet, "/v1/genes/distinct", "distinct genes"},
	{http.MethodPost, "/v1/genes/evidences", "COVID-19 evidences of a gene"},
	{http.MethodGet, "/v1/diseases/distinct", "distinct diseases"},
	{http.MethodPost, "/v1/diseases/evidences", "evidences of a disease"},
	{http.MethodPost, "/v1/correlations", "most frequent gene/disease correlations"},
	{http.MethodPost, "/v1/genes/related-diseases", "diseases mentioned with a gene"},
	{http.MethodPost, "/v1/diseases/related-genes", "genes mentioned with a disease"},
}

// Functions lists the available operations.
func Functions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": operations, "warnings": warnings(c)})
}

// Documentation serves a documentation page.
//
// # Description
//
// Serves /documentation/:file, or the project overview when no file is
// given. A page that cannot be loaded falls back to the project overview
// with an error warning carrying the load error as details. Only a broken
// overview is a server error. Every response lists the available pages
// under "pages" as an index.
//
// # Inputs
//
//   - store: Documentation pages.
//   - logger: Receives load failures. nil uses slog.Default().
func Documentation(store *docs.Store, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		name := c.Param("file")
		if name == "" {
			name = docs.DefaultPage
		}

		var current []datatypes.Warning
		doc, err := store.Load(name)
		if err != nil {
			logger.Warn("documentation page failed to load",
				slog.String("page", name),
				slog.String("error", err.Error()))
			current = append(current, datatypes.Warning{
				Type:    datatypes.WarningTypeError,
				Header:  headerSomethingWrong,
				Message: msgDocumentationFailed,
				Details: err.Error(),
			})

			name = docs.DefaultPage
			doc, err = store.Load(name)
			if err != nil {
				logger.Error("project overview failed to load", slog.String("error", err.Error()))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "documentation unavailable"})
				return
			}
		}

		pages, err := store.List()
		if err != nil {
			logger.Warn("documentation index failed", slog.String("error", err.Error()))
			pages = []string{}
		}

		c.JSON(http.StatusOK, gin.H{
			"page":     name,
			"pages":    pages,
			"document": doc,
			"warnings": warnings(c, current...),
		})
	}
}

// Dataset streams one of the configured dataset files as an attachment.
// Any other name is 404, so the handler never serves arbitrary paths.
func Dataset(files []DatasetFile) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, ok := findDataset(files, c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "dataset not found"})
			return
		}
		c.FileAttachment(f.Path, f.Name())
	}
}
