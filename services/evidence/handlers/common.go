// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the HTTP handlers of the evidence service.
//
// Handlers are factories returning gin.HandlerFunc so that routes can inject
// the analyzer, export cache and documentation store. Every data response
// carries a "warnings" list: pending flash warnings from a previous redirect
// followed by the warnings of the current request.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/exportcache"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/middleware"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/observability"
)

// DefaultPubMedURL prefixes a pmid to link its publication.
const DefaultPubMedURL = "https://pubmed.ncbi.nlm.nih.gov/"

// =============================================================================
// Export Cache Access
// =============================================================================

// TableCache stores the last table computed for each session.
// exportcache.Cache implements it.
type TableCache interface {
	Put(ctx context.Context, sessionID string, table datatypes.Table) error
	Get(ctx context.Context, sessionID string) (datatypes.Table, error)
}

// Exports remembers operation results so POST /download can stream them.
type Exports struct {
	cache   TableCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewExports creates an Exports. metrics and logger may be nil.
func NewExports(cache TableCache, metrics *observability.Metrics, logger *slog.Logger) *Exports {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exports{cache: cache, metrics: metrics, logger: logger}
}

// remember stores table as the session's downloadable result. A failure is
// logged and otherwise ignored: the page still renders, only the later
// download will ask the user to reload.
func (e *Exports) remember(c *gin.Context, table datatypes.Table) {
	if e == nil || e.cache == nil {
		return
	}
	session := middleware.SessionID(c)
	if session == "" {
		return
	}
	if err := e.cache.Put(c.Request.Context(), session, table); err != nil {
		e.metrics.RecordCacheRequest(observability.CacheError)
		e.logger.Warn("failed to cache table for download",
			slog.String("table", table.Name),
			slog.String("error", err.Error()))
	}
}

// lookup returns the session's cached table.
func (e *Exports) lookup(c *gin.Context) (datatypes.Table, error) {
	if e == nil || e.cache == nil {
		return datatypes.Table{}, exportcache.ErrNotFound
	}
	table, err := e.cache.Get(c.Request.Context(), middleware.SessionID(c))
	switch {
	case err == nil:
		e.metrics.RecordCacheRequest(observability.CacheHit)
	case errors.Is(err, exportcache.ErrNotFound):
		e.metrics.RecordCacheRequest(observability.CacheMiss)
	default:
		e.metrics.RecordCacheRequest(observability.CacheError)
		e.logger.Error("export cache lookup failed", slog.String("error", err.Error()))
	}
	return table, err
}

// =============================================================================
// Datasets
// =============================================================================

// DatasetFile is a raw dataset offered for download.
type DatasetFile struct {
	Label     string
	Path      string
	BrowseURL string
}

// Name returns the file name clients use to request the dataset.
func (d DatasetFile) Name() string {
	return filepath.Base(d.Path)
}

// findDataset returns the dataset whose file name is name.
func findDataset(files []DatasetFile, name string) (DatasetFile, bool) {
	for _, f := range files {
		if f.Name() == name {
			return f, true
		}
	}
	return DatasetFile{}, false
}

// =============================================================================
// Responses
// =============================================================================

// warnings returns the pending flash warnings followed by current.
func warnings(c *gin.Context, current ...datatypes.Warning) []datatypes.Warning {
	return append(middleware.ConsumeFlashes(c), current...)
}

// badRequest answers a lookup whose input failed validation.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}

// HealthCheck reports that the service is up.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
