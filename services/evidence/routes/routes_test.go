// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/docs"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/handlers"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/observability"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testDependencies(t *testing.T, reg *prometheus.Registry) Dependencies {
	t.Helper()
	ds, err := tables.LoadDataset(context.Background(),
		"../tables/testdata/gene_evidences.tsv", "../tables/testdata/disease_evidences.tsv", tables.Options{})
	require.NoError(t, err)

	metrics := observability.NewMetrics(reg)
	deps := Dependencies{
		Analyzer: analysis.NewAnalyzer(tables.StaticProvider{Dataset: ds}, metrics),
		Exports:  handlers.NewExports(nil, metrics, nil),
		Docs:     docs.NewStore("../docs/testdata"),
		Gatherer: reg,
	}
	return deps
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDependencies(t, prometheus.NewRegistry()))

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/"},
		{"GET", "/about"},
		{"GET", "/functions"},
		{"GET", "/documentation"},
		{"GET", "/documentation/:file"},
		{"GET", "/datasets/:name"},
		{"POST", "/download"},
		{"GET", "/v1/info"},
		{"GET", "/v1/correlations"},
		{"POST", "/v1/correlations"},
		{"GET", "/v1/genes"},
		{"GET", "/v1/genes/distinct"},
		{"POST", "/v1/genes/evidences"},
		{"POST", "/v1/genes/related-diseases"},
		{"GET", "/v1/diseases"},
		{"GET", "/v1/diseases/distinct"},
		{"POST", "/v1/diseases/evidences"},
		{"POST", "/v1/diseases/related-genes"},
	}

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, e := range expected {
		assert.True(t, registered[e.method+" "+e.path], "route %s %s not registered", e.method, e.path)
	}
}

func TestSetupRoutes_WithoutGatherer(t *testing.T) {
	router := gin.New()
	deps := testDependencies(t, prometheus.NewRegistry())
	deps.Gatherer = nil
	SetupRoutes(router, deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupRoutes_MetricsExposesOperations(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, testDependencies(t, prometheus.NewRegistry()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/correlations", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `evidence_tables_operations_total{operation="correlations",status="success"} 1`)
}

func TestSetupRoutes_RateLimitOnAPI(t *testing.T) {
	router := gin.New()
	deps := testDependencies(t, prometheus.NewRegistry())
	deps.RateLimitRPS = 0.001
	deps.RateLimitBurst = 1
	SetupRoutes(router, deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health checks are never limited.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
