// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func testConfig() Config {
	return Config{
		GinMode:        gin.TestMode,
		DataDir:        "tables/testdata",
		DocsDir:        "docs/testdata",
		MetricExporter: "none",
		LogQuiet:       true,
	}
}

func newTestService(t *testing.T, cfg Config) *service {
	t.Helper()
	svc, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc.(*service)
}

// =============================================================================
// Config Tests
// =============================================================================

func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	// Act
	result := applyConfigDefaults(Config{})

	// Assert
	assert.Equal(t, 5000, result.Port)
	assert.Equal(t, gin.ReleaseMode, result.GinMode)
	assert.Equal(t, "./data", result.DataDir)
	assert.Equal(t, "gene_evidences.tsv", result.GeneFile)
	assert.Equal(t, "disease_evidences.tsv", result.DiseaseFile)
	assert.Equal(t, "COVID-19", result.ReferenceCondition)
	assert.Equal(t, 30, result.RowsPerPage)
	assert.Equal(t, filepath.Join("data", "docs"), result.DocsDir)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/", result.PubMedURL)
	assert.Equal(t, 300*time.Second, result.CacheTTL)
	assert.Equal(t, 500*time.Millisecond, result.ReloadDebounce)
	assert.Equal(t, "none", result.TraceExporter)
	assert.Equal(t, "prometheus", result.MetricExporter)
	assert.Equal(t, "info", result.LogLevel)
	assert.Zero(t, result.RateLimitRPS, "rate limiting is off by default")
	assert.Zero(t, result.RateLimitBurst)
	assert.NoError(t, result.Validate())
}

func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	cfg := Config{
		Port:           8080,
		DataDir:        "/srv/evidence",
		DocsDir:        "/srv/docs",
		RowsPerPage:    50,
		CacheTTL:       time.Minute,
		RateLimitRPS:   5,
		TraceExporter:  "otlp",
		OTLPEndpoint:   "collector:4317",
		LogLevel:       "debug",
		RateLimitBurst: 0,
	}

	result := applyConfigDefaults(cfg)

	assert.Equal(t, 8080, result.Port)
	assert.Equal(t, "/srv/evidence", result.DataDir)
	assert.Equal(t, "/srv/docs", result.DocsDir)
	assert.Equal(t, 50, result.RowsPerPage)
	assert.Equal(t, time.Minute, result.CacheTTL)
	assert.Equal(t, "otlp", result.TraceExporter)
	assert.Equal(t, "collector:4317", result.OTLPEndpoint)
	assert.Equal(t, "debug", result.LogLevel)
	assert.Equal(t, 20, result.RateLimitBurst, "burst defaults when a rate is set")
}

func TestConfig_ValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port too large", func(c *Config) { c.Port = 70000 }, "Port"},
		{"unknown gin mode", func(c *Config) { c.GinMode = "verbose" }, "GinMode"},
		{"unknown trace exporter", func(c *Config) { c.TraceExporter = "jaeger" }, "TraceExporter"},
		{"unknown metric exporter", func(c *Config) { c.MetricExporter = "statsd" }, "MetricExporter"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"negative rate", func(c *Config) { c.RateLimitRPS = -1 }, "RateLimitRPS"},
		{"page size too large", func(c *Config) { c.RowsPerPage = 5000 }, "RowsPerPage"},
		{"cache ttl too short", func(c *Config) { c.CacheTTL = time.Millisecond }, "CacheTTL"},
		{"bad pubmed url", func(c *Config) { c.PubMedURL = "not a url" }, "PubMedURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := applyConfigDefaults(Config{})
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestConfig_Paths(t *testing.T) {
	cfg := Config{DataDir: "data", GeneFile: "genes.tsv", DiseaseFile: "/abs/diseases.tsv"}

	assert.Equal(t, filepath.Join("data", "genes.tsv"), cfg.GenePath())
	assert.Equal(t, "/abs/diseases.tsv", cfg.DiseasePath())
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Port = -1

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNew_MissingDatasetIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.DataDir = t.TempDir()

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load datasets")
}

func TestNew_ServesRoutes(t *testing.T) {
	svc := newTestService(t, testConfig())
	router := svc.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		Genes struct {
			Rows int `json:"rows"`
		} `json:"genes"`
		ReferenceCondition string `json:"reference_condition"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 7, info.Genes.Rows)
	assert.Equal(t, "COVID-19", info.ReferenceCondition)

	// Every response carries a session cookie.
	var session bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "evidence_session" {
			session = true
		}
	}
	assert.True(t, session, "session cookie not issued")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `evidence_dataset_reloads_total{status="success"} 1`)
	assert.Contains(t, w.Body.String(), `evidence_dataset_rows{table="genes"} 7`)
}

func TestNew_DownloadRoundTrip(t *testing.T) {
	svc := newTestService(t, testConfig())
	router := svc.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/genes/distinct", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodPost, "/download?name_file=distinct_genes", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="distinct_genes.tsv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "gene_symbol\tgeneid\n")
}

func TestNew_WithWatcherAndDiskCache(t *testing.T) {
	dataDir := t.TempDir()
	for _, name := range []string{"gene_evidences.tsv", "disease_evidences.tsv"} {
		data, err := os.ReadFile(filepath.Join("tables/testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), data, 0o644))
	}

	cfg := testConfig()
	cfg.DataDir = dataDir
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.WatchDatasets = true

	svc := newTestService(t, cfg)
	assert.NotNil(t, svc.watcher)
	assert.NotNil(t, svc.cache)
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Close(), "Close is idempotent")
}

// =============================================================================
// Serve Tests
// =============================================================================

func TestServe_GracefulShutdown(t *testing.T) {
	svc := newTestService(t, testConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
