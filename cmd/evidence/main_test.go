// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/docs"
)

const fixtureDir = "../../services/evidence/tables/testdata"

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// run executes the CLI with args against the fixture tables.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCmd(noEnv)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--data-dir", fixtureDir, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// =============================================================================
// Configuration Tests
// =============================================================================

func TestLoadConfig_MissingDefaultFileIsFine(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "evidence.yaml"), false, noEnv)
	require.NoError(t, err)
	assert.Zero(t, cfg.Port)
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), true, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	yaml := `port: 8080
data_dir: /srv/evidence
rows_per_page: 50
cache_ttl: 90s
watch_datasets: true
trace_exporter: stdout
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := loadConfig(path, true, envMap(map[string]string{
		envPort:           "9090",
		envTraceExporter:  "OTLP",
		envOTLPEndpoint:   "collector:4317",
		envMetricExporter: "none",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port, "env overrides the file")
	assert.Equal(t, "/srv/evidence", cfg.DataDir)
	assert.Equal(t, 50, cfg.RowsPerPage)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.WatchDatasets)
	assert.Equal(t, "otlp", cfg.TraceExporter)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "none", cfg.MetricExporter)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := loadConfig(path, true, noEnv)
	assert.NoError(t, err)
}

func TestLoadConfig_UnknownFieldFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prot: 8080\n"), 0o600))

	_, err := loadConfig(path, true, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadConfig_ExampleFileIsValid(t *testing.T) {
	cfg, err := loadConfig("../../evidence.example.yaml", true, noEnv)
	require.NoError(t, err)

	cfg = cfg.WithDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReloadDebounce)

	pages, err := docs.NewStore("../../data/docs").List()
	require.NoError(t, err)
	assert.Contains(t, pages, docs.DefaultPage)
	for _, name := range pages {
		_, err := docs.NewStore("../../data/docs").Load(name)
		assert.NoError(t, err, "page %s", name)
	}
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "x.yaml"), false, envMap(map[string]string{envPort: "http"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), envPort)
}

// =============================================================================
// Command Tests
// =============================================================================

func TestDistinctGenes_TSV(t *testing.T) {
	out, err := run(t, "distinct", "genes")
	require.NoError(t, err)
	assert.Equal(t, "gene_symbol\tgeneid\nACE2\t59272\nAGT\t183\nIL6\t3569\n", out)
}

func TestDistinctDiseases_TSV(t *testing.T) {
	out, err := run(t, "distinct", "diseases")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "disease_name\tdiseaseid", lines[0])
	assert.Len(t, lines, 4)
}

func TestEvidenceGene(t *testing.T) {
	out, err := run(t, "evidence", "gene", "ACE2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4, "header plus three evidences")
}

func TestCorrelation_RowsFlag(t *testing.T) {
	out, err := run(t, "correlation", "--rows", "1")
	require.NoError(t, err)
	assert.Equal(t, "gene_symbol\tdisease_name\toccurrences\nACE2\tCOVID-19\t2\n", out)
}

func TestCorrelation_NegativeRowsRejected(t *testing.T) {
	_, err := run(t, "correlation", "--rows", "-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--rows")
}

func TestRelatedDiseases(t *testing.T) {
	out, err := run(t, "related", "diseases", "ACE2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4, "header plus three diseases")
}

func TestRelatedDiseases_UnknownGeneID(t *testing.T) {
	_, err := run(t, "related", "diseases", "99999")
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrUnknownGene)
}

func TestRelatedGenes_UnknownDiseaseID(t *testing.T) {
	_, err := run(t, "related", "genes", "C9999999")
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrUnknownDisease)
}

func TestInfo_TableFormat(t *testing.T) {
	out, err := run(t, "--format", "table", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Reference condition: COVID-19")
	assert.Contains(t, out, "Gene evidences: 7 rows x 5 columns")
	assert.Contains(t, out, "GENE_SYMBOL")
	assert.Contains(t, out, "(5 rows)")
}

func TestQuery_MissingDataDir(t *testing.T) {
	cmd := buildRootCmd(noEnv)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--data-dir", t.TempDir(), "distinct", "genes"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load datasets")
}

func TestQuery_DataDirFromEnv(t *testing.T) {
	cmd := buildRootCmd(envMap(map[string]string{envDataDir: fixtureDir}))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"distinct", "genes"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "gene_symbol\tgeneid\n"))
}

// =============================================================================
// Output Tests
// =============================================================================

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer

	got, err := resolveFormat(formatAuto, &buf)
	require.NoError(t, err)
	assert.Equal(t, formatTSV, got, "a buffer is not a terminal")

	got, err = resolveFormat(formatTable, &buf)
	require.NoError(t, err)
	assert.Equal(t, formatTable, got)

	_, err = resolveFormat("xml", &buf)
	assert.Error(t, err)
}

func TestWriteTable_Aligned(t *testing.T) {
	table := datatypes.Table{
		Labels: []string{"gene_symbol", "geneid"},
		Rows:   [][]string{{"ACE2", "59272"}, {"IL6", "3569"}},
	}
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, table, formatTable))

	want := "GENE_SYMBOL  GENEID\n" +
		"ACE2         59272\n" +
		"IL6          3569\n" +
		"(2 rows)\n"
	assert.Equal(t, want, buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
