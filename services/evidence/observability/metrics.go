// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics, tracing and instrumentation for the
// evidence service.
//
// # Description
//
// This package implements Prometheus metrics for the dataset operations and
// an OpenTelemetry setup for traces and HTTP meters. Metrics include:
//   - Operation counters and latency histograms (distinct, evidence,
//     correlation, related lookups)
//   - Result size histograms
//   - Dataset reload counters and row gauges
//   - Export cache hit/miss counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Every Metrics instance is
// bound to a registry supplied by the caller, so several services (or
// tests) can live in one process.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "evidence"

const (
	tablesSubsystem      = "tables"
	datasetSubsystem     = "dataset"
	exportCacheSubsystem = "export_cache"
)

// Metrics holds all Prometheus metrics for the evidence service.
//
// # Description
//
// Initialize once per service via NewMetrics. A nil *Metrics is valid and
// records nothing, which keeps instrumentation optional for the CLI.
//
// # Fields
//
//   - OperationsTotal: Counter of dataset operations by operation and status
//   - OperationDurationSeconds: Histogram of operation latency
//   - ResultRows: Histogram of result sizes
//   - DatasetReloadsTotal: Counter of dataset loads by status
//   - DatasetRows: Gauge of rows in the active snapshot per table
//   - ExportCacheRequestsTotal: Counter of export cache lookups by result
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// OperationsTotal counts dataset operations.
	// Labels: operation (distinct_genes, correlations, ...), status (success, error)
	OperationsTotal *prometheus.CounterVec

	// OperationDurationSeconds measures operation latency.
	// Labels: operation
	OperationDurationSeconds *prometheus.HistogramVec

	// ResultRows measures the number of rows an operation returned.
	// Labels: operation
	ResultRows *prometheus.HistogramVec

	// DatasetReloadsTotal counts dataset load attempts.
	// Labels: status (success, error)
	DatasetReloadsTotal *prometheus.CounterVec

	// DatasetRows tracks rows in the active snapshot.
	// Labels: table (genes, diseases)
	DatasetRows *prometheus.GaugeVec

	// ExportCacheRequestsTotal counts export cache lookups.
	// Labels: result (hit, miss, error)
	ExportCacheRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Nil uses the default Prometheus registry.
//
// # Outputs
//
//   - *Metrics: The initialized metrics instance.
//
// # Examples
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: tablesSubsystem,
				Name:      "operations_total",
				Help:      "Total dataset operations by operation and status",
			},
			[]string{"operation", "status"},
		),

		OperationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: tablesSubsystem,
				Name:      "operation_duration_seconds",
				Help:      "Dataset operation duration in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),

		ResultRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: tablesSubsystem,
				Name:      "result_rows",
				Help:      "Number of rows returned by dataset operations",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"operation"},
		),

		DatasetReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datasetSubsystem,
				Name:      "reloads_total",
				Help:      "Total dataset load attempts by status",
			},
			[]string{"status"},
		),

		DatasetRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: datasetSubsystem,
				Name:      "rows",
				Help:      "Number of rows in the active dataset snapshot",
			},
			[]string{"table"},
		),

		ExportCacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: exportCacheSubsystem,
				Name:      "requests_total",
				Help:      "Total export cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// =============================================================================
// Operation Names
// =============================================================================

// Operation names a dataset operation for metrics labeling.
type Operation string

const (
	OpDistinctGenes         Operation = "distinct_genes"
	OpDistinctDiseases      Operation = "distinct_diseases"
	OpGeneEvidence          Operation = "gene_evidence"
	OpDiseaseEvidence       Operation = "disease_evidence"
	OpCorrelations          Operation = "correlations"
	OpDiseasesRelatedToGene Operation = "diseases_related_to_gene"
	OpGenesRelatedToDisease Operation = "genes_related_to_disease"
)

// CacheResult labels an export cache lookup.
type CacheResult string

const (
	CacheHit   CacheResult = "hit"
	CacheMiss  CacheResult = "miss"
	CacheError CacheResult = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordOperation records a completed dataset operation.
//
// # Inputs
//
//   - op: The operation that ran.
//   - rows: Number of result rows. Ignored on error.
//   - elapsed: Wall time of the operation.
//   - err: The operation error, if any.
func (m *Metrics) RecordOperation(op Operation, rows int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(string(op), status).Inc()
	m.OperationDurationSeconds.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	if err == nil {
		m.ResultRows.WithLabelValues(string(op)).Observe(float64(rows))
	}
}

// RecordReload records a dataset load attempt and, on success, the row
// counts of the new snapshot.
func (m *Metrics) RecordReload(geneRows, diseaseRows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DatasetReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.DatasetReloadsTotal.WithLabelValues("success").Inc()
	m.DatasetRows.WithLabelValues("genes").Set(float64(geneRows))
	m.DatasetRows.WithLabelValues("diseases").Set(float64(diseaseRows))
}

// RecordCacheRequest records an export cache lookup.
func (m *Metrics) RecordCacheRequest(result CacheResult) {
	if m == nil {
		return
	}
	m.ExportCacheRequestsTotal.WithLabelValues(string(result)).Inc()
}
