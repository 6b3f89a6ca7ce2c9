// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// ============================================================================
// Test Helper: Create isolated metrics for testing
// ============================================================================

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

// ============================================================================
// Prometheus Metrics Tests
// ============================================================================

func TestRecordOperation(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordOperation(OpCorrelations, 12, 3*time.Millisecond, nil)
	m.RecordOperation(OpCorrelations, 0, time.Millisecond, errors.New("boom"))
	m.RecordOperation(OpGeneEvidence, 3, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("correlations", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("correlations", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("gene_evidence", "success")))

	// Result sizes are only observed for successful operations.
	assert.Equal(t, 2, testutil.CollectAndCount(m.ResultRows))
}

func TestRecordReload(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordReload(7, 6, nil)
	m.RecordReload(0, 0, errors.New("bad file"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetReloadsTotal.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DatasetRows.WithLabelValues("genes")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.DatasetRows.WithLabelValues("diseases")))
}

func TestRecordCacheRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCacheRequest(CacheHit)
	m.RecordCacheRequest(CacheHit)
	m.RecordCacheRequest(CacheMiss)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExportCacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportCacheRequestsTotal.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation(OpDistinctGenes, 1, time.Millisecond, nil)
		m.RecordReload(1, 1, nil)
		m.RecordCacheRequest(CacheMiss)
	})
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

// ============================================================================
// Telemetry Tests
// ============================================================================

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.Equal(t, "evidence", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterPrometheus, cfg.MetricExporter)
}

func TestInitTelemetry_NilContext(t *testing.T) {
	//nolint:staticcheck // exercising the nil guard
	_, err := InitTelemetry(nil, DefaultTelemetryConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInitTelemetry_Noop(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	cfg.MetricExporter = ExporterNone

	shutdown, err := InitTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTelemetry_PrometheusRegistersCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultTelemetryConfig()
	cfg.Registerer = reg

	shutdown, err := InitTelemetry(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("smoke")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInitTelemetry_UnknownExporter(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	cfg.TraceExporter = "jaeger-thrift"

	_, err := InitTelemetry(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	cfg = DefaultTelemetryConfig()
	cfg.MetricExporter = "statsd"
	_, err = InitTelemetry(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	httpMetrics, err := NewHTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(MetricsMiddleware(httpMetrics))
	router.GET("/datasets/:name", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/datasets/a", "/datasets/b", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "evidence_http_requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("route")
				counts[route.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), counts["/datasets/:name"])
	assert.Equal(t, int64(1), counts["unmatched"])
}
