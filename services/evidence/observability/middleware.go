// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics holds the OTel instruments for HTTP traffic.
//
// Thread Safety: Safe for concurrent use after creation.
type HTTPMetrics struct {
	// RequestsTotal counts HTTP requests by method, route and status.
	RequestsTotal metric.Int64Counter

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration metric.Float64Histogram

	// ActiveRequests tracks in-flight HTTP requests.
	ActiveRequests metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the HTTP instruments with meter.
//
// # Inputs
//
//   - meter: The OTel meter, usually otel.Meter("evidence.http").
//
// # Outputs
//
//   - *HTTPMetrics: The instruments.
//   - error: Non-nil if an instrument cannot be created.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	var err error

	m.RequestsTotal, err = meter.Int64Counter(
		"evidence_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"evidence_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.ActiveRequests, err = meter.Int64UpDownCounter(
		"evidence_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	return m, nil
}

// MetricsMiddleware records request count, duration and in-flight requests.
//
// # Description
//
// Requests are labeled by the matched route template (c.FullPath()) rather
// than the raw URL, so path parameters do not explode cardinality.
// Unmatched routes are labeled "unmatched".
//
// # Examples
//
//	httpMetrics, _ := observability.NewHTTPMetrics(otel.Meter("evidence.http"))
//	router.Use(observability.MetricsMiddleware(httpMetrics))
func MetricsMiddleware(metrics *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.ActiveRequests.Add(ctx, 1)
		defer metrics.ActiveRequests.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.Int("status", c.Writer.Status()),
		)
		metrics.RequestsTotal.Add(ctx, 1, attrs)
		metrics.RequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
