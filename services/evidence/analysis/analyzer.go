// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/observability"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
)

// Analyzer runs dataset operations against the current snapshot with
// tracing and metrics.
//
// # Description
//
// Every call reads the provider's snapshot once, so a reload in the middle
// of a request never mixes two datasets. The full correlation list is
// computed once per snapshot and reused; a reload invalidates it.
//
// # Thread Safety
//
// Safe for concurrent use.
type Analyzer struct {
	provider tables.Provider
	metrics  *observability.Metrics

	mu      sync.Mutex
	corrFor *tables.Dataset
	corr    []datatypes.CorrelationRow
}

// NewAnalyzer creates an Analyzer. metrics may be nil.
func NewAnalyzer(provider tables.Provider, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{provider: provider, metrics: metrics}
}

// Dataset returns the current snapshot.
func (a *Analyzer) Dataset() *tables.Dataset {
	return a.provider.Current()
}

// observe annotates span and records metrics for op.
func (a *Analyzer) observe(op observability.Operation, start time.Time, rows int, err error, span trace.Span) {
	span.SetAttributes(attribute.Int("result.rows", rows))
	a.metrics.RecordOperation(op, rows, time.Since(start), err)
}

// DistinctGenes returns the distinct genes of the current snapshot.
func (a *Analyzer) DistinctGenes(ctx context.Context) []datatypes.Gene {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.DistinctGenes")
	genes := a.Dataset().Genes.Distinct()
	a.observe(observability.OpDistinctGenes, start, len(genes), nil, span)
	observability.EndSpan(span, nil)
	return genes
}

// DistinctDiseases returns the distinct diseases of the current snapshot.
func (a *Analyzer) DistinctDiseases(ctx context.Context) []datatypes.Disease {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.DistinctDiseases")
	diseases := a.Dataset().Diseases.Distinct()
	a.observe(observability.OpDistinctDiseases, start, len(diseases), nil, span)
	observability.EndSpan(span, nil)
	return diseases
}

// GeneEvidence returns the reference condition evidences of a gene.
func (a *Analyzer) GeneEvidence(ctx context.Context, query string) []datatypes.EvidenceRow {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.GeneEvidence", attribute.String("query", query))
	rows := a.Dataset().Genes.Evidence(query)
	a.observe(observability.OpGeneEvidence, start, len(rows), nil, span)
	observability.EndSpan(span, nil)
	return rows
}

// DiseaseEvidence returns the reference condition evidences of a disease.
func (a *Analyzer) DiseaseEvidence(ctx context.Context, query string) []datatypes.EvidenceRow {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.DiseaseEvidence", attribute.String("query", query))
	rows := a.Dataset().Diseases.Evidence(query)
	a.observe(observability.OpDiseaseEvidence, start, len(rows), nil, span)
	observability.EndSpan(span, nil)
	return rows
}

// Correlations returns the filtered correlations of the current snapshot.
//
// # Inputs
//
//   - ctx: Carries the parent span.
//   - numRows: Maximum rows, 0 for all.
//   - minOccurrence: Minimum occurrences, 0 for no threshold.
//
// # Outputs
//
//   - []datatypes.CorrelationRow: See FilterCorrelations.
func (a *Analyzer) Correlations(ctx context.Context, numRows, minOccurrence int) []datatypes.CorrelationRow {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.Correlations",
		attribute.Int("num_rows", numRows),
		attribute.Int("min_occurrence", minOccurrence),
	)
	rows := FilterCorrelations(a.allCorrelations(), numRows, minOccurrence)
	a.observe(observability.OpCorrelations, start, len(rows), nil, span)
	observability.EndSpan(span, nil)
	return rows
}

func (a *Analyzer) allCorrelations() []datatypes.CorrelationRow {
	ds := a.Dataset()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.corrFor != ds {
		a.corr = Correlations(ds)
		a.corrFor = ds
	}
	return a.corr
}

// DiseasesRelatedToGene runs DiseasesRelatedToGene on the current snapshot.
func (a *Analyzer) DiseasesRelatedToGene(ctx context.Context, query string) ([]datatypes.Disease, error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.DiseasesRelatedToGene", attribute.String("query", query))
	diseases, err := DiseasesRelatedToGene(a.Dataset(), query)
	a.observe(observability.OpDiseasesRelatedToGene, start, len(diseases), err, span)
	observability.EndSpan(span, err)
	return diseases, err
}

// GenesRelatedToDisease runs GenesRelatedToDisease on the current snapshot.
func (a *Analyzer) GenesRelatedToDisease(ctx context.Context, query string) ([]datatypes.Gene, error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "analysis.GenesRelatedToDisease", attribute.String("query", query))
	genes, err := GenesRelatedToDisease(a.Dataset(), query)
	a.observe(observability.OpGenesRelatedToDisease, start, len(genes), err, span)
	observability.EndSpan(span, err)
	return genes, err
}
