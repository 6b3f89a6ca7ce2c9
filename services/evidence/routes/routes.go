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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/docs"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/handlers"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/middleware"
)

// Dependencies are the components the routes are wired to.
//
// # Fields
//
//   - Analyzer: Dataset operations. Required.
//   - Exports: Per-session download cache. Required.
//   - Docs: Documentation pages. Required.
//   - Datasets: Raw files offered on the homepage and for download.
//   - Gatherer: Source of /metrics. nil disables the endpoint.
//   - RowsPerPage: Browse page size. 0 uses handlers.DefaultRowsPerPage.
//   - PubMedURL: Base URL of publication links.
//   - RateLimitRPS, RateLimitBurst: Limit on the /v1 and /download routes.
//     RateLimitRPS 0 disables it.
//   - Logger: Handler logging. nil uses slog.Default().
type Dependencies struct {
	Analyzer       *analysis.Analyzer
	Exports        *handlers.Exports
	Docs           *docs.Store
	Datasets       []handlers.DatasetFile
	Gatherer       prometheus.Gatherer
	RowsPerPage    int
	PubMedURL      string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *slog.Logger
}

// SetupRoutes registers every endpoint of the evidence service on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	pubmed := deps.PubMedURL
	if pubmed == "" {
		pubmed = handlers.DefaultPubMedURL
	}

	router.GET("/health", handlers.HealthCheck)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	router.GET("/", handlers.Home(deps.Datasets))
	router.GET("/about", handlers.About)
	router.GET("/functions", handlers.Functions)
	router.GET("/documentation", handlers.Documentation(deps.Docs, deps.Logger))
	router.GET("/documentation/:file", handlers.Documentation(deps.Docs, deps.Logger))
	router.GET("/datasets/:name", handlers.Dataset(deps.Datasets))

	limit := middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)
	router.POST("/download", limit, handlers.Download(deps.Exports, deps.Datasets))

	// API version 1 group
	v1 := router.Group("/v1", limit)
	{
		v1.GET("/info", handlers.Info(deps.Analyzer))
		v1.GET("/correlations", handlers.Correlations(deps.Analyzer, deps.Exports))
		v1.POST("/correlations", handlers.Correlations(deps.Analyzer, deps.Exports))

		genes := v1.Group("/genes")
		{
			genes.GET("", handlers.BrowseGenes(deps.Analyzer, deps.RowsPerPage, pubmed))
			genes.GET("/distinct", handlers.DistinctGenes(deps.Analyzer, deps.Exports))
			genes.POST("/evidences", handlers.GeneEvidences(deps.Analyzer, deps.Exports, pubmed))
			genes.POST("/related-diseases", handlers.DiseasesRelatedToGene(deps.Analyzer, deps.Exports))
		}

		diseases := v1.Group("/diseases")
		{
			diseases.GET("", handlers.BrowseDiseases(deps.Analyzer, deps.RowsPerPage, pubmed))
			diseases.GET("/distinct", handlers.DistinctDiseases(deps.Analyzer, deps.Exports))
			diseases.POST("/evidences", handlers.DiseaseEvidences(deps.Analyzer, deps.Exports, pubmed))
			diseases.POST("/related-genes", handlers.GenesRelatedToDisease(deps.Analyzer, deps.Exports))
		}
	}
}
