// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evidence provides the gene/disease evidence browser service.
//
// The Service loads the gene and disease evidence tables, serves the
// browse, lookup, correlation and download endpoints over HTTP, and keeps
// the last computed table of every browser session for TSV download.
//
//	┌────────────┐   ┌──────────────┐   ┌──────────────┐
//	│  watcher   │──▶│ tables.Store │──▶│   Analyzer   │
//	└────────────┘   └──────────────┘   └──────┬───────┘
//	                                           │
//	┌────────────┐   ┌──────────────┐   ┌──────▼───────┐
//	│ exportcache│◀──│   handlers   │◀──│    routes    │◀── gin
//	└────────────┘   └──────────────┘   └──────────────┘
//
// # Usage
//
//	svc, err := evidence.New(evidence.Config{DataDir: "./data"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/EvidenceBrowser/pkg/logging"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/docs"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/exportcache"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/handlers"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/middleware"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/observability"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/routes"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/tables"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/watcher"
)

// ServiceName names the service in logs, traces and metrics.
const ServiceName = "evidence"

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the lifecycle of the evidence browser.
//
// # Thread Safety
//
// Router may be used concurrently. Run blocks and must be called at most
// once. Close releases resources when Run is never called.
type Service interface {
	// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully
	// and releases all resources.
	Run() error

	// Router returns the configured Gin engine, for tests.
	Router() *gin.Engine

	// Analyzer returns the dataset operations backing the routes.
	Analyzer() *analysis.Analyzer

	// Close releases all resources. Safe to call after Run.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the evidence service configuration.
//
// # Description
//
// Config is read from YAML (see cmd/evidence), overridden by environment
// variables and flags, and completed by applyConfigDefaults. Relative file
// names are resolved against DataDir.
//
// # Examples
//
//	// All defaults: ./data/gene_evidences.tsv and ./data/disease_evidences.tsv
//	cfg := Config{}
//
//	// On-disk export cache, hot reload and OTLP traces
//	cfg := Config{
//	    DataDir:        "/srv/evidence",
//	    CacheDir:       "/var/cache/evidence",
//	    WatchDatasets:  true,
//	    TraceExporter:  "otlp",
//	    OTLPEndpoint:   "otel-collector:4317",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 5000
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// GinMode is "debug", "release" or "test". Default: "release"
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`

	// DataDir holds the dataset files. Default: "./data"
	DataDir string `yaml:"data_dir"`

	// GeneFile is the gene evidences TSV. Default: "gene_evidences.tsv"
	GeneFile string `yaml:"gene_file" validate:"required"`

	// DiseaseFile is the disease evidences TSV. Default: "disease_evidences.tsv"
	DiseaseFile string `yaml:"disease_file" validate:"required"`

	// ReferenceCondition marks evidence sentences. Default: "COVID-19"
	ReferenceCondition string `yaml:"reference_condition"`

	// RowsPerPage is the browse page size. Default: 30
	RowsPerPage int `yaml:"rows_per_page" validate:"min=1,max=1000"`

	// DocsDir holds the documentation pages. Default: "<DataDir>/docs"
	DocsDir string `yaml:"docs_dir"`

	// PubMedURL prefixes publication ids in evidence rows.
	// Default: "https://pubmed.ncbi.nlm.nih.gov/"
	PubMedURL string `yaml:"pubmed_url" validate:"url"`

	// CacheTTL is how long a computed table stays downloadable. Default: 300s
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"min=1s"`

	// CacheDir stores the export cache on disk. Empty keeps it in memory.
	CacheDir string `yaml:"cache_dir"`

	// WatchDatasets reloads the tables when their files change.
	WatchDatasets bool `yaml:"watch_datasets"`

	// ReloadDebounce is the quiet period before a reload. Default: 500ms
	ReloadDebounce time.Duration `yaml:"reload_debounce" validate:"min=0"`

	// RateLimitRPS limits /v1 and /download. 0 disables the limit.
	RateLimitRPS float64 `yaml:"rate_limit_rps" validate:"gte=0"`

	// RateLimitBurst is the limiter burst. Default: 20 when RateLimitRPS > 0
	RateLimitBurst int `yaml:"rate_limit_burst" validate:"gte=0"`

	// TraceExporter is "otlp", "stdout" or "none". Default: "none"
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`

	// MetricExporter is "prometheus", "stdout" or "none". Default: "prometheus"
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`

	// OTLPEndpoint is the OTLP gRPC collector. Default: "localhost:4317"
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// LogLevel is "debug", "info", "warn" or "error". Default: "info"
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`

	// LogDir enables JSON file logging in addition to stderr.
	LogDir string `yaml:"log_dir"`

	// LogQuiet disables console logging.
	LogQuiet bool `yaml:"log_quiet"`
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 5000
	}
	if cfg.GinMode == "" {
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.GeneFile == "" {
		cfg.GeneFile = "gene_evidences.tsv"
	}
	if cfg.DiseaseFile == "" {
		cfg.DiseaseFile = "disease_evidences.tsv"
	}
	if cfg.ReferenceCondition == "" {
		cfg.ReferenceCondition = tables.DefaultReferenceCondition
	}
	if cfg.RowsPerPage == 0 {
		cfg.RowsPerPage = handlers.DefaultRowsPerPage
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = filepath.Join(cfg.DataDir, "docs")
	}
	if cfg.PubMedURL == "" {
		cfg.PubMedURL = handlers.DefaultPubMedURL
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = exportcache.DefaultTTL
	}
	if cfg.ReloadDebounce == 0 {
		cfg.ReloadDebounce = watcher.DefaultDebounce
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.TraceExporter == "" {
		cfg.TraceExporter = observability.ExporterNone
	}
	if cfg.MetricExporter == "" {
		cfg.MetricExporter = observability.ExporterPrometheus
	}
	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = "localhost:4317"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

// WithDefaults returns cfg with every missing value filled in.
func (cfg Config) WithDefaults() Config {
	return applyConfigDefaults(cfg)
}

// Validate checks the configuration after defaults are applied.
//
// # Outputs
//
//   - error: validator.ValidationErrors describing every invalid field.
func (cfg Config) Validate() error {
	return validator.New().Struct(cfg)
}

// GenePath returns the gene evidences file path.
func (cfg Config) GenePath() string {
	return resolve(cfg.DataDir, cfg.GeneFile)
}

// DiseasePath returns the disease evidences file path.
func (cfg Config) DiseasePath() string {
	return resolve(cfg.DataDir, cfg.DiseaseFile)
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service.
//
// # Fields
//
//   - registry: Per-service Prometheus registry behind /metrics.
//   - store: Current dataset snapshot, reloaded by the watcher.
//   - cache: Per-session export tables.
//   - watcher: nil unless WatchDatasets is set.
//   - telemetryShutdown: Flushes the OTel providers.
type service struct {
	config            Config
	logger            *logging.Logger
	registry          *prometheus.Registry
	metrics           *observability.Metrics
	store             *tables.Store
	analyzer          *analysis.Analyzer
	cache             *exportcache.Cache
	docs              *docs.Store
	watcher           *watcher.Watcher
	router            *gin.Engine
	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New creates the evidence Service.
//
// # Description
//
// New initializes, in order:
//  1. Logging, from LogLevel, LogDir and LogQuiet
//  2. OpenTelemetry tracing and meters
//  3. Prometheus metrics on a per-service registry
//  4. The dataset store (a failed initial load is fatal)
//  5. The export cache (in memory, or on disk under CacheDir)
//  6. The documentation store and optional file watcher
//  7. The Gin router
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run service.
//   - error: Non-nil on invalid configuration or failed initialization.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &service{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		docs:     docs.NewStore(cfg.DocsDir),
	}
	s.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: ServiceName,
		JSON:    true,
		Quiet:   cfg.LogQuiet,
	})
	log := s.logger.Slog()

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := context.Background()
	tcfg := observability.DefaultTelemetryConfig()
	tcfg.ServiceName = ServiceName
	tcfg.TraceExporter = cfg.TraceExporter
	tcfg.MetricExporter = cfg.MetricExporter
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.Registerer = s.registry
	s.telemetryShutdown, err = observability.InitTelemetry(ctx, tcfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	s.metrics = observability.NewMetrics(s.registry)

	s.store, err = tables.NewStore(ctx, tables.StoreConfig{
		GenePath:    cfg.GenePath(),
		DiseasePath: cfg.DiseasePath(),
		Options:     tables.Options{ReferenceCondition: cfg.ReferenceCondition},
		OnReload:    s.onReload,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	s.analyzer = analysis.NewAnalyzer(s.store, s.metrics)

	cacheCfg := exportcache.InMemoryConfig()
	if cfg.CacheDir != "" {
		cacheCfg = exportcache.DefaultConfig(cfg.CacheDir)
	}
	cacheCfg.TTL = cfg.CacheTTL
	cacheCfg.Logger = log.With("component", "exportcache")
	s.cache, err = exportcache.Open(cacheCfg)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open export cache: %w", err)
	}

	if cfg.WatchDatasets {
		s.watcher, err = watcher.New(s.store, watcher.Config{
			Files:    []string{cfg.GenePath(), cfg.DiseasePath()},
			Debounce: cfg.ReloadDebounce,
			Logger:   log.With("component", "watcher"),
		})
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to create dataset watcher: %w", err)
		}
	}

	if err := s.initRouter(); err != nil {
		s.cleanup()
		return nil, err
	}

	ds := s.store.Current()
	log.Info("evidence service initialized",
		"genes", ds.Genes.Len(),
		"diseases", ds.Diseases.Len(),
		"reference_condition", cfg.ReferenceCondition,
		"cache", cacheLocation(cfg.CacheDir),
		"watch", cfg.WatchDatasets)
	return s, nil
}

func cacheLocation(dir string) string {
	if dir == "" {
		return "memory"
	}
	return dir
}

// onReload records every load attempt of the dataset store.
func (s *service) onReload(ds *tables.Dataset, elapsed time.Duration, err error) {
	log := s.logger.Slog()
	if err != nil {
		s.metrics.RecordReload(0, 0, err)
		log.Error("dataset load failed", "error", err, "elapsed", elapsed)
		return
	}
	s.metrics.RecordReload(ds.Genes.Len(), ds.Diseases.Len(), nil)
	log.Info("dataset loaded",
		"genes", ds.Genes.Len(),
		"diseases", ds.Diseases.Len(),
		"elapsed", elapsed)
}

// initRouter builds the Gin engine with middleware and routes.
func (s *service) initRouter() error {
	gin.SetMode(s.config.GinMode)
	log := s.logger.Slog()

	httpMetrics, err := observability.NewHTTPMetrics(otel.Meter(ServiceName))
	if err != nil {
		return fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(ServiceName))
	s.router.Use(observability.MetricsMiddleware(httpMetrics))
	s.router.Use(middleware.RequestLogger(log.With("component", "http")))
	s.router.Use(middleware.Session())

	routes.SetupRoutes(s.router, routes.Dependencies{
		Analyzer: s.analyzer,
		Exports:  handlers.NewExports(s.cache, s.metrics, log.With("component", "exports")),
		Docs:     s.docs,
		Datasets: []handlers.DatasetFile{
			{Label: "Gene evidences", Path: s.config.GenePath(), BrowseURL: "/v1/genes"},
			{Label: "Disease evidences", Path: s.config.DiseasePath(), BrowseURL: "/v1/diseases"},
		},
		Gatherer:       s.registry,
		RowsPerPage:    s.config.RowsPerPage,
		PubMedURL:      s.config.PubMedURL,
		RateLimitRPS:   s.config.RateLimitRPS,
		RateLimitBurst: s.config.RateLimitBurst,
		Logger:         log,
	})
	return nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run serves HTTP on the configured port until SIGINT or SIGTERM.
func (s *service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}
	return s.serve(ctx, ln)
}

// serve runs the watcher and the HTTP server until ctx is done, then shuts
// both down. Resources are released before it returns.
func (s *service) serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()
	log := s.logger.Slog()

	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			_ = ln.Close()
			return fmt.Errorf("start dataset watcher: %w", err)
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting evidence server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down evidence server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Router returns the configured Gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Analyzer returns the dataset operations.
func (s *service) Analyzer() *analysis.Analyzer {
	return s.analyzer
}

// Close releases all resources.
func (s *service) Close() error {
	return s.cleanup()
}

// cleanup stops the watcher, closes the export cache, flushes telemetry and
// finally closes the logger. Each step runs at most once.
func (s *service) cleanup() error {
	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close export cache: %w", err))
		}
	}
	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.telemetryShutdown(ctx)
		cancel()
		s.telemetryShutdown = nil
		if err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if s.logger != nil {
		if err := s.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("evidence service cleanup", "error", err)
	}
	return err
}
