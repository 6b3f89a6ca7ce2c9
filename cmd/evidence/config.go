// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence"
)

// defaultConfigPath is read when --config is not given. A missing default
// file is not an error.
const defaultConfigPath = "evidence.yaml"

// Environment variables overriding the config file.
const (
	envPort           = "EVIDENCE_PORT"
	envDataDir        = "EVIDENCE_DATA_DIR"
	envLogLevel       = "EVIDENCE_LOG_LEVEL"
	envOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envTraceExporter  = "OTEL_TRACES_EXPORTER"
	envMetricExporter = "OTEL_METRICS_EXPORTER"
)

// loadConfig builds the service configuration.
//
// # Description
//
// Precedence, lowest first: built-in defaults, the YAML file at path, then
// environment variables. Command flags are applied by the caller on top.
// Defaults are not applied here so the caller can tell which values were
// set; evidence.New fills in the rest.
//
// # Inputs
//
//   - path: YAML file. A missing file is an error only when required.
//   - required: True when the user named the file explicitly.
//   - lookup: Environment lookup, os.LookupEnv outside tests.
//
// # Outputs
//
//   - evidence.Config: The merged configuration.
//   - error: Non-nil on unreadable or malformed YAML, or a malformed env value.
func loadConfig(path string, required bool, lookup func(string) (string, bool)) (evidence.Config, error) {
	var cfg evidence.Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg with the recognized environment variables.
func applyEnv(cfg *evidence.Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", envPort, v)
		}
		cfg.Port = port
	}
	if v, ok := lookup(envDataDir); ok && v != "" {
		cfg.DataDir = v
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(envOTLPEndpoint); ok && v != "" {
		cfg.OTLPEndpoint = v
	}
	if v, ok := lookup(envTraceExporter); ok && v != "" {
		cfg.TraceExporter = strings.ToLower(v)
	}
	if v, ok := lookup(envMetricExporter); ok && v != "" {
		cfg.MetricExporter = strings.ToLower(v)
	}
	return nil
}
