// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tables

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Provider hands out the current dataset snapshot.
//
// # Description
//
// Handlers and CLI commands depend on Provider rather than on Store so
// tests can serve a fixed Dataset.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Current must not block.
type Provider interface {
	// Current returns the active snapshot. Never nil once the provider is
	// constructed.
	Current() *Dataset
}

// StaticProvider serves a fixed snapshot.
type StaticProvider struct {
	Dataset *Dataset
}

// Current implements Provider.
func (p StaticProvider) Current() *Dataset {
	return p.Dataset
}

// =============================================================================
// Store
// =============================================================================

// ReloadFunc observes the outcome of every load attempt.
type ReloadFunc func(ds *Dataset, elapsed time.Duration, err error)

// StoreConfig configures a Store.
type StoreConfig struct {
	// GenePath is the gene evidences TSV file.
	GenePath string

	// DiseasePath is the disease evidences TSV file.
	DiseasePath string

	// Options are passed to every load.
	Options Options

	// OnReload, if set, is called after every load attempt.
	OnReload ReloadFunc
}

// Store holds the current dataset snapshot and reloads it from disk.
//
// # Description
//
// The snapshot sits behind an atomic pointer: Current never blocks and
// always returns a complete pair of tables. Reload builds a new snapshot
// and swaps it in only on success, so a half-written file on disk never
// replaces good data.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrent Reload calls are serialized.
type Store struct {
	cfg      StoreConfig
	current  atomic.Pointer[Dataset]
	reloadMu sync.Mutex
}

// NewStore creates a Store and performs the initial load.
//
// # Outputs
//
//   - *Store: Ready store with a loaded snapshot.
//   - error: Non-nil if the initial load fails.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.GenePath == "" || cfg.DiseasePath == "" {
		return nil, errors.New("gene and disease paths are required")
	}
	s := &Store{cfg: cfg}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current implements Provider.
func (s *Store) Current() *Dataset {
	return s.current.Load()
}

// Reload loads both files and swaps the snapshot in on success.
//
// # Outputs
//
//   - error: Non-nil if loading failed; the previous snapshot stays active.
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	ds, err := LoadDataset(ctx, s.cfg.GenePath, s.cfg.DiseasePath, s.cfg.Options)
	if s.cfg.OnReload != nil {
		s.cfg.OnReload(ds, time.Since(start), err)
	}
	if err != nil {
		return err
	}
	s.current.Store(ds)
	return nil
}

var _ Provider = (*Store)(nil)
var _ Provider = StaticProvider{}
