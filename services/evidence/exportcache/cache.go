// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package exportcache keeps the last computed table of every client session
// so that it can be downloaded afterwards.
//
// # Description
//
// Every operation result is stored under the session id with a short TTL.
// A later download reads it back and streams it as TSV. Storage is an
// embedded BadgerDB, in memory by default or on disk when a directory is
// configured, and expiry uses Badger's native entry TTL.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package exportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// ErrNotFound is returned when no table is cached for a session, or the
// cached table expired.
var ErrNotFound = errors.New("export cache: table not found")

// keyPrefix namespaces export entries inside the database.
const keyPrefix = "export/"

// entry is the stored value.
type entry struct {
	Table     datatypes.Table `json:"table"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Cache stores one table per session.
//
// # Description
//
// Put overwrites the previous table of the session. Badger evicts expired
// entries on its own at second granularity; Get additionally checks the
// stored expiry so a table is never served after its TTL.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
	gc  *gcRunner
	now func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// Open opens a cache.
//
// # Inputs
//
//   - cfg: Cache configuration. Use InMemoryConfig() or DefaultConfig(dir).
//
// # Outputs
//
//   - *Cache: The cache. Call Close when done.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Cache, error) {
	cfg = cfg.withDefaults()

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db, ttl: cfg.TTL, now: time.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		c.gc.start()
	}
	return c, nil
}

func sessionKey(sessionID string) []byte {
	return []byte(keyPrefix + sessionID)
}

// Put stores table as the session's downloadable table.
func (c *Cache) Put(ctx context.Context, sessionID string, table datatypes.Table) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if sessionID == "" {
		return errors.New("export cache: empty session id")
	}

	value, err := json.Marshal(entry{Table: table, ExpiresAt: c.now().Add(c.ttl)})
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(sessionKey(sessionID), value).WithTTL(c.ttl))
	})
}

// Get returns the session's table.
//
// # Outputs
//
//   - datatypes.Table: The cached table.
//   - error: ErrNotFound when missing or expired.
func (c *Cache) Get(ctx context.Context, sessionID string) (datatypes.Table, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Table{}, fmt.Errorf("context cancelled: %w", err)
	}
	if sessionID == "" {
		return datatypes.Table{}, ErrNotFound
	}

	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.Table{}, ErrNotFound
	}
	if err != nil {
		return datatypes.Table{}, fmt.Errorf("read cached table: %w", err)
	}
	if !c.now().Before(e.ExpiresAt) {
		return datatypes.Table{}, ErrNotFound
	}
	return e.Table, nil
}

// Close stops the GC runner and closes the database. Safe to call more
// than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.gc != nil {
			c.gc.stop()
		}
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}
