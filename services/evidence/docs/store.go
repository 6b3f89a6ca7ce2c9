// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docs serves the JSON documentation pages of the service.
//
// Every page is a file <name>.json in the documentation directory, so new
// pages need no code. Page names are restricted to letters, digits, '_'
// and '-' and can never escape the directory.
package docs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultPage is the page served when no page, or a broken one, is requested.
const DefaultPage = "projectOverview"

var (
	// ErrInvalidName is returned for page names outside [A-Za-z0-9_-].
	ErrInvalidName = errors.New("docs: invalid page name")

	// ErrNotFound is returned when a page file does not exist.
	ErrNotFound = errors.New("docs: page not found")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Document is a decoded documentation page.
type Document map[string]any

// Store reads documentation pages from a directory.
type Store struct {
	dir string
}

// NewStore creates a Store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads and decodes page name.
//
// # Outputs
//
//   - Document: The decoded page.
//   - error: ErrInvalidName, ErrNotFound, or a wrapped read/decode error.
func (s *Store) Load(name string) (Document, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", name, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", name, err)
	}
	return doc, nil
}

// List returns the names of the available pages, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if namePattern.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
