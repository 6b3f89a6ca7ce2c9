// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher reloads the datasets when their files change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a
// reload starts.
const DefaultDebounce = 500 * time.Millisecond

// Reloader reloads the datasets. tables.Store implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Config configures a Watcher.
type Config struct {
	// Files are the dataset files to watch. Their directories are watched
	// so that editors replacing a file by rename are seen too.
	Files []string

	// Debounce is the quiet period before reloading. Default: 500ms.
	Debounce time.Duration

	// Logger receives reload outcomes. Default: slog.Default().
	Logger *slog.Logger
}

// Watcher triggers a reload when a watched file is written or replaced.
//
// # Description
//
// A burst of events (a large file written in several chunks, or a
// write-then-rename) collapses into a single reload once no event arrived
// for the debounce period. A failed reload is logged; the reloader keeps
// its previous snapshot.
//
// # Thread Safety
//
// Start and Stop may be called from different goroutines. Start must be
// called at most once.
type Watcher struct {
	reloader Reloader
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over cfg.Files. It does not watch until Start.
//
// # Outputs
//
//   - *Watcher: Ready-to-start watcher.
//   - error: Non-nil if no files are given or fsnotify cannot be created.
func New(reloader Reloader, cfg Config) (*Watcher, error) {
	if reloader == nil {
		return nil, errors.New("watcher: nil reloader")
	}
	if len(cfg.Files) == 0 {
		return nil, errors.New("watcher: no files to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	files := make(map[string]struct{}, len(cfg.Files))
	seenDirs := make(map[string]struct{})
	var dirs []string
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watcher: resolve %s: %w", f, err)
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	return &Watcher{
		reloader: reloader,
		files:    files,
		dirs:     dirs,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the directories and begins watching in a goroutine.
//
// # Outputs
//
//   - error: Non-nil if a directory cannot be watched. The watcher is
//     then closed and must not be reused.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			_ = w.fsw.Close()
			close(w.done)
			return fmt.Errorf("watcher: watch %s: %w", dir, err)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)

	w.logger.Info("watching dataset files", slog.Int("files", len(w.files)), slog.Duration("debounce", w.debounce))
	return nil
}

// Stop ends watching and waits for the goroutine to exit. Safe to call
// multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
		err = w.fsw.Close()
		if errors.Is(err, fsnotify.ErrClosed) {
			err = nil
		}
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("dataset file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dataset watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

// relevant reports whether event writes or replaces a watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) reload(ctx context.Context) {
	start := time.Now()
	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Error("dataset reload failed, keeping previous snapshot",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)))
		return
	}
	w.logger.Info("dataset reloaded", slog.Duration("elapsed", time.Since(start)))
}
