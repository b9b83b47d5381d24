// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc applies a freshly loaded file. An error leaves the previous
// configuration in effect.
type ReloadFunc func(*File) error

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more writes before reloading.
	// Default: 250ms
	DebounceWindow time.Duration

	// Logger receives reload outcomes. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultWatcherOptions returns sensible defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 250 * time.Millisecond,
		Logger:         slog.Default(),
	}
}

// Watcher reloads the config file when it changes on disk.
//
// The parent directory is watched rather than the file, because editors
// commonly save by writing a temp file and renaming it over the original.
// Bursts of events are collapsed by a debounce window; one reload runs per
// burst. A file that fails to load or apply is logged and skipped.
//
// # Thread Safety
//
// Run must be called once. The reload function is called from the Run
// goroutine only.
type Watcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	// reloaded is signalled after every reload attempt. Tests only.
	reloaded chan error
}

// NewWatcher creates a watcher for the config file at path.
//
// # Inputs
//
//   - path: The config file. Its directory must exist.
//   - reload: Called with each successfully loaded file.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *Watcher: Ready watcher. Call Run to start it.
//   - error: Non-nil if the directory could not be watched.
func NewWatcher(path string, reload ReloadFunc, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		reload:   reload,
		debounce: opts.DebounceWindow,
		logger:   logger.With(slog.String("config", abs)),
		watcher:  fw,
	}, nil
}

// Run processes events until ctx is canceled. It always returns nil after
// cancellation so it can run inside an errgroup next to the server.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.apply()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) apply() {
	f, err := Load(w.path)
	if err == nil {
		err = w.reload(f)
	}
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous configuration", slog.String("error", err.Error()))
	} else {
		w.logger.Info("config reloaded")
	}
	if w.reloaded != nil {
		w.reloaded <- err
	}
}
