// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/talkydino-tui/internal/logging"
)

// DefaultWatchDebounce coalesces the burst of events editors emit on save.
const DefaultWatchDebounce = 250 * time.Millisecond

// =============================================================================
// CONFIG WATCHER
// =============================================================================

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config, error)

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending time.Time // zero when nothing is pending
	done    chan struct{}
}

// Watch starts watching path and calls onChange with the reloaded config
// after each debounced change. The parent directory is watched so that
// editors that save by rename are handled. Watching stops when ctx ends.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) (*Watcher, error) {
	return WatchWithDebounce(ctx, path, DefaultWatchDebounce, onChange)
}

// WatchWithDebounce is Watch with an explicit debounce interval.
func WatchWithDebounce(ctx context.Context, path string, debounce time.Duration, onChange func(*Config, error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	log := logging.WithFields("component", "config_watch", "path", w.path)
	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("CONFIG_WATCH_ERROR", "error", err)

		case now := <-ticker.C:
			w.mu.Lock()
			fire := !w.pending.IsZero() && now.Sub(w.pending) >= w.debounce
			if fire {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if fire {
				cfg, err := LoadFromPath(w.path)
				if err != nil {
					log.Warn("CONFIG_RELOAD_FAILED", "error", err)
				} else {
					log.Info("CONFIG_RELOADED")
				}
				if w.onChange != nil {
					w.onChange(cfg, err)
				}
			}
		}
	}
}
