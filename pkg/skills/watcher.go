// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for changes to settle
// before reloading the registry.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the registry when manifest files change on disk.
// Because the registry swaps whole snapshots, every relevant event maps
// to one debounced full Reload.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	timerMu sync.Mutex
	timer   *time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	stopMu  sync.Mutex
}

// WatcherConfig configures the skills watcher.
type WatcherConfig struct {
	Debounce time.Duration // Default: 500ms
	Logger   *zap.Logger
}

// NewWatcher creates a watcher over the registry's skills root.
func NewWatcher(registry *Registry, cfg WatcherConfig) (*Watcher, error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Watcher{
		registry: registry,
		watcher:  fsw,
		logger:   cfg.Logger,
		debounce: cfg.Debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the skills root and its current skill directories.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.registry.Dir()); err != nil {
		return fmt.Errorf("watch skills directory: %w", err)
	}

	// Manifests live one level deep, so each existing skill directory is
	// watched too. Directories created later are added from the event loop.
	entries, err := os.ReadDir(w.registry.Dir())
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			sub := filepath.Join(w.registry.Dir(), entry.Name())
			if err := w.watcher.Add(sub); err != nil {
				w.logger.Warn("failed to watch skill directory",
					zap.String("path", sub),
					zap.Error(err))
			}
		}
	}

	w.logger.Info("watching skills directory",
		zap.String("dir", w.registry.Dir()),
		zap.Duration("debounce", w.debounce))

	go w.watchLoop(ctx)
	return nil
}

// watchLoop processes file system events until stopped.
func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("skills watcher error", zap.Error(err))

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent schedules a reload for manifest changes and newly created
// skill directories.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)

	// Ignore editor temp files.
	if strings.Contains(base, ".tmp") || strings.Contains(base, "~") || strings.HasPrefix(base, ".") {
		return
	}

	// A created directory may become a skill; watch it and reload.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new skill directory",
					zap.String("path", event.Name),
					zap.Error(err))
			}
			w.scheduleReload()
			return
		}
	}

	if !strings.HasSuffix(base, ".yaml") && !strings.HasSuffix(base, ".yml") {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleReload()
	}
}

// scheduleReload debounces rapid-fire changes into one Reload.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.registry.Reload(); err != nil {
			w.logger.Error("skills reload failed", zap.Error(err))
			return
		}
		w.logger.Info("skills reloaded after file change",
			zap.Int("skills", w.registry.Count()))
	})
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	close(w.stopCh)

	select {
	case <-w.doneCh:
	case <-time.After(5 * time.Second):
		w.logger.Warn("skills watcher stop timed out")
	}

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	return w.watcher.Close()
}
