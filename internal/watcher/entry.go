// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher reports edits to the backend entry point while the shell runs.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wingedpig/sidecar/internal/events"
)

// EntryWatcher publishes backend.source_changed when the entry file changes.
// It only notifies; the backend is never restarted.
type EntryWatcher struct {
	path      string
	bus       events.EventBus
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	debouncer *debouncer

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewEntryWatcher watches entryPath. The containing directory is watched so
// editors that save by rename are still seen.
func NewEntryWatcher(entryPath string, bus events.EventBus, debounce time.Duration, logger *zap.Logger) (*EntryWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", entryPath, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &EntryWatcher{
		path:      abs,
		bus:       bus,
		logger:    logger.Named("watcher"),
		watcher:   fsWatcher,
		debouncer: newDebouncer(debounce),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Path returns the watched entry point.
func (w *EntryWatcher) Path() string {
	return w.path
}

// Close stops the watcher and releases resources.
func (w *EntryWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.debouncer.stop()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *EntryWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *EntryWatcher) handleEvent(event fsnotify.Event) {
	// Chmod fires on plain reads by some tools; only content changes matter
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}
	w.debouncer.trigger(w.publish)
}

func (w *EntryWatcher) publish() {
	var modTime time.Time
	if info, err := os.Stat(w.path); err == nil {
		modTime = info.ModTime()
	}

	w.logger.Info("backend entry point changed; restart the shell to apply", zap.String("path", w.path))
	if w.bus != nil {
		w.bus.Publish(context.Background(), events.Event{
			Type: events.EventBackendSourceChanged,
			Payload: map[string]interface{}{
				"path":    w.path,
				"modTime": modTime.Format(time.RFC3339),
			},
		})
	}
}
