// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher hot-reloads the catalogue file into the registry.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/modeldeck/internal/registry"
	"github.com/traylinx/modeldeck/internal/store"
)

// CatalogWatcher reloads a catalogue file into a registry whenever the file changes.
// A failed reload is logged and the registry keeps its previous catalogue.
type CatalogWatcher struct {
	source   *store.FileStore
	registry *registry.Store
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	stop    chan struct{}
	// reloaded is signalled after every reload attempt; used by tests.
	reloaded func(error)
}

// NewCatalogWatcher creates a watcher for source feeding reg.
func NewCatalogWatcher(source *store.FileStore, reg *registry.Store, debounce time.Duration) *CatalogWatcher {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &CatalogWatcher{source: source, registry: reg, debounce: debounce}
}

// Reload reads the catalogue file once and applies it to the registry.
func (w *CatalogWatcher) Reload(ctx context.Context) error {
	catalog, err := w.source.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	store.Apply(w.registry, catalog.Providers, catalog.Models)
	log.Infof("Catalogue reloaded from %s: %d providers, %d models", w.source.Path(), len(catalog.Providers), len(catalog.Models))
	return nil
}

// Start begins watching in the background. The directory holding the file is
// watched rather than the file itself so editors that replace the file by
// rename are still seen. Watching ends when ctx is done or Stop is called.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return errors.New("watcher: already started")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	target := filepath.Clean(w.source.Path())
	if err = fw.Add(filepath.Dir(target)); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw
	w.stop = make(chan struct{})

	go w.run(ctx, fw, target, w.stop)
	return nil
}

func (w *CatalogWatcher) run(ctx context.Context, fw *fsnotify.Watcher, target string, stop chan struct{}) {
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debugf("Catalogue file changed (%s), scheduling reload", event.Name)
				w.schedule(ctx)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Errorf("Catalogue watcher error: %v", err)
		case <-ctx.Done():
			w.Stop()
			return
		case <-stop:
			return
		}
	}
}

// schedule coalesces bursts of events into one reload after the debounce interval.
func (w *CatalogWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		err := w.Reload(ctx)
		if err != nil {
			log.Errorf("Failed to reload catalogue: %v", err)
		}
		if w.reloaded != nil {
			w.reloaded(err)
		}
	})
}

// Stop ends watching. It is safe to call more than once.
func (w *CatalogWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	close(w.stop)
	_ = w.watcher.Close()
	w.watcher = nil
}
