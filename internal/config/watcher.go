package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 200 * time.Millisecond

// CatalogWatcher reloads a Catalog whenever its YAML file changes.
type CatalogWatcher struct {
	catalog  *Catalog
	debounce time.Duration
	onReload func(error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewCatalogWatcher watches catalog's file. onReload, if set, receives the
// result of every reload.
func NewCatalogWatcher(catalog *Catalog, debounce time.Duration, onReload func(error)) *CatalogWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &CatalogWatcher{catalog: catalog, debounce: debounce, onReload: onReload}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file so that editors replacing the file are noticed too.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	path := w.catalog.File()
	if path == "" {
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	logger.InfoCtx(ctx, "Model catalog watcher started",
		"path", path,
		"debounce_ms", w.debounce.Milliseconds(),
		"stage", logger.LogStages.CatalogReload)

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.WarnCtx(ctx, "Model catalog watcher error",
				"error", err.Error(),
				"stage", logger.LogStages.CatalogReload)
		}
	}
}

func (w *CatalogWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
}

func (w *CatalogWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *CatalogWatcher) reload(ctx context.Context) {
	err := w.catalog.Reload()
	if err != nil {
		logger.ErrorCtx(ctx, "Model catalog reload failed",
			"error", err.Error(),
			"stage", logger.LogStages.CatalogReload)
	} else {
		snapshot := w.catalog.Snapshot()
		logger.InfoCtx(ctx, "Model catalog reloaded",
			"chat_models", len(snapshot.ChatModels),
			"vision_models", len(snapshot.VisionModels),
			"image_models", len(snapshot.ImageModels),
			"stage", logger.LogStages.CatalogReload)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
