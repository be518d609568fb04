package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry when its catalog file changes on disk.
// A successful reload bumps the registry version, which in turn fires the
// registry's version hooks (typically a cache invalidation cascade).
type Watcher struct {
	registry *Registry
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given catalog file.
func NewWatcher(reg *Registry, catalogPath string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save
	// and the watch would be lost.
	if err := fw.Add(filepath.Dir(catalogPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", catalogPath, err)
	}
	return &Watcher{
		registry: reg,
		path:     catalogPath,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// Run processes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) reload() {
	entries, version, err := LoadCatalog(w.path)
	if err != nil {
		// Keep serving the last good snapshot.
		w.logger.Warn("catalog reload failed",
			slog.String("path", w.path),
			slog.Any("error", err))
		return
	}
	if err := w.registry.Reload(entries, version); err != nil {
		w.logger.Warn("catalog rejected",
			slog.String("path", w.path),
			slog.Any("error", err))
	}
}
