package sso

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// Initializer is the slice of the registry the watcher drives
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Watcher re-initializes the provider registry when a marker file changes.
// Deploy tooling touches the file after editing stored provider configs, so
// running instances pick up changes without a restart.
type Watcher struct {
	path     string
	registry Initializer
	logger   *observability.Logger
}

// NewWatcher creates a watcher for the given file path
func NewWatcher(path string, registry Initializer, logger *observability.Logger) *Watcher {
	return &Watcher{path: filepath.Clean(path), registry: registry, logger: logger}
}

// Run watches until the context is canceled. The parent directory is watched
// rather than the file itself: editors and config writers replace files,
// which drops inode-level watches.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.WithField("file", w.path).Info("sso config changed, re-initializing providers")
			if err := w.registry.Initialize(ctx); err != nil {
				w.logger.WithError(err).Warn("failed to re-initialize sso providers")
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("sso config watcher error")
		}
	}
}
