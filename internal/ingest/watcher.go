package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codetribute/codetribute/internal/models"
)

// Handler is the single ingestion entry point the watcher feeds.
type Handler interface {
	Handle(action models.Action, path string)
}

// Watcher subscribes to file-system notifications for every directory under
// root and forwards them to a Handler. Coalescing and dropped events are the
// operating system's concern; Watcher forwards whatever it receives.
type Watcher struct {
	root    string
	ignore  *Matcher
	handler Handler
	logger  *slog.Logger
	ready   chan struct{}
}

// NewWatcher creates a watcher rooted at root.
func NewWatcher(root string, ignore *Matcher, handler Handler, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:    root,
		ignore:  ignore,
		handler: handler,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It returns an error only when the
// notification backend cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root, false); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	close(w.ready)

	w.logger.Info("watching workspace", "root", w.root, "directories", len(fw.WatchList()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopping due to context cancellation")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.dispatch(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			// Overflow and similar errors mean events were lost; keep going.
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(fw *fsnotify.Watcher, event fsnotify.Event) {
	if w.ignore.Ignored(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		w.handler.Handle(models.ActionCreated, event.Name)
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files may land in a new directory before its watch exists.
			if err := w.addTree(fw, event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	case event.Has(fsnotify.Write):
		w.handler.Handle(models.ActionModified, event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename's new name arrives separately as Create.
		w.handler.Handle(models.ActionDeleted, event.Name)
	}
}

// addTree watches dir and every directory below it. When reportFiles is set,
// entries found below dir are reported as created.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string, reportFiles bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}

		if path != dir && w.ignore.Ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if reportFiles && path != dir {
			w.handler.Handle(models.ActionCreated, path)
		}

		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
