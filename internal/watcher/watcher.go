// Package watcher reports debounced changes to the source files of a
// project tree.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is the quiet period before a batch of changes is emitted.
const DefaultInterval = 200 * time.Millisecond

// Filter decides which directories are watched and which files matter.
type Filter interface {
	SkipDir(path string) bool
	Accept(path string) bool
}

// Watcher provides recursive file system watching with debouncing.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	filter    Filter
	rootDir   string
	logger    *slog.Logger
}

// New creates a recursive watcher on rootDir. Every directory the filter
// does not skip is registered.
func New(rootDir string, filter Filter, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debouncer: NewDebouncer(interval),
		filter:    filter,
		rootDir:   rootDir,
		logger:    logger,
	}

	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != rootDir && filter.SkipDir(path) {
			return filepath.SkipDir
		}
		if watchErr := fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", watchErr)
		}
		return nil
	})
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// Events returns the channel of debounced change batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Run forwards file system events to the debouncer until ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New directories are watched but produce no event themselves.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.filter.SkipDir(path) {
				if err := w.fsWatcher.Add(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !w.filter.Accept(path) {
		return
	}

	op, ok := convertOp(event)
	if !ok {
		return
	}
	w.logger.Debug("source changed", "path", path, "op", op)
	w.debouncer.Add(path, op)
}

func convertOp(event fsnotify.Event) (Op, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return OpCreate, true
	case event.Has(fsnotify.Write):
		return OpWrite, true
	case event.Has(fsnotify.Remove):
		return OpRemove, true
	case event.Has(fsnotify.Rename):
		return OpRename, true
	}
	return 0, false
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
