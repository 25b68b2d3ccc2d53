// Package watcher wraps fsnotify to deliver filesystem changes in batches.
//
// A batch is the first event received plus every event already queued behind
// it. Handlers run on the watch goroutine, so events that arrive while a
// handler is busy wait in the fsnotify queue and form the next batch.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/cydonia/internal/errors"
	"github.com/conneroisu/cydonia/internal/logging"
)

// FileWatcher watches tracked roots for changes
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   logging.Logger
	filters  []FileFilter
	handlers []ChangeHandler
	// recursive roots; directories created beneath them are added on the fly
	roots   []string
	watched map[string]bool
	mutex   sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a path should be reported
type FileFilter func(path string) bool

// ChangeHandler handles one batch of change events
type ChangeHandler func(events []ChangeEvent) error

// NewFileWatcher creates a new file watcher
func NewFileWatcher(logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  w,
		logger:   logger.WithComponent("watcher"),
		filters:  make([]FileFilter, 0),
		handlers: make([]ChangeHandler, 0),
		watched:  make(map[string]bool),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRoot starts observing a tracked root. A directory is watched with all
// its subdirectories. A file is observed through its parent directory so
// that editors replacing the file by rename are still seen.
func (fw *FileWatcher) AddRoot(root string) error {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		return errors.NewWatchError(root, err)
	}

	if !info.IsDir() {
		if err := fw.add(filepath.Dir(root)); err != nil {
			return errors.NewWatchError(root, err)
		}
		return nil
	}

	fw.mutex.Lock()
	fw.roots = append(fw.roots, root)
	fw.mutex.Unlock()

	if err := fw.AddRecursive(root); err != nil {
		return errors.NewWatchError(root, err)
	}
	return nil
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return fw.add(path)
		}

		return nil
	})
}

func (fw *FileWatcher) add(dir string) error {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()

	if fw.watched[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}
	fw.watched[dir] = true
	return nil
}

// WatchList returns the directories currently watched.
func (fw *FileWatcher) WatchList() []string {
	return fw.watcher.WatchList()
}

// Run delivers batches to the handlers until ctx is done or the watcher is
// closed. Handler errors are logged and do not stop the loop.
func (fw *FileWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			batch := fw.convert(ctx, fw.drain(event))
			if len(batch) == 0 {
				continue
			}
			fw.dispatch(ctx, batch)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue watching
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// drain collects the events already queued behind first.
func (fw *FileWatcher) drain(first fsnotify.Event) []fsnotify.Event {
	events := []fsnotify.Event{first}
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func (fw *FileWatcher) convert(ctx context.Context, raw []fsnotify.Event) []ChangeEvent {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	batch := make([]ChangeEvent, 0, len(raw))
outer:
	for _, event := range raw {
		// access-time and permission touches carry no content change
		if event.Op == fsnotify.Chmod {
			continue
		}

		for _, filter := range filters {
			if !filter(event.Name) {
				continue outer
			}
		}

		var eventType EventType
		switch {
		case event.Op.Has(fsnotify.Create):
			eventType = EventTypeCreated
			fw.watchNewDir(ctx, event.Name)
		case event.Op.Has(fsnotify.Write):
			eventType = EventTypeModified
		case event.Op.Has(fsnotify.Remove):
			eventType = EventTypeDeleted
		case event.Op.Has(fsnotify.Rename):
			eventType = EventTypeRenamed
		default:
			eventType = EventTypeModified
		}

		batch = append(batch, ChangeEvent{Type: eventType, Path: filepath.Clean(event.Name)})
	}

	return batch
}

// watchNewDir adds a directory created beneath a recursive root.
func (fw *FileWatcher) watchNewDir(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	fw.mutex.RLock()
	roots := fw.roots
	fw.mutex.RUnlock()

	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if err := fw.AddRecursive(path); err != nil {
				fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", path)
			}
			return
		}
	}
}

func (fw *FileWatcher) dispatch(ctx context.Context, batch []ChangeEvent) {
	fw.mutex.RLock()
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			// Log error but continue processing
			fw.logger.Error(ctx, err, "File watcher handler error", "events", len(batch))
		}
	}
}

// Close releases the fsnotify handle. Run returns once the handle is closed.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

// Paths returns the paths of a batch in order.
func Paths(events []ChangeEvent) []string {
	paths := make([]string, len(events))
	for i, e := range events {
		paths[i] = e.Path
	}
	return paths
}

// ExcludeFilter drops every path at or beneath dir.
func ExcludeFilter(dir string) FileFilter {
	dir = filepath.Clean(dir)
	return func(path string) bool {
		path = filepath.Clean(path)
		return path != dir && !strings.HasPrefix(path, dir+string(filepath.Separator))
	}
}

// NoGitFilter drops paths inside .git directories.
func NoGitFilter(path string) bool {
	return !strings.Contains(filepath.ToSlash(path), "/.git/")
}
