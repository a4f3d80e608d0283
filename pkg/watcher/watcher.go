// Package watcher reruns the mapping pipeline when the reaction's input
// data files change on disk. Editors and simulation scripts tend to rewrite
// files in bursts, so events are debounced before a rerun is triggered.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yryd/automapper/pkg/logging"
)

// ChangeEvent represents a debounced batch of input-file changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches the reaction input files for changes
type FileWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	names   map[string]bool // watched base names within dir
	quiet   time.Duration
	events  chan ChangeEvent
}

// New creates a watcher for the named files inside dir. quiet is the
// debounce period: a change event is emitted only after the files have been
// still for that long.
func New(dir string, names []string, quiet time.Duration) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	nameSet := make(map[string]bool, len(names))
	for _, n := range names {
		nameSet[filepath.Base(n)] = true
	}

	fw := &FileWatcher{
		watcher: w,
		dir:     dir,
		names:   nameSet,
		quiet:   quiet,
		events:  make(chan ChangeEvent, 16),
	}
	return fw, nil
}

// Start begins watching. Watching the directory rather than the files
// themselves survives the write-rename dance most editors do.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}
	logging.Info("watching input files", "dir", fw.dir, "files", len(fw.names))

	go fw.processEvents(ctx)
	return nil
}

// Events returns the channel of debounced change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	var pending []string

	flushTimer := time.NewTimer(fw.quiet)
	flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			close(fw.events)
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !fw.names[filepath.Base(event.Name)] {
				continue
			}
			pending = append(pending, event.Name)
			flushTimer.Reset(fw.quiet)

		case <-flushTimer.C:
			if len(pending) > 0 {
				fw.events <- ChangeEvent{Paths: dedupe(pending), Timestamp: time.Now()}
				pending = nil
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
