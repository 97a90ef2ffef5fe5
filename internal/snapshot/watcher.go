package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/logger"
)

// Watcher tracks when each dataset's snapshot file last changed on disk, so
// the API can report data freshness. It only records timestamps; cached
// values expire through their TTLs alone.
type Watcher struct {
	mu      sync.RWMutex
	updated map[string]time.Time // dataset name -> last seen mtime

	byPath map[string]string // absolute snapshot path -> dataset name
	dirs   []string
	log    *logrus.Entry
}

// NewWatcher seeds the freshness table from the current state of the given
// datasets' snapshot files. Datasets without a snapshot are ignored.
func NewWatcher(datasets []dataset.Dataset) *Watcher {
	w := &Watcher{
		updated: make(map[string]time.Time),
		byPath:  make(map[string]string),
		log:     logger.WithComponent("snapshot-watcher"),
	}

	seenDirs := make(map[string]bool)
	for _, ds := range datasets {
		if !ds.HasSnapshot() {
			continue
		}
		path := filepath.Clean(ds.SnapshotFile)
		w.byPath[path] = ds.Name

		dir := filepath.Dir(path)
		if !seenDirs[dir] {
			seenDirs[dir] = true
			w.dirs = append(w.dirs, dir)
		}

		if info, err := os.Stat(path); err == nil {
			w.updated[ds.Name] = info.ModTime()
		}
	}
	return w
}

// Start begins watching the snapshot directories until ctx is canceled. It
// watches directories rather than files so atomic replace sequences
// (temp+rename) are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch dir %s: %w", dir, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Warn("watcher error")
			}
		}
	}()

	return nil
}

// handle updates the freshness table from one fsnotify event. Restating the
// same mtime on a bursty write+chmod sequence is harmless, so no debounce is
// needed here.
func (w *Watcher) handle(event fsnotify.Event) {
	name, ok := w.byPath[filepath.Clean(event.Name)]
	if !ok {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if _, err := os.Stat(filepath.Clean(event.Name)); err != nil {
			w.mu.Lock()
			delete(w.updated, name)
			w.mu.Unlock()
			w.log.WithField("dataset", name).Warn("snapshot file removed")
			return
		}
	}

	info, err := os.Stat(filepath.Clean(event.Name))
	if err != nil {
		return
	}
	w.mu.Lock()
	w.updated[name] = info.ModTime()
	w.mu.Unlock()
}

// LastUpdated reports when the dataset's snapshot file last changed. The
// second return is false when no snapshot exists on disk.
func (w *Watcher) LastUpdated(name string) (time.Time, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.updated[name]
	return t, ok
}
