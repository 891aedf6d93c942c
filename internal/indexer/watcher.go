package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 2 * time.Second

// Watcher re-imports dumps after they stop changing and drops dumps that
// disappear.
type Watcher struct {
	indexer   *Indexer
	watcher   *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex
	stop      chan struct{}
	stopOnce  sync.Once
	delay     time.Duration
	tick      time.Duration
	onMessage func(string)
	onChange  func()
}

func NewWatcher(indexer *Indexer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		indexer: indexer,
		watcher: fsw,
		pending: make(map[string]time.Time),
		stop:    make(chan struct{}),
		delay:   debounceDelay,
		tick:    500 * time.Millisecond,
	}, nil
}

func (w *Watcher) SetMessageHandler(fn func(string)) {
	w.onMessage = fn
}

// SetChangeHandler registers fn to run after the store changed.
func (w *Watcher) SetChangeHandler(fn func()) {
	w.onChange = fn
}

// Start watches until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchRecursive(w.indexer.dir); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.processPending(ctx)

	w.message(fmt.Sprintf("Watching %s for changes...", w.indexer.dir))

	<-ctx.Done()
	return nil
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close() //nolint:errcheck
	})
}

func (w *Watcher) addWatchRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && isHiddenDir(info.Name()) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}

		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
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
			w.message(fmt.Sprintf("Watch error: %v", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.indexer.dir, event.Name)
	if err != nil || isHiddenRelPath(relPath) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addWatchRecursive(event.Name); err != nil {
				w.message(fmt.Sprintf("Watch error: %v", err))
			}
			return
		}
	}

	if !w.indexer.Matches(relPath) {
		return
	}

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		w.mu.Lock()
		w.pending[relPath] = time.Now()
		w.mu.Unlock()
		w.message(fmt.Sprintf("Detected change: %s", relPath))

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.pending, relPath)
		w.mu.Unlock()
		if err := w.indexer.RemoveFile(relPath); err != nil {
			w.message(fmt.Sprintf("Error removing %s: %v", relPath, err))
			return
		}
		w.message(fmt.Sprintf("Removed from index: %s", relPath))
		w.changed()
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.indexPendingFiles(ctx)
		}
	}
}

func (w *Watcher) indexPendingFiles(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var toIndex []string
	for path, timestamp := range w.pending {
		if now.Sub(timestamp) >= w.delay {
			toIndex = append(toIndex, path)
		}
	}
	for _, path := range toIndex {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	indexed := 0
	for _, relPath := range toIndex {
		w.message(fmt.Sprintf("Indexing: %s", relPath))
		if err := w.indexer.IndexFile(ctx, relPath); err != nil {
			w.message(fmt.Sprintf("Error indexing %s: %v", relPath, err))
			continue
		}
		indexed++
		w.message(fmt.Sprintf("Indexed: %s", relPath))
	}

	if indexed > 0 {
		w.changed()
	}
}

func (w *Watcher) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Watcher) message(msg string) {
	if w.onMessage != nil {
		w.onMessage(msg)
		return
	}
	w.indexer.log.Info(msg)
}
