package loader

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

var errWatcherClosed = errors.New("cache watcher already closed")

// cacheWatcher evicts cached models when the local file they were loaded from changes.
// It watches parent directories rather than files, so a file replaced through a rename
// (the way most editors and exporters save) is still noticed.
type cacheWatcher struct {
	mu       sync.Mutex
	fsnotify *fsnotify.Watcher
	logger   *log.Logger
	evict    func(key string)

	// keys maps a cleaned absolute file path to the cache keys loaded from it.
	keys map[string][]string
	dirs map[string]struct{}

	isClosed bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// newCacheWatcher creates a watcher and starts its event loop.
//
// Parameters:
//   - logger: the loader logger
//   - evict: called with a cache key whenever its source file changes
//
// Returns:
//   - *cacheWatcher: the running watcher
//   - error: error if the OS watcher cannot be created
func newCacheWatcher(logger *log.Logger, evict func(key string)) (*cacheWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &cacheWatcher{
		fsnotify: fsWatch,
		logger:   logger,
		evict:    evict,
		keys:     make(map[string][]string),
		dirs:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch registers a cache key against a local file.
//
// Parameters:
//   - path: the file the model was loaded from
//   - key: the cache key to evict when the file changes
//
// Returns:
//   - error: error if the directory cannot be watched or the watcher is closed
func (w *cacheWatcher) Watch(path, key string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed {
		return errWatcherClosed
	}

	dir := filepath.Dir(abs)
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fsnotify.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	for _, k := range w.keys[abs] {
		if k == key {
			return nil
		}
	}
	w.keys[abs] = append(w.keys[abs], key)
	return nil
}

// Close stops the event loop and releases the OS watcher. It is safe to call twice.
func (w *cacheWatcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return nil
	}
	w.isClosed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *cacheWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handleEvent(e)
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

// handleEvent evicts every key loaded from the event's file. Chmod-only events are ignored.
// A key is forgotten once evicted; loading the file again registers it again.
func (w *cacheWatcher) handleEvent(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Remove) && !e.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Clean(e.Name)
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}

	w.mu.Lock()
	keys := w.keys[name]
	delete(w.keys, name)
	w.mu.Unlock()

	for _, k := range keys {
		w.logger.Debug("source changed, evicting", "asset", k, "op", e.Op.String())
		w.evict(k)
	}
}
