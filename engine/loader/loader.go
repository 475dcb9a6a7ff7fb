package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

var errLoaderClosed = errors.New("loader is closed")

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]model.Model
	inflight   singleflight.Group
	active     sync.WaitGroup

	backend loaderBackend
	logger  *log.Logger
	fetcher Fetcher
	pool    worker.DynamicWorkerPool

	workers      int
	queueSize    int
	httpTimeout  time.Duration
	httpProgress func(uri string, contentLength int64) io.Writer

	importOpts gltfImportOptions

	hotReload bool
	watcher   *cacheWatcher
	closed    bool
}

// Loader defines the public-facing interface for loading and caching 3D models.
// It abstracts the file format behind a backend and manages a cache of previously
// loaded models. A Loader is safe for concurrent use; concurrent loads of the same key
// share one import.
type Loader interface {
	// Load fetches a model file by path or URL and caches the result under uri.
	// If the model is already cached, the cached version is returned.
	// The backend is selected based on the file extension (.gltf/.glb → glTF backend); a file
	// with any other extension is accepted only if its contents carry the GLB magic.
	//
	// Parameters:
	//   - ctx: cancels the fetch of the file and its external resources
	//   - uri: a file path or an http(s)/file URL
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: *FormatError, *ResourceError or *UnsupportedFeatureError
	Load(ctx context.Context, uri string) (model.Model, error)

	// LoadBytes imports a model from in-memory file contents and caches it by name.
	// Relative external URIs resolve against name's directory.
	//
	// Parameters:
	//   - ctx: cancels external resource fetches
	//   - name: the cache key, also used as the document location
	//   - data: the .gltf or .glb contents
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadBytes(ctx context.Context, name string, data []byte) (model.Model, error)

	// LoadReader imports a model from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - ctx: cancels external resource fetches
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(ctx context.Context, name string, r io.Reader, isGLB bool) (model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Evict drops a model from the cache.
	//
	// Parameters:
	//   - name: the cache key
	//
	// Returns:
	//   - bool: true if the key was cached
	Evict(name string) bool

	// Close stops hot reloading and the worker pool and empties the cache. Loads after Close fail.
	Close() error
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         sync.RWMutex{},
		modelCache: make(map[string]model.Model),
		workers:    defaultWorkers,
		queueSize:  defaultQueueSize,
	}

	for _, option := range options {
		option(l)
	}

	if l.logger == nil {
		l.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "oxy-gltf", Level: log.WarnLevel})
	}
	if l.fetcher == nil {
		f := NewDefaultFetcher(l.httpTimeout)
		if h, ok := f.Schemes["http"].(*HTTPFetcher); ok {
			h.Progress = l.httpProgress
		}
		l.fetcher = f
	}
	if l.workers > 0 {
		l.pool = worker.NewDynamicWorkerPool(l.workers, l.queueSize, 1*time.Second)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(newGLTFImporter(l.fetcher, l.pool, l.logger, l.importOpts))
	}
	return l
}

func (l *loader) Load(ctx context.Context, uri string) (model.Model, error) {
	return l.loadCached(uri, func() { l.watch(uri) }, func() (model.Model, error) {
		if u, err := url.Parse(uri); err == nil && len(u.Scheme) > 1 && u.Scheme != "file" && u.Scheme != "http" && u.Scheme != "https" {
			return nil, newUnsupportedError(uri, fmt.Errorf("%w: scheme %q", errUnsupportedFormat, u.Scheme))
		}

		data, err := l.fetcher.Fetch(ctx, uri)
		if err != nil {
			return nil, newResourceError(uri, err)
		}

		backend, isGLB, err := l.resolveBackend(uri, data)
		if err != nil {
			return nil, err
		}

		m, err := backend.Load(ctx, uri, data, isGLB)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", uri, err)
		}
		return m, nil
	})
}

func (l *loader) LoadBytes(ctx context.Context, name string, data []byte) (model.Model, error) {
	return l.loadBytes(ctx, name, data, false)
}

func (l *loader) LoadReader(ctx context.Context, name string, r io.Reader, isGLB bool) (model.Model, error) {
	if m := l.Get(name); m != nil {
		return m, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, newResourceError(name, fmt.Errorf("failed to read data: %w", err))
	}
	return l.loadBytes(ctx, name, buf.Bytes(), isGLB)
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.modelCache[name]
	delete(l.modelCache, name)
	return ok
}

func (l *loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.modelCache = make(map[string]model.Model)
	w := l.watcher
	l.watcher = nil
	pool := l.pool
	l.mu.Unlock()

	// Prefetch tasks of in-flight loads still need the workers.
	l.active.Wait()
	if pool != nil {
		pool.Stop()
	}
	if w != nil {
		return w.Close()
	}
	return nil
}

// --- Helper Functions ---

// loadBytes imports in-memory contents under name. isGLB forces the GLB container path.
func (l *loader) loadBytes(ctx context.Context, name string, data []byte, isGLB bool) (model.Model, error) {
	return l.loadCached(name, nil, func() (model.Model, error) {
		m, err := l.backend.Load(ctx, name, data, isGLB)
		if err != nil {
			return nil, fmt.Errorf("failed to load %q: %w", name, err)
		}
		return m, nil
	})
}

// loadCached returns the cached model for key or runs load exactly once across concurrent
// callers and caches its result. Failed loads are not cached. stored, when set, runs once the
// model is in the cache.
func (l *loader) loadCached(key string, stored func(), load func() (model.Model, error)) (model.Model, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, errLoaderClosed
	}
	if cached, ok := l.modelCache[key]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.active.Add(1)
	l.mu.RUnlock()
	defer l.active.Done()

	v, err, _ := l.inflight.Do(key, func() (any, error) {
		m, err := load()
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, errLoaderClosed
		}
		l.modelCache[key] = m
		l.mu.Unlock()

		if stored != nil {
			stored()
		}
		return m, nil
	})
	if err != nil {
		l.logger.Debug("load failed", "asset", key, "err", err)
		return nil, err
	}
	return v.(model.Model), nil
}

// resolveBackend selects the backend by file extension, falling back to content detection
// for unknown extensions. The returned flag is true for a .glb extension, which must take the
// GLB container path whatever its first bytes are.
func (l *loader) resolveBackend(uri string, data []byte) (loaderBackend, bool, error) {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))

	if slices.Contains(l.backend.Extensions(), ext) || l.backend.Detect(data) {
		return l.backend, ext == ".glb", nil
	}
	return nil, false, newUnsupportedError(uri, fmt.Errorf("%w: %q", errUnsupportedFormat, ext))
}

// watch registers a local source file with the hot-reload watcher, creating it on first use.
// Watch failures are logged; they never fail the load.
func (l *loader) watch(uri string) {
	if !l.hotReload {
		return
	}
	file, ok := gltfLocalPath(uri)
	if !ok {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.watcher == nil {
		w, err := newCacheWatcher(l.logger, func(key string) { l.Evict(key) })
		if err != nil {
			l.mu.Unlock()
			l.logger.Warn("hot reload disabled", "err", err)
			return
		}
		l.watcher = w
	}
	w := l.watcher
	l.mu.Unlock()

	if err := w.Watch(file, uri); err != nil {
		l.logger.Warn("cannot watch model source", "asset", uri, "err", err)
	}
}

// gltfLocalPath returns the filesystem path behind uri, or false for remote URLs.
func gltfLocalPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return uri, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}
