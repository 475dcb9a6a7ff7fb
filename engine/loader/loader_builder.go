package loader

import (
	"io"
	"time"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger every load reports to.
//
// Parameters:
//   - logger: the logger; nil keeps the default stderr logger at WarnLevel
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *log.Logger) LoaderBuilderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// WithFetcher is an option builder that replaces the fetcher for model files and external
// resources. WithHTTPTimeout and WithHTTPProgress only affect the default fetcher.
//
// Parameters:
//   - fetcher: the fetcher
//
// Returns:
//   - LoaderBuilderOption: a function that applies the fetcher option to a loader
func WithFetcher(fetcher Fetcher) LoaderBuilderOption {
	return func(l *loader) {
		l.fetcher = fetcher
	}
}

// WithWorkers is an option builder that sets the number of prefetch workers.
// Zero disables the prefetch stage; resources are then fetched on first use.
//
// Parameters:
//   - workers: the maximum worker count
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(workers int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(workers, 0)
	}
}

// WithQueueSize is an option builder that sets the prefetch task queue capacity.
func WithQueueSize(size int) LoaderBuilderOption {
	return func(l *loader) {
		if size > 0 {
			l.queueSize = size
		}
	}
}

// WithHTTPTimeout is an option builder that bounds every HTTP fetch of the default fetcher.
//
// Parameters:
//   - timeout: the per-fetch timeout, zero for none
//
// Returns:
//   - LoaderBuilderOption: a function that applies the timeout option to a loader
func WithHTTPTimeout(timeout time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.httpTimeout = timeout
	}
}

// WithHTTPProgress is an option builder that mirrors every HTTP response body of the default
// fetcher into the writer returned by progress.
func WithHTTPProgress(progress func(uri string, contentLength int64) io.Writer) LoaderBuilderOption {
	return func(l *loader) {
		l.httpProgress = progress
	}
}

// WithDefaultMaterial is an option builder that sets the material assigned to primitives
// without a material index. Without it every load creates its own default material.
//
// Parameters:
//   - mat: the fallback material
//
// Returns:
//   - LoaderBuilderOption: a function that applies the material option to a loader
func WithDefaultMaterial(mat material.Material) LoaderBuilderOption {
	return func(l *loader) {
		l.importOpts.defaultMaterial = mat
	}
}

// WithIndexFormat is an option builder that fixes the merged index width.
// wgpu.IndexFormatUint32 always emits 32-bit indices; any other value keeps the automatic
// choice of 16-bit indices that widen when a mesh outgrows them.
//
// Parameters:
//   - format: the index format
//
// Returns:
//   - LoaderBuilderOption: a function that applies the index format option to a loader
func WithIndexFormat(format wgpu.IndexFormat) LoaderBuilderOption {
	return func(l *loader) {
		l.importOpts.forceU32 = format == wgpu.IndexFormatUint32
	}
}

// WithMaskAsBlend is an option builder that renders MASK materials with alpha blending
// instead of an alpha test.
func WithMaskAsBlend(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.importOpts.maskAsBlend = enabled
	}
}

// WithHotReload is an option builder that evicts cached models when their local source file changes.
func WithHotReload(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.hotReload = enabled
	}
}

// WithProfiling is an option builder that samples heap statistics around every load stage.
// Stage timings are reported at DebugLevel either way.
func WithProfiling(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.importOpts.profile = enabled
	}
}

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}
