package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// loaderBackend defines the generic interface for building models from file contents.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load performs a full model import.
	//
	// Parameters:
	//   - ctx: cancels resource fetches
	//   - location: the path, URL or name the data came from
	//   - data: the complete file contents
	//   - isGLB: true when the source is known to be binary, e.g. by its .glb extension
	//
	// Returns:
	//   - model.Model: the imported model
	//   - error: error if loading fails
	Load(ctx context.Context, location string, data []byte, isGLB bool) (model.Model, error)

	// Extensions returns the lower-case file extensions this backend claims, with the dot.
	Extensions() []string

	// Detect reports whether data is in this backend's format regardless of extension.
	Detect(data []byte) bool
}
