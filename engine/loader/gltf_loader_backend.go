package loader

import (
	"context"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct {
	importer gltfImporter
}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// It delegates to the gltfImporter for parsing and extraction.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - importer: the importer every load runs through
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(importer gltfImporter) gltfLoaderBackend {
	return &gltfLoaderBackendImpl{
		importer: importer,
	}
}

func (b *gltfLoaderBackendImpl) Load(ctx context.Context, location string, data []byte, isGLB bool) (model.Model, error) {
	return b.importer.Import(ctx, location, data, isGLB)
}

func (b *gltfLoaderBackendImpl) Extensions() []string {
	return []string{".gltf", ".glb"}
}

func (b *gltfLoaderBackendImpl) Detect(data []byte) bool {
	return isGLB(data)
}
