package loader

import (
	"context"
	"path"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// gltfImportOptions are the per-loader settings every import shares.
type gltfImportOptions struct {
	forceU32        bool
	maskAsBlend     bool
	profile         bool
	defaultMaterial material.Material
}

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct {
	fetcher Fetcher
	pool    worker.DynamicWorkerPool
	logger  *log.Logger
	opts    gltfImportOptions
}

// gltfImporter orchestrates one full glTF/GLB import: parse, prefetch, then the texture,
// material, mesh, skin and node stages in that order. Each import owns its own document,
// resolver cache and default material; nothing is shared between concurrent imports.
type gltfImporter interface {
	// Import builds a model from the complete bytes of a .gltf or .glb file.
	//
	// Parameters:
	//   - ctx: cancels resource fetches
	//   - location: the path or URL the bytes came from; relative URIs resolve against it
	//   - data: the file contents
	//   - isGLB: true forces the GLB container path, false detects it by magic
	//
	// Returns:
	//   - model.Model: the model, never partially populated
	//   - error: *FormatError, *ResourceError or *UnsupportedFeatureError
	Import(ctx context.Context, location string, data []byte, isGLB bool) (model.Model, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Parameters:
//   - fetcher: fetches external buffers and images
//   - pool: runs the parallel prefetch
//   - logger: the loader logger
//   - opts: the shared import settings
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter(fetcher Fetcher, pool worker.DynamicWorkerPool, logger *log.Logger, opts gltfImportOptions) gltfImporter {
	return &gltfImporterImpl{
		fetcher: fetcher,
		pool:    pool,
		logger:  logger,
		opts:    opts,
	}
}

func (imp *gltfImporterImpl) Import(ctx context.Context, location string, data []byte, isGLB bool) (model.Model, error) {
	id := uuid.New()
	logger := imp.logger.With("asset", location, "id", id)
	prof := profiler.NewProfiler(imp.opts.profile)

	stop := prof.Start("parse")
	parser := newGLTFParser()
	if err := parser.Parse(data, isGLB); err != nil {
		return nil, err
	}
	doc := parser.Document()
	stop()

	res := newGLTFResolver(doc, parser.Binary(), gltfBaseOf(location), imp.fetcher, logger)

	stop = prof.Start("prefetch")
	if imp.pool != nil {
		if err := res.Prefetch(ctx, imp.pool); err != nil {
			return nil, err
		}
	}
	stop()

	stop = prof.Start("textures")
	materials := newGLTFMaterialExtractor(doc, res, imp.opts.maskAsBlend, logger)
	images, err := materials.ExtractImages(ctx)
	if err != nil {
		return nil, err
	}
	textures, err := materials.ExtractTextures(images)
	if err != nil {
		return nil, err
	}
	stop()

	stop = prof.Start("materials")
	mats, err := materials.ExtractAllMaterials(textures)
	if err != nil {
		return nil, err
	}
	defaultMaterial := imp.opts.defaultMaterial
	if defaultMaterial == nil {
		defaultMaterial = material.NewDefaultMaterial()
	}
	stop()

	stop = prof.Start("meshes")
	primitives := &gltfPrimitiveBuilder{
		doc:             doc,
		res:             res,
		materials:       mats,
		defaultMaterial: defaultMaterial,
		logger:          logger,
	}
	meshes, err := newGLTFMeshExtractor(doc, primitives, imp.opts.forceU32, logger).ExtractAllMeshes(ctx)
	if err != nil {
		return nil, err
	}
	stop()

	stop = prof.Start("skins")
	skinExtractor := newGLTFSkinExtractor(doc, res)
	skins, err := skinExtractor.ExtractAllSkins(ctx)
	if err != nil {
		return nil, err
	}
	nodes, scenes, defaultScene, err := skinExtractor.ExtractNodes()
	if err != nil {
		return nil, err
	}
	stop()

	if len(doc.Animations) > 0 {
		logger.Debug("animations ignored", "count", len(doc.Animations))
	}

	decodes, fetches := res.Stats()
	prof.Report(logger, "decodes", decodes, "fetches", fetches)

	return model.NewModel(
		model.WithID(id),
		model.WithName(gltfModelName(doc, location)),
		model.WithSource(location),
		model.WithMeshes(meshes),
		model.WithMaterials(mats, defaultMaterial),
		model.WithSkins(skins),
		model.WithTextures(textures, images),
		model.WithNodes(nodes, scenes, defaultScene),
	), nil
}

// --- Helper Functions ---

// gltfModelName derives a model name from the default scene name or the location's base name.
func gltfModelName(doc *gltfDocument, location string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}

	if location != "" {
		base := path.Base(strings.ReplaceAll(location, "\\", "/"))
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
		if base != "" && base != "." && base != "/" {
			return strings.TrimSuffix(base, path.Ext(base))
		}
	}

	return "unnamed_model"
}
