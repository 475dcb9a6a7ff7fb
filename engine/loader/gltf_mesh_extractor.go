package loader

import (
	"context"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/model"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	doc        *gltfDocument
	primitives *gltfPrimitiveBuilder
	forceU32   bool
	logger     *log.Logger
}

// gltfMeshExtractor builds runtime meshes: every primitive of a glTF mesh is decoded and then
// merged into one interleaved vertex buffer and one index buffer.
type gltfMeshExtractor interface {
	// ExtractMesh builds the runtime mesh for one glTF mesh index.
	//
	// Parameters:
	//   - ctx: cancels buffer resolution
	//   - meshIndex: the glTF mesh index
	//
	// Returns:
	//   - *model.Mesh: the merged mesh
	//   - error: error if any primitive fails to build or merge
	ExtractMesh(ctx context.Context, meshIndex int) (*model.Mesh, error)

	// ExtractAllMeshes builds every mesh in document order.
	//
	// Parameters:
	//   - ctx: cancels buffer resolution
	//
	// Returns:
	//   - []*model.Mesh: the meshes, indexed like the document
	//   - error: the first failure; no partial result is returned
	ExtractAllMeshes(ctx context.Context) ([]*model.Mesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a mesh extractor.
//
// Parameters:
//   - doc: the document
//   - primitives: the primitive builder carrying the resolved and default materials
//   - forceU32: always emit 32-bit indices
//   - logger: the loader logger
//
// Returns:
//   - gltfMeshExtractor: the extractor
func newGLTFMeshExtractor(doc *gltfDocument, primitives *gltfPrimitiveBuilder, forceU32 bool, logger *log.Logger) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{
		doc:        doc,
		primitives: primitives,
		forceU32:   forceU32,
		logger:     logger,
	}
}

func (e *gltfMeshExtractorImpl) ExtractMesh(ctx context.Context, meshIndex int) (*model.Mesh, error) {
	if meshIndex < 0 || meshIndex >= len(e.doc.Meshes) {
		return nil, newFormatErrorf(fmt.Sprintf("mesh %d", meshIndex), errIndexOutOfRange, "document has %d meshes", len(e.doc.Meshes))
	}
	gm := &e.doc.Meshes[meshIndex]
	if len(gm.Primitives) == 0 {
		return nil, newFormatError(fmt.Sprintf("mesh %d", meshIndex), fmt.Errorf("mesh has no primitives"))
	}

	prims := make([]*gltfRuntimePrimitive, len(gm.Primitives))
	for i := range gm.Primitives {
		p, err := e.primitives.Build(ctx, meshIndex, i, &gm.Primitives[i])
		if err != nil {
			return nil, err
		}
		prims[i] = p
	}

	name := common.Coalesce(gm.Name, fmt.Sprintf("mesh_%d", meshIndex))

	mesh, err := gltfMergePrimitives(name, prims, e.forceU32)
	if err != nil {
		return nil, fmt.Errorf("mesh %d: %w", meshIndex, err)
	}
	e.logger.Debug("mesh built", "mesh", meshIndex, "name", name, "vertices", mesh.VertexCount,
		"stride", mesh.Stride(), "submeshes", len(mesh.SubMeshes))
	return mesh, nil
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes(ctx context.Context) ([]*model.Mesh, error) {
	meshes := make([]*model.Mesh, len(e.doc.Meshes))
	for i := range e.doc.Meshes {
		m, err := e.ExtractMesh(ctx, i)
		if err != nil {
			return nil, err
		}
		meshes[i] = m
	}
	return meshes, nil
}

// --- Interleaving ---

// gltfMergePrimitives folds the primitives of one mesh into a single interleaved vertex buffer
// and a single index buffer.
//
// The layout is the union of the optional attributes present in any primitive: a mesh where
// one primitive has COLOR_0 stores color for every vertex, white where the source had none.
// Indices are rebased by each primitive's vertex offset and stored absolute. The index buffer is
// 16-bit while every absolute index fits, 32-bit otherwise or when forceU32 is set.
//
// Parameters:
//   - name: the mesh name
//   - prims: the decoded primitives in document order
//   - forceU32: always emit 32-bit indices
//
// Returns:
//   - *model.Mesh: the merged mesh
//   - error: *FormatError on mismatched skin attributes or out-of-range indices
func gltfMergePrimitives(name string, prims []*gltfRuntimePrimitive, forceU32 bool) (*model.Mesh, error) {
	var hasTangent, hasColor, hasSkin bool
	totalVertices, totalIndices := 0, 0
	anyIndexed := false
	for _, p := range prims {
		hasTangent = hasTangent || p.Has(model.SemanticTangent)
		hasColor = hasColor || p.Has(model.SemanticColor0)
		hasSkin = hasSkin || p.Has(model.SemanticJoints0) || p.Has(model.SemanticWeights0)
		totalVertices += p.VertexCount
		if p.Indices != nil {
			anyIndexed = true
			totalIndices += p.IndexCount
		}
	}

	layout := model.NewVertexLayout(hasTangent, hasColor)
	floatsPerVertex := layout.Stride / 4

	mesh := &model.Mesh{
		Name:        name,
		Layout:      layout,
		Vertices:    make([]float32, totalVertices*floatsPerVertex),
		VertexCount: totalVertices,
		SubMeshes:   make([]model.SubMesh, 0, len(prims)),
		Bounds:      model.EmptyBoundingBox(),
	}

	if hasSkin {
		skin, err := gltfAllocateSkin(prims, totalVertices)
		if err != nil {
			return nil, err
		}
		mesh.Skin = skin
	}

	if anyIndexed {
		format := wgpu.IndexFormatUint16
		// 0xFFFF is the strip restart value, so a u16 buffer tops out at index 0xFFFE.
		if forceU32 || totalVertices > math.MaxUint16 {
			format = wgpu.IndexFormatUint32
		}
		mesh.Indices = model.NewIndexBuffer(format, totalIndices)
	}

	vertexOffset, indexOffset := 0, 0
	for i, p := range prims {
		var local []uint32
		if p.Indices != nil {
			var err error
			local, err = gltfIndicesToUint32(p.Indices, p.VertexCount)
			if err != nil {
				return nil, newFormatError(fmt.Sprintf("primitive %d indices", i), err)
			}
		}

		gltfWriteVertices(mesh.Vertices, layout, vertexOffset, p, local)
		if mesh.Skin != nil {
			gltfWriteSkin(mesh.Skin, vertexOffset, p)
		}

		sub := model.SubMesh{
			Material:     p.Material,
			Topology:     p.Topology,
			VertexOffset: vertexOffset,
			VertexCount:  p.VertexCount,
			Bounds:       p.Bounds,
		}
		if local != nil {
			for k, idx := range local {
				mesh.Indices.Set(indexOffset+k, idx+uint32(vertexOffset))
			}
			sub.Indexed = true
			sub.DrawCount = len(local)
			sub.DrawOffset = indexOffset
			indexOffset += len(local)
		} else {
			sub.DrawCount = p.VertexCount
			sub.DrawOffset = vertexOffset
		}

		mesh.SubMeshes = append(mesh.SubMeshes, sub)
		mesh.Bounds = mesh.Bounds.Union(p.Bounds)
		vertexOffset += p.VertexCount
	}

	if hasTangent {
		mesh.Defines = append(mesh.Defines, model.DefineVertexTangent)
	}
	if hasColor {
		mesh.Defines = append(mesh.Defines, model.DefineVertexColor)
	}
	if hasSkin {
		mesh.Defines = append(mesh.Defines, model.DefineSkinning)
	}
	return mesh, nil
}

// gltfAllocateSkin sizes the separate joints/weights buffer. Every primitive must declare both
// JOINTS_0 and WEIGHTS_0 or neither; primitives with neither get zero weights.
func gltfAllocateSkin(prims []*gltfRuntimePrimitive, totalVertices int) ([]float32, error) {
	for i, p := range prims {
		joints, weights := 0, 0
		if a, ok := p.Attributes[model.SemanticJoints0]; ok {
			joints = a.View.Components.Len()
		}
		if a, ok := p.Attributes[model.SemanticWeights0]; ok {
			weights = a.View.Components.Len()
		}
		if joints != weights {
			return nil, newFormatErrorf(fmt.Sprintf("primitive %d", i), errSkinLengthMismatch,
				"JOINTS_0 has %d components, WEIGHTS_0 has %d", joints, weights)
		}
	}
	return make([]float32, totalVertices*model.SkinVertexStride/4), nil
}

// gltfWriteVertices copies one primitive into the interleaved buffer at vertexOffset, converting
// each source attribute to the canonical field by semantic. Missing NORMAL and TANGENT values are
// generated for triangle topologies; missing COLOR_0 is white.
func gltfWriteVertices(dst []float32, layout model.VertexLayout, vertexOffset int, p *gltfRuntimePrimitive, indices []uint32) {
	floatsPerVertex := layout.Stride / 4
	base := func(i int) int { return (vertexOffset + i) * floatsPerVertex }

	pos := p.Attributes[model.SemanticPosition].View
	positions := make([]mgl32.Vec3, p.VertexCount)
	for i := range positions {
		positions[i] = mgl32.Vec3{pos.Float(i, 0), pos.Float(i, 1), pos.Float(i, 2)}
		copy(dst[base(i)+model.PositionOffset/4:], positions[i][:])
	}

	var normals []mgl32.Vec3
	if a, ok := p.Attributes[model.SemanticNormal]; ok {
		normals = make([]mgl32.Vec3, p.VertexCount)
		for i := range normals {
			normals[i] = mgl32.Vec3{a.View.Float(i, 0), a.View.Float(i, 1), a.View.Float(i, 2)}
		}
	} else if tris := gltfTriangleList(p, indices); tris != nil {
		normals = gltfGenerateNormals(positions, tris)
	}
	for i, n := range normals {
		copy(dst[base(i)+model.NormalOffset/4:], n[:])
	}

	var uvs []mgl32.Vec2
	if a, ok := p.Attributes[model.SemanticTexCoord0]; ok {
		uvs = make([]mgl32.Vec2, p.VertexCount)
		for i := range uvs {
			uvs[i] = mgl32.Vec2{a.View.Float(i, 0), a.View.Float(i, 1)}
			copy(dst[base(i)+model.TexCoordOffset/4:], uvs[i][:])
		}
	}

	if field, ok := layout.Attribute(model.SemanticTangent); ok {
		off := field.Offset / 4
		if a, ok := p.Attributes[model.SemanticTangent]; ok {
			for i := 0; i < p.VertexCount; i++ {
				for c := 0; c < 4; c++ {
					dst[base(i)+off+c] = a.View.Float(i, c)
				}
			}
		} else if tris := gltfTriangleList(p, indices); tris != nil && normals != nil && uvs != nil {
			for i, t := range gltfGenerateTangents(positions, normals, uvs, tris) {
				copy(dst[base(i)+off:], t[:])
			}
		}
	}

	if field, ok := layout.Attribute(model.SemanticColor0); ok {
		off := field.Offset / 4
		a, has := p.Attributes[model.SemanticColor0]
		for i := 0; i < p.VertexCount; i++ {
			rgba := [4]float32{1, 1, 1, 1}
			if has {
				for c := 0; c < a.ComponentCount; c++ {
					rgba[c] = a.View.Float(i, c)
				}
			}
			copy(dst[base(i)+off:], rgba[:])
		}
	}
}

// gltfWriteSkin copies JOINTS_0 then WEIGHTS_0 of one primitive into the skin buffer.
func gltfWriteSkin(dst []float32, vertexOffset int, p *gltfRuntimePrimitive) {
	joints, ok := p.Attributes[model.SemanticJoints0]
	if !ok {
		return
	}
	weights := p.Attributes[model.SemanticWeights0]
	floatsPerVertex := model.SkinVertexStride / 4
	for i := 0; i < p.VertexCount; i++ {
		b := (vertexOffset + i) * floatsPerVertex
		for c := 0; c < 4; c++ {
			dst[b+c] = joints.View.Float(i, c)
			dst[b+4+c] = weights.View.Float(i, c)
		}
	}
}
