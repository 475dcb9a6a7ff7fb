package loader

import (
	"context"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfAttribute is one decoded vertex attribute of a primitive.
type gltfAttribute struct {
	Semantic       model.VertexSemantic
	View           *gltfAccessorView
	ComponentCount int
	ComponentType  int
	ByteStride     int
	ByteOffset     int // always 0: decoded views are tightly packed
	Normalized     bool
}

// gltfRuntimePrimitive is one glTF primitive with decoded, non-interleaved attributes.
// It lives only between the primitive builder and the interleaver.
type gltfRuntimePrimitive struct {
	Attributes  map[model.VertexSemantic]*gltfAttribute
	VertexCount int

	// Indices is nil for non-indexed primitives.
	Indices    componentBuffer
	IndexCount int

	Bounds   model.BoundingBox
	Material material.Material
	Topology model.Topology
}

// Has reports whether the primitive declares the semantic.
func (p *gltfRuntimePrimitive) Has(s model.VertexSemantic) bool {
	_, ok := p.Attributes[s]
	return ok
}

// gltfPrimitiveBuilder assembles runtime primitives. The default material is injected
// rather than shared globally.
type gltfPrimitiveBuilder struct {
	doc             *gltfDocument
	res             gltfResolver
	materials       []material.Material
	defaultMaterial material.Material
	logger          *log.Logger
}

// gltfExpectedComponents lists the component counts each semantic accepts.
var gltfExpectedComponents = map[model.VertexSemantic][]int{
	model.SemanticPosition:  {3},
	model.SemanticNormal:    {3},
	model.SemanticTexCoord0: {2},
	model.SemanticTangent:   {4},
	model.SemanticColor0:    {3, 4},
	model.SemanticJoints0:   {4},
	model.SemanticWeights0:  {4},
}

// Build decodes every attribute and the index list of one primitive and resolves its material.
//
// Parameters:
//   - ctx: cancels buffer resolution
//   - meshIndex: the owning mesh index (for error context)
//   - primIndex: the primitive index within the mesh
//   - prim: the glTF primitive
//
// Returns:
//   - *gltfRuntimePrimitive: the decoded primitive
//   - error: error if any accessor fails to decode or the primitive is malformed
func (b *gltfPrimitiveBuilder) Build(ctx context.Context, meshIndex, primIndex int, prim *gltfPrimitive) (*gltfRuntimePrimitive, error) {
	op := fmt.Sprintf("mesh %d primitive %d", meshIndex, primIndex)

	if _, ok := prim.Extensions[gltfExtDraco]; ok {
		return nil, newUnsupportedError(op, fmt.Errorf("%w: %s", errRequiredExtension, gltfExtDraco))
	}
	if len(prim.Targets) > 0 {
		b.logger.Debug("morph targets ignored", "mesh", meshIndex, "primitive", primIndex, "targets", len(prim.Targets))
	}

	out := &gltfRuntimePrimitive{
		Attributes: make(map[model.VertexSemantic]*gltfAttribute, len(prim.Attributes)),
		Topology:   model.TopologyTriangles,
		Material:   b.defaultMaterial,
	}

	if prim.Mode != nil {
		if *prim.Mode < int(model.TopologyPoints) || *prim.Mode > int(model.TopologyTriangleFan) {
			return nil, newFormatError(op, fmt.Errorf("unknown primitive mode %d", *prim.Mode))
		}
		out.Topology = model.Topology(*prim.Mode)
	}

	names := make([]string, 0, len(prim.Attributes))
	for name := range prim.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		semantic := model.ParseVertexSemantic(name)
		if semantic == model.SemanticUnknown {
			b.logger.Debug("attribute ignored", "mesh", meshIndex, "primitive", primIndex, "semantic", name)
			continue
		}

		view, err := gltfDecodeAccessor(ctx, b.doc, b.res, prim.Attributes[name])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, name, err)
		}
		if !slices.Contains(gltfExpectedComponents[semantic], view.ComponentCount) {
			return nil, newFormatError(op, fmt.Errorf("%s has %d components", name, view.ComponentCount))
		}

		out.Attributes[semantic] = &gltfAttribute{
			Semantic:       semantic,
			View:           view,
			ComponentCount: view.ComponentCount,
			ComponentType:  view.ComponentType,
			ByteStride:     view.ByteStride,
			Normalized:     view.Normalized,
		}
	}

	pos, ok := out.Attributes[model.SemanticPosition]
	if !ok {
		return nil, newFormatError(op, fmt.Errorf("primitive has no POSITION attribute"))
	}
	out.VertexCount = pos.View.Count
	for s, a := range out.Attributes {
		if a.View.Count != out.VertexCount {
			return nil, newFormatError(op, fmt.Errorf("%s has %d items, POSITION has %d", s, a.View.Count, out.VertexCount))
		}
	}
	out.Bounds = gltfPositionBounds(pos.View)

	if prim.Indices != nil {
		indices, err := gltfDecodeIndices(ctx, b.doc, b.res, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("%s indices: %w", op, err)
		}
		out.Indices = indices
		out.IndexCount = indices.Len()
	}

	if prim.Material != nil {
		idx := *prim.Material
		if idx < 0 || idx >= len(b.materials) {
			return nil, newFormatErrorf(op, errIndexOutOfRange, "material %d, document has %d", idx, len(b.materials))
		}
		out.Material = b.materials[idx]
	}

	return out, nil
}

// gltfPositionBounds returns the accessor-declared min/max box, or computes it when min/max are absent.
func gltfPositionBounds(pos *gltfAccessorView) model.BoundingBox {
	if len(pos.Min) == 3 && len(pos.Max) == 3 {
		return model.BoundingBox{
			Min: mgl32.Vec3{pos.Min[0], pos.Min[1], pos.Min[2]},
			Max: mgl32.Vec3{pos.Max[0], pos.Max[1], pos.Max[2]},
		}
	}
	box := model.EmptyBoundingBox()
	for i := 0; i < pos.Count; i++ {
		box = box.Extend(mgl32.Vec3{pos.Float(i, 0), pos.Float(i, 1), pos.Float(i, 2)})
	}
	return box
}
