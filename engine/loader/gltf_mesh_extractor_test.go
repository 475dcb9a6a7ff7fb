package loader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

func extractMeshes(t *testing.T, b *testDocBuilder, forceU32 bool) ([]*model.Mesh, error) {
	t.Helper()
	doc, bin := b.build()
	res := newGLTFResolver(doc, bin, "", nil, testLogger())
	prims := &gltfPrimitiveBuilder{
		doc:             doc,
		res:             res,
		defaultMaterial: material.NewDefaultMaterial(),
		logger:          testLogger(),
	}
	return newGLTFMeshExtractor(doc, prims, forceU32, testLogger()).ExtractAllMeshes(context.Background())
}

func shifted(positions []float32, dx float32) []float32 {
	out := append([]float32(nil), positions...)
	for i := 0; i < len(out); i += 3 {
		out[i] += dx
	}
	return out
}

func equalFloats(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !mgl32.FloatEqualThreshold(a[i], b[i], 1e-5) {
			return false
		}
	}
	return true
}

func TestExtractMeshBaseLayout(t *testing.T) {
	b := newTestDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, triangle)
	b.mesh("tri", gltfPrimitive{Attributes: map[string]int{"POSITION": pos}})

	meshes, err := extractMeshes(t, b, false)
	if err != nil {
		t.Fatalf("ExtractAllMeshes failed: %v", err)
	}
	m := meshes[0]

	if m.Stride() != model.BaseVertexStride {
		t.Errorf("Stride() = %d, want %d", m.Stride(), model.BaseVertexStride)
	}
	if m.VertexCount != 3 || len(m.Vertices) != 3*8 {
		t.Errorf("VertexCount = %d, len(Vertices) = %d, want 3 and 24", m.VertexCount, len(m.Vertices))
	}
	if m.Indices != nil {
		t.Error("non-indexed mesh has an index buffer")
	}
	if len(m.Defines) != 0 {
		t.Errorf("Defines = %v, want none", m.Defines)
	}

	sub := m.SubMeshes[0]
	if sub.Indexed || sub.DrawCount != 3 || sub.DrawOffset != 0 {
		t.Errorf("sub-mesh = %+v, want a non-indexed draw of 3 vertices", sub)
	}
	if sub.Material == nil || sub.Material.Name() != "default" {
		t.Error("primitive without material did not get the default material")
	}
	if got := m.Attribute(model.SemanticNormal, 0); !equalFloats(got, []float32{0, 0, 1}) {
		t.Errorf("generated normal = %v, want [0 0 1]", got)
	}
}

func TestExtractMeshColorUnion(t *testing.T) {
	b := newTestDocBuilder()
	pos0 := b.floats(gltfAccessorTypeVec3, triangle)
	idx0 := b.u16([]uint16{0, 1, 2})
	pos1 := b.floats(gltfAccessorTypeVec3, shifted(triangle, 2))
	col1 := b.floats(gltfAccessorTypeVec4, []float32{1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1})
	idx1 := b.u16([]uint16{0, 1, 2})
	b.mesh("",
		gltfPrimitive{Attributes: map[string]int{"POSITION": pos0}, Indices: intPtr(idx0)},
		gltfPrimitive{Attributes: map[string]int{"POSITION": pos1, "COLOR_0": col1}, Indices: intPtr(idx1)},
	)

	meshes, err := extractMeshes(t, b, false)
	if err != nil {
		t.Fatalf("ExtractAllMeshes failed: %v", err)
	}
	m := meshes[0]

	if m.Name != "mesh_0" {
		t.Errorf("Name = %q, want mesh_0", m.Name)
	}
	if m.Stride() != 48 {
		t.Errorf("Stride() = %d, want 48", m.Stride())
	}
	if !m.HasDefine(model.DefineVertexColor) {
		t.Errorf("Defines = %v, want %s", m.Defines, model.DefineVertexColor)
	}
	if got := m.Attribute(model.SemanticColor0, 0); !equalFloats(got, []float32{1, 1, 1, 1}) {
		t.Errorf("color of uncolored primitive = %v, want white", got)
	}
	if got := m.Attribute(model.SemanticColor0, 4); !equalFloats(got, []float32{1, 0, 0, 1}) {
		t.Errorf("color of colored primitive = %v, want red", got)
	}

	if m.Indices.Format() != wgpu.IndexFormatUint16 {
		t.Errorf("index format = %v, want Uint16", m.Indices.Format())
	}
	for i, want := range []uint32{0, 1, 2, 3, 4, 5} {
		if got := m.Indices.At(i); got != want {
			t.Errorf("index %d = %d, want %d (rebased)", i, got, want)
		}
	}

	second := m.SubMeshes[1]
	if !second.Indexed || second.DrawOffset != 3 || second.DrawCount != 3 || second.VertexOffset != 3 {
		t.Errorf("second sub-mesh = %+v", second)
	}

	wantBounds := model.BoundingBox{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{3, 1, 0}}
	if m.Bounds != wantBounds {
		t.Errorf("Bounds = %+v, want %+v", m.Bounds, wantBounds)
	}
}

func TestExtractMeshForceUint32(t *testing.T) {
	b := newTestDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, triangle)
	idx := b.u8(gltfAccessorTypeScalar, []uint8{0, 1, 2})
	b.mesh("", gltfPrimitive{Attributes: map[string]int{"POSITION": pos}, Indices: intPtr(idx)})

	meshes, err := extractMeshes(t, b, true)
	if err != nil {
		t.Fatalf("ExtractAllMeshes failed: %v", err)
	}
	if f := meshes[0].Indices.Format(); f != wgpu.IndexFormatUint32 {
		t.Errorf("index format = %v, want Uint32", f)
	}
}

func syntheticPrimitive(vertices int, indices []uint32) *gltfRuntimePrimitive {
	view := &gltfAccessorView{
		Components:     make(f32Components, vertices*3),
		ComponentType:  gltfComponentTypeFloat,
		ComponentCount: 3,
		Count:          vertices,
		ByteStride:     12,
	}
	return &gltfRuntimePrimitive{
		Attributes: map[model.VertexSemantic]*gltfAttribute{
			model.SemanticPosition: {Semantic: model.SemanticPosition, View: view, ComponentCount: 3, ComponentType: gltfComponentTypeFloat, ByteStride: 12},
		},
		VertexCount: vertices,
		Indices:     u32Components(indices),
		IndexCount:  len(indices),
		Bounds:      gltfPositionBounds(view),
		Material:    material.NewDefaultMaterial(),
		Topology:    model.TopologyPoints,
	}
}

func TestMergeWidensIndicesPast16Bits(t *testing.T) {
	fits, err := gltfMergePrimitives("fits", []*gltfRuntimePrimitive{syntheticPrimitive(65535, []uint32{0, 65534})}, false)
	if err != nil {
		t.Fatalf("gltfMergePrimitives failed: %v", err)
	}
	if f := fits.Indices.Format(); f != wgpu.IndexFormatUint16 {
		t.Errorf("65535 vertices: format = %v, want Uint16", f)
	}

	wide, err := gltfMergePrimitives("wide", []*gltfRuntimePrimitive{
		syntheticPrimitive(3, []uint32{0, 1, 2}),
		syntheticPrimitive(65533, []uint32{0, 65532}),
	}, false)
	if err != nil {
		t.Fatalf("gltfMergePrimitives failed: %v", err)
	}
	if f := wide.Indices.Format(); f != wgpu.IndexFormatUint32 {
		t.Fatalf("65536 vertices: format = %v, want Uint32", f)
	}
	if got := wide.Indices.At(4); got != 65535 {
		t.Errorf("rebased index = %d, want 65535", got)
	}
}

func TestMergeStripKeepsRestartValueOutOfU16(t *testing.T) {
	strip := syntheticPrimitive(65536, []uint32{65533, 65534, 65535})
	strip.Topology = model.TopologyTriangleStrip

	mesh, err := gltfMergePrimitives("strip", []*gltfRuntimePrimitive{strip}, false)
	if err != nil {
		t.Fatalf("gltfMergePrimitives failed: %v", err)
	}
	if f := mesh.Indices.Format(); f != wgpu.IndexFormatUint32 {
		t.Fatalf("format = %v, want Uint32", f)
	}
	if got := mesh.Indices.At(2); got != 0xFFFF {
		t.Errorf("last index = %#x, want 0xffff", got)
	}
	if mesh.SubMeshes[0].DrawCount != 3 {
		t.Errorf("DrawCount = %d, want 3", mesh.SubMeshes[0].DrawCount)
	}
}

func TestMergeRejectsOutOfRangeIndex(t *testing.T) {
	_, err := gltfMergePrimitives("bad", []*gltfRuntimePrimitive{syntheticPrimitive(3, []uint32{0, 1, 3})}, false)
	var fe *FormatError
	if !errors.As(err, &fe) || !errors.Is(err, errIndexOutOfRange) {
		t.Fatalf("error = %v, want *FormatError wrapping errIndexOutOfRange", err)
	}
}

func TestExtractMeshSkin(t *testing.T) {
	b := newTestDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, triangle)
	joints := b.u8(gltfAccessorTypeVec4, []uint8{0, 0, 0, 0, 1, 0, 0, 0, 1, 2, 0, 0})
	weights := b.floats(gltfAccessorTypeVec4, []float32{1, 0, 0, 0, 1, 0, 0, 0, 0.5, 0.5, 0, 0})
	b.mesh("skinned", gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "JOINTS_0": joints, "WEIGHTS_0": weights}})

	meshes, err := extractMeshes(t, b, false)
	if err != nil {
		t.Fatalf("ExtractAllMeshes failed: %v", err)
	}
	m := meshes[0]

	if !m.HasDefine(model.DefineSkinning) {
		t.Errorf("Defines = %v, want %s", m.Defines, model.DefineSkinning)
	}
	if len(m.Skin) != 3*model.SkinVertexStride/4 {
		t.Fatalf("len(Skin) = %d, want %d", len(m.Skin), 3*model.SkinVertexStride/4)
	}
	if got := m.Attribute(model.SemanticJoints0, 2); !equalFloats(got, []float32{1, 2, 0, 0}) {
		t.Errorf("joints of vertex 2 = %v", got)
	}
	if got := m.Attribute(model.SemanticWeights0, 2); !equalFloats(got, []float32{0.5, 0.5, 0, 0}) {
		t.Errorf("weights of vertex 2 = %v", got)
	}
	if m.Stride() != model.BaseVertexStride {
		t.Errorf("skin data leaked into the interleaved stride: %d", m.Stride())
	}
}

func TestExtractMeshSkinAttributeMismatch(t *testing.T) {
	b := newTestDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, triangle)
	joints := b.u8(gltfAccessorTypeVec4, make([]uint8, 12))
	b.mesh("", gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "JOINTS_0": joints}})

	_, err := extractMeshes(t, b, false)
	var fe *FormatError
	if !errors.As(err, &fe) || !errors.Is(err, errSkinLengthMismatch) {
		t.Fatalf("error = %v, want *FormatError wrapping errSkinLengthMismatch", err)
	}
}

func TestExtractMeshPrimitiveErrors(t *testing.T) {
	tests := []struct {
		name        string
		prim        func(pos, nrm int) gltfPrimitive
		unsupported bool
	}{
		{
			name: "missing POSITION",
			prim: func(pos, nrm int) gltfPrimitive {
				return gltfPrimitive{Attributes: map[string]int{"NORMAL": nrm}}
			},
		},
		{
			name: "attribute count mismatch",
			prim: func(pos, nrm int) gltfPrimitive {
				return gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "NORMAL": nrm}}
			},
		},
		{
			name: "unknown mode",
			prim: func(pos, nrm int) gltfPrimitive {
				return gltfPrimitive{Attributes: map[string]int{"POSITION": pos}, Mode: intPtr(7)}
			},
		},
		{
			name: "material out of range",
			prim: func(pos, nrm int) gltfPrimitive {
				return gltfPrimitive{Attributes: map[string]int{"POSITION": pos}, Material: intPtr(0)}
			},
		},
		{
			name: "draco compressed",
			prim: func(pos, nrm int) gltfPrimitive {
				return gltfPrimitive{
					Attributes: map[string]int{"POSITION": pos},
					Extensions: map[string]json.RawMessage{gltfExtDraco: json.RawMessage(`{}`)},
				}
			},
			unsupported: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestDocBuilder()
			pos := b.floats(gltfAccessorTypeVec3, triangle)
			nrm := b.floats(gltfAccessorTypeVec3, []float32{0, 0, 1, 0, 0, 1})
			b.mesh("", tt.prim(pos, nrm))

			_, err := extractMeshes(t, b, false)
			if tt.unsupported {
				var ue *UnsupportedFeatureError
				if !errors.As(err, &ue) {
					t.Fatalf("error = %v, want *UnsupportedFeatureError", err)
				}
				return
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
		})
	}
}

func TestExtractMeshIgnoresUnknownAttributes(t *testing.T) {
	b := newTestDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, triangle)
	uv1 := b.floats(gltfAccessorTypeVec2, []float32{0, 0, 1, 0, 0, 1})
	b.mesh("", gltfPrimitive{Attributes: map[string]int{"POSITION": pos, "TEXCOORD_1": uv1}})

	meshes, err := extractMeshes(t, b, false)
	if err != nil {
		t.Fatalf("ExtractAllMeshes failed: %v", err)
	}
	if meshes[0].Stride() != model.BaseVertexStride {
		t.Errorf("Stride() = %d, want %d", meshes[0].Stride(), model.BaseVertexStride)
	}
}

func TestTriangleList(t *testing.T) {
	strip := &gltfRuntimePrimitive{Topology: model.TopologyTriangleStrip, VertexCount: 4}
	if got := gltfTriangleList(strip, nil); !equalUint32(got, []uint32{0, 1, 2, 2, 1, 3}) {
		t.Errorf("strip = %v", got)
	}
	fan := &gltfRuntimePrimitive{Topology: model.TopologyTriangleFan, VertexCount: 4}
	if got := gltfTriangleList(fan, nil); !equalUint32(got, []uint32{0, 1, 2, 0, 2, 3}) {
		t.Errorf("fan = %v", got)
	}
	lines := &gltfRuntimePrimitive{Topology: model.TopologyLines, VertexCount: 4}
	if got := gltfTriangleList(lines, nil); got != nil {
		t.Errorf("lines = %v, want nil", got)
	}
}

func TestGenerateTangents(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	normals := []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uvs := []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}}

	for i, tan := range gltfGenerateTangents(positions, normals, uvs, []uint32{0, 1, 2}) {
		if !tan.ApproxEqual(mgl32.Vec4{1, 0, 0, 1}) {
			t.Errorf("tangent %d = %v, want (1, 0, 0, 1)", i, tan)
		}
	}
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
