package model

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// --- Vertex Semantics ---

// VertexSemantic identifies a per-vertex attribute the loader understands.
// Semantics outside this closed set are ignored during import.
type VertexSemantic int

const (
	// SemanticUnknown marks an attribute name the loader does not consume.
	SemanticUnknown VertexSemantic = iota
	SemanticPosition
	SemanticNormal
	SemanticTexCoord0
	SemanticTangent
	SemanticColor0
	SemanticJoints0
	SemanticWeights0
)

// ParseVertexSemantic maps a glTF attribute name (e.g. "TEXCOORD_0") to its VertexSemantic.
//
// Parameters:
//   - name: the glTF attribute semantic name
//
// Returns:
//   - VertexSemantic: the matching semantic, or SemanticUnknown
func ParseVertexSemantic(name string) VertexSemantic {
	switch name {
	case "POSITION":
		return SemanticPosition
	case "NORMAL":
		return SemanticNormal
	case "TEXCOORD_0":
		return SemanticTexCoord0
	case "TANGENT":
		return SemanticTangent
	case "COLOR_0":
		return SemanticColor0
	case "JOINTS_0":
		return SemanticJoints0
	case "WEIGHTS_0":
		return SemanticWeights0
	default:
		return SemanticUnknown
	}
}

func (s VertexSemantic) String() string {
	switch s {
	case SemanticPosition:
		return "POSITION"
	case SemanticNormal:
		return "NORMAL"
	case SemanticTexCoord0:
		return "TEXCOORD_0"
	case SemanticTangent:
		return "TANGENT"
	case SemanticColor0:
		return "COLOR_0"
	case SemanticJoints0:
		return "JOINTS_0"
	case SemanticWeights0:
		return "WEIGHTS_0"
	default:
		return "UNKNOWN"
	}
}

// --- Topology ---

// Topology is the primitive assembly mode of a sub-mesh. Values match the glTF primitive modes.
type Topology int

const (
	TopologyPoints        Topology = 0
	TopologyLines         Topology = 1
	TopologyLineLoop      Topology = 2
	TopologyLineStrip     Topology = 3
	TopologyTriangles     Topology = 4
	TopologyTriangleStrip Topology = 5
	TopologyTriangleFan   Topology = 6
)

// WGPU converts the topology to its WebGPU equivalent.
// LINE_LOOP and TRIANGLE_FAN have no WebGPU counterpart and report false.
//
// Returns:
//   - wgpu.PrimitiveTopology: the WebGPU topology
//   - bool: false if WebGPU cannot draw this topology directly
func (t Topology) WGPU() (wgpu.PrimitiveTopology, bool) {
	switch t {
	case TopologyPoints:
		return wgpu.PrimitiveTopologyPointList, true
	case TopologyLines:
		return wgpu.PrimitiveTopologyLineList, true
	case TopologyLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, true
	case TopologyTriangles:
		return wgpu.PrimitiveTopologyTriangleList, true
	case TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, true
	default:
		return wgpu.PrimitiveTopologyTriangleList, false
	}
}

func (t Topology) String() string {
	switch t {
	case TopologyPoints:
		return "POINTS"
	case TopologyLines:
		return "LINES"
	case TopologyLineLoop:
		return "LINE_LOOP"
	case TopologyLineStrip:
		return "LINE_STRIP"
	case TopologyTriangles:
		return "TRIANGLES"
	case TopologyTriangleStrip:
		return "TRIANGLE_STRIP"
	case TopologyTriangleFan:
		return "TRIANGLE_FAN"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// --- Shader Variant Defines ---

const (
	// DefineVertexColor is set on meshes whose vertex buffer carries COLOR_0.
	DefineVertexColor = "USE_VERTEX_COLOR"
	// DefineVertexTangent is set on meshes whose vertex buffer carries TANGENT.
	DefineVertexTangent = "USE_VERTEX_TANGENT"
	// DefineSkinning is set on meshes that carry a joints/weights skin buffer.
	DefineSkinning = "USE_SKINNING"
)

// --- Bounds ---

// BoundingBox is an axis-aligned bounding box.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// EmptyBoundingBox returns an inverted box that any Extend or Union call replaces.
//
// Returns:
//   - BoundingBox: the empty box
func EmptyBoundingBox() BoundingBox {
	inf := float32(math.Inf(1))
	return BoundingBox{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether the box contains no points.
func (b BoundingBox) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend returns the box grown to contain p.
func (b BoundingBox) Extend(p mgl32.Vec3) BoundingBox {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// --- Index Buffer ---

// IndexBuffer is a merged index buffer stored at 16 or 32 bits per index.
type IndexBuffer struct {
	format wgpu.IndexFormat
	u16    []uint16
	u32    []uint32
}

// NewIndexBuffer allocates a zeroed index buffer of count indices.
//
// Parameters:
//   - format: wgpu.IndexFormatUint16 or wgpu.IndexFormatUint32
//   - count: number of indices
//
// Returns:
//   - *IndexBuffer: the allocated buffer
func NewIndexBuffer(format wgpu.IndexFormat, count int) *IndexBuffer {
	b := &IndexBuffer{format: format}
	if format == wgpu.IndexFormatUint32 {
		b.u32 = make([]uint32, count)
	} else {
		b.format = wgpu.IndexFormatUint16
		b.u16 = make([]uint16, count)
	}
	return b
}

// Format returns the index width as a WebGPU index format.
func (b *IndexBuffer) Format() wgpu.IndexFormat {
	return b.format
}

// Len returns the number of indices.
func (b *IndexBuffer) Len() int {
	if b.format == wgpu.IndexFormatUint32 {
		return len(b.u32)
	}
	return len(b.u16)
}

// At returns the index at position i.
func (b *IndexBuffer) At(i int) uint32 {
	if b.format == wgpu.IndexFormatUint32 {
		return b.u32[i]
	}
	return uint32(b.u16[i])
}

// Set stores v at position i. Callers guarantee v fits the buffer's width.
func (b *IndexBuffer) Set(i int, v uint32) {
	if b.format == wgpu.IndexFormatUint32 {
		b.u32[i] = v
		return
	}
	b.u16[i] = uint16(v)
}

// Uint16 returns the backing slice of a 16-bit buffer, or nil for a 32-bit buffer.
func (b *IndexBuffer) Uint16() []uint16 {
	return b.u16
}

// Uint32 returns the backing slice of a 32-bit buffer, or nil for a 16-bit buffer.
func (b *IndexBuffer) Uint32() []uint32 {
	return b.u32
}

// Bytes returns a byte view of the index data for GPU upload.
// WARNING: The returned slice shares memory with the buffer - do not modify.
func (b *IndexBuffer) Bytes() []byte {
	if b.format == wgpu.IndexFormatUint32 {
		return common.SliceToBytes(b.u32)
	}
	return common.SliceToBytes(b.u16)
}

// --- Mesh ---

// SubMesh is one draw range of a merged mesh, produced from one glTF primitive.
type SubMesh struct {
	// Material is the resolved material; primitives without one reference the loader's default material.
	Material material.Material

	// Topology is the primitive assembly mode.
	Topology Topology

	// Indexed reports whether this range draws from the mesh index buffer.
	Indexed bool

	// DrawCount is the index count when Indexed, otherwise the vertex count.
	DrawCount int

	// DrawOffset is the first index when Indexed, otherwise the first vertex.
	DrawOffset int

	// VertexOffset is the first vertex of this range in the mesh vertex buffer.
	// Indices are stored absolute, already rebased by this offset.
	VertexOffset int

	// VertexCount is the number of vertices this range contributed.
	VertexCount int

	// Bounds is the primitive's own bounding box.
	Bounds BoundingBox
}

// Mesh is a renderer-ready mesh: one interleaved vertex buffer with a fixed layout,
// an optional merged index buffer and the draw ranges that address them.
// A Mesh is immutable once built by the loader.
type Mesh struct {
	// Name is the glTF mesh name (or "mesh_<index>").
	Name string

	// Layout describes the interleaved vertex buffer.
	Layout VertexLayout

	// Vertices is the interleaved vertex data, VertexCount * Layout.Stride bytes as float32 values.
	Vertices []float32

	// VertexCount is the total number of vertices across all sub-meshes.
	VertexCount int

	// Skin holds JOINTS_0/WEIGHTS_0 per vertex in SkinVertexLayout, or nil for unskinned meshes.
	Skin []float32

	// Indices is the merged index buffer, or nil when no primitive is indexed.
	Indices *IndexBuffer

	// SubMeshes are the draw ranges, in glTF primitive order.
	SubMeshes []SubMesh

	// Bounds is the union of every sub-mesh's bounds.
	Bounds BoundingBox

	// Defines are the shader-variant defines derived from the attributes present.
	Defines []string
}

// Stride returns the byte stride of one interleaved vertex.
func (m *Mesh) Stride() int {
	return m.Layout.Stride
}

// HasDefine reports whether the mesh carries the given shader define.
func (m *Mesh) HasDefine(define string) bool {
	for _, d := range m.Defines {
		if d == define {
			return true
		}
	}
	return false
}

// VertexBytes returns a byte view of the interleaved vertex buffer.
// WARNING: The returned slice shares memory with the mesh - do not modify.
func (m *Mesh) VertexBytes() []byte {
	return common.SliceToBytes(m.Vertices)
}

// SkinBytes returns a byte view of the skin buffer, or nil for unskinned meshes.
func (m *Mesh) SkinBytes() []byte {
	return common.SliceToBytes(m.Skin)
}

// Attribute reads back one vertex attribute from the interleaved buffer.
//
// Parameters:
//   - semantic: the attribute to read
//   - vertex: the absolute vertex index
//
// Returns:
//   - []float32: the attribute components, or nil if the layout lacks the semantic
func (m *Mesh) Attribute(semantic VertexSemantic, vertex int) []float32 {
	layout := m.Layout
	data := m.Vertices
	if semantic == SemanticJoints0 || semantic == SemanticWeights0 {
		layout = SkinVertexLayout()
		data = m.Skin
	}
	attr, ok := layout.Attribute(semantic)
	if !ok || data == nil {
		return nil
	}
	start := (vertex*layout.Stride + attr.Offset) / 4
	return data[start : start+attr.ComponentCount]
}

// --- Skin ---

// Skin binds a mesh to a joint hierarchy: joint node indices plus one inverse-bind matrix per joint.
type Skin struct {
	// Name is the optional glTF skin name.
	Name string

	// Joints are node indices into the source document's nodes array.
	Joints []int

	// InverseBindMatrices holds 16 column-major floats per joint.
	InverseBindMatrices []float32

	// Skeleton is the optional skeleton root node index, carried through unresolved.
	Skeleton *int
}

// Validate checks that the matrix array matches the joint list.
//
// Returns:
//   - error: error if len(InverseBindMatrices) != 16 * len(Joints)
func (s *Skin) Validate() error {
	if len(s.Joints)*16 != len(s.InverseBindMatrices) {
		return fmt.Errorf("skin %q: %d joints need %d matrix floats, got %d",
			s.Name, len(s.Joints), len(s.Joints)*16, len(s.InverseBindMatrices))
	}
	return nil
}

// Matrix returns the inverse-bind matrix of joint i.
func (s *Skin) Matrix(i int) mgl32.Mat4 {
	var m mgl32.Mat4
	copy(m[:], s.InverseBindMatrices[i*16:i*16+16])
	return m
}
