package model

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Canonical interleaved vertex layout. The base fields are always present; tangent and
// color are appended in that order when any primitive of the mesh declares them.
const (
	PositionOffset = 0  // vec3<f32>
	NormalOffset   = 12 // vec3<f32>
	TexCoordOffset = 24 // vec2<f32>

	// BaseVertexStride is the stride of a mesh with no optional attributes.
	BaseVertexStride = 32
	// TangentSize is the byte size of the optional TANGENT field (vec4<f32>).
	TangentSize = 16
	// ColorSize is the byte size of the optional COLOR_0 field (vec4<f32>).
	ColorSize = 16

	// SkinVertexStride is the stride of the separate skin buffer: JOINTS_0 then WEIGHTS_0, vec4<f32> each.
	SkinVertexStride = 32
)

// Shader locations are fixed per semantic so a pipeline compiled for one mesh variant
// keeps its bindings valid for every other variant.
const (
	LocationPosition  uint32 = 0
	LocationNormal    uint32 = 1
	LocationTexCoord0 uint32 = 2
	LocationTangent   uint32 = 3
	LocationColor0    uint32 = 4
	LocationJoints0   uint32 = 5
	LocationWeights0  uint32 = 6
)

// MeshVertexAttribute describes one field of an interleaved vertex buffer.
type MeshVertexAttribute struct {
	Semantic       VertexSemantic
	Format         wgpu.VertexFormat
	Offset         int
	ComponentCount int
	ShaderLocation uint32
}

// VertexLayout is the fixed layout of one interleaved vertex buffer.
type VertexLayout struct {
	// Stride is the byte size of one vertex.
	Stride int

	// Attributes are the fields in offset order.
	Attributes []MeshVertexAttribute
}

// NewVertexLayout builds the canonical layout for a mesh.
//
// Parameters:
//   - hasTangent: true if any primitive of the mesh declares TANGENT
//   - hasColor: true if any primitive of the mesh declares COLOR_0
//
// Returns:
//   - VertexLayout: the layout (stride 32, 48 or 64)
func NewVertexLayout(hasTangent, hasColor bool) VertexLayout {
	l := VertexLayout{
		Attributes: []MeshVertexAttribute{
			{Semantic: SemanticPosition, Format: wgpu.VertexFormatFloat32x3, Offset: PositionOffset, ComponentCount: 3, ShaderLocation: LocationPosition},
			{Semantic: SemanticNormal, Format: wgpu.VertexFormatFloat32x3, Offset: NormalOffset, ComponentCount: 3, ShaderLocation: LocationNormal},
			{Semantic: SemanticTexCoord0, Format: wgpu.VertexFormatFloat32x2, Offset: TexCoordOffset, ComponentCount: 2, ShaderLocation: LocationTexCoord0},
		},
		Stride: BaseVertexStride,
	}
	if hasTangent {
		l.Attributes = append(l.Attributes, MeshVertexAttribute{
			Semantic: SemanticTangent, Format: wgpu.VertexFormatFloat32x4, Offset: l.Stride, ComponentCount: 4, ShaderLocation: LocationTangent,
		})
		l.Stride += TangentSize
	}
	if hasColor {
		l.Attributes = append(l.Attributes, MeshVertexAttribute{
			Semantic: SemanticColor0, Format: wgpu.VertexFormatFloat32x4, Offset: l.Stride, ComponentCount: 4, ShaderLocation: LocationColor0,
		})
		l.Stride += ColorSize
	}
	return l
}

// SkinVertexLayout returns the layout of the separate joints/weights buffer.
// Joint indices are stored as float32 values.
//
// Returns:
//   - VertexLayout: the skin buffer layout (stride 32)
func SkinVertexLayout() VertexLayout {
	return VertexLayout{
		Stride: SkinVertexStride,
		Attributes: []MeshVertexAttribute{
			{Semantic: SemanticJoints0, Format: wgpu.VertexFormatFloat32x4, Offset: 0, ComponentCount: 4, ShaderLocation: LocationJoints0},
			{Semantic: SemanticWeights0, Format: wgpu.VertexFormatFloat32x4, Offset: 16, ComponentCount: 4, ShaderLocation: LocationWeights0},
		},
	}
}

// Attribute looks up the field for a semantic.
//
// Parameters:
//   - semantic: the semantic to look up
//
// Returns:
//   - MeshVertexAttribute: the field description
//   - bool: false if the layout does not carry the semantic
func (l VertexLayout) Attribute(semantic VertexSemantic) (MeshVertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Semantic == semantic {
			return a, true
		}
	}
	return MeshVertexAttribute{}, false
}

// Has reports whether the layout carries the semantic.
func (l VertexLayout) Has(semantic VertexSemantic) bool {
	_, ok := l.Attribute(semantic)
	return ok
}

// WGPU converts the layout into a wgpu.VertexBufferLayout for pipeline creation.
//
// Returns:
//   - wgpu.VertexBufferLayout: the per-vertex buffer layout
func (l VertexLayout) WGPU() wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, 0, len(l.Attributes))
	for _, a := range l.Attributes {
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         a.Format,
			Offset:         uint64(a.Offset),
			ShaderLocation: a.ShaderLocation,
		})
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(l.Stride),
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}
}

// WGSL renders the layout as a WGSL vertex input struct, e.g. for prepending to a shader module.
//
// Parameters:
//   - structName: the WGSL struct name
//
// Returns:
//   - string: the WGSL struct declaration
func (l VertexLayout) WGSL(structName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", structName)
	for _, a := range l.Attributes {
		fmt.Fprintf(&sb, "    @location(%d) %s: %s,\n", a.ShaderLocation, wgslFieldName(a.Semantic), wgslFieldType(a.ComponentCount))
	}
	sb.WriteString("};\n")
	return sb.String()
}

func wgslFieldName(s VertexSemantic) string {
	switch s {
	case SemanticPosition:
		return "position"
	case SemanticNormal:
		return "normal"
	case SemanticTexCoord0:
		return "uv"
	case SemanticTangent:
		return "tangent"
	case SemanticColor0:
		return "color"
	case SemanticJoints0:
		return "joints"
	case SemanticWeights0:
		return "weights"
	default:
		return "unknown"
	}
}

func wgslFieldType(components int) string {
	if components == 1 {
		return "f32"
	}
	return fmt.Sprintf("vec%d<f32>", components)
}
