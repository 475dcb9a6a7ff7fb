package material

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureSlot names one of the five optional PBR texture bindings.
type TextureSlot int

const (
	SlotBaseColor TextureSlot = iota
	SlotMetallicRoughness
	SlotNormal
	SlotOcclusion
	SlotEmissive

	textureSlotCount
)

func (s TextureSlot) String() string {
	switch s {
	case SlotBaseColor:
		return "baseColorTexture"
	case SlotMetallicRoughness:
		return "metallicRoughnessTexture"
	case SlotNormal:
		return "normalTexture"
	case SlotOcclusion:
		return "occlusionTexture"
	case SlotEmissive:
		return "emissiveTexture"
	default:
		return "unknownTexture"
	}
}

// AlphaMode is the glTF alpha rendering mode.
type AlphaMode string

const (
	AlphaOpaque AlphaMode = "OPAQUE"
	AlphaMask   AlphaMode = "MASK"
	AlphaBlend  AlphaMode = "BLEND"
)

// Shader-variant defines emitted by materials.
const (
	DefineBaseColorTexture         = "USE_BASE_COLOR_TEXTURE"
	DefineMetallicRoughnessTexture = "USE_METALLIC_ROUGHNESS_TEXTURE"
	DefineNormalTexture            = "USE_NORMAL_TEXTURE"
	DefineOcclusionTexture         = "USE_OCCLUSION_TEXTURE"
	DefineEmissiveTexture          = "USE_EMISSIVE_TEXTURE"
	DefineFullyRough               = "FULLY_ROUGH"
	DefineAlphaCutoff              = "USE_ALPHA_CUTOFF"
)

// Uniform names exposed through Material.Uniform.
const (
	UniformBaseColorFactor   = "baseColorFactor"
	UniformMetallicFactor    = "metallicFactor"
	UniformRoughnessFactor   = "roughnessFactor"
	UniformEmissiveFactor    = "emissiveFactor"
	UniformNormalScale       = "normalScale"
	UniformOcclusionStrength = "occlusionStrength"
	UniformAlphaCutoff       = "alphaCutoff"
)

// ShaderPBR is the base shader identifier of every glTF material.
const ShaderPBR = "pbr"

var slotDefines = [textureSlotCount]string{
	SlotBaseColor:         DefineBaseColorTexture,
	SlotMetallicRoughness: DefineMetallicRoughnessTexture,
	SlotNormal:            DefineNormalTexture,
	SlotOcclusion:         DefineOcclusionTexture,
	SlotEmissive:          DefineEmissiveTexture,
}

// RasterState is the fixed-function state a renderer applies when drawing with a material.
type RasterState struct {
	CullMode     wgpu.CullMode
	FrontFace    wgpu.FrontFace
	Blend        *wgpu.BlendState
	DepthCompare wgpu.CompareFunction
	DepthWrite   bool
}

// Blending reports whether the state enables color blending.
func (r RasterState) Blending() bool {
	return r.Blend != nil
}

// material is the implementation of the Material interface.
type material struct {
	name              string
	shader            string
	baseColor         [4]float32
	metallic          float32
	roughness         float32
	emissive          [3]float32
	normalScale       float32
	occlusionStrength float32
	alphaMode         AlphaMode
	alphaCutoff       float32
	doubleSided       bool
	maskAsBlend       bool
	textures          [textureSlotCount]*common.Texture

	raster  RasterState
	defines []string
}

// Material defines the interface for a runtime material: surface factors, texture bindings,
// the shader-variant defines derived from them, and the raster state derived from the
// alpha mode and double-sidedness. A Material is immutable once constructed.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Shader retrieves the base shader identifier the defines apply to.
	//
	// Returns:
	//   - string: the shader identifier
	Shader() string

	// BaseColor retrieves the base color factor.
	//
	// Returns:
	//   - [4]float32: the base color as RGBA values
	BaseColor() [4]float32

	// Metallic retrieves the metallic factor.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// Emissive retrieves the emissive factor.
	//
	// Returns:
	//   - [3]float32: the emissive RGB factor
	Emissive() [3]float32

	// AlphaMode retrieves the alpha rendering mode.
	//
	// Returns:
	//   - AlphaMode: OPAQUE, MASK or BLEND
	AlphaMode() AlphaMode

	// DoubleSided reports whether back faces are rendered.
	//
	// Returns:
	//   - bool: true if culling is disabled
	DoubleSided() bool

	// Texture retrieves the texture bound to a slot.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - *common.Texture: the texture, or nil if the slot is empty
	Texture(slot TextureSlot) *common.Texture

	// Uniform retrieves a named uniform value.
	//
	// Parameters:
	//   - name: one of the Uniform* names
	//
	// Returns:
	//   - []float32: the value components
	//   - bool: false if the name is unknown
	Uniform(name string) ([]float32, bool)

	// UniformNames retrieves the names of every uniform the material exposes.
	//
	// Returns:
	//   - []string: the uniform names
	UniformNames() []string

	// Params packs the uniforms into the GPU uniform block layout.
	//
	// Returns:
	//   - MaterialParams: the uniform block
	Params() MaterialParams

	// RasterState retrieves the cull/blend/depth state.
	//
	// Returns:
	//   - RasterState: the raster state
	RasterState() RasterState

	// Defines retrieves the shader-variant defines in a stable order.
	//
	// Returns:
	//   - []string: the defines
	Defines() []string

	// HasDefine reports whether the material carries a define.
	//
	// Parameters:
	//   - define: the define to look for
	//
	// Returns:
	//   - bool: true if present
	HasDefine(define string) bool
}

var _ Material = &material{}

// NewMaterial creates a new Material configured with the provided options.
// Unset factors take the glTF defaults: white base color, metallic 1, roughness 1, no emission,
// OPAQUE, single-sided.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		shader:            ShaderPBR,
		baseColor:         [4]float32{1, 1, 1, 1},
		metallic:          1.0,
		roughness:         1.0,
		normalScale:       1.0,
		occlusionStrength: 1.0,
		alphaMode:         AlphaOpaque,
		alphaCutoff:       0.5,
	}
	for _, opt := range options {
		opt(m)
	}
	m.defines = m.deriveDefines()
	m.raster = m.deriveRasterState()
	return m
}

// NewDefaultMaterial creates the material substituted for primitives with no material reference.
//
// Returns:
//   - Material: an untextured, opaque, white material
func NewDefaultMaterial() Material {
	return NewMaterial(WithName("default"))
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Shader() string {
	return m.shader
}

func (m *material) BaseColor() [4]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) Emissive() [3]float32 {
	return m.emissive
}

func (m *material) AlphaMode() AlphaMode {
	return m.alphaMode
}

func (m *material) DoubleSided() bool {
	return m.doubleSided
}

func (m *material) Texture(slot TextureSlot) *common.Texture {
	if slot < 0 || slot >= textureSlotCount {
		return nil
	}
	return m.textures[slot]
}

func (m *material) Uniform(name string) ([]float32, bool) {
	switch name {
	case UniformBaseColorFactor:
		return m.baseColor[:], true
	case UniformMetallicFactor:
		return []float32{m.metallic}, true
	case UniformRoughnessFactor:
		return []float32{m.roughness}, true
	case UniformEmissiveFactor:
		return m.emissive[:], true
	case UniformNormalScale:
		return []float32{m.normalScale}, true
	case UniformOcclusionStrength:
		return []float32{m.occlusionStrength}, true
	case UniformAlphaCutoff:
		if m.HasDefine(DefineAlphaCutoff) {
			return []float32{m.alphaCutoff}, true
		}
	}
	return nil, false
}

func (m *material) UniformNames() []string {
	names := []string{
		UniformBaseColorFactor,
		UniformMetallicFactor,
		UniformRoughnessFactor,
		UniformEmissiveFactor,
		UniformNormalScale,
		UniformOcclusionStrength,
	}
	if m.HasDefine(DefineAlphaCutoff) {
		names = append(names, UniformAlphaCutoff)
	}
	return names
}

func (m *material) Params() MaterialParams {
	p := MaterialParams{
		BaseColorFactor:   m.baseColor,
		EmissiveFactor:    m.emissive,
		MetallicFactor:    m.metallic,
		RoughnessFactor:   m.roughness,
		NormalScale:       m.normalScale,
		OcclusionStrength: m.occlusionStrength,
	}
	if m.HasDefine(DefineAlphaCutoff) {
		p.AlphaCutoff = m.alphaCutoff
	}
	return p
}

func (m *material) RasterState() RasterState {
	return m.raster
}

func (m *material) Defines() []string {
	return m.defines
}

func (m *material) HasDefine(define string) bool {
	for _, d := range m.defines {
		if d == define {
			return true
		}
	}
	return false
}

// --- Helper Functions ---

// deriveDefines lists one define per bound texture slot, in slot order, followed by the
// FULLY_ROUGH hint and the alpha-test define.
func (m *material) deriveDefines() []string {
	defines := make([]string, 0, textureSlotCount+2)
	for slot, tex := range m.textures {
		if tex != nil {
			defines = append(defines, slotDefines[slot])
		}
	}
	if m.textures[SlotMetallicRoughness] == nil && m.roughness == 1.0 {
		defines = append(defines, DefineFullyRough)
	}
	if m.alphaMode == AlphaMask && !m.maskAsBlend {
		defines = append(defines, DefineAlphaCutoff)
	}
	return defines
}

// deriveRasterState maps doubleSided to culling and alphaMode to blending and depth writes.
// MASK is an alpha test unless maskAsBlend restores the blended approximation.
func (m *material) deriveRasterState() RasterState {
	r := RasterState{
		CullMode:     wgpu.CullModeBack,
		FrontFace:    wgpu.FrontFaceCCW,
		DepthCompare: wgpu.CompareFunctionLess,
		DepthWrite:   true,
	}
	if m.doubleSided {
		r.CullMode = wgpu.CullModeNone
	}

	blend := m.alphaMode == AlphaBlend || (m.alphaMode == AlphaMask && m.maskAsBlend)
	if blend {
		r.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
		r.DepthWrite = false
	}
	return r
}
