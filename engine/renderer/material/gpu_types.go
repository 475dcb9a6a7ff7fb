package material

import (
	"encoding/binary"
	"math"
)

// MaterialParamsSource is the canonical WGSL definition of the MaterialParams struct.
// Matches MaterialParams layout exactly (48 bytes, std140 aligned).
const MaterialParamsSource = `struct MaterialParams {
    base_color_factor: vec4<f32>,
    emissive_factor: vec3<f32>,
    metallic_factor: f32,
    roughness_factor: f32,
    normal_scale: f32,
    occlusion_strength: f32,
    alpha_cutoff: f32,
};
`

// MaterialParamsSize is the byte size of a marshalled MaterialParams block.
const MaterialParamsSize = 48

// MaterialParams is the GPU-aligned material uniform block.
// Matches the WGSL MaterialParams struct layout exactly (see MaterialParamsSource).
type MaterialParams struct {
	BaseColorFactor   [4]float32 // offset  0
	EmissiveFactor    [3]float32 // offset 16
	MetallicFactor    float32    // offset 28: packed into the vec3 tail
	RoughnessFactor   float32    // offset 32
	NormalScale       float32    // offset 36
	OcclusionStrength float32    // offset 40
	AlphaCutoff       float32    // offset 44: zero unless the material alpha-tests
}

// Size returns the size of the marshalled block in bytes.
//
// Returns:
//   - int: the size of the block in bytes.
func (g *MaterialParams) Size() int {
	return MaterialParamsSize
}

// Marshal serializes the MaterialParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload.
func (g *MaterialParams) Marshal() []byte {
	buf := make([]byte, MaterialParamsSize)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	for i, v := range g.BaseColorFactor {
		put(i*4, v)
	}
	for i, v := range g.EmissiveFactor {
		put(16+i*4, v)
	}
	put(28, g.MetallicFactor)
	put(32, g.RoughnessFactor)
	put(36, g.NormalScale)
	put(40, g.OcclusionStrength)
	put(44, g.AlphaCutoff)
	return buf
}
