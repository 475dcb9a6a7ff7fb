package material

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"
)

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithBaseColor is an option builder that sets the base color factor of the material.
//
// Parameters:
//   - color: the base color as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.baseColor = color
	}
}

// WithMetallic is an option builder that sets the metallic factor of the material.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *material) {
		m.metallic = metallic
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithEmissive is an option builder that sets the emissive factor of the material.
//
// Parameters:
//   - emissive: the emissive RGB factor
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(emissive [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.emissive = emissive
	}
}

// WithNormalScale is an option builder that sets the normal map scale.
func WithNormalScale(scale float32) MaterialBuilderOption {
	return func(m *material) {
		m.normalScale = scale
	}
}

// WithOcclusionStrength is an option builder that sets the occlusion map strength.
func WithOcclusionStrength(strength float32) MaterialBuilderOption {
	return func(m *material) {
		m.occlusionStrength = strength
	}
}

// WithAlphaMode is an option builder that sets the alpha mode and the MASK cutoff.
//
// Parameters:
//   - mode: OPAQUE, MASK or BLEND
//   - cutoff: the alpha cutoff used by MASK
//
// Returns:
//   - MaterialBuilderOption: a function that applies the alpha mode option to a material
func WithAlphaMode(mode AlphaMode, cutoff float32) MaterialBuilderOption {
	return func(m *material) {
		m.alphaMode = mode
		m.alphaCutoff = cutoff
	}
}

// WithMaskAsBlend is an option builder that renders MASK materials with blending instead of an alpha test.
//
// Parameters:
//   - enabled: true to approximate MASK as BLEND
//
// Returns:
//   - MaterialBuilderOption: a function that applies the option to a material
func WithMaskAsBlend(enabled bool) MaterialBuilderOption {
	return func(m *material) {
		m.maskAsBlend = enabled
	}
}

// WithDoubleSided is an option builder that disables back-face culling.
func WithDoubleSided(doubleSided bool) MaterialBuilderOption {
	return func(m *material) {
		m.doubleSided = doubleSided
	}
}

// WithTexture is an option builder that binds a texture to a slot. A nil texture leaves the slot empty.
//
// Parameters:
//   - slot: the texture slot
//   - tex: the shared texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(slot TextureSlot, tex *common.Texture) MaterialBuilderOption {
	return func(m *material) {
		if slot >= 0 && slot < textureSlotCount {
			m.textures[slot] = tex
		}
	}
}
