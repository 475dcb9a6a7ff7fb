package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	doc         *gltfDocument
	res         gltfResolver
	maskAsBlend bool
	logger      *log.Logger
}

// gltfMaterialExtractor builds the image, texture and material arrays of a document.
// Images are built once per image index and textures once per texture index, so every
// material referencing a texture shares the same pointer.
type gltfMaterialExtractor interface {
	// ExtractImages resolves the encoded bytes of every image.
	//
	// Parameters:
	//   - ctx: cancels resource resolution
	//
	// Returns:
	//   - []*common.Image: the images, indexed like the document
	//   - error: *ResourceError if an image cannot be obtained
	ExtractImages(ctx context.Context) ([]*common.Image, error)

	// ExtractTextures pairs every texture with its image and sampler settings.
	//
	// Parameters:
	//   - images: the images from ExtractImages
	//
	// Returns:
	//   - []*common.Texture: the textures, indexed like the document
	//   - error: *FormatError on an out-of-range image or sampler index
	ExtractTextures(images []*common.Image) ([]*common.Texture, error)

	// ExtractMaterial synthesizes one runtime material.
	//
	// Parameters:
	//   - materialIndex: the glTF material index
	//   - textures: the textures from ExtractTextures
	//
	// Returns:
	//   - material.Material: the material
	//   - error: *FormatError on an out-of-range texture index or unknown alpha mode
	ExtractMaterial(materialIndex int, textures []*common.Texture) (material.Material, error)

	// ExtractAllMaterials synthesizes every material in document order.
	//
	// Parameters:
	//   - textures: the textures from ExtractTextures
	//
	// Returns:
	//   - []material.Material: the materials, indexed like the document
	//   - error: the first failure
	ExtractAllMaterials(textures []*common.Texture) ([]material.Material, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a material extractor.
//
// Parameters:
//   - doc: the document
//   - res: the resolver for image bytes
//   - maskAsBlend: render MASK materials with blending instead of an alpha test
//   - logger: the loader logger
//
// Returns:
//   - gltfMaterialExtractor: the extractor
func newGLTFMaterialExtractor(doc *gltfDocument, res gltfResolver, maskAsBlend bool, logger *log.Logger) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{
		doc:         doc,
		res:         res,
		maskAsBlend: maskAsBlend,
		logger:      logger,
	}
}

func (e *gltfMaterialExtractorImpl) ExtractImages(ctx context.Context) ([]*common.Image, error) {
	images := make([]*common.Image, len(e.doc.Images))
	for i := range e.doc.Images {
		gi := &e.doc.Images[i]
		data, mime, err := e.res.BytesForImage(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		img := &common.Image{
			Name:     gi.Name,
			MimeType: mime,
			Data:     data,
		}
		if gi.BufferView == nil {
			img.URI = gi.URI
		}
		images[i] = img
	}
	return images, nil
}

func (e *gltfMaterialExtractorImpl) ExtractTextures(images []*common.Image) ([]*common.Texture, error) {
	textures := make([]*common.Texture, len(e.doc.Textures))
	for i := range e.doc.Textures {
		gt := &e.doc.Textures[i]
		op := fmt.Sprintf("texture %d", i)

		tex := &common.Texture{
			Name:    gt.Name,
			Index:   i,
			Sampler: common.DefaultSamplerData(),
		}

		if gt.Sampler != nil {
			s := *gt.Sampler
			if s < 0 || s >= len(e.doc.Samplers) {
				return nil, newFormatErrorf(op, errIndexOutOfRange, "sampler %d, document has %d", s, len(e.doc.Samplers))
			}
			tex.Sampler = gltfSamplerToStagingData(&e.doc.Samplers[s])
		}

		source := gltfTextureSource(gt)
		if source == nil {
			e.logger.Warn("texture has no image source", "texture", i)
			textures[i] = tex
			continue
		}
		if *source < 0 || *source >= len(images) {
			return nil, newFormatErrorf(op, errIndexOutOfRange, "image %d, document has %d", *source, len(images))
		}
		tex.Image = images[*source]
		textures[i] = tex
	}
	return textures, nil
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int, textures []*common.Texture) (material.Material, error) {
	if materialIndex < 0 || materialIndex >= len(e.doc.Materials) {
		return nil, newFormatErrorf(fmt.Sprintf("material %d", materialIndex), errIndexOutOfRange, "document has %d materials", len(e.doc.Materials))
	}
	gm := &e.doc.Materials[materialIndex]
	op := fmt.Sprintf("material %d", materialIndex)

	opts := []material.MaterialBuilderOption{
		material.WithName(common.Coalesce(gm.Name, fmt.Sprintf("material_%d", materialIndex))),
		material.WithDoubleSided(gm.DoubleSided),
		material.WithMaskAsBlend(e.maskAsBlend),
	}

	lookup := func(slot material.TextureSlot, info *gltfTextureInfo) error {
		if info == nil {
			return nil
		}
		if info.Index < 0 || info.Index >= len(textures) {
			return newFormatErrorf(op, errIndexOutOfRange, "%s references texture %d, document has %d", slot, info.Index, len(textures))
		}
		if info.TexCoord != 0 {
			e.logger.Debug("texture uses a secondary UV set; TEXCOORD_0 is bound instead", "material", materialIndex, "slot", slot, "texCoord", info.TexCoord)
		}
		opts = append(opts, material.WithTexture(slot, textures[info.Index]))
		return nil
	}

	if pbr := gm.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			opts = append(opts, material.WithBaseColor(*pbr.BaseColorFactor))
		}
		if pbr.MetallicFactor != nil {
			opts = append(opts, material.WithMetallic(*pbr.MetallicFactor))
		}
		if pbr.RoughnessFactor != nil {
			opts = append(opts, material.WithRoughness(*pbr.RoughnessFactor))
		}
		if err := lookup(material.SlotBaseColor, pbr.BaseColorTexture); err != nil {
			return nil, err
		}
		if err := lookup(material.SlotMetallicRoughness, pbr.MetallicRoughnessTexture); err != nil {
			return nil, err
		}
	}

	if nt := gm.NormalTexture; nt != nil {
		if err := lookup(material.SlotNormal, &nt.gltfTextureInfo); err != nil {
			return nil, err
		}
		if nt.Scale != nil {
			opts = append(opts, material.WithNormalScale(*nt.Scale))
		}
	}
	if ot := gm.OcclusionTexture; ot != nil {
		if err := lookup(material.SlotOcclusion, &ot.gltfTextureInfo); err != nil {
			return nil, err
		}
		if ot.Strength != nil {
			opts = append(opts, material.WithOcclusionStrength(*ot.Strength))
		}
	}
	if err := lookup(material.SlotEmissive, gm.EmissiveTexture); err != nil {
		return nil, err
	}
	if gm.EmissiveFactor != nil {
		opts = append(opts, material.WithEmissive(*gm.EmissiveFactor))
	}

	cutoff := float32(0.5)
	if gm.AlphaCutoff != nil {
		cutoff = *gm.AlphaCutoff
	}
	switch gm.AlphaMode {
	case "", string(material.AlphaOpaque):
		opts = append(opts, material.WithAlphaMode(material.AlphaOpaque, cutoff))
	case string(material.AlphaMask):
		opts = append(opts, material.WithAlphaMode(material.AlphaMask, cutoff))
	case string(material.AlphaBlend):
		opts = append(opts, material.WithAlphaMode(material.AlphaBlend, cutoff))
	default:
		return nil, newFormatError(op, fmt.Errorf("unknown alphaMode %q", gm.AlphaMode))
	}

	return material.NewMaterial(opts...), nil
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials(textures []*common.Texture) ([]material.Material, error) {
	materials := make([]material.Material, len(e.doc.Materials))
	for i := range e.doc.Materials {
		m, err := e.ExtractMaterial(i, textures)
		if err != nil {
			return nil, err
		}
		materials[i] = m
	}
	return materials, nil
}

// --- Helper Functions ---

// gltfTextureSource returns the image index a texture samples. An EXT_texture_webp source
// takes precedence over the core source.
func gltfTextureSource(t *gltfTexture) *int {
	if raw, ok := t.Extensions[gltfExtTextureWebP]; ok {
		var ext gltfTextureSourceExtension
		if err := json.Unmarshal(raw, &ext); err == nil && ext.Source != nil {
			return ext.Source
		}
	}
	return t.Source
}

// gltfSamplerToStagingData converts a glTF sampler definition into SamplerStagingData.
// Any unset fields in the glTF sampler fall back to the glTF defaults (linear filtering, repeat wrapping).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-sampler
//
// Parameters:
//   - s: the glTF sampler to convert
//
// Returns:
//   - common.SamplerStagingData: the converted sampler staging data
func gltfSamplerToStagingData(s *gltfSampler) common.SamplerStagingData {
	result := common.DefaultSamplerData()

	if s.MagFilter != nil && *s.MagFilter == gltfFilterNearest {
		result.MagFilter = wgpu.FilterModeNearest
	}

	if s.MinFilter != nil {
		switch *s.MinFilter {
		case gltfFilterNearest, gltfFilterNearestMipmapNearest, gltfFilterNearestMipmapLinear:
			result.MinFilter = wgpu.FilterModeNearest
		}
		switch *s.MinFilter {
		case gltfFilterNearestMipmapNearest, gltfFilterLinearMipmapNearest, gltfFilterNearest, gltfFilterLinear:
			result.MipmapFilter = wgpu.MipmapFilterModeNearest
		}
	}

	if s.WrapS != nil {
		result.AddressModeU = gltfWrapToAddressMode(*s.WrapS)
	}
	if s.WrapT != nil {
		result.AddressModeV = gltfWrapToAddressMode(*s.WrapT)
	}
	return result
}

// gltfWrapToAddressMode converts a glTF wrap mode constant to a wgpu AddressMode.
func gltfWrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
