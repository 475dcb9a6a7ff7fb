package loader

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/cogentcore/webgpu/wgpu"
)

const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func materialDoc() *gltfDocument {
	return &gltfDocument{
		Asset:    gltfAsset{Version: "2.0"},
		Images:   []gltfImage{{Name: "albedo", URI: onePixelPNG}, {Name: "albedo_webp", URI: "data:image/webp;base64,AAAA"}},
		Samplers: []gltfSampler{{MagFilter: intPtr(gltfFilterNearest), MinFilter: intPtr(gltfFilterLinearMipmapNearest), WrapS: intPtr(gltfWrapClampToEdge), WrapT: intPtr(gltfWrapMirroredRepeat)}},
		Textures: []gltfTexture{
			{Name: "base", Sampler: intPtr(0), Source: intPtr(0)},
			{
				Name:       "webp",
				Source:     intPtr(0),
				Extensions: map[string]json.RawMessage{gltfExtTextureWebP: json.RawMessage(`{"source":1}`)},
			},
		},
		Materials: []gltfMaterial{
			{
				Name: "painted",
				PbrMetallicRoughness: &gltfPbrMetallicRoughness{
					BaseColorFactor:  &[4]float32{1, 0, 0, 1},
					BaseColorTexture: &gltfTextureInfo{Index: 0},
					MetallicFactor:   float32Ptr(0),
					RoughnessFactor:  float32Ptr(0.5),
				},
				NormalTexture: &gltfNormalTextureInfo{gltfTextureInfo: gltfTextureInfo{Index: 0}, Scale: float32Ptr(2)},
			},
			{AlphaMode: "MASK", AlphaCutoff: float32Ptr(0.3), DoubleSided: true},
			{AlphaMode: "BLEND", EmissiveTexture: &gltfTextureInfo{Index: 1}},
		},
	}
}

func extractMaterials(t *testing.T, doc *gltfDocument, maskAsBlend bool) []material.Material {
	t.Helper()
	e := newGLTFMaterialExtractor(doc, newGLTFResolver(doc, nil, "", nil, testLogger()), maskAsBlend, testLogger())
	images, err := e.ExtractImages(context.Background())
	if err != nil {
		t.Fatalf("ExtractImages failed: %v", err)
	}
	textures, err := e.ExtractTextures(images)
	if err != nil {
		t.Fatalf("ExtractTextures failed: %v", err)
	}
	mats, err := e.ExtractAllMaterials(textures)
	if err != nil {
		t.Fatalf("ExtractAllMaterials failed: %v", err)
	}
	return mats
}

func TestExtractMaterialFactorsAndTextures(t *testing.T) {
	mats := extractMaterials(t, materialDoc(), false)
	m := mats[0]

	if m.Name() != "painted" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.BaseColor() != [4]float32{1, 0, 0, 1} || m.Metallic() != 0 || m.Roughness() != 0.5 {
		t.Errorf("factors = %v %v %v", m.BaseColor(), m.Metallic(), m.Roughness())
	}
	if !m.HasDefine(material.DefineBaseColorTexture) || !m.HasDefine(material.DefineNormalTexture) {
		t.Errorf("Defines() = %v, want base color and normal texture defines", m.Defines())
	}
	if m.HasDefine(material.DefineFullyRough) {
		t.Error("roughness 0.5 must not be FULLY_ROUGH")
	}
	if m.Texture(material.SlotBaseColor) != m.Texture(material.SlotNormal) {
		t.Error("slots referencing the same texture index do not share the texture")
	}
	if p := m.Params(); p.NormalScale != 2 {
		t.Errorf("NormalScale = %v, want 2", p.NormalScale)
	}

	tex := m.Texture(material.SlotBaseColor)
	if tex.Image == nil || tex.Image.MimeType != "image/png" {
		t.Fatalf("texture image = %+v, want a PNG", tex.Image)
	}
	if _, w, h, err := tex.Decode(); err != nil || w != 1 || h != 1 {
		t.Errorf("Decode() = %dx%d, %v, want 1x1", w, h, err)
	}
	s := tex.Sampler
	if s.MagFilter != wgpu.FilterModeNearest || s.MinFilter != wgpu.FilterModeLinear || s.MipmapFilter != wgpu.MipmapFilterModeNearest {
		t.Errorf("filters = %v %v %v", s.MagFilter, s.MinFilter, s.MipmapFilter)
	}
	if s.AddressModeU != wgpu.AddressModeClampToEdge || s.AddressModeV != wgpu.AddressModeMirrorRepeat {
		t.Errorf("address modes = %v %v", s.AddressModeU, s.AddressModeV)
	}
}

func TestExtractMaterialAlphaModes(t *testing.T) {
	mats := extractMaterials(t, materialDoc(), false)

	mask := mats[1]
	if mask.Name() != "material_1" {
		t.Errorf("unnamed material Name() = %q, want material_1", mask.Name())
	}
	if !mask.HasDefine(material.DefineAlphaCutoff) {
		t.Errorf("MASK Defines() = %v, want %s", mask.Defines(), material.DefineAlphaCutoff)
	}
	if cutoff, ok := mask.Uniform(material.UniformAlphaCutoff); !ok || cutoff[0] != 0.3 {
		t.Errorf("alpha cutoff = %v, %v, want 0.3", cutoff, ok)
	}
	rs := mask.RasterState()
	if rs.Blending() || !rs.DepthWrite || rs.CullMode != wgpu.CullModeNone {
		t.Errorf("MASK raster state = %+v, want alpha test without blending, double-sided", rs)
	}

	blend := mats[2].RasterState()
	if !blend.Blending() || blend.DepthWrite || blend.CullMode != wgpu.CullModeBack {
		t.Errorf("BLEND raster state = %+v", blend)
	}
}

func TestExtractMaterialMaskAsBlend(t *testing.T) {
	mats := extractMaterials(t, materialDoc(), true)
	mask := mats[1]
	if mask.HasDefine(material.DefineAlphaCutoff) {
		t.Error("MASK rendered as blend still carries the alpha-test define")
	}
	if !mask.RasterState().Blending() {
		t.Error("MASK rendered as blend has no blend state")
	}
}

func TestExtractTexturesPrefersWebPSource(t *testing.T) {
	doc := materialDoc()
	e := newGLTFMaterialExtractor(doc, newGLTFResolver(doc, nil, "", nil, testLogger()), false, testLogger())
	images, err := e.ExtractImages(context.Background())
	if err != nil {
		t.Fatalf("ExtractImages failed: %v", err)
	}
	textures, err := e.ExtractTextures(images)
	if err != nil {
		t.Fatalf("ExtractTextures failed: %v", err)
	}
	if textures[1].Image != images[1] {
		t.Error("EXT_texture_webp source was not preferred")
	}
	if textures[0].Image != images[0] {
		t.Error("core source not used")
	}
	if textures[1].Sampler != common.DefaultSamplerData() {
		t.Errorf("texture without sampler = %+v, want the glTF defaults", textures[1].Sampler)
	}
}

func TestExtractMaterialErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc *gltfDocument)
		want   error
	}{
		{"texture index", func(doc *gltfDocument) { doc.Materials[0].PbrMetallicRoughness.BaseColorTexture.Index = 9 }, errIndexOutOfRange},
		{"image index", func(doc *gltfDocument) { doc.Textures[0].Source = intPtr(5) }, errIndexOutOfRange},
		{"sampler index", func(doc *gltfDocument) { doc.Textures[0].Sampler = intPtr(3) }, errIndexOutOfRange},
		{"alpha mode", func(doc *gltfDocument) { doc.Materials[1].AlphaMode = "CUTOUT" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := materialDoc()
			tt.mutate(doc)
			e := newGLTFMaterialExtractor(doc, newGLTFResolver(doc, nil, "", nil, testLogger()), false, testLogger())

			images, err := e.ExtractImages(context.Background())
			if err != nil {
				t.Fatalf("ExtractImages failed: %v", err)
			}
			textures, err := e.ExtractTextures(images)
			if err == nil {
				_, err = e.ExtractAllMaterials(textures)
			}

			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FormatError", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
