// package common contains common types that are used throughout this module. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types shared between the loader and the renderer-facing output.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// The loader fills it from a glTF sampler so a renderer can create the GPU sampler without inspecting glTF.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers, used in shadow mapping and similar techniques.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering, which can improve texture quality at oblique viewing angles.
	MaxAnisotropy uint16
}

// DefaultSamplerData returns the sampler settings glTF prescribes when a texture has no sampler:
// repeat wrapping on every axis and linear filtering.
//
// Returns:
//   - SamplerStagingData: the default sampler configuration
func DefaultSamplerData() SamplerStagingData {
	return SamplerStagingData{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}

// Image is an encoded image resolved from a glTF document.
// One Image exists per glTF image index; every Texture sourcing that index shares the pointer.
type Image struct {
	// Name is the optional glTF image name.
	Name string

	// URI is the external or data URI the image was resolved from. Empty for bufferView images.
	URI string

	// MimeType indicates the encoded format (e.g., "image/png", "image/jpeg", "image/webp").
	MimeType string

	// Data holds the encoded image bytes.
	Data []byte

	mu     sync.Mutex
	pixels []byte
	width  uint32
	height uint32
}

// Decode decodes the image to raw RGBA pixel data.
// PNG, JPEG, BMP and WebP are supported. The result is cached, so repeated calls are cheap.
// Reference: https://pkg.go.dev/image
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: image width in pixels
//   - uint32: image height in pixels
//   - error: error if decoding fails
func (i *Image) Decode() ([]byte, uint32, uint32, error) {
	if i == nil {
		return nil, 0, 0, fmt.Errorf("image is nil")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pixels != nil {
		return i.pixels, i.width, i.height, nil
	}
	if len(i.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("image %q has no data", i.Name)
	}

	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image %q: %w", i.Name, err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	i.pixels = rgba.Pix
	i.width = uint32(bounds.Dx())
	i.height = uint32(bounds.Dy())

	return i.pixels, i.width, i.height, nil
}

// Texture is a renderer-ready texture: an image handle plus sampler settings.
// One Texture exists per glTF texture index and is shared by reference across materials.
type Texture struct {
	// Name is the optional glTF texture name.
	Name string

	// Index is the glTF texture index this texture was built from.
	Index int

	// Image is the shared source image. Nil when the texture declares no usable source.
	Image *Image

	// Sampler holds the wrap/filter settings for this texture.
	Sampler SamplerStagingData
}

// Decode decodes the texture's image to raw RGBA pixel data.
//
// Returns:
//   - []byte: raw RGBA pixel data (4 bytes per pixel, row-major order)
//   - uint32: texture width in pixels
//   - uint32: texture height in pixels
//   - error: error if the texture has no image or decoding fails
func (t *Texture) Decode() ([]byte, uint32, uint32, error) {
	if t == nil {
		return nil, 0, 0, fmt.Errorf("texture is nil")
	}
	if t.Image == nil {
		return nil, 0, 0, fmt.Errorf("texture %d has no image source", t.Index)
	}
	return t.Image.Decode()
}
