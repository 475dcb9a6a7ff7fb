// gltf_types.go contains glTF 2.0 data structures for JSON deserialization.
// These types map directly to the glTF 2.0 JSON schema and are internal to the loader package.
// Only the properties the loader reads are declared; encoding/json ignores the rest.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html
package loader

import "encoding/json"

// --- glTF Root Structure ---

// gltfDocument represents the root of a glTF JSON document. It is immutable once parsed.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-gltf
type gltfDocument struct {
	Asset              gltfAsset         `json:"asset"`
	Scene              *int              `json:"scene,omitempty"`
	Scenes             []gltfScene       `json:"scenes,omitempty"`
	Nodes              []gltfNode        `json:"nodes,omitempty"`
	Meshes             []gltfMesh        `json:"meshes,omitempty"`
	Accessors          []gltfAccessor    `json:"accessors,omitempty"`
	BufferViews        []gltfBufferView  `json:"bufferViews,omitempty"`
	Buffers            []gltfBuffer      `json:"buffers,omitempty"`
	Materials          []gltfMaterial    `json:"materials,omitempty"`
	Textures           []gltfTexture     `json:"textures,omitempty"`
	Images             []gltfImage       `json:"images,omitempty"`
	Samplers           []gltfSampler     `json:"samplers,omitempty"`
	Skins              []gltfSkin        `json:"skins,omitempty"`
	Animations         []json.RawMessage `json:"animations,omitempty"`
	ExtensionsUsed     []string          `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string          `json:"extensionsRequired,omitempty"`
}

// gltfAsset contains metadata about the glTF asset.
type gltfAsset struct {
	// Version is the glTF version (required, must be "2.x").
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
	Generator  string `json:"generator,omitempty"`
	Copyright  string `json:"copyright,omitempty"`
}

// --- Scene Graph ---

type gltfScene struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes,omitempty"`
}

// gltfNode is a node in the node hierarchy. Either Matrix or TRS is set, never both.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-node
type gltfNode struct {
	Name        string       `json:"name,omitempty"`
	Children    []int        `json:"children,omitempty"`
	Mesh        *int         `json:"mesh,omitempty"`
	Skin        *int         `json:"skin,omitempty"`
	Matrix      *[16]float32 `json:"matrix,omitempty"`
	Translation *[3]float32  `json:"translation,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"` // quaternion x, y, z, w
	Scale       *[3]float32  `json:"scale,omitempty"`
}

// --- Mesh Data ---

type gltfMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []gltfPrimitive `json:"primitives"`
}

// gltfPrimitive defines geometry for one draw call.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-mesh-primitive
type gltfPrimitive struct {
	// Attributes maps attribute semantic to accessor index.
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`

	// Mode is the primitive topology, TRIANGLES when absent.
	Mode *int `json:"mode,omitempty"`

	// Targets are morph targets; they are not applied.
	Targets    []map[string]int           `json:"targets,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

const gltfPrimitiveModeTriangles = 4

// --- Buffer Data ---

// gltfAccessor defines how to interpret buffer data.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-accessor
type gltfAccessor struct {
	Name          string    `json:"name,omitempty"`
	BufferView    *int      `json:"bufferView,omitempty"`
	ByteOffset    int       `json:"byteOffset,omitempty"`
	ComponentType int       `json:"componentType"`
	Normalized    bool      `json:"normalized,omitempty"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Max           []float32 `json:"max,omitempty"`
	Min           []float32 `json:"min,omitempty"`

	// Sparse is only inspected for presence; sparse storage is rejected.
	Sparse *json.RawMessage `json:"sparse,omitempty"`
}

// ComponentType constants
const (
	gltfComponentTypeByte          = 5120
	gltfComponentTypeUnsignedByte  = 5121
	gltfComponentTypeShort         = 5122
	gltfComponentTypeUnsignedShort = 5123
	gltfComponentTypeUnsignedInt   = 5125
	gltfComponentTypeFloat         = 5126
)

// AccessorType constants
const (
	gltfAccessorTypeScalar = "SCALAR"
	gltfAccessorTypeVec2   = "VEC2"
	gltfAccessorTypeVec3   = "VEC3"
	gltfAccessorTypeVec4   = "VEC4"
	gltfAccessorTypeMat2   = "MAT2"
	gltfAccessorTypeMat3   = "MAT3"
	gltfAccessorTypeMat4   = "MAT4"
)

// gltfBufferView is a byte-range window into a buffer.
type gltfBufferView struct {
	Name       string `json:"name,omitempty"`
	Buffer     int    `json:"buffer"`
	ByteOffset int    `json:"byteOffset,omitempty"`
	ByteLength int    `json:"byteLength"`
	ByteStride *int   `json:"byteStride,omitempty"`
	Target     *int   `json:"target,omitempty"`
}

// gltfBuffer is either an external/data URI or, with no URI, the GLB binary chunk.
type gltfBuffer struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
}

// --- Materials and Textures ---

// gltfMaterial defines the material appearance of a primitive.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-material
type gltfMaterial struct {
	Name                 string                    `json:"name,omitempty"`
	PbrMetallicRoughness *gltfPbrMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *gltfNormalTextureInfo    `json:"normalTexture,omitempty"`
	OcclusionTexture     *gltfOcclusionTextureInfo `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *gltfTextureInfo          `json:"emissiveTexture,omitempty"`
	EmissiveFactor       *[3]float32               `json:"emissiveFactor,omitempty"`

	// AlphaMode is "OPAQUE" (default), "MASK" or "BLEND".
	AlphaMode   string   `json:"alphaMode,omitempty"`
	AlphaCutoff *float32 `json:"alphaCutoff,omitempty"`
	DoubleSided bool     `json:"doubleSided,omitempty"`
}

type gltfPbrMetallicRoughness struct {
	BaseColorFactor          *[4]float32      `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *gltfTextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32         `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32         `json:"roughnessFactor,omitempty"`
	MetallicRoughnessTexture *gltfTextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

type gltfTextureInfo struct {
	Index    int `json:"index"`
	TexCoord int `json:"texCoord,omitempty"`
}

type gltfNormalTextureInfo struct {
	gltfTextureInfo
	Scale *float32 `json:"scale,omitempty"`
}

type gltfOcclusionTextureInfo struct {
	gltfTextureInfo
	Strength *float32 `json:"strength,omitempty"`
}

// gltfTexture combines an image and a sampler.
type gltfTexture struct {
	Name       string                     `json:"name,omitempty"`
	Sampler    *int                       `json:"sampler,omitempty"`
	Source     *int                       `json:"source,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// gltfTextureSourceExtension is the body of EXT_texture_webp and similar alternate-source extensions.
type gltfTextureSourceExtension struct {
	Source *int `json:"source,omitempty"`
}

// gltfImage is a texture image source: a URI or a bufferView plus MIME type.
type gltfImage struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

type gltfSampler struct {
	Name string `json:"name,omitempty"`

	// 9728=NEAREST, 9729=LINEAR, 9984-9987=mipmapped variants
	MagFilter *int `json:"magFilter,omitempty"`
	MinFilter *int `json:"minFilter,omitempty"`

	// 33071=CLAMP_TO_EDGE, 33648=MIRRORED_REPEAT, 10497=REPEAT (default)
	WrapS *int `json:"wrapS,omitempty"`
	WrapT *int `json:"wrapT,omitempty"`
}

// Sampler filter constants
const (
	gltfFilterNearest              = 9728
	gltfFilterLinear               = 9729
	gltfFilterNearestMipmapNearest = 9984
	gltfFilterLinearMipmapNearest  = 9985
	gltfFilterNearestMipmapLinear  = 9986
	gltfFilterLinearMipmapLinear   = 9987
)

// Sampler wrap constants
const (
	gltfWrapClampToEdge    = 33071
	gltfWrapMirroredRepeat = 33648
	gltfWrapRepeat         = 10497
)

// --- Skinning ---

// gltfSkin binds a mesh to a joint hierarchy.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#reference-skin
type gltfSkin struct {
	Name                string `json:"name,omitempty"`
	InverseBindMatrices *int   `json:"inverseBindMatrices,omitempty"`
	Skeleton            *int   `json:"skeleton,omitempty"`
	Joints              []int  `json:"joints"`
}

// --- Extensions ---

// Extension names the loader recognises in extensionsRequired.
const (
	gltfExtDraco            = "KHR_draco_mesh_compression"
	gltfExtMeshopt          = "EXT_meshopt_compression"
	gltfExtTextureWebP      = "EXT_texture_webp"
	gltfExtTextureTransform = "KHR_texture_transform"
	gltfExtMaterialsUnlit   = "KHR_materials_unlit"
	gltfExtQuantization     = "KHR_mesh_quantization"
)

// --- GLB Binary Format ---

// gltfGLBHeader is the header of a GLB file (12 bytes).
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
type gltfGLBHeader struct {
	Magic   uint32 // Must be 0x46546C67 ("glTF" in ASCII)
	Version uint32 // Must be 2
	Length  uint32 // Total file length
}

// gltfGLBChunkHeader is the header of a GLB chunk (8 bytes).
type gltfGLBChunkHeader struct {
	ChunkLength uint32
	ChunkType   uint32 // 0x4E4F534A for JSON, 0x004E4942 for BIN
}

// GLB magic number and chunk type constants
const (
	gltfGLBMagic     = 0x46546C67 // "glTF" in little-endian ASCII
	gltfGLBVersion   = 2
	gltfGLBChunkJSON = 0x4E4F534A // "JSON" in little-endian ASCII
	gltfGLBChunkBIN  = 0x004E4942 // "BIN\0" in little-endian ASCII
)
