package model

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// model is the implementation of the Model interface.
type model struct {
	id              uuid.UUID
	name            string
	source          string
	meshes          []*Mesh
	materials       []material.Material
	defaultMaterial material.Material
	skins           []*Skin
	textures        []*common.Texture
	images          []*common.Image
	nodes           []Node
	scenes          [][]int
	defaultScene    int
}

// Model is a fully loaded glTF asset.
// Meshes, materials, skins, textures and nodes are plain arrays indexed exactly like the
// source document, so node-processing code can dereference meshes[node.Mesh] directly.
// Every array is fully populated before the Model is returned by the Loader, and the
// Model is immutable afterwards.
type Model interface {
	// ID retrieves the unique identifier assigned to this load.
	//
	// Returns:
	//   - uuid.UUID: the asset id
	ID() uuid.UUID

	// Name retrieves the model identifier (the first scene or file name).
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Source retrieves the path, URL or cache name the model was loaded from.
	//
	// Returns:
	//   - string: the source
	Source() string

	// Meshes retrieves the runtime meshes, one per glTF mesh index.
	//
	// Returns:
	//   - []*Mesh: the meshes
	Meshes() []*Mesh

	// Mesh retrieves one mesh by glTF index.
	//
	// Parameters:
	//   - index: the glTF mesh index
	//
	// Returns:
	//   - *Mesh: the mesh, or nil if out of range
	Mesh(index int) *Mesh

	// Materials retrieves the runtime materials, one per glTF material index.
	// Primitives without a material reference DefaultMaterial instead.
	//
	// Returns:
	//   - []material.Material: the materials
	Materials() []material.Material

	// DefaultMaterial retrieves the material substituted for primitives with no material.
	//
	// Returns:
	//   - material.Material: the default material
	DefaultMaterial() material.Material

	// Skins retrieves the skinning descriptors, one per glTF skin index.
	//
	// Returns:
	//   - []*Skin: the skins
	Skins() []*Skin

	// Textures retrieves the textures, one per glTF texture index.
	//
	// Returns:
	//   - []*common.Texture: the textures
	Textures() []*common.Texture

	// Images retrieves the encoded images, one per glTF image index.
	//
	// Returns:
	//   - []*common.Image: the images
	Images() []*common.Image

	// Nodes retrieves the glTF node table with resolved local transforms.
	//
	// Returns:
	//   - []Node: the nodes
	Nodes() []Node

	// Scenes retrieves the root node indices of every scene.
	//
	// Returns:
	//   - [][]int: root node indices per scene
	Scenes() [][]int

	// DefaultScene retrieves the index of the default scene, or -1 if none is declared.
	//
	// Returns:
	//   - int: the default scene index
	DefaultScene() int

	// Bounds returns the union of every mesh's bounding box in mesh-local space.
	//
	// Returns:
	//   - BoundingBox: the union box
	Bounds() BoundingBox

	// Skinned reports whether any mesh carries skin data.
	//
	// Returns:
	//   - bool: true if any mesh has a skin buffer
	Skinned() bool
}

// Node is one entry of the glTF node table.
type Node struct {
	// Name is the optional node name.
	Name string

	// Mesh is the mesh index, or nil.
	Mesh *int

	// Skin is the skin index, or nil.
	Skin *int

	// Children are child node indices.
	Children []int

	// Local is the node's local transform (matrix, or composed translation/rotation/scale).
	Local mgl32.Mat4
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
// A fresh ID is assigned unless WithID is given.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{
		id:           uuid.New(),
		defaultScene: -1,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) ID() uuid.UUID {
	return m.id
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Source() string {
	return m.source
}

func (m *model) Meshes() []*Mesh {
	return m.meshes
}

func (m *model) Mesh(index int) *Mesh {
	if index < 0 || index >= len(m.meshes) {
		return nil
	}
	return m.meshes[index]
}

func (m *model) Materials() []material.Material {
	return m.materials
}

func (m *model) DefaultMaterial() material.Material {
	return m.defaultMaterial
}

func (m *model) Skins() []*Skin {
	return m.skins
}

func (m *model) Textures() []*common.Texture {
	return m.textures
}

func (m *model) Images() []*common.Image {
	return m.images
}

func (m *model) Nodes() []Node {
	return m.nodes
}

func (m *model) Scenes() [][]int {
	return m.scenes
}

func (m *model) DefaultScene() int {
	return m.defaultScene
}

func (m *model) Bounds() BoundingBox {
	b := EmptyBoundingBox()
	for _, mesh := range m.meshes {
		b = b.Union(mesh.Bounds)
	}
	return b
}

func (m *model) Skinned() bool {
	for _, mesh := range m.meshes {
		if mesh.Skin != nil {
			return true
		}
	}
	return false
}
