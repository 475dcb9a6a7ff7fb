package model

import (
	"github.com/Carmen-Shannon/oxy-gltf/common"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/google/uuid"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithID is an option builder that sets the asset identifier of the Model.
//
// Parameters:
//   - id: the asset id
//
// Returns:
//   - ModelBuilderOption: a function that applies the id option to a model
func WithID(id uuid.UUID) ModelBuilderOption {
	return func(m *model) {
		m.id = id
	}
}

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSource is an option builder that records where the Model was loaded from.
//
// Parameters:
//   - source: the path, URL or cache name
//
// Returns:
//   - ModelBuilderOption: a function that applies the source option to a model
func WithSource(source string) ModelBuilderOption {
	return func(m *model) {
		m.source = source
	}
}

// WithMeshes is an option builder that sets the runtime meshes of the Model.
//
// Parameters:
//   - meshes: the meshes, indexed like the glTF document
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes option to a model
func WithMeshes(meshes []*Mesh) ModelBuilderOption {
	return func(m *model) {
		m.meshes = meshes
	}
}

// WithMaterials is an option builder that sets the runtime materials of the Model.
//
// Parameters:
//   - materials: the materials, indexed like the glTF document
//   - defaultMaterial: the material used for primitives with no material reference
//
// Returns:
//   - ModelBuilderOption: a function that applies the materials option to a model
func WithMaterials(materials []material.Material, defaultMaterial material.Material) ModelBuilderOption {
	return func(m *model) {
		m.materials = materials
		m.defaultMaterial = defaultMaterial
	}
}

// WithSkins is an option builder that sets the skinning descriptors of the Model.
//
// Parameters:
//   - skins: the skins, indexed like the glTF document
//
// Returns:
//   - ModelBuilderOption: a function that applies the skins option to a model
func WithSkins(skins []*Skin) ModelBuilderOption {
	return func(m *model) {
		m.skins = skins
	}
}

// WithTextures is an option builder that sets the textures and their source images.
//
// Parameters:
//   - textures: the textures, indexed like the glTF document
//   - images: the images, indexed like the glTF document
//
// Returns:
//   - ModelBuilderOption: a function that applies the textures option to a model
func WithTextures(textures []*common.Texture, images []*common.Image) ModelBuilderOption {
	return func(m *model) {
		m.textures = textures
		m.images = images
	}
}

// WithNodes is an option builder that sets the node table and scenes of the Model.
//
// Parameters:
//   - nodes: the node table
//   - scenes: root node indices per scene
//   - defaultScene: the default scene index, or -1
//
// Returns:
//   - ModelBuilderOption: a function that applies the nodes option to a model
func WithNodes(nodes []Node, scenes [][]int, defaultScene int) ModelBuilderOption {
	return func(m *model) {
		m.nodes = nodes
		m.scenes = scenes
		m.defaultScene = defaultScene
	}
}
