package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
)

// Variant is the shader-relevant identity of one sub-mesh draw: the mesh's vertex layout
// plus the union of the mesh and material defines.
type Variant struct {
	Layout  model.VertexLayout
	Skinned bool

	// Defines is sorted and free of duplicates.
	Defines []string
}

// NewVariant derives the variant a sub-mesh is drawn with.
//
// Parameters:
//   - mesh: the mesh owning the sub-mesh
//   - sub: the sub-mesh; its material contributes texture, roughness and alpha defines
//
// Returns:
//   - Variant: the variant
func NewVariant(mesh *model.Mesh, sub *model.SubMesh) Variant {
	defines := slices.Clone(mesh.Defines)
	if sub != nil && sub.Material != nil {
		defines = append(defines, sub.Material.Defines()...)
	}
	slices.Sort(defines)
	return Variant{
		Layout:  mesh.Layout,
		Skinned: mesh.HasDefine(model.DefineSkinning),
		Defines: slices.Compact(defines),
	}
}

// Has reports whether the variant carries a define.
func (v Variant) Has(define string) bool {
	_, ok := slices.BinarySearch(v.Defines, define)
	return ok
}

// Key returns a string that is equal for two variants exactly when they compile to the
// same shader, for use as a pipeline cache key.
func (v Variant) Key() string {
	return fmt.Sprintf("stride=%d;%s", v.Layout.Stride, strings.Join(v.Defines, ","))
}
