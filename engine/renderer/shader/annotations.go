// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct injection, bind group declaration, texture binding roles
// and define-gated blocks for the shader variants a loaded mesh needs.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include vertex
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// and records the annotation in the declarations list.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 1 0 storage_uniform material material_params
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider records the material texture or sampler a hand-written binding
	// expects, without generating WGSL.
	//
	// Syntax: //@oxy:provider <group> <binding> material <binding_role>
	//
	// Example: //@oxy:provider 1 1 material base_color_texture
	AnnotationTypeProvider AnnotationType = "provider"

	// annotationTypeIf keeps the following lines only when the variant has the define.
	//
	// Syntax: //@oxy:if <DEFINE>
	annotationTypeIf AnnotationType = "if"

	// annotationTypeElse flips the innermost if block.
	annotationTypeElse AnnotationType = "else"

	// annotationTypeEndif closes the innermost if block.
	annotationTypeEndif AnnotationType = "endif"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity, [1] = binding role
	//   - if:       [0] = define name
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source.
	Line int

	// Group is the @group index for group and provider annotations.
	Group *int

	// Binding is the @binding index for group and provider annotations.
	Binding *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────

const (
	// AnnotationArgVertex identifies the VertexInput struct generated from the variant's vertex layout.
	AnnotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgSkinVertex identifies the SkinInput struct of the separate joints/weights buffer.
	AnnotationArgSkinVertex AnnotationArg = "skin_vertex"

	// AnnotationArgMaterialParams identifies the MaterialParams uniform block.
	AnnotationArgMaterialParams AnnotationArg = "material_params"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	annotationArgStorageTypeUniform   AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Provider identity and binding role arguments ───────────────────────────────

const (
	// AnnotationArgMaterial identifies the per-material resource group.
	AnnotationArgMaterial AnnotationArg = "material"
)

// bindingRoleSlots maps every accepted binding role to the texture slot it reads and
// whether the binding is the sampler rather than the texture view.
var bindingRoleSlots = map[AnnotationArg]struct {
	slot    material.TextureSlot
	sampler bool
}{
	"base_color_texture":         {material.SlotBaseColor, false},
	"base_color_sampler":         {material.SlotBaseColor, true},
	"metallic_roughness_texture": {material.SlotMetallicRoughness, false},
	"metallic_roughness_sampler": {material.SlotMetallicRoughness, true},
	"normal_texture":             {material.SlotNormal, false},
	"normal_sampler":             {material.SlotNormal, true},
	"occlusion_texture":          {material.SlotOcclusion, false},
	"occlusion_sampler":          {material.SlotOcclusion, true},
	"emissive_texture":           {material.SlotEmissive, false},
	"emissive_sampler":           {material.SlotEmissive, true},
}

// validStructTypes lists all struct type arguments accepted by include and group annotations.
var validStructTypes = []AnnotationArg{
	AnnotationArgVertex,
	AnnotationArgSkinVertex,
	AnnotationArgMaterialParams,
}

// validAddressSpaces lists all address space arguments accepted by group annotations.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// TextureSlot reports which material texture slot a provider annotation binds and whether
// the binding is the slot's sampler.
//
// Returns:
//   - material.TextureSlot: the slot
//   - bool: true for the sampler binding, false for the texture view
//   - bool: false if the annotation is not a material provider
func (a Annotation) TextureSlot() (material.TextureSlot, bool, bool) {
	if a.Type != AnnotationTypeProvider || len(a.Args) < 2 || a.Args[0] != AnnotationArgMaterial {
		return 0, false, false
	}
	r, ok := bindingRoleSlots[a.Args[1]]
	return r.slot, r.sampler, ok
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil

	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		elem := strings.TrimSuffix(strings.TrimPrefix(args[5], "array<"), ">")
		if !slices.Contains(validStructTypes, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil

	case AnnotationTypeProvider:
		if len(args) != 5 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires four arguments (group, binding, provider identity, binding role)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if AnnotationArg(args[3]) != AnnotationArgMaterial {
			return nil, fmt.Errorf("line %d: unknown provider identity %q in @oxy provider annotation", lineNum, args[3])
		}
		if _, ok := bindingRoleSlots[AnnotationArg(args[4])]; !ok {
			return nil, fmt.Errorf("line %d: unknown binding role %q in @oxy provider annotation", lineNum, args[4])
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil

	case annotationTypeIf:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy if annotation requires exactly one define", lineNum)
		}
		return &Annotation{Type: annotationTypeIf, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil

	case annotationTypeElse, annotationTypeEndif:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s annotation takes no arguments", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Line: lineNum}, nil

	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

func parseGroupBinding(g, b string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(g)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q: %v", lineNum, g, err)
	}
	binding, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q: %v", lineNum, b, err)
	}
	return group, binding, nil
}
