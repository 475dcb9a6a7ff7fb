// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, keeps or drops define-gated blocks for one shader
// variant, replaces struct annotations with generated WGSL, and collects a declarations
// list so a renderer can bind material textures by slot instead of by variable name.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"
)

// registryEntry pairs a WGSL struct source string with the type name used in generated
// @group/@binding declarations.
type registryEntry struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group and provider annotations of active lines during a
	// Process call. Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor turns annotated WGSL into the source of one shader variant.
type PreProcessor interface {
	// Process pre-processes source for a variant. Lines inside an @oxy:if block whose define
	// the variant lacks are dropped, as are the annotations on them. @oxy:include is replaced
	// with the struct source, where the vertex struct follows the variant's vertex layout.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//   - variant: the mesh/material combination to specialize for
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error for a malformed annotation or unbalanced if/else/endif
	Process(source string, variant Variant) (string, error)

	// Declarations returns the group and provider annotations kept by the most recent
	// Process call, in source order.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

// conditional is one open @oxy:if block.
type conditional struct {
	parentActive bool
	taken        bool
	sawElse      bool
	line         int
}

func (p *preProcessor) Process(source string, variant Variant) (string, error) {
	p.declarations = p.declarations[:0]
	registry := structRegistry(variant)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	var stack []conditional
	active := true

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}

		if a != nil {
			switch a.Type {
			case annotationTypeIf:
				taken := variant.Has(string(a.Args[0]))
				stack = append(stack, conditional{parentActive: active, taken: taken, line: i + 1})
				active = active && taken
				continue
			case annotationTypeElse:
				if len(stack) == 0 {
					return "", fmt.Errorf("line %d: @oxy else without if", i+1)
				}
				top := &stack[len(stack)-1]
				if top.sawElse {
					return "", fmt.Errorf("line %d: second @oxy else for the if on line %d", i+1, top.line)
				}
				top.sawElse = true
				active = top.parentActive && !top.taken
				continue
			case annotationTypeEndif:
				if len(stack) == 0 {
					return "", fmt.Errorf("line %d: @oxy endif without if", i+1)
				}
				active = stack[len(stack)-1].parentActive
				stack = stack[:len(stack)-1]
				continue
			}
		}

		if !active {
			continue
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			out = append(out, strings.TrimRight(registry[a.Args[0]].Source, "\n"))
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			varName := string(a.Args[1])
			var wgslType string
			if inner, ok := strings.CutPrefix(string(a.Args[2]), "array<"); ok {
				inner = strings.TrimSuffix(inner, ">")
				wgslType = fmt.Sprintf("array<%s>", registry[AnnotationArg(inner)].Type)
			} else {
				wgslType = registry[a.Args[2]].Type
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, varName, wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		}
	}

	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: @oxy if is never closed", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// structRegistry maps struct type arguments to their WGSL for one variant.
func structRegistry(variant Variant) map[AnnotationArg]registryEntry {
	return map[AnnotationArg]registryEntry{
		AnnotationArgVertex:         {Source: variant.Layout.WGSL("VertexInput"), Type: "VertexInput"},
		AnnotationArgSkinVertex:     {Source: model.SkinVertexLayout().WGSL("SkinInput"), Type: "SkinInput"},
		AnnotationArgMaterialParams: {Source: material.MaterialParamsSource, Type: "MaterialParams"},
	}
}
