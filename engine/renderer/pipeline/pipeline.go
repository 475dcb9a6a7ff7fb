package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrUnsupportedTopology is returned for sub-meshes whose topology has no WebGPU primitive
// (LINE_LOOP and TRIANGLE_FAN). Such sub-meshes load but cannot be drawn directly.
var ErrUnsupportedTopology = errors.New("topology has no WebGPU equivalent")

// pipeline is the implementation of the Pipeline interface.
// It holds every piece of render pipeline state derivable from a loaded sub-mesh, without
// needing a device.
type pipeline struct {
	pipelineKey string
	variant     shader.Variant

	vertexBuffers    []wgpu.VertexBufferLayout
	topology         wgpu.PrimitiveTopology
	stripIndexFormat wgpu.IndexFormat

	// The following properties come from the material raster state and can be overridden
	// with the builder options.

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthBias           int32
	depthBiasSlopeScale float32
	depthFormat         wgpu.TextureFormat
	sampleCount         uint32
	cullMode            wgpu.CullMode
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState

	vertexEntryPoint, fragmentEntryPoint string
}

// Pipeline is the render pipeline state for drawing one sub-mesh.
type Pipeline interface {
	// PipelineKey returns a key that is equal for two sub-meshes exactly when they can share
	// a GPU pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Variant returns the shader variant the pipeline's shaders must be compiled for.
	Variant() shader.Variant

	// VertexBuffers returns the vertex buffer layouts: the interleaved mesh buffer at slot 0
	// and, for skinned meshes, the skin buffer at slot 1.
	VertexBuffers() []wgpu.VertexBufferLayout

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// StripIndexFormat returns the index format for indexed strip topologies, undefined otherwise.
	StripIndexFormat() wgpu.IndexFormat

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	DepthWriteEnabled() bool

	// BlendEnabled returns whether blending is enabled for this pipeline.
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() wgpu.FrontFace

	// BlendState returns the blend state, or nil if blending is not enabled.
	BlendState() *wgpu.BlendState

	// Descriptor assembles a render pipeline descriptor around compiled shader modules.
	//
	// Parameters:
	//   - layout: the pipeline layout
	//   - vs: the vertex shader module
	//   - fs: the fragment shader module
	//   - colorFormat: the color target format
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor, ready for Device.CreateRenderPipeline
	Descriptor(layout *wgpu.PipelineLayout, vs, fs *wgpu.ShaderModule, colorFormat wgpu.TextureFormat) *wgpu.RenderPipelineDescriptor
}

var _ Pipeline = &pipeline{}

// NewPipeline derives the pipeline state of a sub-mesh from its mesh layout, topology and
// material raster state.
//
// Parameters:
//   - mesh: the mesh owning the sub-mesh
//   - sub: the sub-mesh to draw
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline state
//   - error: ErrUnsupportedTopology for LINE_LOOP and TRIANGLE_FAN sub-meshes
func NewPipeline(mesh *model.Mesh, sub *model.SubMesh, opts ...PipelineBuilderOption) (Pipeline, error) {
	topology, ok := sub.Topology.WGPU()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTopology, sub.Topology)
	}

	raster := sub.Material.RasterState()
	p := &pipeline{
		variant:            shader.NewVariant(mesh, sub),
		vertexBuffers:      []wgpu.VertexBufferLayout{mesh.Layout.WGPU()},
		topology:           topology,
		stripIndexFormat:   wgpu.IndexFormatUndefined,
		depthTestEnabled:   true,
		depthWriteEnabled:  raster.DepthWrite,
		depthCompare:       raster.DepthCompare,
		depthFormat:        wgpu.TextureFormatDepth24Plus,
		sampleCount:        1,
		cullMode:           raster.CullMode,
		frontFace:          raster.FrontFace,
		writeMask:          wgpu.ColorWriteMaskAll,
		blendState:         raster.Blend,
		vertexEntryPoint:   "vs_main",
		fragmentEntryPoint: "fs_main",
	}
	if mesh.Skin != nil {
		p.vertexBuffers = append(p.vertexBuffers, model.SkinVertexLayout().WGPU())
	}
	if sub.Indexed && mesh.Indices != nil &&
		(topology == wgpu.PrimitiveTopologyLineStrip || topology == wgpu.PrimitiveTopologyTriangleStrip) {
		p.stripIndexFormat = mesh.Indices.Format()
	}

	for _, opt := range opts {
		opt(p)
	}

	p.pipelineKey = fmt.Sprintf("%s;topology=%d;cull=%d;blend=%t;depthWrite=%t",
		p.variant.Key(), p.topology, p.cullMode, p.blendState != nil, p.depthWriteEnabled)
	return p, nil
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Variant() shader.Variant {
	return p.variant
}

func (p *pipeline) VertexBuffers() []wgpu.VertexBufferLayout {
	return p.vertexBuffers
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) StripIndexFormat() wgpu.IndexFormat {
	return p.stripIndexFormat
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendState != nil
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Descriptor(layout *wgpu.PipelineLayout, vs, fs *wgpu.ShaderModule, colorFormat wgpu.TextureFormat) *wgpu.RenderPipelineDescriptor {
	depthCompare := p.depthCompare
	if !p.depthTestEnabled {
		depthCompare = wgpu.CompareFunctionAlways
	}

	return &wgpu.RenderPipelineDescriptor{
		Label:  p.pipelineKey,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: p.vertexEntryPoint,
			Buffers:    p.vertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: p.fragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    colorFormat,
				Blend:     p.blendState,
				WriteMask: p.writeMask,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:         p.topology,
			StripIndexFormat: p.stripIndexFormat,
			FrontFace:        p.frontFace,
			CullMode:         p.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: p.sampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:              p.depthFormat,
			DepthWriteEnabled:   p.depthWriteEnabled,
			DepthCompare:        depthCompare,
			DepthBias:           p.depthBias,
			DepthBiasSlopeScale: p.depthBiasSlopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	}
}
