package pipeline

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gltf/engine/model"
	"github.com/Carmen-Shannon/oxy-gltf/engine/renderer/material"

	"github.com/cogentcore/webgpu/wgpu"
)

func testMesh(skinned bool) *model.Mesh {
	m := &model.Mesh{
		Layout:  model.NewVertexLayout(false, false),
		Indices: model.NewIndexBuffer(wgpu.IndexFormatUint16, 6),
	}
	if skinned {
		m.Skin = make([]float32, 8)
		m.Defines = []string{model.DefineSkinning}
	}
	return m
}

func TestNewPipelineFromOpaqueMaterial(t *testing.T) {
	sub := &model.SubMesh{Material: material.NewDefaultMaterial(), Topology: model.TopologyTriangles, Indexed: true, DrawCount: 6}
	p, err := NewPipeline(testMesh(false), sub)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	if p.Topology() != wgpu.PrimitiveTopologyTriangleList || p.StripIndexFormat() != wgpu.IndexFormatUndefined {
		t.Errorf("topology = %v, strip format = %v", p.Topology(), p.StripIndexFormat())
	}
	if p.BlendEnabled() || !p.DepthWriteEnabled() || !p.DepthTestEnabled() || p.CullMode() != wgpu.CullModeBack {
		t.Error("opaque material produced non-opaque pipeline state")
	}
	if len(p.VertexBuffers()) != 1 || p.VertexBuffers()[0].ArrayStride != 32 {
		t.Errorf("VertexBuffers() = %+v", p.VertexBuffers())
	}
	if !p.Variant().Has(material.DefineFullyRough) {
		t.Errorf("variant defines = %v", p.Variant().Defines)
	}
}

func TestNewPipelineFromBlendMaterial(t *testing.T) {
	mat := material.NewMaterial(material.WithAlphaMode(material.AlphaBlend, 0), material.WithDoubleSided(true))
	p, err := NewPipeline(testMesh(true), &model.SubMesh{Material: mat, Topology: model.TopologyTriangles})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	if !p.BlendEnabled() || p.BlendState() != mat.RasterState().Blend {
		t.Error("blend state not taken from the material")
	}
	if p.DepthWriteEnabled() || p.CullMode() != wgpu.CullModeNone {
		t.Errorf("depth write %v, cull %v", p.DepthWriteEnabled(), p.CullMode())
	}

	buffers := p.VertexBuffers()
	if len(buffers) != 2 || buffers[1].ArrayStride != model.SkinVertexStride {
		t.Fatalf("VertexBuffers() = %+v, want mesh and skin buffers", buffers)
	}
	if buffers[1].Attributes[0].ShaderLocation != model.LocationJoints0 {
		t.Errorf("skin buffer locations = %+v", buffers[1].Attributes)
	}
}

func TestNewPipelineStripIndexFormat(t *testing.T) {
	mesh := testMesh(false)
	mat := material.NewDefaultMaterial()

	indexed, err := NewPipeline(mesh, &model.SubMesh{Material: mat, Topology: model.TopologyTriangleStrip, Indexed: true})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if indexed.StripIndexFormat() != wgpu.IndexFormatUint16 {
		t.Errorf("indexed strip format = %v, want Uint16", indexed.StripIndexFormat())
	}

	plain, err := NewPipeline(mesh, &model.SubMesh{Material: mat, Topology: model.TopologyLineStrip})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if plain.StripIndexFormat() != wgpu.IndexFormatUndefined {
		t.Errorf("non-indexed strip format = %v, want undefined", plain.StripIndexFormat())
	}
}

func TestNewPipelineUnsupportedTopology(t *testing.T) {
	for _, topology := range []model.Topology{model.TopologyLineLoop, model.TopologyTriangleFan} {
		_, err := NewPipeline(testMesh(false), &model.SubMesh{Material: material.NewDefaultMaterial(), Topology: topology})
		if !errors.Is(err, ErrUnsupportedTopology) {
			t.Errorf("%s: error = %v, want ErrUnsupportedTopology", topology, err)
		}
	}
}

func TestPipelineKey(t *testing.T) {
	mesh := testMesh(false)
	opaque := &model.SubMesh{Material: material.NewDefaultMaterial(), Topology: model.TopologyTriangles}
	renamed := &model.SubMesh{Material: material.NewMaterial(material.WithName("copy")), Topology: model.TopologyTriangles}
	lines := &model.SubMesh{Material: material.NewDefaultMaterial(), Topology: model.TopologyLines}

	a, _ := NewPipeline(mesh, opaque)
	b, _ := NewPipeline(mesh, renamed)
	c, _ := NewPipeline(mesh, lines)
	d, _ := NewPipeline(mesh, opaque, WithCullMode(wgpu.CullModeFront))

	if a.PipelineKey() != b.PipelineKey() {
		t.Errorf("equivalent sub-meshes have keys %q and %q", a.PipelineKey(), b.PipelineKey())
	}
	if a.PipelineKey() == c.PipelineKey() || a.PipelineKey() == d.PipelineKey() {
		t.Error("topology or cull override did not change the key")
	}
}

func TestPipelineDescriptor(t *testing.T) {
	p, err := NewPipeline(testMesh(false), &model.SubMesh{Material: material.NewDefaultMaterial(), Topology: model.TopologyTriangles},
		WithDepthTestEnabled(false),
		WithDepthWriteEnabled(false),
		WithDepthBias(2, 1.5),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
		WithSampleCount(0),
		WithWriteMask(wgpu.ColorWriteMaskRed),
		WithEntryPoints("vert", "frag"),
	)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	d := p.Descriptor(nil, nil, nil, wgpu.TextureFormatBGRA8Unorm)
	if d.Vertex.EntryPoint != "vert" || d.Fragment.EntryPoint != "frag" {
		t.Errorf("entry points = %q, %q", d.Vertex.EntryPoint, d.Fragment.EntryPoint)
	}
	if d.DepthStencil.DepthCompare != wgpu.CompareFunctionAlways || d.DepthStencil.DepthWriteEnabled {
		t.Errorf("depth state = %+v, want test and write disabled", d.DepthStencil)
	}
	if d.DepthStencil.Format != wgpu.TextureFormatDepth32Float || d.DepthStencil.DepthBias != 2 {
		t.Errorf("depth format %v, bias %d", d.DepthStencil.Format, d.DepthStencil.DepthBias)
	}
	if d.Multisample.Count != 1 {
		t.Errorf("sample count = %d, want 1", d.Multisample.Count)
	}
	target := d.Fragment.Targets[0]
	if target.Format != wgpu.TextureFormatBGRA8Unorm || target.WriteMask != wgpu.ColorWriteMaskRed || target.Blend != nil {
		t.Errorf("color target = %+v", target)
	}
	if d.Label != p.PipelineKey() || len(d.Vertex.Buffers) != 1 {
		t.Errorf("label %q, %d vertex buffers", d.Label, len(d.Vertex.Buffers))
	}
}
