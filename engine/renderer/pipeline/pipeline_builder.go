package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to override derived pipeline state.
type PipelineBuilderOption func(*pipeline)

// WithDepthTestEnabled enables or disables depth testing for this pipeline.
//
// Parameters:
//   - enabled: true to enable depth testing, false to disable it
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth testing state for this pipeline
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled overrides the material's depth write state.
//
// Parameters:
//   - enabled: true to enable depth writing, false to disable it
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth writing state for this pipeline
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithDepthBias sets the depth bias and slope scale for this pipeline.
//
// Parameters:
//   - bias: the constant depth bias to apply
//   - slopeScale: the slope-scaled depth bias factor
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias for this pipeline
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias = bias
		p.depthBiasSlopeScale = slopeScale
	}
}

// WithDepthFormat sets the depth attachment format. Defaults to Depth24Plus.
func WithDepthFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}

// WithSampleCount sets the multisample count. Defaults to 1.
func WithSampleCount(count uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.sampleCount = max(count, 1)
	}
}

// WithCullMode overrides the material's cull mode.
//
// Parameters:
//   - mode: the cull mode to use (e.g., wgpu.CullModeNone, wgpu.CullModeFront, wgpu.CullModeBack)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithWriteMask sets the color write mask for this pipeline.
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithEntryPoints sets the shader entry point names. Defaults to vs_main and fs_main.
func WithEntryPoints(vertex, fragment string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexEntryPoint = vertex
		p.fragmentEntryPoint = fragment
	}
}
