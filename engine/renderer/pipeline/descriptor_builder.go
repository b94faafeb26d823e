package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineDescriptorBuilderOption is a functional option used to configure a PipelineDescriptor during construction.
type PipelineDescriptorBuilderOption func(*pipelineDescriptor)

// WithLabel sets the debug label of the descriptor.
//
// Parameters:
//   - label: the label used in logs, errors and backend object names
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the label
func WithLabel(label string) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.label = label
	}
}

// WithFragmentShader sets the fragment shader asset.
//
// Parameters:
//   - h: the fragment shader asset handle
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the fragment shader
func WithFragmentShader(h asset.Handle) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.fragmentShader = h
	}
}

// WithTopology sets the default primitive topology.
//
// Parameters:
//   - topology: the topology (e.g. wgpu.PrimitiveTopologyLineList)
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the topology
func WithTopology(topology wgpu.PrimitiveTopology) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.topology = topology
	}
}

// WithFrontFace sets the front face winding order.
//
// Parameters:
//   - frontFace: the winding order (e.g. wgpu.FrontFaceCW)
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the front face
func WithFrontFace(frontFace wgpu.FrontFace) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.frontFace = frontFace
	}
}

// WithCullMode sets the face culling mode.
//
// Parameters:
//   - mode: the cull mode (e.g. wgpu.CullModeBack)
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.cullMode = mode
	}
}

// WithDepthTestEnabled sets whether depth testing is enabled.
//
// Parameters:
//   - enabled: true to test against the depth attachment
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the depth test state
func WithDepthTestEnabled(enabled bool) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled sets whether depth values are written.
//
// Parameters:
//   - enabled: true to write depth
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the depth write state
func WithDepthWriteEnabled(enabled bool) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.depthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison function.
//
// Parameters:
//   - compare: the compare function (e.g. wgpu.CompareFunctionLessEqual)
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the depth compare function
func WithDepthCompare(compare wgpu.CompareFunction) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.depthCompare = compare
	}
}

// WithDepthBias sets the depth bias parameters.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope scale depth bias
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the depth bias
func WithDepthBias(bias int32, slopeScale float32) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.depthBias = bias
		d.depthBiasSlopeScale = slopeScale
	}
}

// WithColorFormat sets the format of the color target.
//
// Parameters:
//   - format: the color target format, usually the surface format
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the color format
func WithColorFormat(format wgpu.TextureFormat) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.colorFormat = format
	}
}

// WithBlendEnabled sets whether the blend state is applied.
//
// Parameters:
//   - enabled: true to enable blending
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the blend enabled state
func WithBlendEnabled(enabled bool) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.blendEnabled = enabled
	}
}

// WithBlendState replaces the default alpha blend state and enables blending.
//
// Parameters:
//   - state: the blend state
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the blend state
func WithBlendState(state *wgpu.BlendState) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.blendState = state
		d.blendEnabled = state != nil
	}
}

// WithWriteMask sets the color write mask.
//
// Parameters:
//   - mask: the write mask (e.g. wgpu.ColorWriteMaskRed)
//
// Returns:
//   - PipelineDescriptorBuilderOption: a function that sets the write mask
func WithWriteMask(mask wgpu.ColorWriteMask) PipelineDescriptorBuilderOption {
	return func(d *pipelineDescriptor) {
		d.writeMask = mask
	}
}
