package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipelineDescriptor is the implementation of the PipelineDescriptor interface.
// Fields are set by builder options at construction and never mutated afterwards.
type pipelineDescriptor struct {
	label string

	// vertexShader and fragmentShader address shader.Shader assets. The fragment shader is
	// optional; depth-only pipelines omit it.
	vertexShader, fragmentShader asset.Handle

	topology  wgpu.PrimitiveTopology
	frontFace wgpu.FrontFace
	cullMode  wgpu.CullMode

	depthTestEnabled    bool
	depthWriteEnabled   bool
	depthCompare        wgpu.CompareFunction
	depthFormat         wgpu.TextureFormat
	depthBias           int32
	depthBiasSlopeScale float32

	colorFormat  wgpu.TextureFormat
	blendEnabled bool
	blendState   *wgpu.BlendState
	writeMask    wgpu.ColorWriteMask
}

// PipelineDescriptor is the immutable template of a render pipeline: its shader stages and
// fixed-function state. Descriptors are stored as assets and referenced by handle; a
// PipelineSpecialization adapts one to a concrete draw.
type PipelineDescriptor interface {
	// Label returns the debug label of the descriptor.
	//
	// Returns:
	//   - string: the label
	Label() string

	// VertexShader returns the handle of the vertex shader asset.
	//
	// Returns:
	//   - asset.Handle: the vertex shader handle
	VertexShader() asset.Handle

	// FragmentShader returns the handle of the fragment shader asset, or an invalid handle for
	// depth-only pipelines.
	//
	// Returns:
	//   - asset.Handle: the fragment shader handle
	FragmentShader() asset.Handle

	// Topology returns the default primitive topology. Specializations carry the topology
	// actually compiled; DefaultSpecialization seeds it from this value.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the default topology
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order.
	//
	// Returns:
	//   - wgpu.FrontFace: the winding order (e.g. wgpu.FrontFaceCCW)
	FrontFace() wgpu.FrontFace

	// CullMode returns the face culling mode.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode (e.g. wgpu.CullModeBack)
	CullMode() wgpu.CullMode

	// DepthTestEnabled returns whether a depth attachment is tested.
	//
	// Returns:
	//   - bool: true if depth testing is enabled
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth values are written.
	//
	// Returns:
	//   - bool: true if depth writes are enabled
	DepthWriteEnabled() bool

	// DepthCompare returns the depth comparison function.
	//
	// Returns:
	//   - wgpu.CompareFunction: the compare function
	DepthCompare() wgpu.CompareFunction

	// DepthFormat returns the format of the depth attachment.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// DepthBias returns the constant depth bias and its slope scale.
	//
	// Returns:
	//   - int32: the constant depth bias
	//   - float32: the slope scale
	DepthBias() (int32, float32)

	// ColorFormat returns the format of the color target.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	ColorFormat() wgpu.TextureFormat

	// BlendState returns the color blend state, or nil when blending is disabled.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state or nil
	BlendState() *wgpu.BlendState

	// WriteMask returns the color write mask.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the write mask
	WriteMask() wgpu.ColorWriteMask

	// References reports whether the descriptor uses the given shader asset.
	//
	// Parameters:
	//   - shader: the shader asset handle
	//
	// Returns:
	//   - bool: true if either stage uses the shader
	References(shader asset.Handle) bool
}

var _ PipelineDescriptor = &pipelineDescriptor{}

// NewPipelineDescriptor creates a render pipeline descriptor for a vertex shader asset.
// Defaults: triangle list, CCW front face, no culling, depth test and write with
// CompareFunctionLess on Depth24Plus, BGRA8Unorm color target, blending off with an
// alpha blend state ready for WithBlendEnabled, all color channels written.
//
// Parameters:
//   - vertexShader: the vertex shader asset handle
//   - opts: builder options configuring the remaining state
//
// Returns:
//   - PipelineDescriptor: the immutable descriptor
func NewPipelineDescriptor(vertexShader asset.Handle, opts ...PipelineDescriptorBuilderOption) PipelineDescriptor {
	d := &pipelineDescriptor{
		vertexShader:      vertexShader,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		cullMode:          wgpu.CullModeNone,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		depthCompare:      wgpu.CompareFunctionLess,
		depthFormat:       wgpu.TextureFormatDepth24Plus,
		colorFormat:       wgpu.TextureFormatBGRA8Unorm,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *pipelineDescriptor) Label() string {
	return d.label
}

func (d *pipelineDescriptor) VertexShader() asset.Handle {
	return d.vertexShader
}

func (d *pipelineDescriptor) FragmentShader() asset.Handle {
	return d.fragmentShader
}

func (d *pipelineDescriptor) Topology() wgpu.PrimitiveTopology {
	return d.topology
}

func (d *pipelineDescriptor) FrontFace() wgpu.FrontFace {
	return d.frontFace
}

func (d *pipelineDescriptor) CullMode() wgpu.CullMode {
	return d.cullMode
}

func (d *pipelineDescriptor) DepthTestEnabled() bool {
	return d.depthTestEnabled
}

func (d *pipelineDescriptor) DepthWriteEnabled() bool {
	return d.depthWriteEnabled
}

func (d *pipelineDescriptor) DepthCompare() wgpu.CompareFunction {
	return d.depthCompare
}

func (d *pipelineDescriptor) DepthFormat() wgpu.TextureFormat {
	return d.depthFormat
}

func (d *pipelineDescriptor) DepthBias() (int32, float32) {
	return d.depthBias, d.depthBiasSlopeScale
}

func (d *pipelineDescriptor) ColorFormat() wgpu.TextureFormat {
	return d.colorFormat
}

func (d *pipelineDescriptor) BlendState() *wgpu.BlendState {
	if !d.blendEnabled {
		return nil
	}
	return d.blendState
}

func (d *pipelineDescriptor) WriteMask() wgpu.ColorWriteMask {
	return d.writeMask
}

func (d *pipelineDescriptor) References(shader asset.Handle) bool {
	return shader.Valid() && (d.vertexShader == shader || d.fragmentShader == shader)
}

// ComputePipelineDescriptor is the immutable template of a compute pipeline.
type ComputePipelineDescriptor struct {
	Label         string
	ComputeShader asset.Handle
}

// References reports whether the descriptor uses the given shader asset.
func (d ComputePipelineDescriptor) References(shader asset.Handle) bool {
	return shader.Valid() && d.ComputeShader == shader
}
