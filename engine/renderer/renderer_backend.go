package renderer

import (
	"context"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8

	// MSAA16x enables 16× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA16x MSAASampleCount = 16
)

// FrameTargets are the attachments acquired for one frame. SampledColor is only valid when
// the backend renders with more than one sample.
type FrameTargets struct {
	SwapChain    render_resource.ResourceID
	Depth        render_resource.ResourceID
	SampledColor render_resource.ResourceID
}

// PassTarget are the attachments the main pass renders into, read from the main_pass node
// outputs after the render graph ran.
type PassTarget struct {
	ColorAttachment render_resource.ResourceID
	// ResolveTarget is invalid when the pass is single-sampled.
	ResolveTarget render_resource.ResourceID
	// Depth is invalid when the graph has no depth texture.
	Depth render_resource.ResourceID
}

// PipelineSource looks up compiled render pipelines referenced by recorded draw commands.
type PipelineSource interface {
	Pipeline(handle pipeline.CompiledPipelineHandle) (*pipeline.CompiledPipeline, bool)
}

// Backend realizes pipelines, resources and frames on a concrete GPU API. Resource methods are
// safe for concurrent use; frame methods are called from the frame driver goroutine only.
type Backend interface {
	pipeline.Backend

	// CreateBuffer allocates a GPU buffer and uploads its initial contents.
	//
	// Parameters:
	//   - label: the debug label
	//   - usage: the buffer usage flags; CopyDst is always added
	//   - size: the buffer size in bytes
	//   - data: optional initial contents, at most size bytes
	//
	// Returns:
	//   - render_resource.ResourceID: the new buffer
	//   - error: an error if the buffer could not be created
	CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, data []byte) (render_resource.ResourceID, error)

	// WriteBuffer uploads data into a buffer at the given offset.
	//
	// Parameters:
	//   - id: the buffer
	//   - offset: the byte offset
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the buffer is unknown or too small
	WriteBuffer(id render_resource.ResourceID, offset uint64, data []byte) error

	// CreateTexture allocates a sampled 2D texture and uploads its pixels.
	//
	// Parameters:
	//   - label: the debug label
	//   - format: the texture format
	//   - image: the RGBA pixels
	//
	// Returns:
	//   - render_resource.ResourceID: the new texture
	//   - error: an error if the texture could not be created
	CreateTexture(label string, format wgpu.TextureFormat, image common.TextureStagingData) (render_resource.ResourceID, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - label: the debug label
	//   - sampler: the sampler configuration; zero fields take linear/repeat defaults
	//
	// Returns:
	//   - render_resource.ResourceID: the new sampler
	//   - error: an error if the sampler could not be created
	CreateSampler(label string, sampler common.SamplerStagingData) (render_resource.ResourceID, error)

	// ReleaseResource frees a buffer, texture or sampler. Unknown ids are ignored.
	//
	// Parameters:
	//   - id: the resource to release
	ReleaseResource(id render_resource.ResourceID)

	// BeginFrame acquires the frame's attachments.
	//
	// Parameters:
	//   - ctx: the frame context
	//
	// Returns:
	//   - FrameTargets: the attachments of this frame
	//   - error: an error if the surface could not be acquired
	BeginFrame(ctx context.Context) (FrameTargets, error)

	// Dispatch records a compute dispatch. Dispatches are submitted before the frame's draws.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - p: the compiled compute pipeline
	//   - groups: the resolved bind groups
	//   - workgroups: the workgroup counts
	//
	// Returns:
	//   - error: an error if the dispatch could not be recorded
	Dispatch(ctx context.Context, p *pipeline.CompiledComputePipeline, groups []draw.BindGroup, workgroups [3]uint32) error

	// Submit encodes the draw lists into the main pass and submits them.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - target: the pass attachments
	//   - pipelines: the lookup for pipelines referenced by the commands
	//   - lists: the draw lists in submission order
	//
	// Returns:
	//   - error: an error if a command references an unknown pipeline or resource
	Submit(ctx context.Context, target PassTarget, pipelines PipelineSource, lists []*draw.DrawList) error

	// EndFrame presents the frame and releases per-frame attachments. It is safe to call
	// when BeginFrame failed.
	EndFrame()

	// Resize reallocates the size-dependent attachments.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// SampleCount returns the sample count of the main pass.
	SampleCount() uint32

	// Release frees every resource owned by the backend.
	Release()
}
