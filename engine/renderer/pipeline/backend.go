package pipeline

import (
	"context"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
)

// BackendPipeline is a backend-realized pipeline object. It is owned by the compiler cache
// and released when its entry is invalidated or the compiler is released.
type BackendPipeline interface {
	Release()
}

// RenderPipelineRequest is the fully specialized render pipeline handed to a backend:
// processed shader sources, reflected bindings and the final vertex layout.
type RenderPipelineRequest struct {
	Label          string
	Descriptor     PipelineDescriptor
	Specialization PipelineSpecialization

	VertexSource     string
	VertexEntryPoint string

	// FragmentSource is empty for depth-only pipelines.
	FragmentSource     string
	FragmentEntryPoint string

	// Bindings are merged across stages, sorted by group then binding. Entries named in
	// Specialization.DynamicBindings have a dynamic offset.
	Bindings []shader.BindingLayout

	// VertexLayout holds only the attributes the vertex shader consumes, at the shader's locations.
	VertexLayout vertex_layout.VertexBufferLayout
}

// ComputePipelineRequest is the fully specialized compute pipeline handed to a backend.
type ComputePipelineRequest struct {
	Label          string
	Descriptor     ComputePipelineDescriptor
	Specialization ComputePipelineSpecialization
	Source         string
	EntryPoint     string
	WorkgroupSize  [3]uint32
	Bindings       []shader.BindingLayout
}

// Backend compiles specialized pipelines. Implementations may be slow; the compilers call
// them at most once per cache key and never while holding a cache lock.
type Backend interface {
	// CompileRenderPipeline realizes a render pipeline.
	//
	// Parameters:
	//   - ctx: the context of the requesting frame
	//   - req: the specialized pipeline
	//
	// Returns:
	//   - BackendPipeline: the realized pipeline
	//   - error: the backend's rejection, e.g. a shader compile error
	CompileRenderPipeline(ctx context.Context, req *RenderPipelineRequest) (BackendPipeline, error)

	// CompileComputePipeline realizes a compute pipeline.
	//
	// Parameters:
	//   - ctx: the context of the requesting frame
	//   - req: the specialized pipeline
	//
	// Returns:
	//   - BackendPipeline: the realized pipeline
	//   - error: the backend's rejection
	CompileComputePipeline(ctx context.Context, req *ComputePipelineRequest) (BackendPipeline, error)
}
