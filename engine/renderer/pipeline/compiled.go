package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
)

// CompiledPipeline is a cached render pipeline together with the reflected interface the
// draw stage needs to bind resources and vertex buffers against it.
type CompiledPipeline struct {
	Handle         CompiledPipelineHandle
	Descriptor     asset.Handle
	Label          string
	Specialization PipelineSpecialization
	Bindings       []shader.BindingLayout
	VertexLayout   vertex_layout.VertexBufferLayout
	Backend        BackendPipeline
}

func (p *CompiledPipeline) release() {
	if p.Backend != nil {
		p.Backend.Release()
	}
}

// CompiledComputePipeline is a cached compute pipeline.
type CompiledComputePipeline struct {
	Handle         CompiledComputePipelineHandle
	Descriptor     asset.Handle
	Label          string
	Specialization ComputePipelineSpecialization
	Bindings       []shader.BindingLayout
	WorkgroupSize  [3]uint32
	Backend        BackendPipeline
}

func (p *CompiledComputePipeline) release() {
	if p.Backend != nil {
		p.Backend.Release()
	}
}
