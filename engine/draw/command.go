// Package draw records backend-neutral render commands into per-camera draw lists.
package draw

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// CommandKind identifies the variant of a RenderCommand.
type CommandKind int

const (
	// CommandSetPipeline binds a compiled pipeline.
	CommandSetPipeline CommandKind = iota
	// CommandSetBindGroup binds resources to one bind group index.
	CommandSetBindGroup
	// CommandSetVertexBuffer binds a vertex buffer to a slot.
	CommandSetVertexBuffer
	// CommandSetIndexBuffer binds the index buffer.
	CommandSetIndexBuffer
	// CommandDrawIndexed issues an indexed draw.
	CommandDrawIndexed
	// CommandDraw issues a non-indexed draw.
	CommandDraw
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetPipeline:
		return "set_pipeline"
	case CommandSetBindGroup:
		return "set_bind_group"
	case CommandSetVertexBuffer:
		return "set_vertex_buffer"
	case CommandSetIndexBuffer:
		return "set_index_buffer"
	case CommandDrawIndexed:
		return "draw_indexed"
	case CommandDraw:
		return "draw"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// RenderCommand is one recorded pass command. Only the fields of its Kind are meaningful.
type RenderCommand struct {
	Kind CommandKind

	Pipeline  pipeline.CompiledPipelineHandle
	BindGroup BindGroup

	Slot        uint32
	Buffer      render_resource.ResourceID
	IndexFormat wgpu.IndexFormat

	// Count is the vertex or index count of a draw.
	Count     uint32
	Instances uint32
}

// SetPipeline records binding a compiled pipeline.
func SetPipeline(h pipeline.CompiledPipelineHandle) RenderCommand {
	return RenderCommand{Kind: CommandSetPipeline, Pipeline: h}
}

// SetBindGroup records binding one resolved bind group.
func SetBindGroup(bg BindGroup) RenderCommand {
	return RenderCommand{Kind: CommandSetBindGroup, BindGroup: bg}
}

// SetVertexBuffer records binding a vertex buffer to a slot.
func SetVertexBuffer(slot uint32, buffer render_resource.ResourceID) RenderCommand {
	return RenderCommand{Kind: CommandSetVertexBuffer, Slot: slot, Buffer: buffer}
}

// SetIndexBuffer records binding the index buffer.
func SetIndexBuffer(buffer render_resource.ResourceID, format wgpu.IndexFormat) RenderCommand {
	return RenderCommand{Kind: CommandSetIndexBuffer, Buffer: buffer, IndexFormat: format}
}

// DrawIndexed records an indexed draw of count indices.
func DrawIndexed(count, instances uint32) RenderCommand {
	return RenderCommand{Kind: CommandDrawIndexed, Count: count, Instances: instances}
}

// Draw records a non-indexed draw of count vertices.
func Draw(count, instances uint32) RenderCommand {
	return RenderCommand{Kind: CommandDraw, Count: count, Instances: instances}
}
