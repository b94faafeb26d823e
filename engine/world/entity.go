// Package world is the boundary between the host's entity storage and the renderer. It keeps
// the render-relevant components of each entity; everything else stays with the host.
package world

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// Entity identifies a spawned entity. The zero Entity is never issued.
type Entity uint64

// Bounds is a bounding sphere relative to the entity position.
type Bounds struct {
	Center [3]float32
	Radius float32
}

// RenderPipeline selects one pipeline an entity is drawn with.
type RenderPipeline struct {
	// Descriptor is the pipeline descriptor asset.
	Descriptor asset.Handle
	// Specialization is the base specialization. Nil selects pipeline.DefaultSpecialization of
	// the descriptor. Entity shader defs, the mesh vertex layout, the sample count and dynamic
	// bindings are merged in by the frame driver.
	Specialization *pipeline.PipelineSpecialization
	// DynamicBindings names buffers drawn with dynamic offsets in addition to those the binding
	// table marks dynamic.
	DynamicBindings []string
}

// ComputeDispatch requests one compute dispatch per frame for an entity.
type ComputeDispatch struct {
	Descriptor     asset.Handle
	Specialization pipeline.ComputePipelineSpecialization
	Workgroups     [3]uint32
	// BindingScope is the scope bindings are resolved from, falling back to global. Nil
	// selects the entity's own scope.
	BindingScope *render_resource.Scope
}

// RenderEntity holds the render components of one entity.
type RenderEntity struct {
	Mesh            asset.Handle
	Visible         bool
	Transparent     bool
	Position        [3]float32
	Bounds          *Bounds
	RenderPipelines []RenderPipeline
	// Textures are texture assets whose bindings the entity's draws resolve, searched in order
	// after the entity and mesh scopes.
	Textures []asset.Handle
	// ShaderDefs are the defines added for the current frame; the frame driver resets them
	// after rendering.
	ShaderDefs shader.ShaderDefs
	Camera     *camera.Camera
	Compute    *ComputeDispatch
	// Light is positioned at Position; it is packed whether or not the entity is drawable.
	Light *light.Light
	// Material publishes a material uniform in the entity scope of drawable entities.
	Material *material.Material
}

// NewRenderEntity creates a visible render entity with the given options applied.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - *RenderEntity: the new entity components
func NewRenderEntity(options ...RenderEntityBuilderOption) *RenderEntity {
	e := &RenderEntity{Visible: true}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Drawable reports whether the entity has everything needed to be drawn.
func (e *RenderEntity) Drawable() bool {
	return e.Visible && e.Mesh.Valid() && len(e.RenderPipelines) > 0
}

// Candidate returns the culling candidate of the entity for the given id.
func (e *RenderEntity) Candidate(id Entity) camera.Candidate {
	c := camera.Candidate{
		Entity:      uint64(id),
		Center:      e.Position,
		Transparent: e.Transparent,
	}
	if e.Bounds != nil {
		for i := range 3 {
			c.Center[i] += e.Bounds.Center[i]
		}
		c.Radius = e.Bounds.Radius
		c.HasBounds = true
	}
	return c
}
