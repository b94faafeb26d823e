package world

import (
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
)

// RenderEntityBuilderOption is a functional option for configuring a RenderEntity during construction.
type RenderEntityBuilderOption func(*RenderEntity)

// WithMesh sets the mesh asset drawn for the entity.
//
// Parameters:
//   - mesh: the mesh asset handle
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the mesh
func WithMesh(mesh asset.Handle) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Mesh = mesh
	}
}

// WithVisible sets whether the entity is drawn.
//
// Parameters:
//   - visible: false hides the entity from every camera
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the visibility flag
func WithVisible(visible bool) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Visible = visible
	}
}

// WithTransparent marks the entity as transparent, drawing it back-to-front after opaque entities.
//
// Parameters:
//   - transparent: true for transparent entities
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the transparency flag
func WithTransparent(transparent bool) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Transparent = transparent
	}
}

// WithPosition sets the world-space position of the entity.
//
// Parameters:
//   - x, y, z: position in world space
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the position
func WithPosition(x, y, z float32) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Position = [3]float32{x, y, z}
	}
}

// WithBounds sets the bounding sphere used for frustum culling.
//
// Parameters:
//   - radius: the sphere radius around the entity position
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the bounds
func WithBounds(radius float32) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Bounds = &Bounds{Radius: radius}
	}
}

// WithRenderPipeline appends a pipeline the entity is drawn with.
//
// Parameters:
//   - p: the render pipeline selection
//
// Returns:
//   - RenderEntityBuilderOption: functional option to add the pipeline
func WithRenderPipeline(p RenderPipeline) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.RenderPipelines = append(e.RenderPipelines, p)
	}
}

// WithTexture adds a texture asset whose bindings the entity's draws resolve.
//
// Parameters:
//   - texture: the texture asset handle
//
// Returns:
//   - RenderEntityBuilderOption: functional option to add the texture
func WithTexture(texture asset.Handle) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Textures = append(e.Textures, texture)
	}
}

// WithShaderDefs adds shader defines for the first frame.
//
// Parameters:
//   - defs: the define names
//
// Returns:
//   - RenderEntityBuilderOption: functional option to add the defines
func WithShaderDefs(defs ...string) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.ShaderDefs.Add(defs...)
	}
}

// WithCamera attaches a camera component.
//
// Parameters:
//   - c: the camera component
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the camera
func WithCamera(c camera.Camera) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Camera = &c
	}
}

// WithCompute attaches a per-frame compute dispatch.
//
// Parameters:
//   - d: the dispatch request
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the dispatch
func WithCompute(d ComputeDispatch) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Compute = &d
	}
}

// WithLight attaches a light positioned at the entity.
//
// Parameters:
//   - l: the light component
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the light
func WithLight(l light.Light) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Light = &l
	}
}

// WithMaterial sets the surface factors of the entity.
//
// Parameters:
//   - m: the material
//
// Returns:
//   - RenderEntityBuilderOption: functional option to set the material
func WithMaterial(m material.Material) RenderEntityBuilderOption {
	return func(e *RenderEntity) {
		e.Material = &m
	}
}
