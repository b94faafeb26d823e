// Package camera tracks which camera entity drives each named camera slot and which entities
// each active camera can see. Projection math is supplied by the host through Camera.ViewProjection.
package camera

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// Camera is the camera component of an entity. Name selects the active camera slot the entity
// can fill, e.g. "camera_3d".
type Camera struct {
	Name           string
	ViewProjection [16]float32
	Position       [3]float32
}

// Frustum extracts the culling frustum of the camera's view-projection matrix.
//
// Returns:
//   - common.Frustum: the normalized frustum planes
func (c Camera) Frustum() common.Frustum {
	return common.ExtractFrustumFromMatrix(c.ViewProjection)
}

// Uniform returns the GPU uniform block of the camera.
//
// Returns:
//   - GPUCameraUniform: the uniform data ready for Marshal
func (c Camera) Uniform() GPUCameraUniform {
	return GPUCameraUniform{
		ViewProj:       c.ViewProjection,
		CameraPosition: c.Position,
	}
}

// DistanceSquared returns the squared distance from the camera position to p.
func (c Camera) DistanceSquared(p [3]float32) float32 {
	dx, dy, dz := p[0]-c.Position[0], p[1]-c.Position[1], p[2]-c.Position[2]
	return dx*dx + dy*dy + dz*dz
}
