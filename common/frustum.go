package common

import (
	"math"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// SignedDistance returns the signed distance from point p to the plane.
// Positive values lie on the side the normal points to.
func (pl Plane) SignedDistance(p [3]float32) float32 {
	return pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2] + pl.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// frustumRows lists, per plane, the clip-space row combined with row 3 and its sign.
var frustumRows = [6]struct {
	row  int
	sign float32
}{
	FrustumLeft:   {0, 1},
	FrustumRight:  {0, -1},
	FrustumBottom: {1, 1},
	FrustumTop:    {1, -1},
	FrustumNear:   {2, 1},
	FrustumFar:    {2, -1},
}

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix
// using the Gribb/Hartmann method. The matrix is column-major, so element M[row][col]
// lives at index col*4 + row.
//
// Parameters:
//   - viewProj: the 16 values of the combined view-projection matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj [16]float32) Frustum {
	var f Frustum
	at := func(row, col int) float32 { return viewProj[col*4+row] }

	for i, r := range frustumRows {
		p := &f.Planes[i]
		for col := range 3 {
			p.Normal[col] = at(3, col) + r.sign*at(r.row, col)
		}
		p.Distance = at(3, 3) + r.sign*at(r.row, 3)
		p.normalize()
	}
	return f
}

// normalize scales the plane so that its normal has unit length.
func (p *Plane) normalize() {
	length := float32(math.Sqrt(float64(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])))
	if length == 0 {
		return
	}
	inv := 1 / length
	p.Normal[0] *= inv
	p.Normal[1] *= inv
	p.Normal[2] *= inv
	p.Distance *= inv
}

// ContainsSphere reports whether a sphere intersects or lies inside the frustum.
//
// Parameters:
//   - center: the sphere center in world space
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only when the sphere is entirely outside at least one plane
func (f Frustum) ContainsSphere(center [3]float32, radius float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}
