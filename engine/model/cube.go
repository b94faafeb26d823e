package model

// cubeFaces lists the outward normal and the two in-plane axes of each cube face.
var cubeFaces = [6]struct {
	normal, u, v [3]float32
}{
	{normal: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
	{normal: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	{normal: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
	{normal: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
	{normal: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
	{normal: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
}

// NewCube builds an indexed, axis-aligned cube centered on the origin with four vertices per
// face so each face carries its own normal and uv coordinates.
//
// Parameters:
//   - size: the edge length of the cube
//   - options: builder options
//
// Returns:
//   - *Mesh: the cube mesh with 24 vertices and 36 indices
func NewCube(size float32, options ...MeshBuilderOption) *Mesh {
	h := size / 2
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range cubeFaces {
		base := uint32(len(vertices))
		for _, c := range corners {
			var p [3]float32
			for i := range 3 {
				p[i] = (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]) * h
			}
			vertices = append(vertices, GPUVertex{
				Position: p,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, (1 - c[1]) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewMesh(vertices, indices, append([]MeshBuilderOption{WithName("cube")}, options...)...)
}
