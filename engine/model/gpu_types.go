package model

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// GPUVertexSize is the packed size of a GPUVertex in bytes.
const GPUVertexSize = 32

// GPUVertex is the packed representation of a single static mesh vertex.
// Size: 32 bytes (no padding, vertex buffers are not std430 aligned).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
}

// GPUVertexAttributes returns the mesh attributes describing GPUVertex, named after the WGSL
// vertex inputs they feed.
//
// Returns:
//   - []vertex_layout.MeshAttribute: the position, normal and uv attributes
func GPUVertexAttributes() []vertex_layout.MeshAttribute {
	return []vertex_layout.MeshAttribute{
		{Name: PositionAttribute, Format: wgpu.VertexFormatFloat32x3},
		{Name: "Vertex_Normal", Format: wgpu.VertexFormatFloat32x3},
		{Name: "Vertex_Uv", Format: wgpu.VertexFormatFloat32x2},
	}
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, GPUVertexSize)
	floats := [8]float32{
		g.Position[0], g.Position[1], g.Position[2],
		g.Normal[0], g.Normal[1], g.Normal[2],
		g.TexCoord[0], g.TexCoord[1],
	}
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
