package vertex_layout

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormatSizes maps each supported vertex format to its byte size.
var vertexFormatSizes = map[wgpu.VertexFormat]uint64{
	wgpu.VertexFormatFloat16x2: 4,
	wgpu.VertexFormatFloat16x4: 8,
	wgpu.VertexFormatFloat32:   4,
	wgpu.VertexFormatFloat32x2: 8,
	wgpu.VertexFormatFloat32x3: 12,
	wgpu.VertexFormatFloat32x4: 16,
	wgpu.VertexFormatSint32:    4,
	wgpu.VertexFormatSint32x2:  8,
	wgpu.VertexFormatSint32x3:  12,
	wgpu.VertexFormatSint32x4:  16,
	wgpu.VertexFormatUint32:    4,
	wgpu.VertexFormatUint32x2:  8,
	wgpu.VertexFormatUint32x3:  12,
	wgpu.VertexFormatUint32x4:  16,
}

// FormatSize returns the byte size of a vertex format.
//
// Parameters:
//   - f: the vertex format
//
// Returns:
//   - uint64: the size in bytes
//   - bool: false if the format is not supported
func FormatSize(f wgpu.VertexFormat) (uint64, bool) {
	size, ok := vertexFormatSizes[f]
	return size, ok
}
