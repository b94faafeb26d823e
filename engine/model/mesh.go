// Package model holds the CPU-side geometry and texture assets consumed by resource provisioning.
// Meshes are packed vertex bytes plus the attribute list describing them; parsing model files
// into meshes is left to the host.
package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// PositionAttribute is the attribute name read by BoundingRadius.
const PositionAttribute = "Vertex_Position"

var (
	// ErrEmptyMesh is returned by Validate when the mesh has no vertices.
	ErrEmptyMesh = errors.New("model: mesh has no vertices")

	// ErrVertexDataSize is returned by Validate when the vertex bytes are not a whole number of vertices.
	ErrVertexDataSize = errors.New("model: vertex data is not a multiple of the vertex stride")

	// ErrIndexOutOfRange is returned by Validate when an index addresses a vertex past the end of the buffer.
	ErrIndexOutOfRange = errors.New("model: index out of range")
)

// Mesh is an immutable vertex and index buffer pair. Vertex data is packed in attribute
// declaration order with no padding, matching vertex_layout.Derive.
type Mesh struct {
	// Name labels the GPU buffers created for the mesh.
	Name string
	// Attributes lists the per-vertex attributes in buffer order.
	Attributes []vertex_layout.MeshAttribute
	// VertexData holds the packed vertices.
	VertexData []byte
	// Indices holds the optional 32 bit index list. An empty list means non-indexed drawing.
	Indices []uint32
}

// NewMesh packs a slice of GPUVertex values into a mesh using the GPUVertex attribute layout.
//
// Parameters:
//   - vertices: the vertices to pack
//   - indices: the index list, or nil for non-indexed drawing
//   - options: builder options
//
// Returns:
//   - *Mesh: the packed mesh
func NewMesh(vertices []GPUVertex, indices []uint32, options ...MeshBuilderOption) *Mesh {
	m := &Mesh{
		Attributes: GPUVertexAttributes(),
		VertexData: make([]byte, 0, len(vertices)*GPUVertexSize),
		Indices:    indices,
	}
	for i := range vertices {
		m.VertexData = append(m.VertexData, vertices[i].Marshal()...)
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Layout derives the packed vertex buffer layout of the mesh attributes.
//
// Returns:
//   - vertex_layout.VertexBufferLayout: the derived layout
//   - error: an error if an attribute is invalid
func (m *Mesh) Layout() (vertex_layout.VertexBufferLayout, error) {
	return vertex_layout.Derive(m.Name, m.Attributes, wgpu.VertexStepModeVertex)
}

// VertexCount returns the number of whole vertices in VertexData. It returns 0 when the
// attribute list cannot be laid out.
func (m *Mesh) VertexCount() uint32 {
	layout, err := m.Layout()
	if err != nil || layout.Stride == 0 {
		return 0
	}
	return uint32(uint64(len(m.VertexData)) / layout.Stride)
}

// Indexed reports whether the mesh is drawn with an index buffer.
func (m *Mesh) Indexed() bool {
	return len(m.Indices) > 0
}

// IndexData returns the indices encoded as little-endian uint32 values for upload.
//
// Returns:
//   - []byte: the encoded index buffer, or nil for a non-indexed mesh
func (m *Mesh) IndexData() []byte {
	if len(m.Indices) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(m.Indices))
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// Validate checks that the vertex data is a whole number of vertices and that every index
// addresses an existing vertex.
//
// Returns:
//   - error: nil if the mesh can be uploaded
func (m *Mesh) Validate() error {
	layout, err := m.Layout()
	if err != nil {
		return err
	}
	if len(m.VertexData) == 0 || layout.Stride == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyMesh, m.Name)
	}
	if uint64(len(m.VertexData))%layout.Stride != 0 {
		return fmt.Errorf("%w: %q has %d bytes, stride %d", ErrVertexDataSize, m.Name, len(m.VertexData), layout.Stride)
	}
	count := uint32(uint64(len(m.VertexData)) / layout.Stride)
	for i, idx := range m.Indices {
		if idx >= count {
			return fmt.Errorf("%w: %q index %d is %d, vertex count %d", ErrIndexOutOfRange, m.Name, i, idx, count)
		}
	}
	return nil
}

// BoundingRadius returns the largest distance from the model origin across all vertex
// positions, read from the Float32x3 attribute named PositionAttribute.
//
// Returns:
//   - float32: the bounding sphere radius around the origin
//   - bool: false if the mesh has no Float32x3 position attribute
func (m *Mesh) BoundingRadius() (float32, bool) {
	layout, err := m.Layout()
	if err != nil {
		return 0, false
	}
	attr, ok := layout.Attribute(PositionAttribute)
	if !ok || attr.Format != wgpu.VertexFormatFloat32x3 {
		return 0, false
	}

	var maxDistSq float32
	for base := uint64(0); base+layout.Stride <= uint64(len(m.VertexData)); base += layout.Stride {
		off := base + attr.Offset
		var distSq float32
		for c := uint64(0); c < 3; c++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(m.VertexData[off+c*4:]))
			distSq += v * v
		}
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq))), true
}
