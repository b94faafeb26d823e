package model

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCube(t *testing.T) {
	m := NewCube(2)
	require.NoError(t, m.Validate())
	assert.Equal(t, "cube", m.Name)
	assert.Equal(t, uint32(24), m.VertexCount())
	assert.Len(t, m.Indices, 36)
	assert.True(t, m.Indexed())

	layout, err := m.Layout()
	require.NoError(t, err)
	assert.Equal(t, uint64(GPUVertexSize), layout.Stride)

	r, ok := m.BoundingRadius()
	require.True(t, ok)
	assert.InDelta(t, 1.7320508, r, 1e-5)
}

func TestIndexData(t *testing.T) {
	m := &Mesh{Indices: []uint32{1, 0x01020304}}
	data := m.IndexData()
	require.Len(t, data, 8)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data))
	assert.Equal(t, []byte{4, 3, 2, 1}, data[4:])

	assert.Nil(t, (&Mesh{}).IndexData())
}

func TestMeshValidate(t *testing.T) {
	attrs := []vertex_layout.MeshAttribute{{Name: "Vertex_Position", Format: wgpu.VertexFormatFloat32x3}}

	assert.ErrorIs(t, (&Mesh{Attributes: attrs}).Validate(), ErrEmptyMesh)
	assert.ErrorIs(t, (&Mesh{Attributes: attrs, VertexData: make([]byte, 13)}).Validate(), ErrVertexDataSize)
	assert.ErrorIs(t, (&Mesh{Attributes: attrs, VertexData: make([]byte, 24), Indices: []uint32{0, 2}}).Validate(), ErrIndexOutOfRange)
	assert.NoError(t, (&Mesh{Attributes: attrs, VertexData: make([]byte, 24), Indices: []uint32{0, 1}}).Validate())
}

func TestBoundingRadiusWithoutPosition(t *testing.T) {
	m := &Mesh{
		Attributes: []vertex_layout.MeshAttribute{{Name: "Vertex_Uv", Format: wgpu.VertexFormatFloat32x2}},
		VertexData: make([]byte, 8),
	}
	_, ok := m.BoundingRadius()
	assert.False(t, ok)
}

func TestTexture(t *testing.T) {
	tex := NewTexture("white", common.TextureStagingData{Pixels: make([]byte, 16), Width: 2, Height: 2})
	require.NoError(t, tex.Validate())
	view, sampler := tex.BindingNames()
	assert.Equal(t, "texture", view)
	assert.Equal(t, "texture_sampler", sampler)

	tex.TextureBinding = "albedo"
	view, _ = tex.BindingNames()
	assert.Equal(t, "albedo", view)

	tex.Image.Width = 3
	assert.Error(t, tex.Validate())
}
