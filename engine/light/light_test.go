package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func TestNewLight(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithDirection(0, 0, -2),
		WithColor(1, 0.5, 0),
		WithIntensity(3),
		WithRange(20),
		WithSpotCone(60, 90),
	)
	assert.Equal(t, [3]float32{0, 0, -1}, l.Direction)
	assert.Equal(t, [3]float32{1, 0.5, 0}, l.Color)
	assert.Equal(t, float32(3), l.Intensity)
	assert.Equal(t, float32(20), l.Range)
	assert.InDelta(t, 0.5, l.InnerCone, 1e-6)
	assert.InDelta(t, 0, l.OuterCone, 1e-6)
	assert.False(t, l.Disabled)
	assert.Equal(t, "spot", l.Type.String())

	assert.True(t, NewLight(LightTypePoint, WithEnabled(false)).Disabled)
	assert.Equal(t, [3]float32{0, 0, 0}, NewLight(LightTypeDirectional, WithDirection(0, 0, 0)).Direction)
}

func TestPack(t *testing.T) {
	point := NewLight(LightTypePoint, WithColor(0.25, 0.5, 1), WithRange(7)).GPU([3]float32{1, 2, 3})
	buf := Pack([3]float32{0.1, 0.2, 0.3}, []GPULight{point, point})

	require.Len(t, buf, int(BufferSize(2)))
	assert.InDelta(t, 0.1, float(buf, 0), 1e-6)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[12:]))

	second := buf[GPULightHeaderSize+GPULightSize:]
	assert.Equal(t, float32(3), float(second, 8))
	assert.Equal(t, uint32(LightTypePoint), binary.LittleEndian.Uint32(second[12:]))
	assert.Equal(t, float32(1), float(second, 24))
	assert.Equal(t, float32(7), float(second, 44))

	empty := Pack([3]float32{}, nil)
	assert.Len(t, empty, GPULightHeaderSize+GPULightSize, "an empty list keeps one element")
	assert.Zero(t, binary.LittleEndian.Uint32(empty[12:]))

	many := Pack([3]float32{}, make([]GPULight, MaxGPULights+5))
	assert.Equal(t, uint32(MaxGPULights), binary.LittleEndian.Uint32(many[12:]))
	assert.Len(t, many, int(BufferSize(MaxGPULights)))
}
