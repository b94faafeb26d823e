package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMaterial(t *testing.T) {
	m := NewMaterial()
	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.BaseColor)
	assert.Equal(t, float32(0), m.Metallic)
	assert.Equal(t, float32(1), m.Roughness)

	m = NewMaterial(WithName("gold"), WithMetallic(2), WithRoughness(-1), WithBaseColor([4]float32{1, 0.8, 0.2, 1}))
	assert.Equal(t, "gold", m.Name)
	assert.Equal(t, float32(1), m.Metallic)
	assert.Equal(t, float32(0), m.Roughness)
}

func TestGPUMaterialMarshal(t *testing.T) {
	g := NewMaterial(WithEmissive(0.5, 0, 0), WithMetallic(0.25)).GPU()
	buf := g.Marshal()
	assert.Len(t, buf, GPUMaterialSize)

	float := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(1), float(0))
	assert.Equal(t, float32(0.5), float(16))
	assert.Equal(t, float32(0.25), float(28))
	assert.Equal(t, float32(1), float(32))
	assert.Equal(t, make([]byte, 12), buf[36:])
}
