package material

import (
	"encoding/binary"
	"math"
)

// GPUMaterialSize is the packed size of a GPUMaterial in bytes.
const GPUMaterialSize = 48

// GPUMaterialSource is the WGSL definition matching GPUMaterial.
const GPUMaterialSource = `struct Material {
    base_color: vec4<f32>,
    emissive: vec3<f32>,
    metallic: f32,
    roughness: f32,
}
`

// GPUMaterial is the std140 uniform layout of a Material.
// Size: 48 bytes.
type GPUMaterial struct {
	BaseColor [4]float32 // offset  0: RGBA albedo
	Emissive  [3]float32 // offset 16: emitted RGB
	Metallic  float32    // offset 28
	Roughness float32    // offset 32
	// offset 36: 12 bytes padding to the 16 byte struct alignment
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, GPUMaterialSize)
	values := []float32{
		g.BaseColor[0], g.BaseColor[1], g.BaseColor[2], g.BaseColor[3],
		g.Emissive[0], g.Emissive[1], g.Emissive[2], g.Metallic,
		g.Roughness,
	}
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
