package light

import (
	"encoding/binary"
	"math"
)

// Binding is the global binding name of the light storage buffer.
const Binding = "lights"

// MaxGPULights caps the number of lights packed per frame. Lights past the cap are dropped in
// entity order.
const MaxGPULights = 1024

const (
	// GPULightSize is the packed size of a GPULight in bytes.
	GPULightSize = 64
	// GPULightHeaderSize is the packed size of a GPULightHeader in bytes.
	GPULightHeaderSize = 16
)

// GPULightSource is the WGSL declaration matching the storage buffer layout. Shaders bind it as
// `@group(N) @binding(M) var<storage, read> lights: Lights;`.
const GPULightSource = `struct Light {
    position: vec3<f32>,
    light_type: u32,
    color: vec3<f32>,
    intensity: f32,
    direction: vec3<f32>,
    range: f32,
    inner_cone: f32,
    outer_cone: f32,
}

struct Lights {
    ambient: vec3<f32>,
    count: u32,
    items: array<Light>,
}
`

// GPULight is the std430 representation of a single light source.
// Size: 64 bytes.
type GPULight struct {
	Position   [3]float32 // offset  0: world-space position (point/spot)
	LightType  uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color      [3]float32 // offset 16: RGB color
	Intensity  float32    // offset 28: scalar multiplier
	Direction  [3]float32 // offset 32: normalized direction (directional/spot)
	LightRange float32    // offset 44: attenuation cutoff distance
	InnerCone  float32    // offset 48: cos(inner half-angle) for spot
	OuterCone  float32    // offset 52: cos(outer half-angle) for spot
	// offset 56: 8 bytes padding to the 16 byte array stride
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	putFloats(buf[0:], g.Position[:]...)
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	putFloats(buf[16:], g.Color[0], g.Color[1], g.Color[2], g.Intensity)
	putFloats(buf[32:], g.Direction[0], g.Direction[1], g.Direction[2], g.LightRange)
	putFloats(buf[48:], g.InnerCone, g.OuterCone)
	return buf
}

// GPULightHeader precedes the light array: the ambient color and the light count.
// Size: 16 bytes.
type GPULightHeader struct {
	AmbientColor [3]float32 // offset  0: scene ambient RGB
	LightCount   uint32     // offset 12: number of lights following the header
}

// Marshal serializes the header into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, GPULightHeaderSize)
	putFloats(buf, h.AmbientColor[:]...)
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// Pack serializes the header and lights into one storage buffer image. At most MaxGPULights
// lights are written. An empty list still reserves one zeroed element because runtime-sized
// arrays may not be empty.
//
// Parameters:
//   - ambient: the ambient color
//   - lights: the lights to pack
//
// Returns:
//   - []byte: the buffer contents
func Pack(ambient [3]float32, lights []GPULight) []byte {
	n := min(len(lights), MaxGPULights)
	header := GPULightHeader{AmbientColor: ambient, LightCount: uint32(n)}
	buf := make([]byte, 0, BufferSize(n))
	buf = append(buf, header.Marshal()...)
	for i := range n {
		buf = append(buf, lights[i].Marshal()...)
	}
	if n == 0 {
		buf = append(buf, make([]byte, GPULightSize)...)
	}
	return buf
}

// BufferSize returns the byte size of a light buffer holding n lights.
func BufferSize(n int) uint64 {
	return uint64(GPULightHeaderSize + GPULightSize*max(min(n, MaxGPULights), 1))
}

func putFloats(buf []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
