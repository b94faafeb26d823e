// Package light holds the light component of render entities and its GPU storage layout. The
// frame driver packs every enabled light into one storage buffer published globally under
// Binding.
package light

// LightType identifies the kind of light source.
type LightType uint32

const (
	// LightTypeDirectional represents a light with no position, only direction. Used for
	// distant sources like the sun; no distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint emits in all directions from the entity position and attenuates with
	// distance up to Range.
	LightTypePoint

	// LightTypeSpot emits in a cone along Direction from the entity position. Attenuates with
	// distance and with the angle from the cone axis.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// Light is the light component of a render entity. Point and spot lights are positioned at
// their entity.
type Light struct {
	Type LightType
	// Direction is the normalized light direction of directional lights and the cone axis of
	// spot lights.
	Direction [3]float32
	Color     [3]float32
	Intensity float32
	// Range is the attenuation cutoff of point and spot lights.
	Range float32
	// InnerCone and OuterCone are the cosines of the spot cone half-angles.
	InnerCone, OuterCone float32
	// Disabled lights are not uploaded.
	Disabled bool
}

// NewLight creates a white light of intensity 1 pointing down, with a range of 10 and a
// 25/35 degree spot cone, and applies the options.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: builder options
//
// Returns:
//   - Light: the light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := Light{
		Type:      lightType,
		Direction: [3]float32{0, -1, 0},
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
		InnerCone: cosDeg(25),
		OuterCone: cosDeg(35),
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// GPU converts the light positioned at position into its storage layout.
//
// Parameters:
//   - position: the world position of the owning entity
//
// Returns:
//   - GPULight: the packed light
func (l Light) GPU(position [3]float32) GPULight {
	return GPULight{
		Position:   position,
		LightType:  uint32(l.Type),
		Color:      l.Color,
		Intensity:  l.Intensity,
		Direction:  l.Direction,
		LightRange: l.Range,
		InnerCone:  l.InnerCone,
		OuterCone:  l.OuterCone,
	}
}
