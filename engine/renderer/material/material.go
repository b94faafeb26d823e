// Package material describes the surface factors of a drawable. An entity carrying a Material
// gets a per-entity uniform published under Binding, next to its model matrix.
package material

// Binding is the entity-scope binding name of the material uniform.
const Binding = "material"

// Material holds the metallic-roughness factors of a surface. Textures are bound separately
// through texture assets.
type Material struct {
	Name      string
	BaseColor [4]float32
	// Metallic is 0 for a dielectric surface and 1 for a metal.
	Metallic  float32
	Roughness float32
	Emissive  [3]float32
}

// NewMaterial creates a white, fully rough dielectric and applies the options.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Material: the material
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := Material{
		BaseColor: [4]float32{1, 1, 1, 1},
		Roughness: 1,
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

// GPU converts the material to its uniform layout.
func (m Material) GPU() GPUMaterial {
	return GPUMaterial{
		BaseColor: m.BaseColor,
		Emissive:  m.Emissive,
		Metallic:  m.Metallic,
		Roughness: m.Roughness,
	}
}
