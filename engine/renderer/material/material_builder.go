package material

// MaterialBuilderOption is a function that configures a material during construction.
type MaterialBuilderOption func(*Material)

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *Material) {
		m.Name = name
	}
}

// WithBaseColor is an option builder that sets the albedo RGBA color of the material.
//
// Parameters:
//   - color: the base color as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color [4]float32) MaterialBuilderOption {
	return func(m *Material) {
		m.BaseColor = color
	}
}

// WithMetallic is an option builder that sets the metallic factor, clamped to [0, 1].
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the metallic option to a material
func WithMetallic(metallic float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Metallic = clamp01(metallic)
	}
}

// WithRoughness is an option builder that sets the roughness factor, clamped to [0, 1].
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Roughness = clamp01(roughness)
	}
}

// WithEmissive is an option builder that sets the emitted RGB color.
//
// Parameters:
//   - r, g, b: the emissive color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the emissive option to a material
func WithEmissive(r, g, b float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Emissive = [3]float32{r, g, b}
	}
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
