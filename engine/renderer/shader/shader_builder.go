package shader

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithLabel sets the debug label of the shader.
//
// Parameters:
//   - label: the label used in logs and backend object names
//
// Returns:
//   - ShaderBuilderOption: a function that sets the label
func WithLabel(label string) ShaderBuilderOption {
	return func(s *shader) {
		s.label = label
	}
}

// WithEntryPoint overrides the reflected entry point name.
//
// Parameters:
//   - name: the entry point function name
//
// Returns:
//   - ShaderBuilderOption: a function that sets the entry point
func WithEntryPoint(name string) ShaderBuilderOption {
	return func(s *shader) {
		s.entryPoint = name
	}
}
