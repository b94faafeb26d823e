package renderer

// HeadlessBackendBuilderOption is a functional option applied to a HeadlessBackend during construction.
type HeadlessBackendBuilderOption func(*HeadlessBackend)

// WithShaderValidation enables or disables compiling shader sources to SPIR-V when pipelines
// are created. Disabled validation accepts any source.
//
// Parameters:
//   - enabled: true to compile every stage with naga
//
// Returns:
//   - HeadlessBackendBuilderOption: a function that applies the validation option
func WithShaderValidation(enabled bool) HeadlessBackendBuilderOption {
	return func(b *HeadlessBackend) {
		b.validateShaders = enabled
	}
}

// WithHeadlessMSAA sets the sample count of the headless main pass.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - HeadlessBackendBuilderOption: a function that applies the sample count
func WithHeadlessMSAA(count MSAASampleCount) HeadlessBackendBuilderOption {
	return func(b *HeadlessBackend) {
		b.sampleCount = max(uint32(count), 1)
	}
}

// WithHeadlessSize sets the size of the headless frame attachments.
//
// Parameters:
//   - width, height: the attachment size in pixels
//
// Returns:
//   - HeadlessBackendBuilderOption: a function that applies the size
func WithHeadlessSize(width, height int) HeadlessBackendBuilderOption {
	return func(b *HeadlessBackend) {
		b.width, b.height = width, height
	}
}
