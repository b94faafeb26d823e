package renderer

import "github.com/cogentcore/webgpu/wgpu"

// WGPUBackendBuilderOption is a functional option applied to the WebGPU backend during construction via NewWGPUBackend.
type WGPUBackendBuilderOption func(*wgpuBackendOptions)

type wgpuBackendOptions struct {
	presentMode          PresentMode
	sampleCount          MSAASampleCount
	forceFallbackAdapter bool
	clearColor           wgpu.Color
	bindGroupSize        int
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the present mode option
func WithPresentMode(mode PresentMode) WGPUBackendBuilderOption {
	return func(o *wgpuBackendOptions) {
		o.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the main pass.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
// Higher values (MSAA8x, MSAA16x) are adapter-dependent and may not be supported
// by all hardware.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff, MSAA4x, MSAA8x, or MSAA16x)
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the MSAA option
func WithMSAA(count MSAASampleCount) WGPUBackendBuilderOption {
	return func(o *wgpuBackendOptions) {
		o.sampleCount = max(count, MSAAOff)
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the force software renderer option
func WithForceSoftwareRenderer(force bool) WGPUBackendBuilderOption {
	return func(o *wgpuBackendOptions) {
		o.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color the main pass clears to.
//
// Parameters:
//   - r, g, b, a: the clear color components in [0, 1]
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the clear color
func WithClearColor(r, g, b, a float64) WGPUBackendBuilderOption {
	return func(o *wgpuBackendOptions) {
		o.clearColor = wgpu.Color{R: r, G: g, B: b, A: a}
	}
}

// WithBindGroupCacheSize bounds the number of bind groups kept alive between frames.
//
// Parameters:
//   - size: the maximum number of cached bind groups
//
// Returns:
//   - WGPUBackendBuilderOption: a function that applies the cache size
func WithBindGroupCacheSize(size int) WGPUBackendBuilderOption {
	return func(o *wgpuBackendOptions) {
		if size > 0 {
			o.bindGroupSize = size
		}
	}
}
