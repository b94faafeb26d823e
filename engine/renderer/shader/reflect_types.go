package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormats maps WGSL vertex input types, in both shorthand and generic spelling,
// to the matching vertex format.
var wgslVertexFormats = func() map[string]wgpu.VertexFormat {
	m := make(map[string]wgpu.VertexFormat)
	add := func(f wgpu.VertexFormat, names ...string) {
		for _, n := range names {
			m[n] = f
		}
	}
	add(wgpu.VertexFormatFloat32, "f32")
	add(wgpu.VertexFormatFloat32x2, "vec2f", "vec2<f32>")
	add(wgpu.VertexFormatFloat32x3, "vec3f", "vec3<f32>")
	add(wgpu.VertexFormatFloat32x4, "vec4f", "vec4<f32>")
	add(wgpu.VertexFormatSint32, "i32")
	add(wgpu.VertexFormatSint32x2, "vec2i", "vec2<i32>")
	add(wgpu.VertexFormatSint32x3, "vec3i", "vec3<i32>")
	add(wgpu.VertexFormatSint32x4, "vec4i", "vec4<i32>")
	add(wgpu.VertexFormatUint32, "u32")
	add(wgpu.VertexFormatUint32x2, "vec2u", "vec2<u32>")
	add(wgpu.VertexFormatUint32x3, "vec3u", "vec3<u32>")
	add(wgpu.VertexFormatUint32x4, "vec4u", "vec4<u32>")
	add(wgpu.VertexFormatFloat16x2, "vec2h", "vec2<f16>")
	add(wgpu.VertexFormatFloat16x4, "vec4h", "vec4<f16>")
	return m
}()

// textureDimensions maps sampled and depth texture base types to their view dimension.
var textureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_1d":               wgpu.TextureViewDimension1D,
	"texture_2d":               wgpu.TextureViewDimension2D,
	"texture_2d_array":         wgpu.TextureViewDimension2DArray,
	"texture_3d":               wgpu.TextureViewDimension3D,
	"texture_cube":             wgpu.TextureViewDimensionCube,
	"texture_cube_array":       wgpu.TextureViewDimensionCubeArray,
	"texture_multisampled_2d":  wgpu.TextureViewDimension2D,
	"texture_depth_2d":         wgpu.TextureViewDimension2D,
	"texture_depth_2d_array":   wgpu.TextureViewDimension2DArray,
	"texture_depth_cube":       wgpu.TextureViewDimensionCube,
	"texture_depth_cube_array": wgpu.TextureViewDimensionCubeArray,
	"texture_storage_1d":       wgpu.TextureViewDimension1D,
	"texture_storage_2d":       wgpu.TextureViewDimension2D,
	"texture_storage_2d_array": wgpu.TextureViewDimension2DArray,
	"texture_storage_3d":       wgpu.TextureViewDimension3D,
}

// textureSampleTypes maps the scalar parameter of a sampled texture to its sample type.
var textureSampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

// storageAccessModes maps WGSL access keywords to storage texture access.
var storageAccessModes = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// storageTexelFormats maps WGSL texel formats to texture formats for storage textures.
var storageTexelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}
