package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture is an immutable image asset together with the sampler used to read it. The texture
// provider publishes both as asset-scoped bindings named TextureBinding and SamplerBinding.
type Texture struct {
	// Label names the GPU texture.
	Label string
	// Image holds the decoded RGBA pixels.
	Image common.TextureStagingData
	// Format is the GPU texture format; the zero value selects wgpu.TextureFormatRGBA8UnormSrgb.
	Format wgpu.TextureFormat
	// Sampler configures the sampler created alongside the texture.
	Sampler common.SamplerStagingData
	// TextureBinding overrides the binding name of the texture view. Defaults to "texture".
	TextureBinding string
	// SamplerBinding overrides the binding name of the sampler. Defaults to "texture_sampler".
	SamplerBinding string
}

// NewTexture creates a texture asset from RGBA pixels using the default sampler.
//
// Parameters:
//   - label: the GPU texture label
//   - image: the decoded pixels
//
// Returns:
//   - *Texture: the texture asset
func NewTexture(label string, image common.TextureStagingData) *Texture {
	return &Texture{
		Label:   label,
		Image:   image,
		Format:  wgpu.TextureFormatRGBA8UnormSrgb,
		Sampler: common.DefaultSamplerStagingData(),
	}
}

// BindingNames returns the texture and sampler binding names with defaults applied.
func (t *Texture) BindingNames() (texture, sampler string) {
	return common.Coalesce(t.TextureBinding, "texture"), common.Coalesce(t.SamplerBinding, "texture_sampler")
}

// Validate checks that the pixel data matches the texture dimensions.
//
// Returns:
//   - error: nil if the texture can be uploaded
func (t *Texture) Validate() error {
	if !t.Image.Valid() {
		return fmt.Errorf("model: texture %q has %d bytes of pixel data for %dx%d", t.Label, len(t.Image.Pixels), t.Image.Width, t.Image.Height)
	}
	return nil
}
