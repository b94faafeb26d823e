package renderer

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
)

type gpuTexture struct {
	texture, sampler render_resource.ResourceID
	names            [2]string
}

// textureProvider is the implementation of the TextureProvider interface.
type textureProvider struct {
	mu       *sync.Mutex
	backend  Backend
	textures map[asset.Handle]gpuTexture
}

// TextureProvider uploads texture assets and publishes the texture view and its sampler as
// asset-scoped bindings.
type TextureProvider interface {
	// Prepare uploads a texture and creates its sampler, replacing earlier uploads of the handle.
	//
	// Parameters:
	//   - h: the texture asset handle
	//   - texture: the texture asset
	//
	// Returns:
	//   - []render_resource.BindingWrite: the binding updates for the texture scope
	//   - error: a validation or upload error
	Prepare(h asset.Handle, texture *model.Texture) ([]render_resource.BindingWrite, error)

	// Release frees the texture and sampler of a handle.
	//
	// Parameters:
	//   - h: the texture asset handle
	//
	// Returns:
	//   - []render_resource.BindingWrite: removals for the texture scope
	Release(h asset.Handle) []render_resource.BindingWrite

	// Len returns the number of uploaded textures.
	Len() int
}

var _ TextureProvider = &textureProvider{}

// NewTextureProvider creates a texture provider uploading through backend.
//
// Parameters:
//   - backend: the backend owning the textures
//
// Returns:
//   - TextureProvider: the provider
func NewTextureProvider(backend Backend) TextureProvider {
	return &textureProvider{
		mu:       &sync.Mutex{},
		backend:  backend,
		textures: make(map[asset.Handle]gpuTexture),
	}
}

func (p *textureProvider) Prepare(h asset.Handle, texture *model.Texture) ([]render_resource.BindingWrite, error) {
	if texture == nil {
		return nil, errors.New("renderer: nil texture asset")
	}
	if err := texture.Validate(); err != nil {
		return nil, err
	}

	tex, err := p.backend.CreateTexture(texture.Label, common.Coalesce(texture.Format, wgpu.TextureFormatRGBA8UnormSrgb), texture.Image)
	if err != nil {
		return nil, err
	}
	sampler, err := p.backend.CreateSampler(texture.Label+" Sampler", texture.Sampler)
	if err != nil {
		p.backend.ReleaseResource(tex)
		return nil, err
	}
	texName, samplerName := texture.BindingNames()
	gt := gpuTexture{texture: tex, sampler: sampler, names: [2]string{texName, samplerName}}

	p.mu.Lock()
	old, replaced := p.textures[h]
	p.textures[h] = gt
	p.mu.Unlock()

	scope := render_resource.TextureScope(h)
	var writes []render_resource.BindingWrite
	if replaced {
		p.backend.ReleaseResource(old.texture)
		p.backend.ReleaseResource(old.sampler)
		writes = append(writes, removals(scope, old.names[:])...)
	}
	return append(writes,
		render_resource.BindingWrite{Scope: scope, Binding: render_resource.Binding{Name: texName, Resource: tex}},
		render_resource.BindingWrite{Scope: scope, Binding: render_resource.Binding{Name: samplerName, Resource: sampler}},
	), nil
}

func (p *textureProvider) Release(h asset.Handle) []render_resource.BindingWrite {
	p.mu.Lock()
	gt, ok := p.textures[h]
	delete(p.textures, h)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	p.backend.ReleaseResource(gt.texture)
	p.backend.ReleaseResource(gt.sampler)
	return removals(render_resource.TextureScope(h), gt.names[:])
}

func (p *textureProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.textures)
}

func removals(scope render_resource.Scope, names []string) []render_resource.BindingWrite {
	writes := make([]render_resource.BindingWrite, 0, len(names))
	for _, n := range names {
		writes = append(writes, render_resource.BindingWrite{Scope: scope, Binding: render_resource.Binding{Name: n}, Remove: true})
	}
	return writes
}
