package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// Binding names published in a mesh asset's scope.
const (
	VertexBufferBinding = "vertex_buffer"
	IndexBufferBinding  = "index_buffer"
)

// GPUMesh is the uploaded form of a mesh asset.
type GPUMesh struct {
	VertexBuffer render_resource.ResourceID
	// IndexBuffer is invalid for non-indexed meshes.
	IndexBuffer render_resource.ResourceID
	VertexCount uint32
	IndexCount  uint32
	Layout      vertex_layout.VertexBufferLayout
}

// Indexed reports whether the mesh is drawn with an index buffer.
func (m GPUMesh) Indexed() bool {
	return m.IndexBuffer.Valid()
}

// meshProvider is the implementation of the MeshProvider interface.
type meshProvider struct {
	mu       *sync.RWMutex
	backend  Backend
	registry vertex_layout.Registry
	meshes   map[asset.Handle]GPUMesh
}

// MeshProvider uploads mesh assets and publishes their buffers as asset-scoped bindings.
// Prepare and Release may run concurrently for different handles; the returned writes are
// merged into the binding table by the caller.
type MeshProvider interface {
	// Prepare uploads a mesh, replacing any buffers previously uploaded for the handle, and
	// registers its vertex layout.
	//
	// Parameters:
	//   - h: the mesh asset handle
	//   - mesh: the mesh asset
	//
	// Returns:
	//   - []render_resource.BindingWrite: the binding updates for the mesh scope
	//   - error: a validation or upload error
	Prepare(h asset.Handle, mesh *model.Mesh) ([]render_resource.BindingWrite, error)

	// Release frees the buffers of a mesh and forgets its layout.
	//
	// Parameters:
	//   - h: the mesh asset handle
	//
	// Returns:
	//   - []render_resource.BindingWrite: removals for the mesh scope
	Release(h asset.Handle) []render_resource.BindingWrite

	// Mesh returns the uploaded form of a mesh.
	//
	// Parameters:
	//   - h: the mesh asset handle
	//
	// Returns:
	//   - GPUMesh: the uploaded mesh
	//   - bool: false if the mesh has not been prepared
	Mesh(h asset.Handle) (GPUMesh, bool)

	// Len returns the number of uploaded meshes.
	Len() int
}

var _ MeshProvider = &meshProvider{}

// NewMeshProvider creates a mesh provider uploading through backend and registering layouts
// in registry.
//
// Parameters:
//   - backend: the backend owning the buffers
//   - registry: the vertex layout registry
//
// Returns:
//   - MeshProvider: the provider
func NewMeshProvider(backend Backend, registry vertex_layout.Registry) MeshProvider {
	return &meshProvider{
		mu:       &sync.RWMutex{},
		backend:  backend,
		registry: registry,
		meshes:   make(map[asset.Handle]GPUMesh),
	}
}

func (p *meshProvider) Prepare(h asset.Handle, mesh *model.Mesh) ([]render_resource.BindingWrite, error) {
	if mesh == nil {
		return nil, fmt.Errorf("%w: mesh %d is nil", model.ErrEmptyMesh, h)
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	layout, err := p.registry.GetOrDerive(mesh.Attributes)
	if err != nil {
		return nil, err
	}

	gm := GPUMesh{
		VertexCount: mesh.VertexCount(),
		IndexCount:  uint32(len(mesh.Indices)),
		Layout:      layout,
	}
	gm.VertexBuffer, err = p.backend.CreateBuffer(mesh.Name+" Vertex Buffer", wgpu.BufferUsageVertex, uint64(len(mesh.VertexData)), mesh.VertexData)
	if err != nil {
		return nil, err
	}
	if mesh.Indexed() {
		data := mesh.IndexData()
		gm.IndexBuffer, err = p.backend.CreateBuffer(mesh.Name+" Index Buffer", wgpu.BufferUsageIndex, uint64(len(data)), data)
		if err != nil {
			p.backend.ReleaseResource(gm.VertexBuffer)
			return nil, err
		}
	}

	p.mu.Lock()
	old, replaced := p.meshes[h]
	p.meshes[h] = gm
	p.mu.Unlock()
	if replaced {
		p.releaseBuffers(old)
	}
	p.registry.Register(h, layout)

	scope := render_resource.MeshScope(h)
	writes := []render_resource.BindingWrite{{
		Scope:   scope,
		Binding: render_resource.Binding{Name: VertexBufferBinding, Resource: gm.VertexBuffer, Size: uint64(len(mesh.VertexData))},
	}}
	if gm.Indexed() {
		writes = append(writes, render_resource.BindingWrite{
			Scope:   scope,
			Binding: render_resource.Binding{Name: IndexBufferBinding, Resource: gm.IndexBuffer, Size: uint64(gm.IndexCount) * 4},
		})
	} else {
		writes = append(writes, render_resource.BindingWrite{Scope: scope, Binding: render_resource.Binding{Name: IndexBufferBinding}, Remove: true})
	}
	return writes, nil
}

func (p *meshProvider) releaseBuffers(gm GPUMesh) {
	p.backend.ReleaseResource(gm.VertexBuffer)
	if gm.Indexed() {
		p.backend.ReleaseResource(gm.IndexBuffer)
	}
}

func (p *meshProvider) Release(h asset.Handle) []render_resource.BindingWrite {
	p.mu.Lock()
	gm, ok := p.meshes[h]
	delete(p.meshes, h)
	p.mu.Unlock()
	if ok {
		p.releaseBuffers(gm)
	}
	p.registry.Forget(h)

	scope := render_resource.MeshScope(h)
	return []render_resource.BindingWrite{
		{Scope: scope, Binding: render_resource.Binding{Name: VertexBufferBinding}, Remove: true},
		{Scope: scope, Binding: render_resource.Binding{Name: IndexBufferBinding}, Remove: true},
	}
}

func (p *meshProvider) Mesh(h asset.Handle) (GPUMesh, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	gm, ok := p.meshes[h]
	return gm, ok
}

func (p *meshProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.meshes)
}
