package vertex_layout

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/cogentcore/webgpu/wgpu"
)

// registry is the implementation of the Registry interface.
type registry struct {
	mu      sync.RWMutex
	derived map[string]VertexBufferLayout
	byMesh  map[asset.Handle]VertexBufferLayout
}

// Registry caches derived vertex buffer layouts by attribute signature and records which
// layout each mesh asset uses. Resource provisioning registers mesh layouts every frame;
// draw submission reads them to finalize pipeline specializations.
type Registry interface {
	// GetOrDerive returns the cached layout for an attribute signature, deriving and caching
	// it on first use.
	//
	// Parameters:
	//   - attrs: the mesh attributes in buffer order
	//
	// Returns:
	//   - VertexBufferLayout: the cached or newly derived layout
	//   - error: an error if the layout cannot be derived
	GetOrDerive(attrs []MeshAttribute) (VertexBufferLayout, error)

	// Register records the layout used by a mesh asset, replacing any previous one.
	//
	// Parameters:
	//   - mesh: the mesh asset handle
	//   - layout: the layout of the mesh's vertex buffer
	Register(mesh asset.Handle, layout VertexBufferLayout)

	// Layout returns the layout registered for a mesh asset.
	//
	// Parameters:
	//   - mesh: the mesh asset handle
	//
	// Returns:
	//   - VertexBufferLayout: the layout, or the zero value if none is registered
	//   - bool: true if a layout is registered
	Layout(mesh asset.Handle) (VertexBufferLayout, bool)

	// Forget drops the layout registered for a mesh asset.
	//
	// Parameters:
	//   - mesh: the mesh asset handle
	Forget(mesh asset.Handle)

	// Len returns the number of distinct derived layouts.
	Len() int
}

var _ Registry = &registry{}

// NewRegistry creates an empty vertex layout registry.
//
// Returns:
//   - Registry: the new registry
func NewRegistry() Registry {
	return &registry{
		derived: make(map[string]VertexBufferLayout),
		byMesh:  make(map[asset.Handle]VertexBufferLayout),
	}
}

func (r *registry) GetOrDerive(attrs []MeshAttribute) (VertexBufferLayout, error) {
	key := signature(attrs, wgpu.VertexStepModeVertex)

	r.mu.RLock()
	layout, ok := r.derived[key]
	r.mu.RUnlock()
	if ok {
		return layout, nil
	}

	layout, err := Derive("Vertex", attrs, wgpu.VertexStepModeVertex)
	if err != nil {
		return VertexBufferLayout{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.derived[key]; ok {
		return existing, nil
	}
	r.derived[key] = layout
	return layout, nil
}

func (r *registry) Register(mesh asset.Handle, layout VertexBufferLayout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMesh[mesh] = layout
}

func (r *registry) Layout(mesh asset.Handle) (VertexBufferLayout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layout, ok := r.byMesh[mesh]
	return layout, ok
}

func (r *registry) Forget(mesh asset.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byMesh, mesh)
}

func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.derived)
}
