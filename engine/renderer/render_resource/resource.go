package render_resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
)

// ResourceKind identifies the type of GPU resource a binding points at.
type ResourceKind int

const (
	// ResourceKindBuffer is a uniform, storage, vertex or index buffer.
	ResourceKindBuffer ResourceKind = iota
	// ResourceKindTexture is a texture view.
	ResourceKindTexture
	// ResourceKindSampler is a texture sampler.
	ResourceKindSampler
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindBuffer:
		return "buffer"
	case ResourceKindTexture:
		return "texture"
	case ResourceKindSampler:
		return "sampler"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

// ResourceID is an opaque handle to a backend-owned GPU resource. IDs are allocated by the
// renderer backend; the zero ID is never issued.
type ResourceID struct {
	Kind ResourceKind
	ID   uint64
}

// Valid reports whether r refers to an allocated resource.
func (r ResourceID) Valid() bool {
	return r.ID != 0
}

func (r ResourceID) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Binding is a named handle to a GPU resource usable by shader code.
type Binding struct {
	// Name is the shader-visible binding name, e.g. "camera" or "vertex_buffer".
	Name string
	// Resource is the backend resource the name resolves to.
	Resource ResourceID
	// Size is the byte size of buffer resources, 0 for textures and samplers.
	Size uint64
	// Dynamic marks a buffer whose size or identity may change between frames. Dynamic
	// bindings force a distinct pipeline specialization.
	Dynamic bool
}

// ScopeKind identifies which owner a Scope belongs to.
type ScopeKind int

const (
	// ScopeKindGlobal is shared across the whole render graph.
	ScopeKindGlobal ScopeKind = iota
	// ScopeKindAsset is attached to one mesh, texture or material asset.
	ScopeKindAsset
	// ScopeKindEntity is attached to a single entity.
	ScopeKindEntity
	// ScopeKindNode holds the outputs of a render graph node for the current frame.
	ScopeKindNode
)

// Asset classes tag asset scopes so that stores numbering their handles independently never
// share a scope.
const (
	AssetClassMesh    = "mesh"
	AssetClassTexture = "texture"
)

// Scope addresses one binding set inside a Table. Scope is comparable and usable as a map key.
// Asset scopes carry their asset class in Name; node scopes carry the node name.
type Scope struct {
	Kind ScopeKind
	ID   uint64
	Name string
}

// GlobalScope returns the scope shared by the entire graph.
func GlobalScope() Scope {
	return Scope{Kind: ScopeKindGlobal}
}

// AssetScope returns the scope attached to an asset handle of the given class. Handles of
// different classes never collide.
//
// Parameters:
//   - class: the asset class, e.g. AssetClassMesh
//   - h: the asset handle
//
// Returns:
//   - Scope: the asset scope
func AssetScope(class string, h asset.Handle) Scope {
	return Scope{Kind: ScopeKindAsset, ID: uint64(h), Name: class}
}

// MeshScope returns the scope attached to a mesh asset.
func MeshScope(h asset.Handle) Scope {
	return AssetScope(AssetClassMesh, h)
}

// TextureScope returns the scope attached to a texture asset.
func TextureScope(h asset.Handle) Scope {
	return AssetScope(AssetClassTexture, h)
}

// EntityScope returns the scope attached to an entity id.
func EntityScope(id uint64) Scope {
	return Scope{Kind: ScopeKindEntity, ID: id}
}

// NodeScope returns the scope holding the outputs of the named graph node.
func NodeScope(name string) Scope {
	return Scope{Kind: ScopeKindNode, Name: name}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeKindGlobal:
		return "global"
	case ScopeKindAsset:
		if s.Name == "" {
			return fmt.Sprintf("asset:%d", s.ID)
		}
		return fmt.Sprintf("asset:%s:%d", s.Name, s.ID)
	case ScopeKindEntity:
		return fmt.Sprintf("entity:%d", s.ID)
	case ScopeKindNode:
		return "node:" + s.Name
	default:
		return fmt.Sprintf("scope(%d)", int(s.Kind))
	}
}
