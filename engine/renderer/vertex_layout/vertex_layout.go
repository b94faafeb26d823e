// Package vertex_layout derives vertex buffer layouts from mesh attribute descriptors and
// caches them so every mesh sharing an attribute signature shares one layout value.
package vertex_layout

import (
	"encoding/binary"
	"fmt"
	"hash"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// MeshAttribute describes one per-vertex attribute stored in a mesh, e.g. "Vertex_Position".
type MeshAttribute struct {
	Name   string
	Format wgpu.VertexFormat
}

// VertexAttribute is one attribute inside a VertexBufferLayout.
type VertexAttribute struct {
	Name           string
	Format         wgpu.VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes how one vertex buffer is laid out in memory.
// Attributes are packed (no padding) in declaration order.
type VertexBufferLayout struct {
	Name       string
	Stride     uint64
	StepMode   wgpu.VertexStepMode
	Attributes []VertexAttribute
}

// Derive builds a packed layout from mesh attributes. Offsets are the running sum of the
// attribute sizes, the stride is the total size and shader locations follow declaration order.
//
// Parameters:
//   - name: the layout name, usually the mesh or buffer label
//   - attrs: the mesh attributes in buffer order
//   - stepMode: per-vertex or per-instance stepping
//
// Returns:
//   - VertexBufferLayout: the derived layout
//   - error: an error if an attribute is unnamed, duplicated or uses an unsupported format
func Derive(name string, attrs []MeshAttribute, stepMode wgpu.VertexStepMode) (VertexBufferLayout, error) {
	layout := VertexBufferLayout{
		Name:       name,
		StepMode:   stepMode,
		Attributes: make([]VertexAttribute, 0, len(attrs)),
	}

	seen := make(map[string]struct{}, len(attrs))
	for i, a := range attrs {
		if a.Name == "" {
			return VertexBufferLayout{}, fmt.Errorf("vertex layout %q: attribute %d has no name", name, i)
		}
		if _, dup := seen[a.Name]; dup {
			return VertexBufferLayout{}, fmt.Errorf("vertex layout %q: duplicate attribute %q", name, a.Name)
		}
		seen[a.Name] = struct{}{}

		size, ok := FormatSize(a.Format)
		if !ok {
			return VertexBufferLayout{}, fmt.Errorf("vertex layout %q: attribute %q has unsupported format %v", name, a.Name, a.Format)
		}
		layout.Attributes = append(layout.Attributes, VertexAttribute{
			Name:           a.Name,
			Format:         a.Format,
			Offset:         layout.Stride,
			ShaderLocation: uint32(i),
		})
		layout.Stride += size
	}
	return layout, nil
}

// Attribute returns the attribute with the given name.
func (l VertexBufferLayout) Attribute(name string) (VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// IsZero reports whether the layout carries no attributes.
func (l VertexBufferLayout) IsZero() bool {
	return len(l.Attributes) == 0 && l.Stride == 0
}

// Equal reports structural equality. The layout name is a label and does not participate.
func (l VertexBufferLayout) Equal(o VertexBufferLayout) bool {
	if l.Stride != o.Stride || l.StepMode != o.StepMode || len(l.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range l.Attributes {
		if l.Attributes[i] != o.Attributes[i] {
			return false
		}
	}
	return true
}

// WriteHash writes the structural identity of the layout into h using the same fields Equal compares.
//
// Parameters:
//   - h: the hash to write to
func (l VertexBufferLayout) WriteHash(h hash.Hash) {
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}

	writeU64(l.Stride)
	writeU64(uint64(l.StepMode))
	writeU64(uint64(len(l.Attributes)))
	for _, a := range l.Attributes {
		writeStr(a.Name)
		writeU64(uint64(a.Format))
		writeU64(a.Offset)
		writeU64(uint64(a.ShaderLocation))
	}
}

// WGPU converts the layout into the WebGPU descriptor form.
//
// Returns:
//   - wgpu.VertexBufferLayout: the WebGPU vertex buffer layout
func (l VertexBufferLayout) WGPU() wgpu.VertexBufferLayout {
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		attrs[i] = wgpu.VertexAttribute{
			Format:         a.Format,
			Offset:         a.Offset,
			ShaderLocation: a.ShaderLocation,
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: l.Stride,
		StepMode:    l.StepMode,
		Attributes:  attrs,
	}
}

// signature returns the cache key of an attribute list.
func signature(attrs []MeshAttribute, stepMode wgpu.VertexStepMode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", stepMode)
	for _, a := range attrs {
		fmt.Fprintf(&sb, "|%s:%d", a.Name, a.Format)
	}
	return sb.String()
}
