package pipeline

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineSpecialization describes how a PipelineDescriptor is adapted to one draw: shader
// defines, dynamic bindings, topology, vertex layout, sample count and index format.
// Identity is structural. The order of ShaderDefs and DynamicBindings does not matter and
// duplicates are ignored; every other field is significant.
type PipelineSpecialization struct {
	ShaderDefs      []string
	DynamicBindings []string
	Topology        wgpu.PrimitiveTopology
	VertexLayout    vertex_layout.VertexBufferLayout
	SampleCount     uint32           // 0 is treated as 1
	IndexFormat     wgpu.IndexFormat // zero value is treated as wgpu.IndexFormatUint32
}

// DefaultSpecialization returns a single-sampled specialization using the descriptor's topology.
//
// Parameters:
//   - d: the descriptor being specialized
//
// Returns:
//   - PipelineSpecialization: the base specialization for d
func DefaultSpecialization(d PipelineDescriptor) PipelineSpecialization {
	return PipelineSpecialization{
		Topology:    d.Topology(),
		SampleCount: 1,
		IndexFormat: wgpu.IndexFormatUint32,
	}
}

// Normalized returns the canonical form used for hashing and caching: defines and dynamic
// bindings sorted and deduplicated, defaults filled in. The receiver is not modified.
func (s PipelineSpecialization) Normalized() PipelineSpecialization {
	n := s
	n.ShaderDefs = common.SortedUnique(s.ShaderDefs)
	n.DynamicBindings = common.SortedUnique(s.DynamicBindings)
	n.VertexLayout.Attributes = slices.Clone(s.VertexLayout.Attributes)
	if n.SampleCount == 0 {
		n.SampleCount = 1
	}
	var undefined wgpu.IndexFormat
	if n.IndexFormat == undefined {
		n.IndexFormat = wgpu.IndexFormatUint32
	}
	return n
}

// Hash returns the FNV-1a hash of the normalized specialization.
func (s PipelineSpecialization) Hash() uint64 {
	n := s.Normalized()
	h := fnv.New64a()
	hashStrings(h, n.ShaderDefs)
	hashStrings(h, n.DynamicBindings)
	hashUint64(h, uint64(n.Topology))
	n.VertexLayout.WriteHash(h)
	hashUint64(h, uint64(n.SampleCount))
	hashUint64(h, uint64(n.IndexFormat))
	return h.Sum64()
}

// Equal reports structural equality of the normalized forms.
func (s PipelineSpecialization) Equal(o PipelineSpecialization) bool {
	a, b := s.Normalized(), o.Normalized()
	return slices.Equal(a.ShaderDefs, b.ShaderDefs) &&
		slices.Equal(a.DynamicBindings, b.DynamicBindings) &&
		a.Topology == b.Topology &&
		a.VertexLayout.Equal(b.VertexLayout) &&
		a.SampleCount == b.SampleCount &&
		a.IndexFormat == b.IndexFormat
}

func (s PipelineSpecialization) String() string {
	n := s.Normalized()
	return fmt.Sprintf("defs=%v dynamic=%v topology=%v samples=%d index=%v vertex_stride=%d attributes=%d",
		n.ShaderDefs, n.DynamicBindings, n.Topology, n.SampleCount, n.IndexFormat, n.VertexLayout.Stride, len(n.VertexLayout.Attributes))
}

// ComputePipelineSpecialization is the compute analogue of PipelineSpecialization. Compute
// pipelines have no vertex input, topology or multisampling.
type ComputePipelineSpecialization struct {
	ShaderDefs      []string
	DynamicBindings []string
}

// Normalized returns the canonical form with defines and dynamic bindings sorted and deduplicated.
func (s ComputePipelineSpecialization) Normalized() ComputePipelineSpecialization {
	return ComputePipelineSpecialization{
		ShaderDefs:      common.SortedUnique(s.ShaderDefs),
		DynamicBindings: common.SortedUnique(s.DynamicBindings),
	}
}

// Hash returns the FNV-1a hash of the normalized specialization.
func (s ComputePipelineSpecialization) Hash() uint64 {
	n := s.Normalized()
	h := fnv.New64a()
	hashStrings(h, n.ShaderDefs)
	hashStrings(h, n.DynamicBindings)
	return h.Sum64()
}

// Equal reports structural equality of the normalized forms.
func (s ComputePipelineSpecialization) Equal(o ComputePipelineSpecialization) bool {
	a, b := s.Normalized(), o.Normalized()
	return slices.Equal(a.ShaderDefs, b.ShaderDefs) && slices.Equal(a.DynamicBindings, b.DynamicBindings)
}

func (s ComputePipelineSpecialization) String() string {
	n := s.Normalized()
	return fmt.Sprintf("defs=%v dynamic=%v", n.ShaderDefs, n.DynamicBindings)
}

// hashUint64 writes v in little-endian order.
func hashUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// hashStrings writes a length-prefixed list so that ["ab"] and ["a", "b"] hash differently.
func hashStrings(h hash.Hash, values []string) {
	hashUint64(h, uint64(len(values)))
	for _, v := range values {
		hashUint64(h, uint64(len(v)))
		h.Write([]byte(v))
	}
}
