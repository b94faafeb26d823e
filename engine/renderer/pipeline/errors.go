package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
)

var (
	// ErrNilBackend is returned when a compiler is created without a backend.
	ErrNilBackend = errors.New("pipeline: backend is nil")

	// ErrUnknownDescriptor is returned when a descriptor handle does not resolve to an asset.
	ErrUnknownDescriptor = errors.New("pipeline: unknown pipeline descriptor")

	// ErrUnknownShader is returned when a descriptor references a missing shader asset.
	ErrUnknownShader = errors.New("pipeline: unknown shader")

	// ErrCompile is matched by every CompileError.
	ErrCompile = errors.New("pipeline: compilation failed")

	// ErrMissingVertexAttribute is returned when a vertex shader input has no matching attribute
	// in the specialization's vertex layout.
	ErrMissingVertexAttribute = errors.New("pipeline: missing vertex attribute")

	// ErrBindingConflict is returned when two stages declare different resources at the same
	// group and binding.
	ErrBindingConflict = errors.New("pipeline: conflicting binding declarations")

	// ErrDescriptorChanged is returned when a descriptor or shader was reloaded while a
	// pipeline for it was compiling. The result is discarded and the next request recompiles.
	ErrDescriptorChanged = errors.New("pipeline: descriptor changed during compilation")
)

// CompileError reports a failed compilation together with the descriptor and specialization
// that produced it.
type CompileError struct {
	Descriptor     asset.Handle
	Label          string
	Specialization fmt.Stringer
	Err            error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pipeline: compiling %q (descriptor %d, %s): %v", e.Label, e.Descriptor, e.Specialization, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}
