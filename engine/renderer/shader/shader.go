package shader

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderStage identifies the pipeline stage a shader runs in.
type ShaderStage int

const (
	// ShaderStageVertex is a shader with a @vertex entry point.
	ShaderStageVertex ShaderStage = iota

	// ShaderStageFragment is a shader with a @fragment entry point, paired with a vertex shader.
	ShaderStageFragment

	// ShaderStageCompute is a shader with a @compute entry point.
	ShaderStageCompute
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	default:
		return fmt.Sprintf("ShaderStage(%d)", int(s))
	}
}

// Visibility returns the WebGPU stage flag of the shader stage.
func (s ShaderStage) Visibility() wgpu.ShaderStage {
	switch s {
	case ShaderStageVertex:
		return wgpu.ShaderStageVertex
	case ShaderStageFragment:
		return wgpu.ShaderStageFragment
	case ShaderStageCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	label      string
	stage      ShaderStage
	source     string
	entryPoint string
}

// Shader is an immutable WGSL shader asset. The source may contain #ifdef style shader-def
// directives which are resolved per specialization by the pipeline compiler.
type Shader interface {
	// Label returns the debug label of the shader.
	//
	// Returns:
	//   - string: the label, or an empty string
	Label() string

	// Stage returns the pipeline stage this shader targets.
	//
	// Returns:
	//   - ShaderStage: the shader stage
	Stage() ShaderStage

	// Source returns the raw WGSL source, before shader-def processing.
	//
	// Returns:
	//   - string: the WGSL source
	Source() string

	// EntryPoint returns the entry point configured with WithEntryPoint. An empty string means
	// the entry point is reflected from the processed source.
	//
	// Returns:
	//   - string: the configured entry point name
	EntryPoint() string
}

var _ Shader = &shader{}

// NewShader creates a shader asset from WGSL source.
//
// Parameters:
//   - stage: the pipeline stage of the shader
//   - source: the WGSL source code, optionally containing shader-def directives
//   - options: builder options (label, entry point)
//
// Returns:
//   - Shader: the shader asset
func NewShader(stage ShaderStage, source string, options ...ShaderBuilderOption) Shader {
	s := &shader{
		stage:  stage,
		source: source,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// LoadShader reads a WGSL file from disk and creates a shader asset from it.
// The file path is used as the label unless WithLabel is supplied.
//
// Parameters:
//   - stage: the pipeline stage of the shader
//   - path: the path of the WGSL file
//   - options: builder options (label, entry point)
//
// Returns:
//   - Shader: the shader asset
//   - error: an error if the file cannot be read
func LoadShader(stage ShaderStage, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return NewShader(stage, string(data), append([]ShaderBuilderOption{WithLabel(path)}, options...)...), nil
}

func (s *shader) Label() string {
	return s.label
}

func (s *shader) Stage() ShaderStage {
	return s.stage
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}
