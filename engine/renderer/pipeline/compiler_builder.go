package pipeline

import "github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"

// CompilerBuilderOption configures a Compiler or ComputeCompiler at construction.
type CompilerBuilderOption func(*compilerOptions)

type compilerOptions struct {
	preProcessor shader.PreProcessor
}

// WithPreProcessor replaces the shader-def preprocessor applied to sources before reflection.
//
// Parameters:
//   - p: the preprocessor
//
// Returns:
//   - CompilerBuilderOption: a function that applies the option
func WithPreProcessor(p shader.PreProcessor) CompilerBuilderOption {
	return func(o *compilerOptions) {
		if p != nil {
			o.preProcessor = p
		}
	}
}

func buildCompilerOptions(opts []CompilerBuilderOption) compilerOptions {
	o := compilerOptions{preProcessor: shader.NewPreProcessor()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
