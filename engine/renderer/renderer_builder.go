package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBaseGraphConfig selects which parts of the base render graph are built.
//
// Parameters:
//   - cfg: the base graph parts to build
//
// Returns:
//   - RendererBuilderOption: a function that applies the base graph option to a renderer
func WithBaseGraphConfig(cfg render_graph.BaseGraphConfig) RendererBuilderOption {
	return func(r *renderer) {
		r.baseGraph = &cfg
	}
}

// WithCompilerOptions passes options to both pipeline compilers.
//
// Parameters:
//   - opts: the compiler options
//
// Returns:
//   - RendererBuilderOption: a function that applies the compiler options to a renderer
func WithCompilerOptions(opts ...pipeline.CompilerBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.compilerOptions = append(r.compilerOptions, opts...)
	}
}
