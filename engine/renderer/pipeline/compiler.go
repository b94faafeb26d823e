package pipeline

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// compiler is the implementation of the Compiler interface.
type compiler struct {
	backend      Backend
	descriptors  asset.Assets[PipelineDescriptor]
	shaders      asset.Assets[shader.Shader]
	preProcessor shader.PreProcessor
	cache        *cache[PipelineSpecialization, *CompiledPipeline]
}

// Compiler turns (descriptor, specialization) pairs into backend render pipelines and caches
// them. Each distinct pair is compiled at most once, even when many goroutines request it in
// the same frame.
type Compiler interface {
	// GetOrCompile returns the handle of the pipeline compiled for descriptor under spec,
	// compiling it on the first request. Failed compilations are not cached.
	//
	// Parameters:
	//   - ctx: the context of the requesting frame
	//   - descriptor: the PipelineDescriptor asset handle
	//   - spec: the specialization; only its normalized form matters
	//
	// Returns:
	//   - CompiledPipelineHandle: the cache handle of the compiled pipeline
	//   - error: a *CompileError or ErrDescriptorChanged
	GetOrCompile(ctx context.Context, descriptor asset.Handle, spec PipelineSpecialization) (CompiledPipelineHandle, error)

	// Pipeline returns a compiled pipeline by handle.
	//
	// Parameters:
	//   - handle: a handle returned by GetOrCompile
	//
	// Returns:
	//   - *CompiledPipeline: the pipeline
	//   - bool: false if the handle is unknown or its entry was invalidated
	Pipeline(handle CompiledPipelineHandle) (*CompiledPipeline, bool)

	// Invalidate releases and drops every pipeline compiled from descriptor. A compilation of
	// the descriptor that is in flight finishes with ErrDescriptorChanged.
	//
	// Parameters:
	//   - descriptor: the PipelineDescriptor asset handle
	//
	// Returns:
	//   - int: the number of pipelines dropped
	Invalidate(descriptor asset.Handle) int

	// ProcessAssetEvents invalidates the pipelines affected by descriptor and shader reloads
	// and removals. Creation events are ignored.
	//
	// Parameters:
	//   - descriptorEvents: events drained from the descriptor store
	//   - shaderEvents: events drained from the shader store
	//
	// Returns:
	//   - int: the number of pipelines dropped
	ProcessAssetEvents(descriptorEvents, shaderEvents []asset.Event) int

	// Stats returns a snapshot of the cache counters.
	//
	// Returns:
	//   - CacheStats: hits, misses, compiles, failures and size
	Stats() CacheStats

	// Len returns the number of cached pipelines.
	Len() int

	// Release releases every cached pipeline.
	Release()
}

var _ Compiler = &compiler{}

// NewCompiler creates a render pipeline compiler.
//
// Parameters:
//   - backend: the backend realizing pipelines
//   - descriptors: the pipeline descriptor store
//   - shaders: the shader store
//   - opts: builder options
//
// Returns:
//   - Compiler: the compiler
//   - error: ErrNilBackend if backend is nil
func NewCompiler(backend Backend, descriptors asset.Assets[PipelineDescriptor], shaders asset.Assets[shader.Shader], opts ...CompilerBuilderOption) (Compiler, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	o := buildCompilerOptions(opts)
	return &compiler{
		backend:      backend,
		descriptors:  descriptors,
		shaders:      shaders,
		preProcessor: o.preProcessor,
		cache:        newCache[PipelineSpecialization, *CompiledPipeline](),
	}, nil
}

func (c *compiler) GetOrCompile(ctx context.Context, descriptor asset.Handle, spec PipelineSpecialization) (CompiledPipelineHandle, error) {
	e, err := c.cache.getOrCompile(descriptor, spec, func(spec PipelineSpecialization, handle uint64) (*CompiledPipeline, error) {
		return c.compile(ctx, descriptor, spec, CompiledPipelineHandle(handle))
	})
	if err != nil {
		return 0, err
	}
	return e.value.Handle, nil
}

// compile runs one cache miss: preprocess, reflect, lay out and hand off to the backend.
func (c *compiler) compile(ctx context.Context, handle asset.Handle, spec PipelineSpecialization, id CompiledPipelineHandle) (*CompiledPipeline, error) {
	desc, ok := c.descriptors.Get(handle)
	if !ok {
		return nil, c.fail(handle, "", spec, ErrUnknownDescriptor)
	}
	fail := func(err error) error {
		return c.fail(handle, desc.Label(), spec, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	req := &RenderPipelineRequest{
		Label:          desc.Label(),
		Descriptor:     desc,
		Specialization: spec,
	}

	vertex, err := c.stage(desc.VertexShader(), shader.ShaderStageVertex, spec.ShaderDefs)
	if err != nil {
		return nil, fail(err)
	}
	req.VertexSource, req.VertexEntryPoint = vertex.source, vertex.reflection.EntryPoint

	stages := [][]shader.BindingLayout{vertex.reflection.Bindings}
	if desc.FragmentShader().Valid() {
		fragment, err := c.stage(desc.FragmentShader(), shader.ShaderStageFragment, spec.ShaderDefs)
		if err != nil {
			return nil, fail(err)
		}
		req.FragmentSource, req.FragmentEntryPoint = fragment.source, fragment.reflection.EntryPoint
		stages = append(stages, fragment.reflection.Bindings)
	}

	if req.Bindings, err = mergeBindings(stages...); err != nil {
		return nil, fail(err)
	}
	markDynamic(req.Bindings, spec.DynamicBindings)

	if req.VertexLayout, err = matchVertexLayout(vertex.reflection.VertexInputs, spec.VertexLayout); err != nil {
		return nil, fail(err)
	}

	backend, err := c.backend.CompileRenderPipeline(ctx, req)
	if err != nil {
		return nil, fail(err)
	}
	logger.Logger().Debug("compiled render pipeline", "label", req.Label, "descriptor", uint64(handle), "specialization", spec.String())

	return &CompiledPipeline{
		Handle:         id,
		Descriptor:     handle,
		Label:          req.Label,
		Specialization: spec,
		Bindings:       req.Bindings,
		VertexLayout:   req.VertexLayout,
		Backend:        backend,
	}, nil
}

func (c *compiler) fail(handle asset.Handle, label string, spec PipelineSpecialization, err error) error {
	logger.Logger().Warn("render pipeline compilation failed", "label", label, "descriptor", uint64(handle), "err", err)
	return &CompileError{Descriptor: handle, Label: label, Specialization: spec, Err: err}
}

type processedStage struct {
	source     string
	reflection shader.Reflection
}

// stage loads, preprocesses and reflects one shader stage.
func (c *compiler) stage(handle asset.Handle, stage shader.ShaderStage, defs []string) (processedStage, error) {
	return processShader(c.shaders, c.preProcessor, handle, stage, defs)
}

func processShader(shaders asset.Assets[shader.Shader], pp shader.PreProcessor, handle asset.Handle, stage shader.ShaderStage, defs []string) (processedStage, error) {
	s, ok := shaders.Get(handle)
	if !ok {
		return processedStage{}, fmt.Errorf("%w: %s shader %d", ErrUnknownShader, stage, handle)
	}
	if s.Stage() != stage {
		return processedStage{}, fmt.Errorf("pipeline: shader %q is a %s shader, used as %s", s.Label(), s.Stage(), stage)
	}

	source, err := pp.Process(s.Source(), defs)
	if err != nil {
		return processedStage{}, fmt.Errorf("preprocessing %q: %w", s.Label(), err)
	}
	r, err := shader.Reflect(source, stage)
	if err != nil {
		return processedStage{}, fmt.Errorf("reflecting %q: %w", s.Label(), err)
	}
	if ep := s.EntryPoint(); ep != "" {
		r.EntryPoint = ep
	}
	return processedStage{source: source, reflection: r}, nil
}

func (c *compiler) Pipeline(handle CompiledPipelineHandle) (*CompiledPipeline, bool) {
	return c.cache.get(uint64(handle))
}

func (c *compiler) Invalidate(descriptor asset.Handle) int {
	n := c.cache.invalidate(descriptor)
	if n > 0 {
		logger.Logger().Debug("invalidated render pipelines", "descriptor", uint64(descriptor), "count", n)
	}
	return n
}

func (c *compiler) ProcessAssetEvents(descriptorEvents, shaderEvents []asset.Event) int {
	dropped := 0
	for _, ev := range descriptorEvents {
		if ev.Kind != asset.EventCreated {
			dropped += c.Invalidate(ev.Handle)
		}
	}
	for _, ev := range shaderEvents {
		if ev.Kind == asset.EventCreated {
			continue
		}
		for _, d := range affectedDescriptors(c.descriptors, c.cache.descriptors(), ev.Handle) {
			dropped += c.Invalidate(d)
		}
	}
	return dropped
}

// affectedDescriptors returns the descriptors that reference shader, plus every cached
// descriptor that no longer resolves and so cannot be checked.
func affectedDescriptors[D interface{ References(asset.Handle) bool }](descriptors asset.Assets[D], cached []asset.Handle, shaderHandle asset.Handle) []asset.Handle {
	var out []asset.Handle
	for _, h := range descriptors.Handles() {
		if d, ok := descriptors.Get(h); ok && d.References(shaderHandle) {
			out = append(out, h)
		}
	}
	for _, h := range cached {
		if _, ok := descriptors.Get(h); !ok {
			out = append(out, h)
		}
	}
	return out
}

func (c *compiler) Stats() CacheStats {
	return c.cache.stats()
}

func (c *compiler) Len() int {
	return c.cache.len()
}

func (c *compiler) Release() {
	c.cache.releaseAll()
}
