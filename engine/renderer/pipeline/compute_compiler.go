package pipeline

import (
	"context"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// computeCompiler is the implementation of the ComputeCompiler interface.
type computeCompiler struct {
	backend      Backend
	descriptors  asset.Assets[ComputePipelineDescriptor]
	shaders      asset.Assets[shader.Shader]
	preProcessor shader.PreProcessor
	cache        *cache[ComputePipelineSpecialization, *CompiledComputePipeline]
}

// ComputeCompiler is the compute counterpart of Compiler. It keeps its own cache; compute and
// render pipelines never share entries.
type ComputeCompiler interface {
	// GetOrCompile returns the handle of the compute pipeline compiled for descriptor under
	// spec, compiling it on the first request.
	//
	// Parameters:
	//   - ctx: the context of the requesting frame
	//   - descriptor: the ComputePipelineDescriptor asset handle
	//   - spec: the specialization
	//
	// Returns:
	//   - CompiledComputePipelineHandle: the cache handle of the compiled pipeline
	//   - error: a *CompileError or ErrDescriptorChanged
	GetOrCompile(ctx context.Context, descriptor asset.Handle, spec ComputePipelineSpecialization) (CompiledComputePipelineHandle, error)

	// Pipeline returns a compiled compute pipeline by handle.
	//
	// Parameters:
	//   - handle: a handle returned by GetOrCompile
	//
	// Returns:
	//   - *CompiledComputePipeline: the pipeline
	//   - bool: false if the handle is unknown or its entry was invalidated
	Pipeline(handle CompiledComputePipelineHandle) (*CompiledComputePipeline, bool)

	// Invalidate releases and drops every pipeline compiled from descriptor.
	//
	// Parameters:
	//   - descriptor: the ComputePipelineDescriptor asset handle
	//
	// Returns:
	//   - int: the number of pipelines dropped
	Invalidate(descriptor asset.Handle) int

	// ProcessAssetEvents invalidates the pipelines affected by descriptor and shader reloads
	// and removals.
	//
	// Parameters:
	//   - descriptorEvents: events drained from the compute descriptor store
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

var _ ComputeCompiler = &computeCompiler{}

// NewComputeCompiler creates a compute pipeline compiler.
//
// Parameters:
//   - backend: the backend realizing pipelines
//   - descriptors: the compute pipeline descriptor store
//   - shaders: the shader store, usually shared with the render Compiler
//   - opts: builder options
//
// Returns:
//   - ComputeCompiler: the compiler
//   - error: ErrNilBackend if backend is nil
func NewComputeCompiler(backend Backend, descriptors asset.Assets[ComputePipelineDescriptor], shaders asset.Assets[shader.Shader], opts ...CompilerBuilderOption) (ComputeCompiler, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	o := buildCompilerOptions(opts)
	return &computeCompiler{
		backend:      backend,
		descriptors:  descriptors,
		shaders:      shaders,
		preProcessor: o.preProcessor,
		cache:        newCache[ComputePipelineSpecialization, *CompiledComputePipeline](),
	}, nil
}

func (c *computeCompiler) GetOrCompile(ctx context.Context, descriptor asset.Handle, spec ComputePipelineSpecialization) (CompiledComputePipelineHandle, error) {
	e, err := c.cache.getOrCompile(descriptor, spec, func(spec ComputePipelineSpecialization, handle uint64) (*CompiledComputePipeline, error) {
		return c.compile(ctx, descriptor, spec, CompiledComputePipelineHandle(handle))
	})
	if err != nil {
		return 0, err
	}
	return e.value.Handle, nil
}

func (c *computeCompiler) compile(ctx context.Context, handle asset.Handle, spec ComputePipelineSpecialization, id CompiledComputePipelineHandle) (*CompiledComputePipeline, error) {
	desc, ok := c.descriptors.Get(handle)
	if !ok {
		return nil, c.fail(handle, "", spec, ErrUnknownDescriptor)
	}
	if err := ctx.Err(); err != nil {
		return nil, c.fail(handle, desc.Label, spec, err)
	}

	stage, err := processShader(c.shaders, c.preProcessor, desc.ComputeShader, shader.ShaderStageCompute, spec.ShaderDefs)
	if err != nil {
		return nil, c.fail(handle, desc.Label, spec, err)
	}
	bindings, err := mergeBindings(stage.reflection.Bindings)
	if err != nil {
		return nil, c.fail(handle, desc.Label, spec, err)
	}
	markDynamic(bindings, spec.DynamicBindings)

	req := &ComputePipelineRequest{
		Label:          desc.Label,
		Descriptor:     desc,
		Specialization: spec,
		Source:         stage.source,
		EntryPoint:     stage.reflection.EntryPoint,
		WorkgroupSize:  stage.reflection.WorkgroupSize,
		Bindings:       bindings,
	}
	backend, err := c.backend.CompileComputePipeline(ctx, req)
	if err != nil {
		return nil, c.fail(handle, desc.Label, spec, err)
	}
	logger.Logger().Debug("compiled compute pipeline", "label", desc.Label, "descriptor", uint64(handle), "specialization", spec.String())

	return &CompiledComputePipeline{
		Handle:         id,
		Descriptor:     handle,
		Label:          desc.Label,
		Specialization: spec,
		Bindings:       bindings,
		WorkgroupSize:  req.WorkgroupSize,
		Backend:        backend,
	}, nil
}

func (c *computeCompiler) fail(handle asset.Handle, label string, spec ComputePipelineSpecialization, err error) error {
	logger.Logger().Warn("compute pipeline compilation failed", "label", label, "descriptor", uint64(handle), "err", err)
	return &CompileError{Descriptor: handle, Label: label, Specialization: spec, Err: err}
}

func (c *computeCompiler) Pipeline(handle CompiledComputePipelineHandle) (*CompiledComputePipeline, bool) {
	return c.cache.get(uint64(handle))
}

func (c *computeCompiler) Invalidate(descriptor asset.Handle) int {
	return c.cache.invalidate(descriptor)
}

func (c *computeCompiler) ProcessAssetEvents(descriptorEvents, shaderEvents []asset.Event) int {
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

func (c *computeCompiler) Stats() CacheStats {
	return c.cache.stats()
}

func (c *computeCompiler) Len() int {
	return c.cache.len()
}

func (c *computeCompiler) Release() {
	c.cache.releaseAll()
}
