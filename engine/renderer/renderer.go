package renderer

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
)

// ErrNilBackend is returned by NewRenderer when no backend is given.
var ErrNilBackend = errors.New("renderer: nil backend")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend Backend
	table   render_resource.Table
	layouts vertex_layout.Registry

	shaders            asset.Assets[shader.Shader]
	descriptors        asset.Assets[pipeline.PipelineDescriptor]
	computeDescriptors asset.Assets[pipeline.ComputePipelineDescriptor]
	meshes             asset.Assets[*model.Mesh]
	textures           asset.Assets[*model.Texture]

	compiler        pipeline.Compiler
	computeCompiler pipeline.ComputeCompiler

	graph    render_graph.Graph
	executor render_graph.Executor

	meshProvider    MeshProvider
	textureProvider TextureProvider
	uniforms        UniformProvider

	// Pre-creation config collected from builder options
	baseGraph       *render_graph.BaseGraphConfig
	compilerOptions []pipeline.CompilerBuilderOption
	released        bool
}

// Renderer ties the frame-execution core together: the asset stores, the binding table, the
// vertex layout registry, both pipeline compilers, the render graph with its executor and the
// resource providers, all on top of one Backend.
//
// This is a high-level API; the frame driver in package engine decides when each part runs.
type Renderer interface {
	// Backend returns the backend the renderer was created with.
	Backend() Backend

	// Table returns the binding table shared by providers, graph nodes and draws.
	Table() render_resource.Table

	// Layouts returns the vertex layout registry.
	Layouts() vertex_layout.Registry

	// Shaders returns the shader asset store.
	Shaders() asset.Assets[shader.Shader]

	// Descriptors returns the render pipeline descriptor store.
	Descriptors() asset.Assets[pipeline.PipelineDescriptor]

	// ComputeDescriptors returns the compute pipeline descriptor store.
	ComputeDescriptors() asset.Assets[pipeline.ComputePipelineDescriptor]

	// Meshes returns the mesh asset store.
	Meshes() asset.Assets[*model.Mesh]

	// Textures returns the texture asset store.
	Textures() asset.Assets[*model.Texture]

	// Compiler returns the render pipeline compiler.
	Compiler() pipeline.Compiler

	// ComputeCompiler returns the compute pipeline compiler.
	ComputeCompiler() pipeline.ComputeCompiler

	// Graph returns the render graph. Structural changes must happen between frames.
	Graph() render_graph.Graph

	// Executor returns the executor running Graph.
	Executor() render_graph.Executor

	// MeshProvider returns the mesh upload provider.
	MeshProvider() MeshProvider

	// TextureProvider returns the texture upload provider.
	TextureProvider() TextureProvider

	// Uniforms returns the camera and model uniform provider.
	Uniforms() UniformProvider

	// ProcessPipelineEvents drains the shader and descriptor stores once and hands the events
	// to both compilers, invalidating every pipeline built from a reloaded or removed asset.
	//
	// Returns:
	//   - int: the number of pipelines dropped
	ProcessPipelineEvents() int

	// SampleCount returns the sample count of the main pass.
	SampleCount() uint32

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Release frees every pipeline and resource, then the backend. Safe to call twice.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer on top of backend and builds the base render graph for the
// backend's sample count.
//
// Parameters:
//   - backend: the backend realizing pipelines and resources
//   - options: builder options
//
// Returns:
//   - Renderer: the renderer
//   - error: ErrNilBackend or a graph construction error
func NewRenderer(backend Backend, options ...RendererBuilderOption) (Renderer, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	r := &renderer{
		mu:                 &sync.Mutex{},
		backend:            backend,
		table:              render_resource.NewTable(),
		layouts:            vertex_layout.NewRegistry(),
		shaders:            asset.NewAssets[shader.Shader](),
		descriptors:        asset.NewAssets[pipeline.PipelineDescriptor](),
		computeDescriptors: asset.NewAssets[pipeline.ComputePipelineDescriptor](),
		meshes:             asset.NewAssets[*model.Mesh](),
		textures:           asset.NewAssets[*model.Texture](),
		graph:              render_graph.NewGraph(),
	}
	for _, opt := range options {
		opt(r)
	}

	var err error
	if r.compiler, err = pipeline.NewCompiler(backend, r.descriptors, r.shaders, r.compilerOptions...); err != nil {
		return nil, err
	}
	if r.computeCompiler, err = pipeline.NewComputeCompiler(backend, r.computeDescriptors, r.shaders, r.compilerOptions...); err != nil {
		return nil, err
	}

	cfg := render_graph.DefaultBaseGraphConfig()
	if r.baseGraph != nil {
		cfg = *r.baseGraph
	}
	if err := render_graph.AddBaseGraph(r.graph, cfg, backend.SampleCount()); err != nil {
		return nil, err
	}
	r.executor = render_graph.NewExecutor(r.graph)

	r.meshProvider = NewMeshProvider(backend, r.layouts)
	r.textureProvider = NewTextureProvider(backend)
	r.uniforms = NewUniformProvider(backend)
	return r, nil
}

func (r *renderer) Backend() Backend {
	return r.backend
}

func (r *renderer) Table() render_resource.Table {
	return r.table
}

func (r *renderer) Layouts() vertex_layout.Registry {
	return r.layouts
}

func (r *renderer) Shaders() asset.Assets[shader.Shader] {
	return r.shaders
}

func (r *renderer) Descriptors() asset.Assets[pipeline.PipelineDescriptor] {
	return r.descriptors
}

func (r *renderer) ComputeDescriptors() asset.Assets[pipeline.ComputePipelineDescriptor] {
	return r.computeDescriptors
}

func (r *renderer) Meshes() asset.Assets[*model.Mesh] {
	return r.meshes
}

func (r *renderer) Textures() asset.Assets[*model.Texture] {
	return r.textures
}

func (r *renderer) Compiler() pipeline.Compiler {
	return r.compiler
}

func (r *renderer) ComputeCompiler() pipeline.ComputeCompiler {
	return r.computeCompiler
}

func (r *renderer) Graph() render_graph.Graph {
	return r.graph
}

func (r *renderer) Executor() render_graph.Executor {
	return r.executor
}

func (r *renderer) MeshProvider() MeshProvider {
	return r.meshProvider
}

func (r *renderer) TextureProvider() TextureProvider {
	return r.textureProvider
}

func (r *renderer) Uniforms() UniformProvider {
	return r.uniforms
}

func (r *renderer) ProcessPipelineEvents() int {
	shaderEvents := r.shaders.DrainEvents()
	dropped := r.compiler.ProcessAssetEvents(r.descriptors.DrainEvents(), shaderEvents)
	dropped += r.computeCompiler.ProcessAssetEvents(r.computeDescriptors.DrainEvents(), shaderEvents)
	return dropped
}

func (r *renderer) SampleCount() uint32 {
	return r.backend.SampleCount()
}

func (r *renderer) Resize(width, height int) {
	r.backend.Resize(width, height)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	r.compiler.Release()
	r.computeCompiler.Release()
	r.uniforms.Release()
	for _, h := range r.meshes.Handles() {
		r.meshProvider.Release(h)
	}
	for _, h := range r.textures.Handles() {
		r.textureProvider.Release(h)
	}
	r.backend.Release()
}
