package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVertex = `
@group(0) @binding(0) var<uniform> camera: mat4x4<f32>;
#ifdef USE_FOG
@group(0) @binding(1) var<uniform> fog: vec4<f32>;
#endif

@vertex
fn vs_main(@location(0) Vertex_Position: vec3<f32>, @location(1) Vertex_Normal: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera * vec4<f32>(Vertex_Position, 1.0);
}
`

const testFragment = `
@group(0) @binding(0) var<uniform> camera: mat4x4<f32>;
@group(1) @binding(0) var albedo: texture_2d<f32>;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

const testCompute = `
@group(0) @binding(0) var<storage, read_write> particles: array<vec4<f32>>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    particles[id.x] = particles[id.x] * 2.0;
}
`

type fakePipeline struct {
	released *atomic.Int32
}

func (p fakePipeline) Release() {
	p.released.Add(1)
}

// fakeBackend counts compilations and can block or fail them.
type fakeBackend struct {
	mu       sync.Mutex
	render   []*RenderPipelineRequest
	compute  []*ComputePipelineRequest
	released atomic.Int32
	err      error
	started  chan struct{}
	gate     chan struct{}
}

func (b *fakeBackend) wait() error {
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *fakeBackend) CompileRenderPipeline(_ context.Context, req *RenderPipelineRequest) (BackendPipeline, error) {
	if err := b.wait(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render = append(b.render, req)
	return fakePipeline{released: &b.released}, nil
}

func (b *fakeBackend) CompileComputePipeline(_ context.Context, req *ComputePipelineRequest) (BackendPipeline, error) {
	if err := b.wait(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compute = append(b.compute, req)
	return fakePipeline{released: &b.released}, nil
}

func (b *fakeBackend) renderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.render)
}

type fixture struct {
	backend     *fakeBackend
	shaders     asset.Assets[shader.Shader]
	descriptors asset.Assets[PipelineDescriptor]
	compiler    Compiler
	vertex      asset.Handle
	descriptor  asset.Handle
	layout      vertex_layout.VertexBufferLayout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend:     &fakeBackend{},
		shaders:     asset.NewAssets[shader.Shader](),
		descriptors: asset.NewAssets[PipelineDescriptor](),
	}
	f.vertex = f.shaders.Add(shader.NewShader(shader.ShaderStageVertex, testVertex, shader.WithLabel("forward.vert")))
	fragment := f.shaders.Add(shader.NewShader(shader.ShaderStageFragment, testFragment, shader.WithLabel("forward.frag")))
	f.descriptor = f.descriptors.Add(NewPipelineDescriptor(f.vertex, WithLabel("forward"), WithFragmentShader(fragment)))

	var err error
	f.layout, err = vertex_layout.Derive("mesh", []vertex_layout.MeshAttribute{
		{Name: "Vertex_Position", Format: wgpu.VertexFormatFloat32x3},
		{Name: "Vertex_Uv", Format: wgpu.VertexFormatFloat32x2},
		{Name: "Vertex_Normal", Format: wgpu.VertexFormatFloat32x3},
	}, wgpu.VertexStepModeVertex)
	require.NoError(t, err)

	f.compiler, err = NewCompiler(f.backend, f.descriptors, f.shaders)
	require.NoError(t, err)
	return f
}

func (f *fixture) spec(defs ...string) PipelineSpecialization {
	d, _ := f.descriptors.Get(f.descriptor)
	s := DefaultSpecialization(d)
	s.ShaderDefs = defs
	s.VertexLayout = f.layout
	return s
}

func TestNewCompilerRequiresBackend(t *testing.T) {
	_, err := NewCompiler(nil, asset.NewAssets[PipelineDescriptor](), asset.NewAssets[shader.Shader]())
	assert.ErrorIs(t, err, ErrNilBackend)

	_, err = NewComputeCompiler(nil, asset.NewAssets[ComputePipelineDescriptor](), asset.NewAssets[shader.Shader]())
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestGetOrCompileCompilesOncePerSpecialization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("USE_FOG"))
	require.NoError(t, err)
	again, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("USE_FOG", "USE_FOG"))
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, f.backend.renderCount())

	plain, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec())
	require.NoError(t, err)
	assert.NotEqual(t, first, plain)
	assert.Equal(t, 2, f.backend.renderCount())

	stats := f.compiler.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(2), stats.Compiles)
	assert.Equal(t, 2, stats.Size)
	assert.InDelta(t, 1.0/3.0, stats.HitRate(), 1e-9)
}

func TestGetOrCompileIgnoresDefineOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("B", "A"))
	require.NoError(t, err)
	b, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("A", "B", "A"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, f.compiler.Len())
}

func TestGetOrCompileConcurrentRequestsCompileOnce(t *testing.T) {
	f := newFixture(t)
	f.backend.gate = make(chan struct{})

	const callers = 32
	handles := make([]CompiledPipelineHandle, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i], errs[i] = f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec("USE_FOG"))
		}()
	}
	close(f.backend.gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, handles[0], handles[i])
	}
	assert.Equal(t, 1, f.backend.renderCount())
	assert.Equal(t, uint64(1), f.compiler.Stats().Compiles)
}

func TestGetOrCompileBuildsRequest(t *testing.T) {
	f := newFixture(t)
	spec := f.spec("USE_FOG")
	spec.DynamicBindings = []string{"camera"}

	handle, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, spec)
	require.NoError(t, err)

	req := f.backend.render[0]
	assert.Equal(t, "forward", req.Label)
	assert.Equal(t, "vs_main", req.VertexEntryPoint)
	assert.Equal(t, "fs_main", req.FragmentEntryPoint)
	assert.Contains(t, req.VertexSource, "var<uniform> fog")

	require.Len(t, req.Bindings, 3)
	camera := req.Bindings[0]
	assert.Equal(t, "camera", camera.Name)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, camera.Entry.Visibility)
	assert.True(t, camera.Entry.Buffer.HasDynamicOffset)
	assert.Equal(t, "fog", req.Bindings[1].Name)
	assert.False(t, req.Bindings[1].Entry.Buffer.HasDynamicOffset)
	assert.Equal(t, "albedo", req.Bindings[2].Name)

	require.Len(t, req.VertexLayout.Attributes, 2)
	assert.Equal(t, uint64(32), req.VertexLayout.Stride)
	assert.Equal(t, vertex_layout.VertexAttribute{Name: "Vertex_Position", Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0}, req.VertexLayout.Attributes[0])
	assert.Equal(t, vertex_layout.VertexAttribute{Name: "Vertex_Normal", Format: wgpu.VertexFormatFloat32x3, Offset: 20, ShaderLocation: 1}, req.VertexLayout.Attributes[1])

	p, ok := f.compiler.Pipeline(handle)
	require.True(t, ok)
	assert.Equal(t, f.descriptor, p.Descriptor)
	assert.Equal(t, req.VertexLayout, p.VertexLayout)
	assert.Equal(t, []string{"USE_FOG"}, p.Specialization.ShaderDefs)
}

func TestGetOrCompileWithoutFogOmitsBinding(t *testing.T) {
	f := newFixture(t)
	_, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec())
	require.NoError(t, err)

	req := f.backend.render[0]
	assert.NotContains(t, req.VertexSource, "fog")
	require.Len(t, req.Bindings, 2)
}

func TestGetOrCompileMissingVertexAttribute(t *testing.T) {
	f := newFixture(t)
	spec := f.spec()
	var err error
	spec.VertexLayout, err = vertex_layout.Derive("positions", []vertex_layout.MeshAttribute{
		{Name: "Vertex_Position", Format: wgpu.VertexFormatFloat32x3},
	}, wgpu.VertexStepModeVertex)
	require.NoError(t, err)

	_, err = f.compiler.GetOrCompile(context.Background(), f.descriptor, spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, ErrMissingVertexAttribute)
	assert.Contains(t, err.Error(), "Vertex_Normal")
	assert.Zero(t, f.backend.renderCount())
}

func TestGetOrCompileFailureIsTaggedAndNotCached(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("shader module rejected")
	f.backend.err = boom

	_, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec("USE_FOG"))
	require.Error(t, err)

	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, f.descriptor, compileErr.Descriptor)
	assert.Equal(t, "forward", compileErr.Label)
	assert.Contains(t, compileErr.Specialization.String(), "USE_FOG")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrCompile)
	assert.Zero(t, f.compiler.Len())
	assert.Equal(t, uint64(1), f.compiler.Stats().Failures)

	f.backend.err = nil
	_, err = f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec("USE_FOG"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.compiler.Len())
}

func TestGetOrCompileUnknownAssets(t *testing.T) {
	f := newFixture(t)

	_, err := f.compiler.GetOrCompile(context.Background(), asset.Handle(99), f.spec())
	assert.ErrorIs(t, err, ErrUnknownDescriptor)

	missing := f.descriptors.Add(NewPipelineDescriptor(asset.Handle(42), WithLabel("broken")))
	_, err = f.compiler.GetOrCompile(context.Background(), missing, f.spec())
	assert.ErrorIs(t, err, ErrUnknownShader)
	assert.ErrorIs(t, err, ErrCompile)
}

func TestGetOrCompileBindingConflict(t *testing.T) {
	f := newFixture(t)
	fragment := f.shaders.Add(shader.NewShader(shader.ShaderStageFragment, `
@group(0) @binding(0) var<uniform> lights: array<vec4<f32>, 4>;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`))
	d := f.descriptors.Add(NewPipelineDescriptor(f.vertex, WithFragmentShader(fragment)))

	_, err := f.compiler.GetOrCompile(context.Background(), d, f.spec())
	assert.ErrorIs(t, err, ErrBindingConflict)
}

func TestInvalidateReleasesPipelines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fog, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("USE_FOG"))
	require.NoError(t, err)
	_, err = f.compiler.GetOrCompile(ctx, f.descriptor, f.spec())
	require.NoError(t, err)

	assert.Equal(t, 2, f.compiler.Invalidate(f.descriptor))
	assert.Equal(t, int32(2), f.backend.released.Load())
	_, ok := f.compiler.Pipeline(fog)
	assert.False(t, ok)
	assert.Zero(t, f.compiler.Len())

	again, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec("USE_FOG"))
	require.NoError(t, err)
	assert.NotEqual(t, fog, again)
	assert.Equal(t, 3, f.backend.renderCount())
}

func TestProcessAssetEventsInvalidatesReloadedShaders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec())
	require.NoError(t, err)

	f.shaders.DrainEvents()
	f.descriptors.DrainEvents()

	unrelated := f.shaders.Add(shader.NewShader(shader.ShaderStageCompute, testCompute))
	f.shaders.Set(unrelated, shader.NewShader(shader.ShaderStageCompute, testCompute))
	assert.Zero(t, f.compiler.ProcessAssetEvents(f.descriptors.DrainEvents(), f.shaders.DrainEvents()))
	assert.Equal(t, 1, f.compiler.Len())

	f.shaders.Set(f.vertex, shader.NewShader(shader.ShaderStageVertex, testVertex))
	assert.Equal(t, 1, f.compiler.ProcessAssetEvents(f.descriptors.DrainEvents(), f.shaders.DrainEvents()))
	assert.Zero(t, f.compiler.Len())
}

func TestProcessAssetEventsInvalidatesRemovedDescriptor(t *testing.T) {
	f := newFixture(t)
	_, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec())
	require.NoError(t, err)

	f.descriptors.Remove(f.descriptor)
	assert.Equal(t, 1, f.compiler.ProcessAssetEvents(f.descriptors.DrainEvents(), nil))
	assert.Zero(t, f.compiler.Len())
}

func TestInvalidateDuringCompileDiscardsResult(t *testing.T) {
	f := newFixture(t)
	f.backend.started = make(chan struct{})
	f.backend.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec())
		done <- err
	}()

	<-f.backend.started
	f.compiler.Invalidate(f.descriptor)
	close(f.backend.gate)

	assert.ErrorIs(t, <-done, ErrDescriptorChanged)
	assert.Zero(t, f.compiler.Len())
	assert.Equal(t, int32(1), f.backend.released.Load())

	f.backend.started = nil
	_, err := f.compiler.GetOrCompile(context.Background(), f.descriptor, f.spec())
	require.NoError(t, err)
	assert.Equal(t, 1, f.compiler.Len())
}

func TestReleaseReleasesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, def := range []string{"A", "B", "C"} {
		_, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec(def))
		require.NoError(t, err)
	}
	f.compiler.Release()
	assert.Zero(t, f.compiler.Len())
	assert.Equal(t, int32(3), f.backend.released.Load())
}

func TestGetOrCompileHonorsCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.compiler.GetOrCompile(ctx, f.descriptor, f.spec())
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrCompile)
}

func TestComputeCompiler(t *testing.T) {
	backend := &fakeBackend{}
	shaders := asset.NewAssets[shader.Shader]()
	descriptors := asset.NewAssets[ComputePipelineDescriptor]()
	cs := shaders.Add(shader.NewShader(shader.ShaderStageCompute, testCompute))
	d := descriptors.Add(ComputePipelineDescriptor{Label: "particles", ComputeShader: cs})

	c, err := NewComputeCompiler(backend, descriptors, shaders)
	require.NoError(t, err)

	ctx := context.Background()
	spec := ComputePipelineSpecialization{DynamicBindings: []string{"particles"}}
	h, err := c.GetOrCompile(ctx, d, spec)
	require.NoError(t, err)
	again, err := c.GetOrCompile(ctx, d, spec)
	require.NoError(t, err)
	assert.Equal(t, h, again)
	require.Len(t, backend.compute, 1)

	req := backend.compute[0]
	assert.Equal(t, "cs_main", req.EntryPoint)
	assert.Equal(t, [3]uint32{64, 1, 1}, req.WorkgroupSize)
	require.Len(t, req.Bindings, 1)
	assert.True(t, req.Bindings[0].Entry.Buffer.HasDynamicOffset)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, req.Bindings[0].Entry.Buffer.Type)

	p, ok := c.Pipeline(h)
	require.True(t, ok)
	assert.Equal(t, "particles", p.Label)
	assert.Equal(t, [3]uint32{64, 1, 1}, p.WorkgroupSize)

	shaders.Set(cs, shader.NewShader(shader.ShaderStageCompute, testCompute))
	assert.Equal(t, 1, c.ProcessAssetEvents(descriptors.DrainEvents(), shaders.DrainEvents()))
	assert.Zero(t, c.Len())
	assert.Equal(t, int32(1), backend.released.Load())
}

func TestComputeCompilerRejectsWrongStage(t *testing.T) {
	backend := &fakeBackend{}
	shaders := asset.NewAssets[shader.Shader]()
	descriptors := asset.NewAssets[ComputePipelineDescriptor]()
	vs := shaders.Add(shader.NewShader(shader.ShaderStageVertex, testVertex))
	d := descriptors.Add(ComputePipelineDescriptor{Label: "wrong", ComputeShader: vs})

	c, err := NewComputeCompiler(backend, descriptors, shaders)
	require.NoError(t, err)
	_, err = c.GetOrCompile(context.Background(), d, ComputePipelineSpecialization{})
	assert.ErrorIs(t, err, ErrCompile)
	assert.Empty(t, backend.compute)
}
