package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/world"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forwardVertex = `
struct Camera {
    view_proj: mat4x4<f32>,
    position: vec4<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(1) @binding(0) var<uniform> model: mat4x4<f32>;

@vertex
fn vs_main(@location(0) Vertex_Position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return camera.view_proj * model * vec4<f32>(Vertex_Position, 1.0);
}
`

const forwardFragment = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
#ifdef TINT
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
#else
    return vec4<f32>(1.0);
#endif
}
`

const texturedFragment = `
@group(2) @binding(0) var albedo: texture_2d<f32>;
@group(2) @binding(1) var albedo_sampler: sampler;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return textureSample(albedo, albedo_sampler, vec2<f32>(0.5, 0.5));
}
`

const particleCompute = `
@group(0) @binding(0) var<storage, read_write> particles: array<vec4<f32>>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    particles[id.x] = particles[id.x] * 2.0;
}
`

type fixture struct {
	backend  *renderer.HeadlessBackend
	renderer renderer.Renderer
	engine   Engine
	vertex   asset.Handle
	forward  asset.Handle
	textured asset.Handle
	cube     asset.Handle
}

func newFixture(t *testing.T, options ...EngineBuilderOption) *fixture {
	t.Helper()
	f := &fixture{backend: renderer.NewHeadlessBackend(renderer.WithShaderValidation(false))}

	r, err := renderer.NewRenderer(f.backend)
	require.NoError(t, err)
	f.renderer = r

	f.vertex = r.Shaders().Add(shader.NewShader(shader.ShaderStageVertex, forwardVertex))
	fragment := r.Shaders().Add(shader.NewShader(shader.ShaderStageFragment, forwardFragment))
	textured := r.Shaders().Add(shader.NewShader(shader.ShaderStageFragment, texturedFragment))
	f.forward = r.Descriptors().Add(pipeline.NewPipelineDescriptor(f.vertex,
		pipeline.WithLabel("forward"), pipeline.WithFragmentShader(fragment)))
	f.textured = r.Descriptors().Add(pipeline.NewPipelineDescriptor(f.vertex,
		pipeline.WithLabel("textured"), pipeline.WithFragmentShader(textured)))
	f.cube = r.Meshes().Add(model.NewCube(1))

	e, err := NewEngine(r, append([]EngineBuilderOption{WithWorkers(2)}, options...)...)
	require.NoError(t, err)
	f.engine = e
	t.Cleanup(e.Release)

	e.World().Spawn(world.NewRenderEntity(world.WithCamera(camera.Camera{Name: render_graph.NodeCamera3D})))
	return f
}

func (f *fixture) spawnDrawable(descriptor asset.Handle, options ...world.RenderEntityBuilderOption) world.Entity {
	base := []world.RenderEntityBuilderOption{
		world.WithMesh(f.cube),
		world.WithRenderPipeline(world.RenderPipeline{Descriptor: descriptor}),
	}
	return f.engine.World().Spawn(world.NewRenderEntity(append(base, options...)...))
}

func (f *fixture) renderCompiles() int {
	n, _ := f.backend.Compiles()
	return n
}

func TestStageNames(t *testing.T) {
	var names []string
	for _, s := range Stages() {
		names = append(names, s.String())
	}
	assert.Equal(t, []string{"post_update", "render_resource", "render_graph_systems", "compute", "draw", "post_render"}, names)
	assert.Equal(t, "Stage(9)", Stage(9).String())
}

func TestNewEngineNilRenderer(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilRenderer)
}

func TestRunFrameDrawsVisibleEntities(t *testing.T) {
	f := newFixture(t)
	f.spawnDrawable(f.forward, world.WithPosition(0, 0, -2))
	f.spawnDrawable(f.forward, world.WithPosition(1, 0, -4))

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), stats.Index)
	assert.Equal(t, 1, stats.MeshesPrepared)
	assert.Equal(t, 2, stats.Draws)
	assert.Zero(t, stats.SkippedDraws)
	assert.Equal(t, Stage(-1), stats.Failed)
	assert.Contains(t, stats.Graph.Executed, render_graph.NodeMainPass)
	assert.Equal(t, 1, f.renderCompiles(), "both entities share one specialization")

	draws := f.backend.Draws()
	require.Len(t, draws, 2)
	for _, d := range draws {
		assert.Equal(t, render_graph.NodeCamera3D, d.Camera)
		assert.Equal(t, "forward", d.Pipeline)
		assert.True(t, d.Indexed)
		assert.Equal(t, uint32(36), d.Count)
		require.Len(t, d.Groups, 2)
		assert.Equal(t, "camera", d.Groups[0].Entries[0].Name)
		assert.Equal(t, render_resource.ResourceKindBuffer, d.Groups[0].Entries[0].Resource.Kind)
		assert.Equal(t, uint64(camera.GPUCameraUniformSize), d.Groups[0].Entries[0].Size)
		assert.Equal(t, "model", d.Groups[1].Entries[0].Name)
	}
	assert.Equal(t, 1, f.backend.Frames())
	assert.Empty(t, f.engine.Draws().Lists(), "draw lists are cleared after the frame")

	stats, err = f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Index)
	assert.Zero(t, stats.MeshesPrepared, "unchanged meshes are not uploaded again")
	assert.Equal(t, 2, stats.Draws)
	assert.Equal(t, 1, f.renderCompiles())
	assert.Equal(t, stats, f.engine.LastFrame())
}

func TestShaderDefsSelectVariants(t *testing.T) {
	f := newFixture(t)
	tinted := f.spawnDrawable(f.forward, world.WithShaderDefs("TINT"))
	f.spawnDrawable(f.forward)

	_, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.renderCompiles())
	assert.Equal(t, 2, f.renderer.Compiler().Len())

	ent, ok := f.engine.World().Get(tinted)
	require.True(t, ok)
	assert.Zero(t, ent.ShaderDefs.Len(), "shader defs are reset after the frame")

	// Without the define both entities hit the cached base variant.
	_, err = f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.renderCompiles())

	// A define added before the frame reaches the cached TINT variant.
	f.engine.AddSystem(StagePostUpdate, "tint", func(_ context.Context, e Engine) error {
		e.World().Update(tinted, func(ent *world.RenderEntity) { ent.ShaderDefs.Add("TINT") })
		return nil
	})
	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Draws)
	assert.Equal(t, 2, f.renderCompiles())
}

func TestMissingBindingSkipsDraw(t *testing.T) {
	f := newFixture(t)
	id := f.spawnDrawable(f.textured)
	f.spawnDrawable(f.forward)

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err, "a missing binding never fails the frame")
	assert.Equal(t, 1, stats.Draws)
	assert.Equal(t, 1, stats.SkippedDraws)

	tex := model.NewTexture("albedo", common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1})
	tex.TextureBinding, tex.SamplerBinding = "albedo", "albedo_sampler"
	th := f.renderer.Textures().Add(tex)
	f.engine.World().Update(id, func(ent *world.RenderEntity) { ent.Textures = append(ent.Textures, th) })

	stats, err = f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TexturesPrepared)
	assert.Equal(t, 2, stats.Draws)
	assert.Zero(t, stats.SkippedDraws)
}

func TestTextureBindingsIsolatedFromMeshHandles(t *testing.T) {
	f := newFixture(t)
	newAlbedo := func(label string) asset.Handle {
		tex := model.NewTexture(label, common.TextureStagingData{Pixels: make([]byte, 4), Width: 1, Height: 1})
		tex.TextureBinding, tex.SamplerBinding = "albedo", "albedo_sampler"
		return f.renderer.Textures().Add(tex)
	}
	first := newAlbedo("first")
	second := newAlbedo("second")
	require.Equal(t, uint64(f.cube), uint64(first), "mesh and texture handles overlap")
	f.spawnDrawable(f.textured, world.WithTexture(second))

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Draws)

	table := f.renderer.Table()
	want, ok := table.Get(render_resource.TextureScope(second), "albedo")
	require.True(t, ok)
	other, ok := table.Get(render_resource.TextureScope(first), "albedo")
	require.True(t, ok)
	require.NotEqual(t, other.Resource, want.Resource)
	_, ok = table.Get(render_resource.MeshScope(f.cube), "albedo")
	assert.False(t, ok, "texture bindings never land in a mesh scope")

	draws := f.backend.Draws()
	require.Len(t, draws, 1)
	var drawn []render_resource.ResourceID
	for _, g := range draws[0].Groups {
		for _, e := range g.Entries {
			if e.Name == "albedo" {
				drawn = append(drawn, e.Resource)
			}
		}
	}
	assert.Equal(t, []render_resource.ResourceID{want.Resource}, drawn)
}

func TestMeshRemovalSkipsDraw(t *testing.T) {
	f := newFixture(t)
	f.spawnDrawable(f.forward)

	_, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.renderer.MeshProvider().Len())

	f.renderer.Meshes().Remove(f.cube)
	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.renderer.MeshProvider().Len())
	assert.Zero(t, stats.Draws)
	assert.Equal(t, 1, stats.SkippedDraws)
	_, ok := f.renderer.Table().Get(render_resource.MeshScope(f.cube), renderer.VertexBufferBinding)
	assert.False(t, ok)
}

func TestShaderReloadRecompiles(t *testing.T) {
	f := newFixture(t)
	f.spawnDrawable(f.forward)

	_, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.renderCompiles())

	f.renderer.Shaders().Set(f.vertex, shader.NewShader(shader.ShaderStageVertex, forwardVertex))
	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PipelinesDropped)
	assert.Equal(t, 2, f.renderCompiles())
	assert.Equal(t, 1, stats.Draws)
}

func TestComputeDispatch(t *testing.T) {
	f := newFixture(t)
	cs := f.renderer.Shaders().Add(shader.NewShader(shader.ShaderStageCompute, particleCompute))
	desc := f.renderer.ComputeDescriptors().Add(pipeline.ComputePipelineDescriptor{Label: "particles", ComputeShader: cs})
	f.engine.World().Spawn(world.NewRenderEntity(world.WithCompute(world.ComputeDispatch{
		Descriptor: desc,
		Workgroups: [3]uint32{4, 1, 1},
	})))

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Dispatches, "particles is not bound yet")

	buf, err := f.backend.CreateBuffer("particles", wgpu.BufferUsageStorage, 4096, nil)
	require.NoError(t, err)
	f.renderer.Table().Set(render_resource.GlobalScope(), render_resource.Binding{Name: "particles", Resource: buf, Size: 4096})

	stats, err = f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dispatches)
	dispatches := f.backend.Dispatches()
	require.Len(t, dispatches, 1)
	assert.Equal(t, "particles", dispatches[0].Label)
	assert.Equal(t, [3]uint32{4, 1, 1}, dispatches[0].Workgroups)
	_, compute := f.backend.Compiles()
	assert.Equal(t, 1, compute)
}

func TestStageErrorStillRunsPostRender(t *testing.T) {
	boom := errors.New("boom")
	var drawRan bool
	f := newFixture(t,
		WithSystem(StageCompute, "explode", func(context.Context, Engine) error { return boom }),
		WithSystem(StageDraw, "after", func(context.Context, Engine) error {
			drawRan = true
			return nil
		}),
	)
	f.spawnDrawable(f.forward)

	stats, err := f.engine.RunFrame(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage compute")
	assert.Contains(t, err.Error(), `"explode"`)
	assert.Equal(t, StageCompute, stats.Failed)
	assert.False(t, drawRan)
	assert.Empty(t, f.backend.Draws())
	assert.Equal(t, 1, f.backend.Frames(), "the backend frame is closed")
}

func TestGraphFailureStillDispatchesCompute(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	require.NoError(t, f.renderer.Graph().AddNode("explode", render_graph.NewFuncNode(nil, nil,
		func(context.Context, *render_graph.RunContext) error { return boom })))

	cs := f.renderer.Shaders().Add(shader.NewShader(shader.ShaderStageCompute, particleCompute))
	desc := f.renderer.ComputeDescriptors().Add(pipeline.ComputePipelineDescriptor{Label: "particles", ComputeShader: cs})
	buf, err := f.backend.CreateBuffer("particles", wgpu.BufferUsageStorage, 4096, nil)
	require.NoError(t, err)
	f.renderer.Table().Set(render_resource.GlobalScope(), render_resource.Binding{Name: "particles", Resource: buf, Size: 4096})
	f.engine.World().Spawn(world.NewRenderEntity(world.WithCompute(world.ComputeDispatch{
		Descriptor: desc,
		Workgroups: [3]uint32{1, 1, 1},
	})))
	f.spawnDrawable(f.forward)

	stats, err := f.engine.RunFrame(context.Background())
	require.ErrorIs(t, err, boom)
	var nodeErr *render_graph.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "explode", nodeErr.Node)
	assert.Equal(t, StageRenderGraphSystems, stats.Failed)
	assert.Equal(t, 1, stats.Dispatches, "compute does not depend on graph outputs")
	assert.Len(t, f.backend.Dispatches(), 1)
	assert.Zero(t, stats.Draws)
	assert.Empty(t, f.backend.Draws())
	assert.Equal(t, 1, f.backend.Frames())
}

func TestSystemsRunInStageOrder(t *testing.T) {
	f := newFixture(t)
	var (
		mu  sync.Mutex
		ran []string
	)
	for _, s := range []Stage{StagePostRender, StageDraw, StagePostUpdate, StageRenderGraphSystems, StageCompute, StageRenderResource} {
		f.engine.AddSystem(s, s.String(), func(context.Context, Engine) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, s.String())
			return nil
		})
	}

	_, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"post_update", "render_resource", "render_graph_systems", "compute", "draw", "post_render"}, ran)
}

func TestInactiveCameraDrawsNothing(t *testing.T) {
	f := newFixture(t, WithCameraSlots("overlay"))
	f.spawnDrawable(f.forward)

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Draws)
	_, ok := f.engine.ActiveCameras().Get("overlay")
	assert.False(t, ok)
}

func TestLightsAndMaterialsPublished(t *testing.T) {
	f := newFixture(t, WithAmbientLight(0.5, 0.5, 0.5))
	shiny := f.spawnDrawable(f.forward, world.WithMaterial(material.NewMaterial(material.WithMetallic(1))))
	f.engine.World().Spawn(world.NewRenderEntity(
		world.WithPosition(0, 3, 0),
		world.WithLight(light.NewLight(light.LightTypePoint, light.WithIntensity(2))),
	))
	f.engine.World().Spawn(world.NewRenderEntity(
		world.WithLight(light.NewLight(light.LightTypeDirectional, light.WithEnabled(false))),
	))

	stats, err := f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Draws, "lights are not drawn")

	b, ok := f.renderer.Table().Get(render_resource.GlobalScope(), light.Binding)
	require.True(t, ok)
	data, ok := f.backend.BufferData(b.Resource)
	require.True(t, ok)
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(data[0:])))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[12:]), "disabled lights are skipped")
	item := data[light.GPULightHeaderSize:]
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(item[4:])))
	assert.Equal(t, uint32(light.LightTypePoint), binary.LittleEndian.Uint32(item[12:]))

	_, ok = f.renderer.Table().Get(render_resource.EntityScope(uint64(shiny)), material.Binding)
	assert.True(t, ok)
	f.engine.World().Despawn(shiny)
	_, err = f.engine.RunFrame(context.Background())
	require.NoError(t, err)
	_, ok = f.renderer.Table().Get(render_resource.EntityScope(uint64(shiny)), material.Binding)
	assert.False(t, ok, "material released with its entity")
}

func TestRunStopsOnQuit(t *testing.T) {
	f := newFixture(t)
	f.spawnDrawable(f.forward)

	frames := 0
	f.engine.SetRenderCallback(func(float32) {
		frames++
		if frames == 3 {
			f.engine.Quit()
		}
	})
	f.engine.Run(context.Background())

	assert.GreaterOrEqual(t, frames, 3)
	assert.GreaterOrEqual(t, f.backend.Frames(), 3)
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.engine.SetRenderCallback(func(float32) { cancel() })
	f.engine.Run(ctx)
	assert.GreaterOrEqual(t, f.backend.Frames(), 1)
}

func TestShaderWatcherRunsWithEngine(t *testing.T) {
	shaders := asset.NewAssets[shader.Shader]()
	w, err := shader.NewWatcher(shaders, shader.WithDebounce(0))
	require.NoError(t, err)
	f := newFixture(t, WithShaderWatcher(w))

	path := filepath.Join(t.TempDir(), "forward.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(forwardFragment), 0o644))
	s, err := shader.LoadShader(shader.ShaderStageFragment, path)
	require.NoError(t, err)
	h := shaders.Add(s)
	require.NoError(t, w.Watch(h, path))

	done := make(chan struct{})
	go func() {
		f.engine.Run(context.Background())
		close(done)
	}()

	require.NoError(t, os.WriteFile(path, []byte(texturedFragment), 0o644))
	assert.Eventually(t, func() bool {
		cur, ok := shaders.Get(h)
		return ok && cur.Source() == texturedFragment
	}, 2*time.Second, 10*time.Millisecond)

	f.engine.Quit()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	f.engine.Release()
	assert.ErrorIs(t, w.Watch(h, path), shader.ErrWatcherClosed)
}

func TestConfigOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Frame.Workers = 3
	cfg.Frame.FrameLimit = 30
	cfg.Graph.Camera2D = false

	f := newFixture(t, WithConfig(cfg))
	assert.Equal(t, []string{render_graph.NodeCamera3D}, f.engine.ActiveCameras().Names())

	eng := f.engine.(*engine)
	assert.Equal(t, 3, eng.workers)
	assert.Positive(t, eng.renderFrameLimit)
	assert.Len(t, BackendOptions(cfg), 4)
	assert.Len(t, RendererOptions(cfg), 1)
}
