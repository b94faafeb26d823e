package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/draw"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/world"
)

// frame is the state shared by the stages of one RunFrame call.
type frame struct {
	stats FrameStats
	items []world.Item
	byID  map[uint64]*world.RenderEntity
	begun bool
}

func (f *frame) entity(id uint64) (*world.RenderEntity, bool) {
	e, ok := f.byID[id]
	return e, ok
}

// parallel runs fn for every index in [0, n) on the worker pool and waits for all of them.
// The wait group is the stage barrier; the pool's own Wait blocks until workers idle out.
func (e *engine) parallel(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		e.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						logger.Logger().Error("frame task recovered from panic", "task", i, "panic", r)
					}
				}()
				fn(i)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// warnOnce logs msg the first time key is seen over the engine's lifetime.
func (e *engine) warnOnce(key, msg string, args ...any) {
	if _, seen := e.warned.LoadOrStore(key, struct{}{}); seen {
		return
	}
	logger.Logger().Warn(msg, args...)
}

// postUpdate binds the active cameras and computes the visible entities of each of them.
func (e *engine) postUpdate(f *frame) error {
	f.items = e.world.Snapshot()
	f.byID = make(map[uint64]*world.RenderEntity, len(f.items))
	var candidates []camera.Candidate
	for _, it := range f.items {
		f.byID[uint64(it.ID)] = it.Entity
		if it.Entity.Drawable() {
			candidates = append(candidates, it.Entity.Candidate(it.ID))
		}
	}

	e.cameras.Update(e.world)
	slots := e.cameras.Names()
	e.parallel(len(slots), func(i int) {
		entity, ok := e.cameras.Get(slots[i])
		if !ok {
			return
		}
		cam, ok := e.world.Camera(entity)
		if !ok {
			return
		}
		e.visibility.Set(slots[i], camera.ComputeVisible(cam, candidates))
	})
	return nil
}

// prepareResources uploads changed assets and per-frame uniforms, begins the backend frame and
// merges every binding write into the table.
func (e *engine) prepareResources(ctx context.Context, f *frame) error {
	r := e.renderer
	table := r.Table()

	f.stats.PipelinesDropped = r.ProcessPipelineEvents()

	meshes := r.Meshes()
	meshWrites, prepared := e.provision(meshes.DrainEvents(), func(h asset.Handle) ([]render_resource.BindingWrite, error) {
		m, ok := meshes.Get(h)
		if !ok {
			return r.MeshProvider().Release(h), nil
		}
		return r.MeshProvider().Prepare(h, m)
	}, r.MeshProvider().Release)
	table.Apply(meshWrites)
	f.stats.MeshesPrepared = prepared

	textures := r.Textures()
	textureWrites, prepared := e.provision(textures.DrainEvents(), func(h asset.Handle) ([]render_resource.BindingWrite, error) {
		t, ok := textures.Get(h)
		if !ok {
			return r.TextureProvider().Release(h), nil
		}
		return r.TextureProvider().Prepare(h, t)
	}, r.TextureProvider().Release)
	table.Apply(textureWrites)
	f.stats.TexturesPrepared = prepared

	var writes []render_resource.BindingWrite
	for _, slot := range e.cameras.Names() {
		var (
			cam    camera.Camera
			active bool
		)
		if entity, ok := e.cameras.Get(slot); ok {
			cam, active = e.world.Camera(entity)
		}
		w, err := r.Uniforms().PrepareCamera(slot, cam, active)
		if err != nil {
			return fmt.Errorf("camera %q: %w", slot, err)
		}
		writes = append(writes, w...)
	}

	keep := make(map[uint64]struct{}, len(f.items))
	materials := make(map[uint64]struct{})
	var lights []light.GPULight
	for _, it := range f.items {
		if l := it.Entity.Light; l != nil && !l.Disabled {
			lights = append(lights, l.GPU(it.Entity.Position))
		}
		if !it.Entity.Drawable() {
			continue
		}
		w, err := r.Uniforms().PrepareModel(uint64(it.ID), it.Entity.Position)
		if err != nil {
			return fmt.Errorf("entity %d: %w", it.ID, err)
		}
		keep[uint64(it.ID)] = struct{}{}
		writes = append(writes, w...)

		if m := it.Entity.Material; m != nil {
			w, err := r.Uniforms().PrepareMaterial(uint64(it.ID), *m)
			if err != nil {
				return fmt.Errorf("entity %d material: %w", it.ID, err)
			}
			materials[uint64(it.ID)] = struct{}{}
			writes = append(writes, w...)
		}
	}
	writes = append(writes, r.Uniforms().Retain(keep, materials)...)

	w, err := r.Uniforms().PrepareLights(e.ambient, lights)
	if err != nil {
		return fmt.Errorf("lights: %w", err)
	}
	writes = append(writes, w...)

	targets, err := r.Backend().BeginFrame(ctx)
	if err != nil {
		table.Apply(writes)
		return fmt.Errorf("begin frame: %w", err)
	}
	f.begun = true
	writes = append(writes,
		targetWrite(render_graph.NodePrimarySwapChain, targets.SwapChain),
		targetWrite(render_graph.NodeMainDepthTexture, targets.Depth),
		targetWrite(render_graph.NodeMainSampledColorAttachment, targets.SampledColor),
	)
	table.Apply(writes)
	return nil
}

// provision prepares or releases the asset of every event on the worker pool and returns the
// binding writes in event order together with the number of assets prepared.
func (e *engine) provision(
	events []asset.Event,
	prepare func(asset.Handle) ([]render_resource.BindingWrite, error),
	release func(asset.Handle) []render_resource.BindingWrite,
) ([]render_resource.BindingWrite, int) {
	events = latestEvents(events)
	results := make([][]render_resource.BindingWrite, len(events))
	ok := make([]bool, len(events))
	e.parallel(len(events), func(i int) {
		ev := events[i]
		if ev.Kind == asset.EventRemoved {
			results[i] = release(ev.Handle)
			return
		}
		w, err := prepare(ev.Handle)
		if err != nil {
			logger.Logger().Error("asset upload failed", "handle", ev.Handle, "err", err)
			return
		}
		results[i], ok[i] = w, true
	})

	var (
		writes   []render_resource.BindingWrite
		prepared int
	)
	for i, w := range results {
		writes = append(writes, w...)
		if ok[i] {
			prepared++
		}
	}
	return writes, prepared
}

// latestEvents keeps the last event of each handle so one handle is never provisioned twice
// in a frame.
func latestEvents(events []asset.Event) []asset.Event {
	last := make(map[asset.Handle]int, len(events))
	for i, ev := range events {
		last[ev.Handle] = i
	}
	out := make([]asset.Event, 0, len(last))
	for i, ev := range events {
		if last[ev.Handle] == i {
			out = append(out, ev)
		}
	}
	return out
}

func targetWrite(name string, id render_resource.ResourceID) render_resource.BindingWrite {
	b := render_resource.Binding{Name: name, Resource: id}
	return render_resource.BindingWrite{Scope: render_resource.GlobalScope(), Binding: b, Remove: !id.Valid()}
}

// executeGraph runs the render graph against the binding table.
func (e *engine) executeGraph(ctx context.Context, f *frame) error {
	report, err := e.renderer.Executor().Execute(ctx, e.renderer.Table())
	f.stats.Graph = report
	return err
}

// dispatchCompute compiles and dispatches the compute pipeline of every entity carrying a
// ComputeDispatch, in entity order.
func (e *engine) dispatchCompute(ctx context.Context, f *frame) error {
	r := e.renderer
	table := r.Table()
	for _, it := range f.items {
		d := it.Entity.Compute
		if d == nil {
			continue
		}
		h, err := r.ComputeCompiler().GetOrCompile(ctx, d.Descriptor, d.Specialization)
		if err != nil {
			f.stats.CompileFailures++
			e.logCompileError(err)
			continue
		}
		p, ok := r.ComputeCompiler().Pipeline(h)
		if !ok {
			continue
		}

		scope := render_resource.EntityScope(uint64(it.ID))
		if d.BindingScope != nil {
			scope = *d.BindingScope
		}
		groups, err := draw.ResolveBindGroups(p.Bindings, func(name string) (render_resource.Binding, error) {
			return table.Resolve(scope, name)
		})
		if err != nil {
			e.logMissing(err, "compute skipped: missing binding", "pipeline", p.Label, "entity", it.ID)
			continue
		}
		if err := r.Backend().Dispatch(ctx, p, groups, d.Workgroups); err != nil {
			return fmt.Errorf("dispatch %q for entity %d: %w", p.Label, it.ID, err)
		}
		f.stats.Dispatches++
	}
	return nil
}

func (e *engine) logCompileError(err error) {
	var ce *pipeline.CompileError
	if errors.As(err, &ce) {
		e.warnOnce("compile:"+err.Error(), "pipeline compile failed", "pipeline", ce.Label, "specialization", ce.Specialization.String(), "err", ce.Err)
		return
	}
	e.warnOnce("compile:"+err.Error(), "pipeline compile failed", "err", err)
}

func (e *engine) logMissing(err error, msg string, args ...any) {
	for _, name := range draw.MissingBindings(err) {
		e.warnOnce("binding:"+name, msg, append([]any{"binding", name}, args...)...)
	}
}

// drawJob is one (camera, entity, pipeline) draw prepared on the worker pool.
type drawJob struct {
	camera string
	entity uint64
	rp     world.RenderPipeline

	commands []draw.RenderCommand
	compile  bool
	skipped  bool
}

// recordDraws specializes, compiles and binds every visible entity's pipelines, records the
// commands into the per-camera draw lists and submits them against the main pass attachments.
func (e *engine) recordDraws(ctx context.Context, f *frame) error {
	var jobs []*drawJob
	for _, slot := range e.cameras.Names() {
		visible, ok := e.visibility.Get(slot)
		if !ok {
			continue
		}
		for _, id := range visible.All() {
			ent, ok := f.entity(id)
			if !ok {
				continue
			}
			for _, rp := range ent.RenderPipelines {
				jobs = append(jobs, &drawJob{camera: slot, entity: id, rp: rp})
			}
		}
	}

	e.parallel(len(jobs), func(i int) {
		e.prepareDraw(ctx, f, jobs[i])
	})

	for _, j := range jobs {
		switch {
		case j.compile:
			f.stats.CompileFailures++
			f.stats.SkippedDraws++
		case j.skipped:
			f.stats.SkippedDraws++
		default:
			e.draws.Get(j.camera).Push(j.commands...)
			f.stats.Draws++
		}
	}

	table := e.renderer.Table()
	pass := render_resource.NodeScope(render_graph.NodeMainPass)
	color, ok := table.Get(pass, render_graph.SlotColorAttachment)
	if !ok {
		if f.stats.Draws > 0 {
			e.warnOnce("pass:"+render_graph.NodeMainPass, "draws not submitted: main pass has no color attachment")
		}
		return nil
	}
	target := renderer.PassTarget{ColorAttachment: color.Resource}
	if b, ok := table.Get(pass, render_graph.SlotColorResolveTarget); ok {
		target.ResolveTarget = b.Resource
	}
	if b, ok := table.Get(pass, render_graph.SlotDepth); ok {
		target.Depth = b.Resource
	}
	return e.renderer.Backend().Submit(ctx, target, e.renderer.Compiler(), e.draws.Lists())
}

// prepareDraw fills j with the commands of one draw, or marks it skipped.
func (e *engine) prepareDraw(ctx context.Context, f *frame, j *drawJob) {
	r := e.renderer
	ent, _ := f.entity(j.entity)

	gm, ok := r.MeshProvider().Mesh(ent.Mesh)
	if !ok {
		j.skipped = true
		return
	}
	desc, ok := r.Descriptors().Get(j.rp.Descriptor)
	if !ok {
		e.warnOnce(fmt.Sprintf("descriptor:%d", j.rp.Descriptor), "draw skipped: unknown pipeline descriptor", "descriptor", j.rp.Descriptor)
		j.skipped = true
		return
	}

	spec := pipeline.DefaultSpecialization(desc)
	if j.rp.Specialization != nil {
		spec = *j.rp.Specialization
	}
	table := r.Table()
	entityScope := render_resource.EntityScope(j.entity)
	spec.ShaderDefs = append(slices.Clone(spec.ShaderDefs), ent.ShaderDefs.List()...)
	spec.DynamicBindings = slices.Concat(spec.DynamicBindings, j.rp.DynamicBindings,
		table.DynamicBindings(entityScope), table.DynamicBindings(render_resource.MeshScope(ent.Mesh)))
	spec.VertexLayout = gm.Layout
	spec.SampleCount = r.SampleCount()

	h, err := r.Compiler().GetOrCompile(ctx, j.rp.Descriptor, spec)
	if err != nil {
		e.logCompileError(err)
		j.compile = true
		return
	}
	p, ok := r.Compiler().Pipeline(h)
	if !ok {
		j.skipped = true
		return
	}

	scopes := []render_resource.Scope{entityScope, render_resource.MeshScope(ent.Mesh)}
	for _, t := range ent.Textures {
		scopes = append(scopes, render_resource.TextureScope(t))
	}
	scopes = append(scopes, render_resource.NodeScope(j.camera))
	groups, err := draw.ResolveBindGroups(p.Bindings, func(name string) (render_resource.Binding, error) {
		for _, s := range scopes {
			if b, ok := table.Get(s, name); ok {
				return b, nil
			}
		}
		return table.Resolve(render_resource.GlobalScope(), name)
	})
	if err != nil {
		e.logMissing(err, "draw skipped: missing binding", "pipeline", p.Label, "entity", j.entity, "camera", j.camera)
		j.skipped = true
		return
	}

	cmds := make([]draw.RenderCommand, 0, len(groups)+4)
	cmds = append(cmds, draw.SetPipeline(h))
	for _, g := range groups {
		cmds = append(cmds, draw.SetBindGroup(g))
	}
	cmds = append(cmds, draw.SetVertexBuffer(0, gm.VertexBuffer))
	if gm.Indexed() {
		cmds = append(cmds, draw.SetIndexBuffer(gm.IndexBuffer, p.Specialization.Normalized().IndexFormat), draw.DrawIndexed(gm.IndexCount, 1))
	} else {
		cmds = append(cmds, draw.Draw(gm.VertexCount, 1))
	}
	j.commands = cmds
}

// postRender ends the backend frame and clears the per-frame state.
func (e *engine) postRender(f *frame) {
	if f.begun {
		e.renderer.Backend().EndFrame()
	}
	for _, it := range f.items {
		e.world.Update(it.ID, func(ent *world.RenderEntity) {
			ent.ShaderDefs.Reset()
		})
	}
	e.draws.Reset()
	e.visibility.Reset()
}
