package renderer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
)

var (
	// ErrUnknownResource is returned when a command or write references a resource the backend never created.
	ErrUnknownResource = errors.New("renderer: unknown resource")

	// ErrUnknownPipeline is returned when a draw list references a pipeline the source cannot resolve.
	ErrUnknownPipeline = errors.New("renderer: unknown pipeline")

	// ErrNoPipeline is returned when a draw is recorded before any pipeline was set.
	ErrNoPipeline = errors.New("renderer: draw without pipeline")
)

// headlessResource is the CPU stand-in of a GPU resource.
type headlessResource struct {
	label string
	size  uint64
	data  []byte
}

// headlessPipeline holds the SPIR-V produced for each stage of a compiled pipeline.
type headlessPipeline struct {
	mu       sync.Mutex
	label    string
	modules  map[string][]byte
	released bool
}

func (p *headlessPipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// DispatchRecord is one compute dispatch recorded by the HeadlessBackend.
type DispatchRecord struct {
	Label      string
	Workgroups [3]uint32
	Groups     []draw.BindGroup
}

// DrawRecord is one draw call submitted to the HeadlessBackend.
type DrawRecord struct {
	Camera    string
	Pipeline  string
	Indexed   bool
	Count     uint32
	Instances uint32
	Groups    []draw.BindGroup
}

// HeadlessBackend is a Backend without a GPU. Shader sources are compiled to SPIR-V with naga
// so compile errors surface exactly as they would at pipeline creation, resources are held in
// memory, and submitted frames are recorded for inspection.
type HeadlessBackend struct {
	mu sync.Mutex

	validateShaders bool
	sampleCount     uint32
	width, height   int

	nextID    uint64
	resources map[render_resource.ResourceID]*headlessResource
	targets   FrameTargets

	renderCompiles  int
	computeCompiles int
	frames          int
	inFrame         bool
	dispatches      []DispatchRecord
	draws           []DrawRecord
}

var _ Backend = &HeadlessBackend{}

// NewHeadlessBackend creates a headless backend with the given options applied. Shader
// validation is enabled and the pass is single-sampled unless configured otherwise.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - *HeadlessBackend: the backend
func NewHeadlessBackend(options ...HeadlessBackendBuilderOption) *HeadlessBackend {
	b := &HeadlessBackend{
		validateShaders: true,
		sampleCount:     1,
		width:           1280,
		height:          720,
		resources:       make(map[render_resource.ResourceID]*headlessResource),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// compileWGSL parses, lowers and translates WGSL to SPIR-V.
func compileWGSL(source string) ([]byte, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	ir, err := naga.Lower(ast)
	if err != nil {
		return nil, fmt.Errorf("lower: %w", err)
	}
	spv, err := spirv.NewBackend(spirv.DefaultOptions()).Compile(ir)
	if err != nil {
		return nil, fmt.Errorf("spirv: %w", err)
	}
	return spv, nil
}

func (b *HeadlessBackend) compileModules(label string, stages map[string]string) (*headlessPipeline, error) {
	p := &headlessPipeline{label: label, modules: make(map[string][]byte, len(stages))}
	if !b.validateShaders {
		return p, nil
	}
	for stage, src := range stages {
		if src == "" {
			continue
		}
		spv, err := compileWGSL(src)
		if err != nil {
			return nil, fmt.Errorf("%s shader of %q: %w", stage, label, err)
		}
		p.modules[stage] = spv
	}
	logger.Logger().Debug("headless pipeline compiled", "label", label, "stages", len(p.modules))
	return p, nil
}

func (b *HeadlessBackend) CompileRenderPipeline(ctx context.Context, req *pipeline.RenderPipelineRequest) (pipeline.BackendPipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.compileModules(req.Label, map[string]string{
		"vertex":   req.VertexSource,
		"fragment": req.FragmentSource,
	})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.renderCompiles++
	b.mu.Unlock()
	return p, nil
}

func (b *HeadlessBackend) CompileComputePipeline(ctx context.Context, req *pipeline.ComputePipelineRequest) (pipeline.BackendPipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.compileModules(req.Label, map[string]string{"compute": req.Source})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.computeCompiles++
	b.mu.Unlock()
	return p, nil
}

func (b *HeadlessBackend) allocLocked(kind render_resource.ResourceKind, r *headlessResource) render_resource.ResourceID {
	b.nextID++
	id := render_resource.ResourceID{Kind: kind, ID: b.nextID}
	b.resources[id] = r
	return id
}

func (b *HeadlessBackend) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, data []byte) (render_resource.ResourceID, error) {
	if uint64(len(data)) > size {
		return render_resource.ResourceID{}, fmt.Errorf("renderer: buffer %q: %d bytes of data exceed size %d", label, len(data), size)
	}
	r := &headlessResource{label: label, size: size, data: make([]byte, size)}
	copy(r.data, data)

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocLocked(render_resource.ResourceKindBuffer, r), nil
}

func (b *HeadlessBackend) WriteBuffer(id render_resource.ResourceID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.resources[id]
	if !ok || id.Kind != render_resource.ResourceKindBuffer {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > r.size {
		return fmt.Errorf("renderer: write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, r.label, r.size)
	}
	copy(r.data[offset:], data)
	return nil
}

func (b *HeadlessBackend) CreateTexture(label string, format wgpu.TextureFormat, image common.TextureStagingData) (render_resource.ResourceID, error) {
	if !image.Valid() {
		return render_resource.ResourceID{}, fmt.Errorf("renderer: texture %q: invalid %dx%d image", label, image.Width, image.Height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocLocked(render_resource.ResourceKindTexture, &headlessResource{label: label, size: uint64(len(image.Pixels))}), nil
}

func (b *HeadlessBackend) CreateSampler(label string, _ common.SamplerStagingData) (render_resource.ResourceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocLocked(render_resource.ResourceKindSampler, &headlessResource{label: label}), nil
}

func (b *HeadlessBackend) ReleaseResource(id render_resource.ResourceID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.resources, id)
}

func (b *HeadlessBackend) BeginFrame(ctx context.Context) (FrameTargets, error) {
	if err := ctx.Err(); err != nil {
		return FrameTargets{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inFrame {
		return FrameTargets{}, errors.New("renderer: previous frame not ended")
	}
	if !b.targets.SwapChain.Valid() {
		b.allocTargetsLocked()
	}
	b.inFrame = true
	b.dispatches = b.dispatches[:0]
	b.draws = b.draws[:0]
	return b.targets, nil
}

func (b *HeadlessBackend) allocTargetsLocked() {
	size := uint64(b.width * b.height * 4)
	b.targets.SwapChain = b.allocLocked(render_resource.ResourceKindTexture, &headlessResource{label: "swap chain", size: size})
	b.targets.Depth = b.allocLocked(render_resource.ResourceKindTexture, &headlessResource{label: "depth", size: size})
	if b.sampleCount > 1 {
		b.targets.SampledColor = b.allocLocked(render_resource.ResourceKindTexture, &headlessResource{label: "msaa color", size: size * uint64(b.sampleCount)})
	}
}

func (b *HeadlessBackend) Dispatch(ctx context.Context, p *pipeline.CompiledComputePipeline, groups []draw.BindGroup, workgroups [3]uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkGroupsLocked(groups); err != nil {
		return err
	}
	b.dispatches = append(b.dispatches, DispatchRecord{Label: p.Label, Workgroups: workgroups, Groups: groups})
	return nil
}

func (b *HeadlessBackend) checkGroupsLocked(groups []draw.BindGroup) error {
	for _, g := range groups {
		for _, e := range g.Entries {
			if _, ok := b.resources[e.Resource]; !ok {
				return fmt.Errorf("%w: %s bound as %q", ErrUnknownResource, e.Resource, e.Name)
			}
		}
	}
	return nil
}

func (b *HeadlessBackend) Submit(ctx context.Context, target PassTarget, pipelines PipelineSource, lists []*draw.DrawList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, att := range []render_resource.ResourceID{target.ColorAttachment, target.ResolveTarget, target.Depth} {
		if att.Valid() {
			if _, ok := b.resources[att]; !ok {
				return fmt.Errorf("%w: attachment %s", ErrUnknownResource, att)
			}
		}
	}

	for _, l := range lists {
		var (
			current *pipeline.CompiledPipeline
			groups  []draw.BindGroup
		)
		for _, cmd := range l.Commands {
			switch cmd.Kind {
			case draw.CommandSetPipeline:
				p, ok := pipelines.Pipeline(cmd.Pipeline)
				if !ok {
					return fmt.Errorf("%w: handle %d in draw list %q", ErrUnknownPipeline, cmd.Pipeline, l.Camera)
				}
				current, groups = p, nil
			case draw.CommandSetBindGroup:
				if err := b.checkGroupsLocked([]draw.BindGroup{cmd.BindGroup}); err != nil {
					return err
				}
				groups = append(groups, cmd.BindGroup)
			case draw.CommandSetVertexBuffer, draw.CommandSetIndexBuffer:
				if _, ok := b.resources[cmd.Buffer]; !ok {
					return fmt.Errorf("%w: %s", ErrUnknownResource, cmd.Buffer)
				}
			case draw.CommandDraw, draw.CommandDrawIndexed:
				if current == nil {
					return fmt.Errorf("%w: draw list %q", ErrNoPipeline, l.Camera)
				}
				b.draws = append(b.draws, DrawRecord{
					Camera:    l.Camera,
					Pipeline:  current.Label,
					Indexed:   cmd.Kind == draw.CommandDrawIndexed,
					Count:     cmd.Count,
					Instances: cmd.Instances,
					Groups:    slices.Clone(groups),
				})
			}
		}
	}
	return nil
}

func (b *HeadlessBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return
	}
	b.inFrame = false
	b.frames++
}

func (b *HeadlessBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
	for _, id := range []render_resource.ResourceID{b.targets.SwapChain, b.targets.Depth, b.targets.SampledColor} {
		delete(b.resources, id)
	}
	b.targets = FrameTargets{}
}

func (b *HeadlessBackend) SampleCount() uint32 {
	return b.sampleCount
}

func (b *HeadlessBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.resources)
	b.targets = FrameTargets{}
}

// Frames returns the number of completed frames.
func (b *HeadlessBackend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Compiles returns how many render and compute pipelines were created.
func (b *HeadlessBackend) Compiles() (render, compute int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.renderCompiles, b.computeCompiles
}

// Draws returns the draws submitted in the current or most recent frame.
func (b *HeadlessBackend) Draws() []DrawRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.draws)
}

// Dispatches returns the dispatches recorded in the current or most recent frame.
func (b *HeadlessBackend) Dispatches() []DispatchRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.dispatches)
}

// BufferData returns a copy of a buffer's contents.
//
// Parameters:
//   - id: the buffer
//
// Returns:
//   - []byte: the contents
//   - bool: false if the buffer does not exist
func (b *HeadlessBackend) BufferData(id render_resource.ResourceID) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.resources[id]
	if !ok || id.Kind != render_resource.ResourceKindBuffer {
		return nil, false
	}
	return slices.Clone(r.data), true
}

// ResourceCount returns the number of live resources, frame attachments included.
func (b *HeadlessBackend) ResourceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resources)
}
