package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

// wgpuPipeline is a realized render or compute pipeline together with the objects it owns.
type wgpuPipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline

	layout     *wgpu.PipelineLayout
	bindGroups []*wgpu.BindGroupLayout
	modules    []*wgpu.ShaderModule
}

func (p *wgpuPipeline) Release() {
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	for _, l := range p.bindGroups {
		l.Release()
	}
	for _, m := range p.modules {
		m.Release()
	}
}

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTexture) release() {
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}

type wgpuBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	sampleCount   MSAASampleCount
	clearColor    wgpu.Color
	bindGroupSize int

	nextID   uint64
	buffers  map[uint64]*wgpuBuffer
	textures map[uint64]*wgpuTexture
	samplers map[uint64]*wgpu.Sampler

	// bindGroups caches bind groups by pipeline, group index and bound resources. Evicted
	// groups are released.
	bindGroups *lru.Cache[string, *wgpu.BindGroup]

	targets      FrameTargets
	frameSurface *wgpu.Texture
	frameEncoder *wgpu.CommandEncoder
}

var _ Backend = &wgpuBackendImpl{}

// NewWGPUBackend creates a WebGPU backend rendering to the given surface and configures the
// surface for the initial size. The calling goroutine is locked to its OS thread.
//
// Parameters:
//   - surfaceDescriptor: the platform surface, e.g. from a Window
//   - width, height: the initial surface size in pixels
//   - options: builder options
//
// Returns:
//   - Backend: the backend
//   - error: an error if no adapter or device could be acquired
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...WGPUBackendBuilderOption) (Backend, error) {
	cfg := wgpuBackendOptions{
		presentMode:   PresentModeUncapped,
		sampleCount:   MSAA4x,
		clearColor:    wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		bindGroupSize: 1024,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	runtime.LockOSThread()
	b := &wgpuBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeImmediate,
		sampleCount:   cfg.sampleCount,
		clearColor:    cfg.clearColor,
		bindGroupSize: cfg.bindGroupSize,
		buffers:       make(map[uint64]*wgpuBuffer),
		textures:      make(map[uint64]*wgpuTexture),
		samplers:      make(map[uint64]*wgpu.Sampler),
	}
	if cfg.presentMode == PresentModeVSync {
		b.presentMode = wgpu.PresentModeFifo
	}

	cache, err := lru.NewWithEvict(cfg.bindGroupSize, func(_ string, bg *wgpu.BindGroup) {
		bg.Release()
	})
	if err != nil {
		return nil, err
	}
	b.bindGroups = cache

	b.surface = b.instance.CreateSurface(surfaceDescriptor)
	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request adapter: %w", err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.configureSurface(width, height); err != nil {
		return nil, err
	}
	logger.Logger().Info("webgpu backend ready", "width", width, "height", height, "msaa", uint32(b.sampleCount))
	return b, nil
}

func (b *wgpuBackendImpl) allocLocked() uint64 {
	b.nextID++
	return b.nextID
}

// configureSurface configures the swap chain and recreates the depth and multisampled color
// attachments for the given size.
func (b *wgpuBackendImpl) configureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	for _, id := range []render_resource.ResourceID{b.targets.Depth, b.targets.SampledColor} {
		if t, ok := b.textures[id.ID]; ok && id.Valid() {
			t.release()
			delete(b.textures, id.ID)
		}
	}
	b.bindGroups.Purge()

	count := uint32(b.sampleCount)
	if count > 1 {
		msaa, err := b.createAttachment("MSAA Texture", width, height, count, b.surfaceFormat)
		if err != nil {
			return err
		}
		id := b.allocLocked()
		b.textures[id] = msaa
		b.targets.SampledColor = render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: id}
	} else {
		b.targets.SampledColor = render_resource.ResourceID{}
	}

	depth, err := b.createAttachment("Depth Texture", width, height, count, wgpu.TextureFormatDepth24Plus)
	if err != nil {
		return err
	}
	id := b.allocLocked()
	b.textures[id] = depth
	b.targets.Depth = render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: id}

	if !b.targets.SwapChain.Valid() {
		b.targets.SwapChain = render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: b.allocLocked()}
	}
	return nil
}

func (b *wgpuBackendImpl) createAttachment(label string, width, height int, sampleCount uint32, format wgpu.TextureFormat) (*wgpuTexture, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{texture: tex, view: view}, nil
}

func (b *wgpuBackendImpl) shaderModule(label, source string) (*wgpu.ShaderModule, error) {
	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
}

// createLayouts creates one bind group layout per group index up to the highest used group.
// Unused indices get an empty layout.
func (b *wgpuBackendImpl) createLayouts(label string, bindings []shader.BindingLayout, p *wgpuPipeline) error {
	maxGroup := -1
	for _, l := range bindings {
		maxGroup = max(maxGroup, int(l.Group))
	}
	entries := make([][]wgpu.BindGroupLayoutEntry, maxGroup+1)
	for _, l := range bindings {
		entries[l.Group] = append(entries[l.Group], l.Entry)
	}

	p.bindGroups = make([]*wgpu.BindGroupLayout, 0, len(entries))
	for g, e := range entries {
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, g),
			Entries: e,
		})
		if err != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		p.bindGroups = append(p.bindGroups, layout)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: p.bindGroups,
	})
	if err != nil {
		return err
	}
	p.layout = layout
	return nil
}

func (b *wgpuBackendImpl) CompileRenderPipeline(ctx context.Context, req *pipeline.RenderPipelineRequest) (pipeline.BackendPipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &wgpuPipeline{}
	ok := false
	defer func() {
		if !ok {
			p.Release()
		}
	}()

	vs, err := b.shaderModule(req.Label+" vertex", req.VertexSource)
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, vs)

	if err := b.createLayouts(req.Label, req.Bindings, p); err != nil {
		return nil, err
	}

	d := req.Descriptor
	spec := req.Specialization

	var buffers []wgpu.VertexBufferLayout
	if !req.VertexLayout.IsZero() {
		buffers = append(buffers, req.VertexLayout.WGPU())
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  req.Label + " Render Pipeline",
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: req.VertexEntryPoint,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  spec.Topology,
			FrontFace: d.FrontFace(),
			CullMode:  d.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: max(spec.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}

	if req.FragmentSource != "" {
		fs, err := b.shaderModule(req.Label+" fragment", req.FragmentSource)
		if err != nil {
			return nil, err
		}
		p.modules = append(p.modules, fs)
		desc.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: req.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				WriteMask: d.WriteMask(),
				Blend:     d.BlendState(),
			}},
		}
	}

	depthCompare := common.Coalesce(d.DepthCompare(), wgpu.CompareFunctionLess)
	if !d.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}
	bias, slope := d.DepthBias()
	desc.DepthStencil = &wgpu.DepthStencilState{
		Format:              common.Coalesce(d.DepthFormat(), wgpu.TextureFormatDepth24Plus),
		DepthWriteEnabled:   d.DepthWriteEnabled(),
		DepthCompare:        depthCompare,
		DepthBias:           bias,
		DepthBiasSlopeScale: slope,
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}

	created, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, err
	}
	p.render = created
	ok = true
	return p, nil
}

func (b *wgpuBackendImpl) CompileComputePipeline(ctx context.Context, req *pipeline.ComputePipelineRequest) (pipeline.BackendPipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &wgpuPipeline{}
	ok := false
	defer func() {
		if !ok {
			p.Release()
		}
	}()

	s, err := b.shaderModule(req.Label+" compute", req.Source)
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, s)

	if err := b.createLayouts(req.Label, req.Bindings, p); err != nil {
		return nil, err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  req.Label + " Compute Pipeline",
		Layout: p.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: req.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	p.compute = created
	ok = true
	return p, nil
}

func (b *wgpuBackendImpl) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, data []byte) (render_resource.ResourceID, error) {
	if uint64(len(data)) > size {
		return render_resource.ResourceID{}, fmt.Errorf("renderer: buffer %q: %d bytes of data exceed size %d", label, len(data), size)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return render_resource.ResourceID{}, err
	}
	if len(data) > 0 {
		b.queue.WriteBuffer(buf, 0, data)
	}
	id := b.allocLocked()
	b.buffers[id] = &wgpuBuffer{buffer: buf, size: size}
	return render_resource.ResourceID{Kind: render_resource.ResourceKindBuffer, ID: id}, nil
}

func (b *wgpuBackendImpl) WriteBuffer(id render_resource.ResourceID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers[id.ID]
	if !ok || id.Kind != render_resource.ResourceKindBuffer {
		return fmt.Errorf("%w: %s", ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > buf.size {
		return fmt.Errorf("renderer: write of %d bytes at %d overflows buffer %s of %d bytes", len(data), offset, id, buf.size)
	}
	b.queue.WriteBuffer(buf.buffer, offset, data)
	return nil
}

func (b *wgpuBackendImpl) CreateTexture(label string, format wgpu.TextureFormat, image common.TextureStagingData) (render_resource.ResourceID, error) {
	if !image.Valid() {
		return render_resource.ResourceID{}, fmt.Errorf("renderer: texture %q: invalid %dx%d image", label, image.Width, image.Height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              image.Width,
			Height:             image.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        common.Coalesce(format, wgpu.TextureFormatRGBA8UnormSrgb),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return render_resource.ResourceID{}, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		image.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  image.Width * 4,
			RowsPerImage: image.Height,
		},
		&wgpu.Extent3D{
			Width:              image.Width,
			Height:             image.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return render_resource.ResourceID{}, err
	}
	id := b.allocLocked()
	b.textures[id] = &wgpuTexture{texture: tex, view: view}
	return render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: id}, nil
}

func (b *wgpuBackendImpl) CreateSampler(label string, s common.SamplerStagingData) (render_resource.ResourceID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(s.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	})
	if err != nil {
		return render_resource.ResourceID{}, err
	}
	id := b.allocLocked()
	b.samplers[id] = samp
	return render_resource.ResourceID{Kind: render_resource.ResourceKindSampler, ID: id}, nil
}

func (b *wgpuBackendImpl) ReleaseResource(id render_resource.ResourceID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch id.Kind {
	case render_resource.ResourceKindBuffer:
		if buf, ok := b.buffers[id.ID]; ok {
			buf.buffer.Release()
			delete(b.buffers, id.ID)
		}
	case render_resource.ResourceKindTexture:
		if t, ok := b.textures[id.ID]; ok {
			t.release()
			delete(b.textures, id.ID)
		}
	case render_resource.ResourceKindSampler:
		if s, ok := b.samplers[id.ID]; ok {
			s.Release()
			delete(b.samplers, id.ID)
		}
	}
	// Cached bind groups may reference the released resource.
	b.bindGroups.Purge()
}

func (b *wgpuBackendImpl) BeginFrame(ctx context.Context) (FrameTargets, error) {
	if err := ctx.Err(); err != nil {
		return FrameTargets{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return FrameTargets{}, errors.New("renderer: previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return FrameTargets{}, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return FrameTargets{}, err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return FrameTargets{}, err
	}

	b.frameSurface = surfaceTexture
	b.frameEncoder = encoder
	b.textures[b.targets.SwapChain.ID] = &wgpuTexture{view: view}
	return b.targets, nil
}

// bindGroupKey identifies a bind group by the pipeline layout it was created for and the
// resources it binds.
func bindGroupKey(prefix string, handle uint64, g draw.BindGroup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%d/%d", prefix, handle, g.Group)
	for _, e := range g.Entries {
		fmt.Fprintf(&sb, "|%d=%s:%d", e.Binding, e.Resource, e.Size)
	}
	return sb.String()
}

func (b *wgpuBackendImpl) bindGroupLocked(key string, layout *wgpu.BindGroupLayout, g draw.BindGroup) (*wgpu.BindGroup, error) {
	if bg, ok := b.bindGroups.Get(key); ok {
		return bg, nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(g.Entries))
	for _, e := range g.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch e.Resource.Kind {
		case render_resource.ResourceKindBuffer:
			buf, ok := b.buffers[e.Resource.ID]
			if !ok {
				return nil, fmt.Errorf("%w: %s bound as %q", ErrUnknownResource, e.Resource, e.Name)
			}
			entry.Buffer = buf.buffer
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case render_resource.ResourceKindTexture:
			t, ok := b.textures[e.Resource.ID]
			if !ok {
				return nil, fmt.Errorf("%w: %s bound as %q", ErrUnknownResource, e.Resource, e.Name)
			}
			entry.TextureView = t.view
		case render_resource.ResourceKindSampler:
			s, ok := b.samplers[e.Resource.ID]
			if !ok {
				return nil, fmt.Errorf("%w: %s bound as %q", ErrUnknownResource, e.Resource, e.Name)
			}
			entry.Sampler = s
		}
		entries = append(entries, entry)
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   key,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	b.bindGroups.Add(key, bg)
	return bg, nil
}

func (b *wgpuBackendImpl) Dispatch(ctx context.Context, p *pipeline.CompiledComputePipeline, groups []draw.BindGroup, workgroups [3]uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errors.New("renderer: dispatch outside of a frame")
	}
	wp, ok := p.Backend.(*wgpuPipeline)
	if !ok || wp.compute == nil {
		return fmt.Errorf("%w: compute pipeline %q", ErrUnknownPipeline, p.Label)
	}

	pass := b.frameEncoder.BeginComputePass(nil)
	defer pass.End()
	pass.SetPipeline(wp.compute)
	for _, g := range groups {
		bg, err := b.bindGroupLocked(bindGroupKey("c", uint64(p.Handle), g), wp.bindGroups[g.Group], g)
		if err != nil {
			return err
		}
		pass.SetBindGroup(g.Group, bg, g.DynamicOffsets)
	}
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	return nil
}

func (b *wgpuBackendImpl) viewLocked(id render_resource.ResourceID) (*wgpu.TextureView, error) {
	if !id.Valid() {
		return nil, nil
	}
	t, ok := b.textures[id.ID]
	if !ok || id.Kind != render_resource.ResourceKindTexture {
		return nil, fmt.Errorf("%w: attachment %s", ErrUnknownResource, id)
	}
	return t.view, nil
}

func (b *wgpuBackendImpl) Submit(ctx context.Context, target PassTarget, pipelines PipelineSource, lists []*draw.DrawList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errors.New("renderer: submit outside of a frame")
	}
	color, err := b.viewLocked(target.ColorAttachment)
	if err != nil {
		return err
	}
	resolve, err := b.viewLocked(target.ResolveTarget)
	if err != nil {
		return err
	}
	depth, err := b.viewLocked(target.Depth)
	if err != nil {
		return err
	}

	storeOp := wgpu.StoreOpStore
	if resolve != nil {
		storeOp = wgpu.StoreOpDiscard
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:          color,
			ResolveTarget: resolve,
			LoadOp:        wgpu.LoadOpClear,
			StoreOp:       storeOp,
			ClearValue:    b.clearColor,
		}},
	}
	if depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		}
	}

	pass := b.frameEncoder.BeginRenderPass(desc)
	defer pass.End()

	for _, l := range lists {
		var current *pipeline.CompiledPipeline
		var wp *wgpuPipeline
		for _, cmd := range l.Commands {
			switch cmd.Kind {
			case draw.CommandSetPipeline:
				p, ok := pipelines.Pipeline(cmd.Pipeline)
				if !ok {
					return fmt.Errorf("%w: handle %d in draw list %q", ErrUnknownPipeline, cmd.Pipeline, l.Camera)
				}
				wp, ok = p.Backend.(*wgpuPipeline)
				if !ok || wp.render == nil {
					return fmt.Errorf("%w: render pipeline %q", ErrUnknownPipeline, p.Label)
				}
				current = p
				pass.SetPipeline(wp.render)
			case draw.CommandSetBindGroup:
				if current == nil {
					return fmt.Errorf("%w: draw list %q", ErrNoPipeline, l.Camera)
				}
				g := cmd.BindGroup
				bg, err := b.bindGroupLocked(bindGroupKey("r", uint64(current.Handle), g), wp.bindGroups[g.Group], g)
				if err != nil {
					return err
				}
				pass.SetBindGroup(g.Group, bg, g.DynamicOffsets)
			case draw.CommandSetVertexBuffer:
				buf, ok := b.buffers[cmd.Buffer.ID]
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownResource, cmd.Buffer)
				}
				pass.SetVertexBuffer(cmd.Slot, buf.buffer, 0, wgpu.WholeSize)
			case draw.CommandSetIndexBuffer:
				buf, ok := b.buffers[cmd.Buffer.ID]
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownResource, cmd.Buffer)
				}
				pass.SetIndexBuffer(buf.buffer, cmd.IndexFormat, 0, wgpu.WholeSize)
			case draw.CommandDrawIndexed:
				if current == nil {
					return fmt.Errorf("%w: draw list %q", ErrNoPipeline, l.Camera)
				}
				pass.DrawIndexed(cmd.Count, cmd.Instances, 0, 0, 0)
			case draw.CommandDraw:
				if current == nil {
					return fmt.Errorf("%w: draw list %q", ErrNoPipeline, l.Camera)
				}
				pass.Draw(cmd.Count, cmd.Instances, 0, 0)
			}
		}
	}
	return nil
}

func (b *wgpuBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		commandBuffer, err := b.frameEncoder.Finish(nil)
		if err != nil {
			logger.Logger().Error("finish frame encoder", "error", err)
		} else {
			b.queue.Submit(commandBuffer)
			commandBuffer.Release()
		}
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	if t, ok := b.textures[b.targets.SwapChain.ID]; ok {
		t.release()
		delete(b.textures, b.targets.SwapChain.ID)
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuBackendImpl) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if err := b.configureSurface(width, height); err != nil {
		logger.Logger().Error("resize surface", "width", width, "height", height, "error", err)
	}
}

func (b *wgpuBackendImpl) SampleCount() uint32 {
	return uint32(b.sampleCount)
}

func (b *wgpuBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bindGroups.Purge()
	for id, buf := range b.buffers {
		buf.buffer.Release()
		delete(b.buffers, id)
	}
	for id, t := range b.textures {
		t.release()
		delete(b.textures, id)
	}
	for id, s := range b.samplers {
		s.Release()
		delete(b.samplers, id)
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
