package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/draw"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/world"
)

// ErrNilRenderer is returned by NewEngine when no renderer is given.
var ErrNilRenderer = errors.New("engine: nil renderer")

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window     Window
	renderer   renderer.Renderer
	world      world.World
	cameras    camera.ActiveCameras
	visibility camera.Visibility
	draws      draw.Draws

	pool    worker.DynamicWorkerPool
	workers int

	sysMu   sync.Mutex
	systems map[Stage][]namedSystem

	frameMu sync.Mutex
	frames  uint64
	last    FrameStats

	// warned holds the missing binding names and compile errors already logged.
	warned sync.Map

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	cameraSlots      []string
	ambient          [3]float32
	shaderWatcher    shader.Watcher
	released         bool
}

// Engine is the main entry point for the engine.
// It drives the frame stages over a Renderer and a World, and orchestrates the tick loop,
// render loop, and window management.
type Engine interface {
	// Renderer returns the renderer the engine drives.
	Renderer() renderer.Renderer

	// World returns the entity store.
	World() world.World

	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - Window: the window instance
	Window() Window

	// ActiveCameras returns the camera slot table.
	ActiveCameras() camera.ActiveCameras

	// Visibility returns the visible entities computed for the current frame.
	Visibility() camera.Visibility

	// Draws returns the draw lists recorded for the current frame.
	Draws() draw.Draws

	// AddSystem appends a system to a stage. Systems must not be added while a frame runs.
	//
	// Parameters:
	//   - stage: the stage to run the system in
	//   - name: the name used in errors and logs
	//   - system: the system
	AddSystem(stage Stage, name string, system System)

	// RunFrame runs every stage once, in order. A stage error skips the remaining stages
	// except StagePostRender, which always runs so the backend frame is closed.
	//
	// Parameters:
	//   - ctx: the frame context, passed to backend calls and systems
	//
	// Returns:
	//   - FrameStats: what the frame did
	//   - error: the first stage error, wrapped with the stage name
	RunFrame(ctx context.Context) (FrameStats, error)

	// LastFrame returns the stats of the most recent frame.
	LastFrame() FrameStats

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, input processing, and camera updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render loops and blocks until the window closes, Quit is
	// called or ctx is done. Without a window it blocks until Quit or ctx.
	//
	// Parameters:
	//   - ctx: cancels the loops when done
	Run(ctx context.Context)

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release stops the worker pool and releases the renderer. Safe to call twice.
	Release()
}

var _ Engine = &engine{}

// Window is the part of window.Window the engine drives.
type Window interface {
	SetUpdateCallback(callback func())
	SetResizeCallback(callback func(width, height int))
	ProcessMessages()
	RequestClose()
}

// NewEngine creates a new Engine driving r with the provided options.
// Camera slots default to render_graph.NodeCamera3D and render_graph.NodeCamera2D.
//
// Parameters:
//   - r: the renderer to drive
//   - options: functional options for engine configuration (world, workers, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: ErrNilRenderer if r is nil
func NewEngine(r renderer.Renderer, options ...EngineBuilderOption) (Engine, error) {
	if r == nil {
		return nil, ErrNilRenderer
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		visibility:      camera.NewVisibility(),
		draws:           draw.NewDraws(),
		systems:         make(map[Stage][]namedSystem),
		workers:         max(runtime.NumCPU()-1, 1),
		engineTickRate:  time.Second / 60,
		cameraSlots:     []string{render_graph.NodeCamera3D, render_graph.NodeCamera2D},
		ambient:         [3]float32{0.1, 0.1, 0.1},
	}

	for _, opt := range options {
		opt(e)
	}

	if e.world == nil {
		e.world = world.NewWorld()
	}
	e.cameras = camera.NewActiveCameras(e.cameraSlots...)
	e.pool = worker.NewDynamicWorkerPool(e.workers, 256, 1*time.Second)
	e.profiler = profiler.NewProfiler(time.Second, e.cacheStats)

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.renderer.Resize(width, height)
		})
	}

	return e, nil
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) World() world.World {
	return e.world
}

func (e *engine) Window() Window {
	return e.window
}

func (e *engine) ActiveCameras() camera.ActiveCameras {
	return e.cameras
}

func (e *engine) Visibility() camera.Visibility {
	return e.visibility
}

func (e *engine) Draws() draw.Draws {
	return e.draws
}

func (e *engine) AddSystem(stage Stage, name string, system System) {
	e.sysMu.Lock()
	defer e.sysMu.Unlock()
	e.systems[stage] = append(e.systems[stage], namedSystem{name: name, run: system})
}

func (e *engine) stageSystems(stage Stage) []namedSystem {
	e.sysMu.Lock()
	defer e.sysMu.Unlock()
	return append([]namedSystem(nil), e.systems[stage]...)
}

func (e *engine) RunFrame(ctx context.Context) (FrameStats, error) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	f := &frame{stats: FrameStats{Index: e.frames, Failed: -1}}
	var frameErr error
	for _, stage := range Stages() {
		if frameErr != nil && !runsAfterFailure(f.stats.Failed, stage) {
			continue
		}
		if err := e.runStage(ctx, stage, f); err != nil && frameErr == nil {
			frameErr = fmt.Errorf("engine: stage %s: %w", stage, err)
			f.stats.Failed = stage
		}
	}

	e.frames++
	e.last = f.stats
	return f.stats, frameErr
}

// runsAfterFailure reports whether stage still runs once failed has returned an error.
// post_render always runs. A failed graph aborts only graph execution and the draws that
// consume its pass outputs, so compute still runs.
func runsAfterFailure(failed, stage Stage) bool {
	switch stage {
	case StagePostRender:
		return true
	case StageCompute:
		return failed == StageRenderGraphSystems
	default:
		return false
	}
}

func (e *engine) runStage(ctx context.Context, stage Stage, f *frame) error {
	var err error
	switch stage {
	case StagePostUpdate:
		err = e.postUpdate(f)
	case StageRenderResource:
		err = e.prepareResources(ctx, f)
	case StageRenderGraphSystems:
		err = e.executeGraph(ctx, f)
	case StageCompute:
		err = e.dispatchCompute(ctx, f)
	case StageDraw:
		err = e.recordDraws(ctx, f)
	case StagePostRender:
		e.postRender(f)
	}
	if err != nil {
		return err
	}
	for _, s := range e.stageSystems(stage) {
		if err := s.run(ctx, e); err != nil {
			return fmt.Errorf("system %q: %w", s.name, err)
		}
	}
	return nil
}

func (e *engine) LastFrame() FrameStats {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.last
}

func (e *engine) cacheStats() []profiler.CacheStats {
	render := e.renderer.Compiler().Stats()
	compute := e.renderer.ComputeCompiler().Stats()
	return []profiler.CacheStats{
		{Name: "render_pipelines", Entries: render.Size, Hits: render.Hits, Misses: render.Misses},
		{Name: "compute_pipelines", Entries: compute.Size, Hits: compute.Hits, Misses: compute.Misses},
	}
}

func (e *engine) Run(ctx context.Context) {
	e.running = true
	e.handle(ctx)
	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			if ctx.Err() != nil {
				e.signalQuit()
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ctx context.Context) {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender(ctx)
	go e.handleQuit(ctx)
	if e.shaderWatcher != nil {
		e.wg.Add(1)
		go e.handleShaderReload(ctx)
	}
}

// handleShaderReload runs the shader watcher until the quit channel is closed or ctx is done.
func (e *engine) handleShaderReload(ctx context.Context) {
	defer e.wg.Done()
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-wctx.Done():
		}
	}()
	e.shaderWatcher.Run(wctx)
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration runs one frame through every stage. Recovers from panics to avoid crashing
// the process and signals quit on recovery.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			stats, err := e.RunFrame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					e.signalQuit()
					return
				}
				logger.Logger().Error("frame failed", "frame", stats.Index, "stage", stats.Failed.String(), "err", err)
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed or ctx is done.
func (e *engine) handleQuit(ctx context.Context) {
	defer e.wg.Done()
	select {
	case <-e.quitChannel:
	case <-ctx.Done():
		e.signalQuit()
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send; a pending value is replaced.
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) Release() {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.released {
		return
	}
	e.released = true
	if e.shaderWatcher != nil {
		if err := e.shaderWatcher.Close(); err != nil {
			logger.Logger().Warn("shader watcher close failed", "error", err)
		}
	}
	e.pool.Stop()
	e.renderer.Release()
}
