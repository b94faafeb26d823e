package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/world"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow sets the window whose message loop Run drives and whose resizes reach the
// renderer.
//
// Parameters:
//   - w: a pre-configured window, usually a window.Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithWorld sets the entity store. A new empty world is created when not specified.
//
// Parameters:
//   - w: the world
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorld(w world.World) EngineBuilderOption {
	return func(e *engine) {
		e.world = w
	}
}

// WithWorkers sets the size of the worker pool used for per-entity work within a stage.
// Values <= 0 select runtime.NumCPU()-1, at least one.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCameraSlots replaces the active camera slots. Each slot is filled with the first camera
// entity whose camera carries the slot's name, and its view uniform is published under that
// name.
//
// Parameters:
//   - names: the slot names, e.g. render_graph.NodeCamera3D
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCameraSlots(names ...string) EngineBuilderOption {
	return func(e *engine) {
		e.cameraSlots = names
	}
}

// WithAmbientLight sets the ambient color written ahead of the lights in the light buffer.
// Defaults to (0.1, 0.1, 0.1).
//
// Parameters:
//   - r, g, b: the ambient color
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithAmbientLight(r, g, b float32) EngineBuilderOption {
	return func(e *engine) {
		e.ambient = [3]float32{r, g, b}
	}
}

// WithShaderWatcher runs w alongside the render loop while Run is active and closes it on
// Release. Reloaded shaders invalidate their pipelines on the next frame.
//
// Parameters:
//   - w: the watcher, usually created over Renderer.Shaders
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderWatcher(w shader.Watcher) EngineBuilderOption {
	return func(e *engine) {
		e.shaderWatcher = w
	}
}

// WithSystem appends a system to a stage during engine construction.
//
// Parameters:
//   - stage: the stage to run the system in
//   - name: the system name
//   - system: the system
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSystem(stage Stage, name string, system System) EngineBuilderOption {
	return func(e *engine) {
		e.systems[stage] = append(e.systems[stage], namedSystem{name: name, run: system})
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}

// WithConfig applies the frame section of a loaded configuration: worker count, frame limit
// and profiling. Camera slots follow the graph section.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		WithWorkers(cfg.Frame.Workers)(e)
		WithRenderFrameLimit(cfg.Frame.FrameLimit)(e)
		e.profilingEnabled = cfg.Frame.Profiling

		var slots []string
		if cfg.Graph.Camera3D {
			slots = append(slots, render_graph.NodeCamera3D)
		}
		if cfg.Graph.Camera2D {
			slots = append(slots, render_graph.NodeCamera2D)
		}
		e.cameraSlots = slots
	}
}

// BackendOptions maps the renderer section of a configuration onto WebGPU backend options.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - []renderer.WGPUBackendBuilderOption: the backend options
func BackendOptions(cfg config.Config) []renderer.WGPUBackendBuilderOption {
	mode := renderer.PresentModeUncapped
	if cfg.Renderer.PresentMode == config.PresentModeVSync {
		mode = renderer.PresentModeVSync
	}
	return []renderer.WGPUBackendBuilderOption{
		renderer.WithPresentMode(mode),
		renderer.WithMSAA(renderer.MSAASampleCount(cfg.Renderer.MSAA)),
		renderer.WithForceSoftwareRenderer(cfg.Renderer.ForceSoftware),
		renderer.WithBindGroupCacheSize(cfg.Renderer.BindGroupCacheSize),
	}
}

// RendererOptions maps the graph section of a configuration onto renderer options.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - []renderer.RendererBuilderOption: the renderer options
func RendererOptions(cfg config.Config) []renderer.RendererBuilderOption {
	return []renderer.RendererBuilderOption{
		renderer.WithBaseGraphConfig(render_graph.BaseGraphConfig{
			Camera3D:         cfg.Graph.Camera3D,
			Camera2D:         cfg.Graph.Camera2D,
			MainDepthTexture: cfg.Graph.MainDepthTexture,
			MainPass:         cfg.Graph.MainPass,
		}),
	}
}
