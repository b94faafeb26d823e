package engine

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_graph"
)

// Stage is one barrier-separated phase of a frame. Stages run in declaration order and every
// system of a stage finishes before the next stage starts.
type Stage int

const (
	// StagePostUpdate binds active cameras and computes the visible entities of each camera.
	StagePostUpdate Stage = iota
	// StageRenderResource uploads meshes, textures and uniforms, drains pipeline asset events
	// and begins the backend frame.
	StageRenderResource
	// StageRenderGraphSystems executes the render graph.
	StageRenderGraphSystems
	// StageCompute dispatches compute pipelines. It still runs when graph execution failed.
	StageCompute
	// StageDraw specializes and compiles render pipelines, records draw lists and submits them.
	StageDraw
	// StagePostRender ends the backend frame and clears per-frame state. It runs even when an
	// earlier stage failed.
	StagePostRender
)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{StagePostUpdate, StageRenderResource, StageRenderGraphSystems, StageCompute, StageDraw, StagePostRender}
}

func (s Stage) String() string {
	switch s {
	case StagePostUpdate:
		return "post_update"
	case StageRenderResource:
		return "render_resource"
	case StageRenderGraphSystems:
		return "render_graph_systems"
	case StageCompute:
		return "compute"
	case StageDraw:
		return "draw"
	case StagePostRender:
		return "post_render"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// System is a unit of frame work added to a stage with Engine.AddSystem. Systems of a stage
// run after the stage's built-in work, in the order they were added.
type System func(ctx context.Context, e Engine) error

type namedSystem struct {
	name string
	run  System
}

// FrameStats summarizes one RunFrame call.
type FrameStats struct {
	Index uint64
	// Graph is the render graph report of the frame.
	Graph            render_graph.FrameReport
	MeshesPrepared   int
	TexturesPrepared int
	Dispatches       int
	Draws            int
	// SkippedDraws counts draws dropped for a missing binding, an unprepared mesh or a
	// failed compile.
	SkippedDraws     int
	CompileFailures  int
	PipelinesDropped int
	// Failed is the first stage that returned an error, or -1.
	Failed Stage
}
