package render_graph

import (
	"context"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
)

// Node names of the base graph. Resource nodes forward the global binding of the same name.
const (
	NodeCamera3D                   = "camera_3d"
	NodeCamera2D                   = "camera_2d"
	NodeMainDepthTexture           = "main_depth_texture"
	NodePrimarySwapChain           = "primary_swap_chain"
	NodeMainSampledColorAttachment = "main_sampled_color_attachment"
	NodeMainPass                   = "main_pass"
)

// Slot names of the base graph.
const (
	SlotCamera             = "camera"
	SlotTexture            = "texture"
	SlotColorAttachment    = "color_attachment"
	SlotColorResolveTarget = "color_resolve_target"
	SlotDepth              = "depth"
)

// BaseGraphConfig selects the parts of the base graph to build.
type BaseGraphConfig struct {
	Camera3D         bool
	Camera2D         bool
	MainDepthTexture bool
	MainPass         bool
}

// DefaultBaseGraphConfig enables every part of the base graph.
func DefaultBaseGraphConfig() BaseGraphConfig {
	return BaseGraphConfig{
		Camera3D:         true,
		Camera2D:         true,
		MainDepthTexture: true,
		MainPass:         true,
	}
}

// NewBindingNode returns a node with no inputs and one output that forwards the global
// binding named binding. When the binding is absent the node fails with a missing binding
// and is skipped, together with its dependents, for that frame.
//
// Parameters:
//   - binding: the global binding to forward
//   - output: the output slot
//
// Returns:
//   - Node: the node
func NewBindingNode(binding string, output SlotInfo) Node {
	return NewFuncNode(nil, []SlotInfo{output}, func(_ context.Context, rc *RunContext) error {
		b, err := rc.Table().Resolve(render_resource.GlobalScope(), binding)
		if err != nil {
			return err
		}
		return rc.SetOutput(output.Name, b)
	})
}

// NewCameraNode returns a node that publishes the view uniform buffer of the named camera slot.
// The buffer is the global binding named after the slot. A slot without an active camera has
// no binding; the node then produces nothing and still counts as run, so passes ordered after
// it are not skipped.
//
// Parameters:
//   - name: the active camera slot, e.g. NodeCamera3D
//
// Returns:
//   - Node: the node
func NewCameraNode(name string) Node {
	camera := SlotInfo{Name: SlotCamera, Kind: render_resource.ResourceKindBuffer}
	return NewFuncNode(nil, []SlotInfo{camera}, func(_ context.Context, rc *RunContext) error {
		b, ok := rc.Table().Get(render_resource.GlobalScope(), name)
		if !ok {
			return nil
		}
		return rc.SetOutput(SlotCamera, b)
	})
}

// NewPassNode returns a node whose outputs mirror its inputs slot for slot. It marks the point
// in the schedule at which a pass's attachments are complete; draw submission reads the
// attachments from the pass node's scope.
//
// Parameters:
//   - slots: the attachment slots of the pass
//
// Returns:
//   - Node: the node
func NewPassNode(slots []SlotInfo) Node {
	return NewFuncNode(slots, slots, func(_ context.Context, rc *RunContext) error {
		for _, s := range slots {
			b, err := rc.Input(s.Name)
			if err != nil {
				return err
			}
			if err := rc.SetOutput(s.Name, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddBaseGraph adds the standard camera, attachment and main pass nodes to g. With msaa
// greater than one the main pass renders into main_sampled_color_attachment and resolves into
// the swap chain texture.
//
// Parameters:
//   - g: the graph to extend
//   - cfg: the parts to build
//   - msaa: the sample count of the main pass
//
// Returns:
//   - error: the first construction error
func AddBaseGraph(g Graph, cfg BaseGraphConfig, msaa uint32) error {
	texture := SlotInfo{Name: SlotTexture, Kind: render_resource.ResourceKindTexture}

	if cfg.Camera3D {
		if err := g.AddNode(NodeCamera3D, NewCameraNode(NodeCamera3D)); err != nil {
			return err
		}
	}
	if cfg.Camera2D {
		if err := g.AddNode(NodeCamera2D, NewCameraNode(NodeCamera2D)); err != nil {
			return err
		}
	}
	if cfg.MainDepthTexture {
		if err := g.AddNode(NodeMainDepthTexture, NewBindingNode(NodeMainDepthTexture, texture)); err != nil {
			return err
		}
	}
	if err := g.AddNode(NodePrimarySwapChain, NewBindingNode(NodePrimarySwapChain, texture)); err != nil {
		return err
	}
	if msaa > 1 {
		if err := g.AddNode(NodeMainSampledColorAttachment, NewBindingNode(NodeMainSampledColorAttachment, texture)); err != nil {
			return err
		}
	}

	if !cfg.MainPass {
		return nil
	}

	slots := []SlotInfo{{Name: SlotColorAttachment, Kind: render_resource.ResourceKindTexture}}
	if cfg.MainDepthTexture {
		slots = append(slots, SlotInfo{Name: SlotDepth, Kind: render_resource.ResourceKindTexture})
	}
	if msaa > 1 {
		slots = append(slots, SlotInfo{Name: SlotColorResolveTarget, Kind: render_resource.ResourceKindTexture})
	}
	if err := g.AddNode(NodeMainPass, NewPassNode(slots)); err != nil {
		return err
	}

	edges := [][4]string{}
	if msaa > 1 {
		edges = append(edges,
			[4]string{NodeMainSampledColorAttachment, SlotTexture, NodeMainPass, SlotColorAttachment},
			[4]string{NodePrimarySwapChain, SlotTexture, NodeMainPass, SlotColorResolveTarget},
		)
	} else {
		edges = append(edges, [4]string{NodePrimarySwapChain, SlotTexture, NodeMainPass, SlotColorAttachment})
	}
	if cfg.MainDepthTexture {
		edges = append(edges, [4]string{NodeMainDepthTexture, SlotTexture, NodeMainPass, SlotDepth})
	}
	for _, e := range edges {
		if err := g.AddSlotEdge(e[0], e[1], e[2], e[3]); err != nil {
			return err
		}
	}

	for _, cam := range []struct {
		enabled bool
		name    string
	}{{cfg.Camera3D, NodeCamera3D}, {cfg.Camera2D, NodeCamera2D}} {
		if !cam.enabled {
			continue
		}
		if err := g.AddNodeEdge(cam.name, NodeMainPass); err != nil {
			return err
		}
	}
	return nil
}
