package render_graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
)

// NodeFailure is a node skipped for the frame because a binding it needed was missing.
type NodeFailure struct {
	Node    string
	Binding string
	Err     error
}

// FrameReport summarizes one graph execution.
type FrameReport struct {
	// Executed lists the nodes that ran, in order.
	Executed []string
	// Skipped lists the nodes that did not run because they or a dependency lacked a binding.
	Skipped []string
	// Failures lists the missing-binding failures of this frame, one per failing node.
	Failures []NodeFailure
}

// executor is the implementation of the Executor interface.
type executor struct {
	graph Graph

	mu       sync.Mutex
	reported map[string]struct{}
}

// Executor runs a graph's schedule against a binding table once per frame.
type Executor interface {
	// Execute runs every scheduled node once. Node scopes are cleared first so each frame
	// starts from a clean binding set. Every input resolves to the global binding named
	// after the slot, overridden by the producer's output when a slot edge feeds it. Outputs
	// are stored in the node's own scope.
	//
	// A node that fails with a missing binding is skipped together with every node that
	// depends on it, and the frame continues. Any other failure stops the frame.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - table: the binding table of the frame
	//
	// Returns:
	//   - FrameReport: what ran and what was skipped
	//   - error: a *NodeError for the node that stopped the frame
	Execute(ctx context.Context, table render_resource.Table) (FrameReport, error)
}

var _ Executor = &executor{}

// NewExecutor creates an executor for a graph. Missing-binding warnings are logged once per
// binding name over the lifetime of the executor.
//
// Parameters:
//   - graph: the graph to execute
//
// Returns:
//   - Executor: the executor
func NewExecutor(graph Graph) Executor {
	return &executor{
		graph:    graph,
		reported: make(map[string]struct{}),
	}
}

func (x *executor) Execute(ctx context.Context, table render_resource.Table) (FrameReport, error) {
	var report FrameReport
	table.ClearNodeScopes()

	skipped := make(map[string]bool)
	for _, name := range x.graph.Schedule() {
		if err := ctx.Err(); err != nil {
			return report, &NodeError{Node: name, Err: err}
		}

		if x.dependsOnSkipped(name, skipped) {
			skipped[name] = true
			report.Skipped = append(report.Skipped, name)
			continue
		}

		err := x.run(ctx, name, table)
		switch {
		case err == nil:
			report.Executed = append(report.Executed, name)
		case errors.Is(err, render_resource.ErrMissingBinding):
			skipped[name] = true
			report.Skipped = append(report.Skipped, name)
			failure := NodeFailure{Node: name, Binding: missingName(err), Err: err}
			report.Failures = append(report.Failures, failure)
			x.reportOnce(failure)
		default:
			return report, &NodeError{Node: name, Err: err}
		}
	}
	return report, nil
}

func (x *executor) dependsOnSkipped(name string, skipped map[string]bool) bool {
	if len(skipped) == 0 {
		return false
	}
	for _, dep := range x.graph.Dependencies(name) {
		if skipped[dep] {
			return true
		}
	}
	return false
}

// run resolves the inputs of one node, runs it and stores its outputs.
func (x *executor) run(ctx context.Context, name string, table render_resource.Table) error {
	node, ok := x.graph.Node(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	slots := node.Inputs()
	inputs := make(map[string]render_resource.Binding, len(slots))
	for _, slot := range slots {
		b, err := x.resolve(name, slot, table)
		if err != nil {
			return err
		}
		inputs[slot.Name] = b
	}

	rc := newRunContext(name, node.Outputs(), inputs, table)
	if err := node.Run(ctx, rc); err != nil {
		return err
	}

	scope := render_resource.NodeScope(name)
	for _, b := range rc.outputs {
		table.Set(scope, b)
	}
	return nil
}

func (x *executor) resolve(name string, slot SlotInfo, table render_resource.Table) (render_resource.Binding, error) {
	var (
		b   render_resource.Binding
		err error
	)
	if e, ok := x.graph.InputSlotEdge(name, slot.Name); ok {
		producer := render_resource.NodeScope(e.From)
		var found bool
		if b, found = table.Get(producer, e.FromSlot); !found {
			b, found = table.Get(render_resource.GlobalScope(), slot.Name)
		}
		if !found {
			err = &render_resource.MissingBindingError{Scope: producer, Name: e.FromSlot}
		}
	} else {
		b, err = table.Resolve(render_resource.GlobalScope(), slot.Name)
	}
	if err != nil {
		return b, err
	}
	if b.Resource.Kind != slot.Kind {
		return b, fmt.Errorf("%w: input %q of %q expects %s, resolved %s", ErrSlotKindMismatch, slot.Name, name, slot.Kind, b.Resource)
	}
	b.Name = slot.Name
	return b, nil
}

func (x *executor) reportOnce(f NodeFailure) {
	x.mu.Lock()
	_, seen := x.reported[f.Binding]
	x.reported[f.Binding] = struct{}{}
	x.mu.Unlock()
	if !seen {
		logger.Logger().Warn("render graph node skipped: missing binding", "node", f.Node, "binding", f.Binding, "err", f.Err)
	}
}

func missingName(err error) string {
	var missing *render_resource.MissingBindingError
	if errors.As(err, &missing) {
		return missing.Name
	}
	return err.Error()
}
