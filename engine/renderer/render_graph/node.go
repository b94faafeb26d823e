package render_graph

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
)

// SlotInfo declares one named input or output of a node.
type SlotInfo struct {
	Name string
	Kind render_resource.ResourceKind
}

// Node is a unit of GPU work in a render graph. A node declares the slots it consumes and
// produces; the executor resolves inputs before Run and stores outputs after it.
type Node interface {
	// Inputs returns the input slots of the node.
	//
	// Returns:
	//   - []SlotInfo: the input slots, in declaration order
	Inputs() []SlotInfo

	// Outputs returns the output slots of the node.
	//
	// Returns:
	//   - []SlotInfo: the output slots, in declaration order
	Outputs() []SlotInfo

	// Run performs the node's work for one frame.
	//
	// Parameters:
	//   - ctx: the frame context
	//   - rc: the resolved inputs and the output sink of this run
	//
	// Returns:
	//   - error: a render_resource.MissingBindingError to skip the node for this frame, any
	//     other error to abort the rest of the frame
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext carries a node's resolved inputs into Run and collects the outputs it sets.
type RunContext struct {
	node    string
	inputs  map[string]render_resource.Binding
	outputs map[string]render_resource.Binding
	slots   []SlotInfo
	table   render_resource.Table
}

func newRunContext(node string, slots []SlotInfo, inputs map[string]render_resource.Binding, table render_resource.Table) *RunContext {
	return &RunContext{
		node:    node,
		inputs:  inputs,
		outputs: make(map[string]render_resource.Binding, len(slots)),
		slots:   slots,
		table:   table,
	}
}

// Node returns the name of the running node.
func (rc *RunContext) Node() string {
	return rc.node
}

// Input returns the binding resolved for an input slot.
//
// Parameters:
//   - name: the input slot name
//
// Returns:
//   - render_resource.Binding: the resolved binding
//   - error: a *render_resource.MissingBindingError if the slot is not an input of the node
func (rc *RunContext) Input(name string) (render_resource.Binding, error) {
	b, ok := rc.inputs[name]
	if !ok {
		return render_resource.Binding{}, &render_resource.MissingBindingError{Scope: render_resource.NodeScope(rc.node), Name: name}
	}
	return b, nil
}

// Table returns the binding table of the frame. Nodes may read any scope through it; their
// own results must go through SetOutput.
func (rc *RunContext) Table() render_resource.Table {
	return rc.table
}

// SetOutput records the binding produced for an output slot. The binding is renamed to the
// slot name.
//
// Parameters:
//   - name: the output slot name
//   - b: the produced binding
//
// Returns:
//   - error: an error if the slot is not declared or the resource kind does not match
func (rc *RunContext) SetOutput(name string, b render_resource.Binding) error {
	for _, s := range rc.slots {
		if s.Name != name {
			continue
		}
		if b.Resource.Kind != s.Kind {
			return fmt.Errorf("%w: output %q of %q is a %s, got %s", ErrSlotKindMismatch, name, rc.node, s.Kind, b.Resource.Kind)
		}
		b.Name = name
		rc.outputs[name] = b
		return nil
	}
	return fmt.Errorf("%w: %q has no output %q", ErrUnknownSlot, rc.node, name)
}

// funcNode is a Node built from slot lists and a function.
type funcNode struct {
	inputs  []SlotInfo
	outputs []SlotInfo
	run     func(ctx context.Context, rc *RunContext) error
}

var _ Node = &funcNode{}

// NewFuncNode composes a node from its slot declarations and a run function. A nil run
// function produces a node that does nothing.
//
// Parameters:
//   - inputs: the input slots
//   - outputs: the output slots
//   - run: the work performed each frame
//
// Returns:
//   - Node: the composed node
func NewFuncNode(inputs, outputs []SlotInfo, run func(ctx context.Context, rc *RunContext) error) Node {
	return &funcNode{inputs: inputs, outputs: outputs, run: run}
}

func (n *funcNode) Inputs() []SlotInfo {
	return n.inputs
}

func (n *funcNode) Outputs() []SlotInfo {
	return n.outputs
}

func (n *funcNode) Run(ctx context.Context, rc *RunContext) error {
	if n.run == nil {
		return nil
	}
	return n.run(ctx, rc)
}
