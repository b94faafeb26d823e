package render_graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is returned when a node is added without a name.
	ErrEmptyName = errors.New("render_graph: empty node name")

	// ErrDuplicateNode is returned when a node name is already taken.
	ErrDuplicateNode = errors.New("render_graph: duplicate node")

	// ErrUnknownNode is returned when an edge references a node that does not exist.
	ErrUnknownNode = errors.New("render_graph: unknown node")

	// ErrUnknownSlot is returned when an edge or output references an undeclared slot.
	ErrUnknownSlot = errors.New("render_graph: unknown slot")

	// ErrSlotKindMismatch is returned when connected slots carry different resource kinds.
	ErrSlotKindMismatch = errors.New("render_graph: slot kind mismatch")

	// ErrSlotOccupied is returned when an input slot already has an incoming slot edge.
	ErrSlotOccupied = errors.New("render_graph: input slot already connected")

	// ErrDuplicateEdge is returned when the same edge is added twice.
	ErrDuplicateEdge = errors.New("render_graph: duplicate edge")

	// ErrUnknownEdge is returned when removing an edge that does not exist.
	ErrUnknownEdge = errors.New("render_graph: unknown edge")

	// ErrCycle is returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("render_graph: edge would create a cycle")
)

// NodeError reports a node whose work failed and aborted the rest of the frame.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("render_graph: node %q failed: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
