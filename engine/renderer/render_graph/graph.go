// Package render_graph holds the render graph: named nodes connected by execution and data
// dependencies, scheduled in topological order and executed once per frame.
package render_graph

import (
	"fmt"
	"slices"
	"sync"
)

// EdgeKind distinguishes pure ordering edges from edges that carry a slot binding.
type EdgeKind int

const (
	// NodeEdge orders two nodes without passing data.
	NodeEdge EdgeKind = iota
	// SlotEdge feeds an output slot of one node into an input slot of another.
	SlotEdge
)

// Edge is a dependency between two nodes: From always runs before To.
type Edge struct {
	Kind     EdgeKind
	From     string
	FromSlot string
	To       string
	ToSlot   string
}

func (e Edge) String() string {
	if e.Kind == SlotEdge {
		return fmt.Sprintf("%s.%s -> %s.%s", e.From, e.FromSlot, e.To, e.ToSlot)
	}
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// nodeState is a node together with its bookkeeping in the graph.
type nodeState struct {
	name  string
	node  Node
	index int
}

// graph is the implementation of the Graph interface.
type graph struct {
	mu    sync.RWMutex
	nodes map[string]*nodeState
	order []string
	edges []Edge

	// successors counts the edges between two nodes; several slot edges may share a pair.
	successors map[string]map[string]int

	version         uint64
	schedule        []string
	scheduleVersion uint64
}

// Graph is a set of uniquely named nodes and the edges between them. Every mutation is
// validated immediately and applied atomically: a rejected call leaves the graph unchanged.
// The graph is always acyclic. Mutations must not run concurrently with execution.
type Graph interface {
	// AddNode adds a node under a unique name.
	//
	// Parameters:
	//   - name: the node name
	//   - node: the node
	//
	// Returns:
	//   - error: ErrEmptyName or ErrDuplicateNode
	AddNode(name string, node Node) error

	// AddNodeEdge declares that from must run before to.
	//
	// Parameters:
	//   - from: the node that runs first
	//   - to: the node that runs after it
	//
	// Returns:
	//   - error: ErrUnknownNode, ErrDuplicateEdge or ErrCycle
	AddNodeEdge(from, to string) error

	// AddSlotEdge feeds output fromSlot of from into input toSlot of to, which also orders
	// from before to.
	//
	// Parameters:
	//   - from: the producing node
	//   - fromSlot: the output slot of from
	//   - to: the consuming node
	//   - toSlot: the input slot of to
	//
	// Returns:
	//   - error: ErrUnknownNode, ErrUnknownSlot, ErrSlotKindMismatch, ErrSlotOccupied,
	//     ErrDuplicateEdge or ErrCycle
	AddSlotEdge(from, fromSlot, to, toSlot string) error

	// RemoveNodeEdge removes an edge added with AddNodeEdge.
	//
	// Parameters:
	//   - from: the node that runs first
	//   - to: the node that runs after it
	//
	// Returns:
	//   - error: ErrUnknownEdge if the edge does not exist
	RemoveNodeEdge(from, to string) error

	// RemoveSlotEdge removes an edge added with AddSlotEdge.
	//
	// Parameters:
	//   - from: the producing node
	//   - fromSlot: the output slot of from
	//   - to: the consuming node
	//   - toSlot: the input slot of to
	//
	// Returns:
	//   - error: ErrUnknownEdge if the edge does not exist
	RemoveSlotEdge(from, fromSlot, to, toSlot string) error

	// AddSubGraph copies every node and edge of sub into this graph, renaming each node to
	// "prefix/name".
	//
	// Parameters:
	//   - prefix: the namespace of the sub-graph's nodes
	//   - sub: the graph to copy
	//
	// Returns:
	//   - error: ErrEmptyName or ErrDuplicateNode if a prefixed name is taken
	AddSubGraph(prefix string, sub Graph) error

	// Node returns a node by name.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - Node: the node
	//   - bool: false if no node has that name
	Node(name string) (Node, bool)

	// Nodes returns the node names in insertion order.
	Nodes() []string

	// Edges returns every edge in insertion order.
	Edges() []Edge

	// Dependencies returns the names of the nodes with an edge into name, in insertion order.
	//
	// Parameters:
	//   - name: the node name
	//
	// Returns:
	//   - []string: the direct predecessors of name
	Dependencies(name string) []string

	// InputSlotEdge returns the slot edge feeding an input slot.
	//
	// Parameters:
	//   - node: the consuming node
	//   - slot: the input slot name
	//
	// Returns:
	//   - Edge: the feeding edge
	//   - bool: false if the input is not connected and resolves from the global scope
	InputSlotEdge(node, slot string) (Edge, bool)

	// Schedule returns the execution order: every node appears once, after all of its
	// dependencies. Among nodes that are ready at the same time the one added first runs
	// first. The order is cached until the topology changes.
	//
	// Returns:
	//   - []string: the node names in execution order
	Schedule() []string

	// Version returns a counter that increases with every topology change.
	Version() uint64
}

var _ Graph = &graph{}

// NewGraph creates an empty render graph.
//
// Returns:
//   - Graph: the graph
func NewGraph() Graph {
	return &graph{
		nodes:      make(map[string]*nodeState),
		successors: make(map[string]map[string]int),
	}
}

func (g *graph) AddNode(name string, node Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkNewName(name); err != nil {
		return err
	}
	g.insertNode(name, node)
	return nil
}

func (g *graph) checkNewName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	return nil
}

func (g *graph) insertNode(name string, node Node) {
	g.nodes[name] = &nodeState{name: name, node: node, index: len(g.order)}
	g.order = append(g.order, name)
	g.version++
}

func (g *graph) AddNodeEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := Edge{Kind: NodeEdge, From: from, To: to}
	if err := g.checkEndpoints(e); err != nil {
		return err
	}
	if slices.Contains(g.edges, e) {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, e)
	}
	if err := g.checkAcyclic(e); err != nil {
		return err
	}
	g.insertEdge(e)
	return nil
}

func (g *graph) AddSlotEdge(from, fromSlot, to, toSlot string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := Edge{Kind: SlotEdge, From: from, FromSlot: fromSlot, To: to, ToSlot: toSlot}
	if err := g.checkEndpoints(e); err != nil {
		return err
	}

	out, ok := findSlot(g.nodes[from].node.Outputs(), fromSlot)
	if !ok {
		return fmt.Errorf("%w: %q has no output %q", ErrUnknownSlot, from, fromSlot)
	}
	in, ok := findSlot(g.nodes[to].node.Inputs(), toSlot)
	if !ok {
		return fmt.Errorf("%w: %q has no input %q", ErrUnknownSlot, to, toSlot)
	}
	if out.Kind != in.Kind {
		return fmt.Errorf("%w: %s carries %s into %s", ErrSlotKindMismatch, e, out.Kind, in.Kind)
	}
	if slices.Contains(g.edges, e) {
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, e)
	}
	if existing, ok := g.inputSlotEdge(to, toSlot); ok {
		return fmt.Errorf("%w: %q.%q is fed by %s", ErrSlotOccupied, to, toSlot, existing)
	}
	if err := g.checkAcyclic(e); err != nil {
		return err
	}
	g.insertEdge(e)
	return nil
}

func (g *graph) checkEndpoints(e Edge) error {
	for _, name := range []string{e.From, e.To} {
		if _, ok := g.nodes[name]; !ok {
			return fmt.Errorf("%w: %q in edge %s", ErrUnknownNode, name, e)
		}
	}
	return nil
}

// checkAcyclic rejects e if To already reaches From, which is the only way a new edge can
// close a cycle in a DAG.
func (g *graph) checkAcyclic(e Edge) error {
	if e.From == e.To || g.reaches(e.To, e.From) {
		return fmt.Errorf("%w: %s", ErrCycle, e)
	}
	return nil
}

func (g *graph) reaches(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		for next := range g.successors[n] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (g *graph) insertEdge(e Edge) {
	g.edges = append(g.edges, e)
	if g.successors[e.From] == nil {
		g.successors[e.From] = make(map[string]int)
	}
	g.successors[e.From][e.To]++
	g.version++
}

func (g *graph) RemoveNodeEdge(from, to string) error {
	return g.removeEdge(Edge{Kind: NodeEdge, From: from, To: to})
}

func (g *graph) RemoveSlotEdge(from, fromSlot, to, toSlot string) error {
	return g.removeEdge(Edge{Kind: SlotEdge, From: from, FromSlot: fromSlot, To: to, ToSlot: toSlot})
}

func (g *graph) removeEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := slices.Index(g.edges, e)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEdge, e)
	}
	g.edges = slices.Delete(g.edges, i, i+1)
	if g.successors[e.From][e.To]--; g.successors[e.From][e.To] == 0 {
		delete(g.successors[e.From], e.To)
	}
	g.version++
	return nil
}

func (g *graph) AddSubGraph(prefix string, sub Graph) error {
	if prefix == "" {
		return ErrEmptyName
	}
	names := sub.Nodes()
	edges := sub.Edges()
	nodes := make([]Node, len(names))
	for i, name := range names {
		nodes[i], _ = sub.Node(name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range names {
		if err := g.checkNewName(prefix + "/" + name); err != nil {
			return err
		}
	}
	for i, name := range names {
		g.insertNode(prefix+"/"+name, nodes[i])
	}
	// The sub-graph is acyclic and its nodes are new, so its edges cannot close a cycle.
	for _, e := range edges {
		e.From = prefix + "/" + e.From
		e.To = prefix + "/" + e.To
		g.insertEdge(e)
	}
	return nil
}

func (g *graph) Node(name string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.node, true
}

func (g *graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.order)
}

func (g *graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges)
}

func (g *graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var deps []string
	for _, e := range g.edges {
		if e.To == name && !slices.Contains(deps, e.From) {
			deps = append(deps, e.From)
		}
	}
	return deps
}

func (g *graph) InputSlotEdge(node, slot string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inputSlotEdge(node, slot)
}

func (g *graph) inputSlotEdge(node, slot string) (Edge, bool) {
	for _, e := range g.edges {
		if e.Kind == SlotEdge && e.To == node && e.ToSlot == slot {
			return e, true
		}
	}
	return Edge{}, false
}

func (g *graph) Schedule() []string {
	g.mu.RLock()
	if g.schedule != nil && g.scheduleVersion == g.version {
		defer g.mu.RUnlock()
		return slices.Clone(g.schedule)
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.schedule == nil || g.scheduleVersion != g.version {
		g.schedule = g.topologicalOrder()
		g.scheduleVersion = g.version
	}
	return slices.Clone(g.schedule)
}

// topologicalOrder is Kahn's algorithm with the ready set ordered by insertion index.
func (g *graph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for _, succ := range g.successors {
		for to, n := range succ {
			indegree[to] += n
		}
	}

	var ready []int
	for _, name := range g.order {
		if indegree[name] == 0 {
			ready = append(ready, g.nodes[name].index)
		}
	}

	order := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		name := g.order[ready[0]]
		ready = ready[1:]
		order = append(order, name)
		for to, n := range g.successors[name] {
			if indegree[to] -= n; indegree[to] == 0 {
				idx := g.nodes[to].index
				at, _ := slices.BinarySearch(ready, idx)
				ready = slices.Insert(ready, at, idx)
			}
		}
	}
	return order
}

func (g *graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

func findSlot(slots []SlotInfo, name string) (SlotInfo, bool) {
	for _, s := range slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotInfo{}, false
}
