package render_graph

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var textureSlot = SlotInfo{Name: "shadow_map", Kind: render_resource.ResourceKindTexture}

func emptyNode() Node {
	return NewFuncNode(nil, nil, nil)
}

func addNodes(t *testing.T, g Graph, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, g.AddNode(n, emptyNode()))
	}
}

func position(order []string, name string) int {
	return slices.Index(order, name)
}

func TestShadowMainPassSchedule(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("MainPass", NewFuncNode([]SlotInfo{textureSlot}, nil, nil)))
	require.NoError(t, g.AddNode("Shadow", NewFuncNode(nil, []SlotInfo{textureSlot}, nil)))
	require.NoError(t, g.AddSlotEdge("Shadow", "shadow_map", "MainPass", "shadow_map"))

	assert.Equal(t, []string{"Shadow", "MainPass"}, g.Schedule())
	assert.Equal(t, []string{"Shadow"}, g.Dependencies("MainPass"))

	require.NoError(t, g.RemoveSlotEdge("Shadow", "shadow_map", "MainPass", "shadow_map"))
	order := g.Schedule()
	assert.ElementsMatch(t, []string{"Shadow", "MainPass"}, order)
	assert.Equal(t, []string{"MainPass", "Shadow"}, order)
	assert.Empty(t, g.Dependencies("MainPass"))
	_, ok := g.InputSlotEdge("MainPass", "shadow_map")
	assert.False(t, ok)
}

func TestScheduleBreaksTiesByInsertionOrder(t *testing.T) {
	g := NewGraph()
	addNodes(t, g, "d", "c", "b", "a")
	require.NoError(t, g.AddNodeEdge("a", "d"))
	require.NoError(t, g.AddNodeEdge("b", "c"))

	assert.Equal(t, []string{"b", "c", "a", "d"}, g.Schedule())
}

func TestScheduleRandomDAGs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for range 50 {
		g := NewGraph()
		n := 2 + rng.IntN(15)
		perm := rng.Perm(n)
		for _, i := range perm {
			addNodes(t, g, strconv.Itoa(i))
		}

		var edges [][2]string
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.IntN(4) == 0 {
					from, to := strconv.Itoa(i), strconv.Itoa(j)
					require.NoError(t, g.AddNodeEdge(from, to))
					edges = append(edges, [2]string{from, to})
				}
			}
		}

		order := g.Schedule()
		require.Len(t, order, n)
		assert.ElementsMatch(t, g.Nodes(), order)
		for _, e := range edges {
			assert.Less(t, position(order, e[0]), position(order, e[1]), "edge %s -> %s", e[0], e[1])
		}
	}
}

func TestCycleRejectedAtomically(t *testing.T) {
	g := NewGraph()
	addNodes(t, g, "a", "b", "c")
	require.NoError(t, g.AddNodeEdge("a", "b"))
	require.NoError(t, g.AddNodeEdge("b", "c"))

	before := g.Schedule()
	version := g.Version()
	edges := g.Edges()

	assert.ErrorIs(t, g.AddNodeEdge("c", "a"), ErrCycle)
	assert.ErrorIs(t, g.AddNodeEdge("b", "b"), ErrCycle)

	assert.Equal(t, version, g.Version())
	assert.Equal(t, edges, g.Edges())
	assert.Equal(t, before, g.Schedule())
}

func TestSlotEdgeCycleRejected(t *testing.T) {
	g := NewGraph()
	both := []SlotInfo{textureSlot}
	require.NoError(t, g.AddNode("a", NewFuncNode(both, both, nil)))
	require.NoError(t, g.AddNode("b", NewFuncNode(both, both, nil)))
	require.NoError(t, g.AddSlotEdge("a", "shadow_map", "b", "shadow_map"))

	assert.ErrorIs(t, g.AddSlotEdge("b", "shadow_map", "a", "shadow_map"), ErrCycle)
	_, ok := g.InputSlotEdge("a", "shadow_map")
	assert.False(t, ok)
}

func TestConstructionErrors(t *testing.T) {
	g := NewGraph()
	bufferIn := SlotInfo{Name: "shadow_map", Kind: render_resource.ResourceKindBuffer}
	require.NoError(t, g.AddNode("shadow", NewFuncNode(nil, []SlotInfo{textureSlot}, nil)))
	require.NoError(t, g.AddNode("other", NewFuncNode(nil, []SlotInfo{textureSlot}, nil)))
	require.NoError(t, g.AddNode("main", NewFuncNode([]SlotInfo{textureSlot}, nil, nil)))
	require.NoError(t, g.AddNode("buffered", NewFuncNode([]SlotInfo{bufferIn}, nil, nil)))

	assert.ErrorIs(t, g.AddNode("", emptyNode()), ErrEmptyName)
	assert.ErrorIs(t, g.AddNode("main", emptyNode()), ErrDuplicateNode)
	assert.ErrorIs(t, g.AddNodeEdge("main", "nope"), ErrUnknownNode)
	assert.ErrorIs(t, g.AddSlotEdge("nope", "shadow_map", "main", "shadow_map"), ErrUnknownNode)
	assert.ErrorIs(t, g.AddSlotEdge("shadow", "depth", "main", "shadow_map"), ErrUnknownSlot)
	assert.ErrorIs(t, g.AddSlotEdge("shadow", "shadow_map", "main", "depth"), ErrUnknownSlot)
	assert.ErrorIs(t, g.AddSlotEdge("shadow", "shadow_map", "buffered", "shadow_map"), ErrSlotKindMismatch)

	require.NoError(t, g.AddSlotEdge("shadow", "shadow_map", "main", "shadow_map"))
	assert.ErrorIs(t, g.AddSlotEdge("shadow", "shadow_map", "main", "shadow_map"), ErrDuplicateEdge)
	assert.ErrorIs(t, g.AddSlotEdge("other", "shadow_map", "main", "shadow_map"), ErrSlotOccupied)

	require.NoError(t, g.AddNodeEdge("shadow", "main"))
	assert.ErrorIs(t, g.AddNodeEdge("shadow", "main"), ErrDuplicateEdge)

	assert.ErrorIs(t, g.RemoveNodeEdge("main", "shadow"), ErrUnknownEdge)
	assert.ErrorIs(t, g.RemoveSlotEdge("other", "shadow_map", "main", "shadow_map"), ErrUnknownEdge)
}

func TestRemovingOneOfTwoEdgesKeepsDependency(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("main", NewFuncNode([]SlotInfo{textureSlot}, nil, nil)))
	require.NoError(t, g.AddNode("shadow", NewFuncNode(nil, []SlotInfo{textureSlot}, nil)))
	require.NoError(t, g.AddSlotEdge("shadow", "shadow_map", "main", "shadow_map"))
	require.NoError(t, g.AddNodeEdge("shadow", "main"))

	require.NoError(t, g.RemoveNodeEdge("shadow", "main"))
	assert.Equal(t, []string{"shadow", "main"}, g.Schedule())
	assert.ErrorIs(t, g.AddNodeEdge("main", "shadow"), ErrCycle)
}

func TestScheduleCachedUntilTopologyChanges(t *testing.T) {
	g := NewGraph()
	addNodes(t, g, "b", "a")
	v := g.Version()
	assert.Equal(t, []string{"b", "a"}, g.Schedule())
	assert.Equal(t, v, g.Version())

	require.NoError(t, g.AddNodeEdge("a", "b"))
	assert.Greater(t, g.Version(), v)
	assert.Equal(t, []string{"a", "b"}, g.Schedule())

	order := g.Schedule()
	order[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, g.Schedule())
}

func TestAddSubGraph(t *testing.T) {
	sub := NewGraph()
	require.NoError(t, sub.AddNode("shadow", NewFuncNode(nil, []SlotInfo{textureSlot}, nil)))
	require.NoError(t, sub.AddNode("blur", NewFuncNode([]SlotInfo{textureSlot}, nil, nil)))
	require.NoError(t, sub.AddSlotEdge("shadow", "shadow_map", "blur", "shadow_map"))

	g := NewGraph()
	addNodes(t, g, "main")
	require.NoError(t, g.AddSubGraph("sun", sub))
	require.NoError(t, g.AddNodeEdge("sun/blur", "main"))

	assert.Equal(t, []string{"main", "sun/shadow", "sun/blur"}, g.Nodes())
	assert.Equal(t, []string{"sun/shadow", "sun/blur", "main"}, g.Schedule())
	e, ok := g.InputSlotEdge("sun/blur", "shadow_map")
	require.True(t, ok)
	assert.Equal(t, "sun/shadow", e.From)

	other := NewGraph()
	addNodes(t, other, "fresh", "blur")
	version := g.Version()
	assert.ErrorIs(t, g.AddSubGraph("sun", other), ErrDuplicateNode)
	assert.Equal(t, version, g.Version())
	assert.Len(t, g.Nodes(), 3)
	_, ok = g.Node("sun/fresh")
	assert.False(t, ok)
	assert.ErrorIs(t, g.AddSubGraph("", sub), ErrEmptyName)
}
