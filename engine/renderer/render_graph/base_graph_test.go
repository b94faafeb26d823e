package render_graph

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texture(name string, id uint64) render_resource.Binding {
	return render_resource.Binding{Name: name, Resource: render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: id}}
}

func TestAddBaseGraph(t *testing.T) {
	g := NewGraph()
	require.NoError(t, AddBaseGraph(g, DefaultBaseGraphConfig(), 1))

	assert.Equal(t, []string{NodeCamera3D, NodeCamera2D, NodeMainDepthTexture, NodePrimarySwapChain, NodeMainPass}, g.Nodes())
	assert.Equal(t, []string{NodeCamera3D, NodeCamera2D, NodeMainDepthTexture, NodePrimarySwapChain, NodeMainPass}, g.Schedule())

	e, ok := g.InputSlotEdge(NodeMainPass, SlotColorAttachment)
	require.True(t, ok)
	assert.Equal(t, NodePrimarySwapChain, e.From)
	_, ok = g.InputSlotEdge(NodeMainPass, SlotColorResolveTarget)
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{NodeCamera3D, NodeCamera2D, NodeMainDepthTexture, NodePrimarySwapChain}, g.Dependencies(NodeMainPass))
}

func TestAddBaseGraphMultisampled(t *testing.T) {
	g := NewGraph()
	require.NoError(t, AddBaseGraph(g, DefaultBaseGraphConfig(), 4))

	assert.Contains(t, g.Nodes(), NodeMainSampledColorAttachment)
	e, ok := g.InputSlotEdge(NodeMainPass, SlotColorAttachment)
	require.True(t, ok)
	assert.Equal(t, NodeMainSampledColorAttachment, e.From)
	e, ok = g.InputSlotEdge(NodeMainPass, SlotColorResolveTarget)
	require.True(t, ok)
	assert.Equal(t, NodePrimarySwapChain, e.From)
}

func TestAddBaseGraphPartial(t *testing.T) {
	g := NewGraph()
	require.NoError(t, AddBaseGraph(g, BaseGraphConfig{Camera3D: true}, 1))
	assert.Equal(t, []string{NodeCamera3D, NodePrimarySwapChain}, g.Nodes())

	assert.ErrorIs(t, AddBaseGraph(g, BaseGraphConfig{Camera3D: true}, 1), ErrDuplicateNode)
}

func TestExecuteBaseGraph(t *testing.T) {
	g := NewGraph()
	require.NoError(t, AddBaseGraph(g, DefaultBaseGraphConfig(), 1))
	x := NewExecutor(g)

	table := render_resource.NewTable()
	global := render_resource.GlobalScope()
	table.Set(global, texture(NodePrimarySwapChain, 1))
	table.Set(global, texture(NodeMainDepthTexture, 2))
	table.Set(global, render_resource.Binding{Name: NodeCamera3D, Resource: render_resource.ResourceID{Kind: render_resource.ResourceKindBuffer, ID: 3}, Size: 64})

	report, err := x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Empty(t, report.Failures)
	assert.Contains(t, report.Executed, NodeMainPass)

	pass := render_resource.NodeScope(NodeMainPass)
	color, ok := table.Get(pass, SlotColorAttachment)
	require.True(t, ok)
	assert.Equal(t, uint64(1), color.Resource.ID)
	depth, ok := table.Get(pass, SlotDepth)
	require.True(t, ok)
	assert.Equal(t, uint64(2), depth.Resource.ID)

	cam, ok := table.Get(render_resource.NodeScope(NodeCamera3D), SlotCamera)
	require.True(t, ok)
	assert.Equal(t, uint64(3), cam.Resource.ID)
	_, ok = table.Get(render_resource.NodeScope(NodeCamera2D), SlotCamera)
	assert.False(t, ok)

	table.Remove(global, NodePrimarySwapChain)
	report, err = x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{NodePrimarySwapChain, NodeMainPass}, report.Skipped)
	_, ok = table.Get(pass, SlotColorAttachment)
	assert.False(t, ok)
}
