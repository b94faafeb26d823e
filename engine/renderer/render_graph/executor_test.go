package render_graph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bufferSlot = SlotInfo{Name: "sentinel", Kind: render_resource.ResourceKindBuffer}

func buffer(id uint64) render_resource.Binding {
	return render_resource.Binding{Resource: render_resource.ResourceID{Kind: render_resource.ResourceKindBuffer, ID: id}, Size: 64}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { logger.SetLogger(nil) })
	return &buf
}

func TestExecuteProducerBeforeConsumer(t *testing.T) {
	g := NewGraph()
	var observed uint64
	require.NoError(t, g.AddNode("consumer", NewFuncNode([]SlotInfo{bufferSlot}, nil, func(_ context.Context, rc *RunContext) error {
		b, err := rc.Input("sentinel")
		if err != nil {
			return err
		}
		observed = b.Resource.ID
		return nil
	})))
	require.NoError(t, g.AddNode("producer", NewFuncNode(nil, []SlotInfo{bufferSlot}, func(_ context.Context, rc *RunContext) error {
		return rc.SetOutput("sentinel", buffer(0xC0FFEE))
	})))
	require.NoError(t, g.AddSlotEdge("producer", "sentinel", "consumer", "sentinel"))

	table := render_resource.NewTable()
	report, err := NewExecutor(g).Execute(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, []string{"producer", "consumer"}, report.Executed)
	assert.Equal(t, uint64(0xC0FFEE), observed)

	out, ok := table.Get(render_resource.NodeScope("producer"), "sentinel")
	require.True(t, ok)
	assert.Equal(t, "sentinel", out.Name)
}

func TestExecuteResolvesUnconnectedInputsFromGlobalScope(t *testing.T) {
	g := NewGraph()
	var got render_resource.Binding
	require.NoError(t, g.AddNode("reader", NewFuncNode([]SlotInfo{bufferSlot}, nil, func(_ context.Context, rc *RunContext) error {
		var err error
		got, err = rc.Input("sentinel")
		return err
	})))

	table := render_resource.NewTable()
	table.Set(render_resource.GlobalScope(), render_resource.Binding{Name: "sentinel", Resource: buffer(9).Resource})

	_, err := NewExecutor(g).Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Resource.ID)
}

func TestExecuteMissingBindingSkipsNodeAndDependents(t *testing.T) {
	logs := captureLogs(t)

	g := NewGraph()
	var ran []string
	record := func(name string) func(context.Context, *RunContext) error {
		return func(context.Context, *RunContext) error {
			ran = append(ran, name)
			return nil
		}
	}
	needsFog := SlotInfo{Name: "fog", Kind: render_resource.ResourceKindBuffer}
	require.NoError(t, g.AddNode("fog_pass", NewFuncNode([]SlotInfo{needsFog}, nil, record("fog_pass"))))
	require.NoError(t, g.AddNode("composite", NewFuncNode(nil, nil, record("composite"))))
	require.NoError(t, g.AddNode("ui", NewFuncNode(nil, nil, record("ui"))))
	require.NoError(t, g.AddNodeEdge("fog_pass", "composite"))

	x := NewExecutor(g)
	table := render_resource.NewTable()
	for range 3 {
		ran = nil
		report, err := x.Execute(context.Background(), table)
		require.NoError(t, err)

		assert.Equal(t, []string{"ui"}, ran)
		assert.Equal(t, []string{"ui"}, report.Executed)
		assert.Equal(t, []string{"fog_pass", "composite"}, report.Skipped)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "fog_pass", report.Failures[0].Node)
		assert.Equal(t, "fog", report.Failures[0].Binding)
		assert.ErrorIs(t, report.Failures[0].Err, render_resource.ErrMissingBinding)
	}
	assert.Equal(t, 1, strings.Count(logs.String(), "render graph node skipped"))

	table.Set(render_resource.GlobalScope(), render_resource.Binding{Name: "fog", Resource: buffer(3).Resource})
	ran = nil
	report, err := x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"fog_pass", "composite", "ui"}, ran)
	assert.Empty(t, report.Failures)
}

func TestExecuteMissingBindingReturnedByNode(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("lookup", NewFuncNode(nil, nil, func(_ context.Context, rc *RunContext) error {
		_, err := rc.Table().Resolve(render_resource.EntityScope(4), "instances")
		return err
	})))
	require.NoError(t, g.AddNode("after", emptyNode()))

	report, err := NewExecutor(g).Execute(context.Background(), render_resource.NewTable())
	require.NoError(t, err)
	assert.Equal(t, []string{"after"}, report.Executed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "instances", report.Failures[0].Binding)
}

func TestExecuteNodeErrorAbortsFrame(t *testing.T) {
	g := NewGraph()
	boom := errors.New("device lost")
	calls := 0
	require.NoError(t, g.AddNode("first", NewFuncNode(nil, nil, func(context.Context, *RunContext) error {
		calls++
		return nil
	})))
	require.NoError(t, g.AddNode("broken", NewFuncNode(nil, nil, func(context.Context, *RunContext) error {
		return boom
	})))
	require.NoError(t, g.AddNode("last", NewFuncNode(nil, nil, func(context.Context, *RunContext) error {
		t.Fatal("node after a failure must not run")
		return nil
	})))

	x := NewExecutor(g)
	version := g.Version()
	for range 2 {
		report, err := x.Execute(context.Background(), render_resource.NewTable())
		var nodeErr *NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, "broken", nodeErr.Node)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"first"}, report.Executed)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, version, g.Version())
	assert.Equal(t, []string{"first", "broken", "last"}, g.Schedule())
}

func TestExecuteClearsNodeScopesEachFrame(t *testing.T) {
	g := NewGraph()
	produce := true
	require.NoError(t, g.AddNode("producer", NewFuncNode(nil, []SlotInfo{bufferSlot}, func(_ context.Context, rc *RunContext) error {
		if !produce {
			return nil
		}
		return rc.SetOutput("sentinel", buffer(1))
	})))
	require.NoError(t, g.AddNode("consumer", NewFuncNode([]SlotInfo{bufferSlot}, nil, nil)))
	require.NoError(t, g.AddSlotEdge("producer", "sentinel", "consumer", "sentinel"))

	x := NewExecutor(g)
	table := render_resource.NewTable()
	report, err := x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "consumer"}, report.Executed)

	produce = false
	report, err = x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"producer"}, report.Executed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "consumer", report.Failures[0].Node)
}

func TestExecuteConnectedInputFallsBackToGlobal(t *testing.T) {
	g := NewGraph()
	produce := false
	var observed uint64
	require.NoError(t, g.AddNode("producer", NewFuncNode(nil, []SlotInfo{bufferSlot}, func(_ context.Context, rc *RunContext) error {
		if !produce {
			return nil
		}
		return rc.SetOutput("sentinel", buffer(2))
	})))
	require.NoError(t, g.AddNode("consumer", NewFuncNode([]SlotInfo{bufferSlot}, nil, func(_ context.Context, rc *RunContext) error {
		b, err := rc.Input("sentinel")
		if err != nil {
			return err
		}
		observed = b.Resource.ID
		return nil
	})))
	require.NoError(t, g.AddSlotEdge("producer", "sentinel", "consumer", "sentinel"))

	table := render_resource.NewTable()
	table.Set(render_resource.GlobalScope(), render_resource.Binding{Name: "sentinel", Resource: buffer(1).Resource, Size: 64})
	x := NewExecutor(g)

	report, err := x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "consumer"}, report.Executed)
	assert.Empty(t, report.Failures)
	assert.Equal(t, uint64(1), observed, "global binding used when the producer sets nothing")

	produce = true
	_, err = x.Execute(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), observed, "producer output overrides the global binding")
}

func TestSetOutputValidatesSlots(t *testing.T) {
	rc := newRunContext("n", []SlotInfo{bufferSlot}, nil, render_resource.NewTable())
	assert.ErrorIs(t, rc.SetOutput("other", buffer(1)), ErrUnknownSlot)

	texture := render_resource.Binding{Resource: render_resource.ResourceID{Kind: render_resource.ResourceKindTexture, ID: 1}}
	assert.ErrorIs(t, rc.SetOutput("sentinel", texture), ErrSlotKindMismatch)

	_, err := rc.Input("sentinel")
	assert.ErrorIs(t, err, render_resource.ErrMissingBinding)
}

func TestExecuteInputKindMismatchAborts(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("reader", NewFuncNode([]SlotInfo{bufferSlot}, nil, nil)))
	table := render_resource.NewTable()
	table.Set(render_resource.GlobalScope(), render_resource.Binding{
		Name:     "sentinel",
		Resource: render_resource.ResourceID{Kind: render_resource.ResourceKindSampler, ID: 2},
	})

	_, err := NewExecutor(g).Execute(context.Background(), table)
	assert.ErrorIs(t, err, ErrSlotKindMismatch)
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	g := NewGraph()
	addNodes(t, g, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(g).Execute(ctx, render_resource.NewTable())
	assert.ErrorIs(t, err, context.Canceled)
}
