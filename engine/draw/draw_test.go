package draw

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buffer(id uint64) render_resource.ResourceID {
	return render_resource.ResourceID{Kind: render_resource.ResourceKindBuffer, ID: id}
}

func TestResolveBindGroups(t *testing.T) {
	layouts := []shader.BindingLayout{
		{Group: 0, Binding: 0, Name: "camera", Kind: render_resource.ResourceKindBuffer},
		{Group: 1, Binding: 0, Name: "instances", Kind: render_resource.ResourceKindBuffer},
		{Group: 1, Binding: 1, Name: "bones", Kind: render_resource.ResourceKindBuffer},
	}
	layouts[2].Entry.Buffer.HasDynamicOffset = true

	ids := map[string]uint64{"camera": 1, "instances": 2, "bones": 3}
	groups, err := ResolveBindGroups(layouts, func(name string) (render_resource.Binding, error) {
		return render_resource.Binding{Name: name, Resource: buffer(ids[name]), Size: 64}, nil
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, uint32(0), groups[0].Group)
	assert.Equal(t, []BindGroupEntry{{Binding: 0, Name: "camera", Resource: buffer(1), Size: 64}}, groups[0].Entries)
	assert.Len(t, groups[1].Entries, 2)
	assert.Equal(t, []uint32{0}, groups[1].DynamicOffsets)
	assert.Empty(t, groups[0].DynamicOffsets)
}

func TestResolveBindGroupsReportsEveryMissingName(t *testing.T) {
	layouts := []shader.BindingLayout{
		{Group: 0, Binding: 0, Name: "camera"},
		{Group: 0, Binding: 1, Name: "fog"},
		{Group: 0, Binding: 2, Name: "lights"},
	}
	_, err := ResolveBindGroups(layouts, func(name string) (render_resource.Binding, error) {
		if name == "camera" {
			return render_resource.Binding{Name: name, Resource: buffer(1)}, nil
		}
		return render_resource.Binding{}, &render_resource.MissingBindingError{Scope: render_resource.GlobalScope(), Name: name}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, render_resource.ErrMissingBinding)
	assert.Equal(t, []string{"fog", "lights"}, MissingBindings(err))
}

func TestMissingBindings(t *testing.T) {
	assert.Nil(t, MissingBindings(nil))
	assert.Nil(t, MissingBindings(errors.New("boom")))

	wrapped := fmt.Errorf("draw: %w", &render_resource.MissingBindingError{Name: "camera"})
	assert.Equal(t, []string{"camera"}, MissingBindings(wrapped))
}

func TestDrawLists(t *testing.T) {
	d := NewDraws()
	main := d.Get("camera_3d")
	main.Push(
		SetPipeline(7),
		SetVertexBuffer(0, buffer(1)),
		SetIndexBuffer(buffer(2), wgpu.IndexFormatUint32),
		DrawIndexed(36, 1),
	)
	d.Get("camera_2d")

	assert.Same(t, main, d.Get("camera_3d"))
	lists := d.Lists()
	require.Len(t, lists, 1, "empty lists are not submitted")
	assert.Equal(t, 4, lists[0].Len())
	assert.Equal(t, CommandDrawIndexed, lists[0].Commands[3].Kind)
	assert.Equal(t, uint32(36), lists[0].Commands[3].Count)

	d.Reset()
	assert.Empty(t, d.Lists())
	assert.Equal(t, 0, main.Len())
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "set_bind_group", SetBindGroup(BindGroup{}).Kind.String())
	assert.Equal(t, "draw", Draw(3, 1).Kind.String())
	assert.Equal(t, "CommandKind(42)", CommandKind(42).String())
}
