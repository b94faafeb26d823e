package world

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnDespawn(t *testing.T) {
	w := NewWorld()
	a := w.Spawn(NewRenderEntity())
	b := w.Spawn(NewRenderEntity(WithVisible(false)))
	c := w.Spawn(NewRenderEntity())
	assert.NotZero(t, a)
	assert.Equal(t, []Entity{a, b, c}, w.Entities())
	assert.Equal(t, 3, w.Len())

	assert.True(t, w.Despawn(b))
	assert.False(t, w.Despawn(b))
	assert.Equal(t, []Entity{a, c}, w.Entities())

	d := w.Spawn(NewRenderEntity())
	assert.Equal(t, []Entity{a, c, d}, w.Entities(), "ids are never reused")

	items := w.Snapshot()
	require.Len(t, items, 3)
	assert.Equal(t, c, items[1].ID)
}

func TestUpdate(t *testing.T) {
	w := NewWorld()
	id := w.Spawn(NewRenderEntity())
	assert.True(t, w.Update(id, func(e *RenderEntity) { e.ShaderDefs.Add("USE_FOG") }))
	e, ok := w.Get(id)
	require.True(t, ok)
	assert.True(t, e.ShaderDefs.Has("USE_FOG"))
	assert.False(t, w.Update(99, func(*RenderEntity) {}))
}

func TestCameraSource(t *testing.T) {
	w := NewWorld()
	w.Spawn(NewRenderEntity())
	cam := w.Spawn(NewRenderEntity(WithCamera(camera.Camera{Name: "camera_3d"})))

	entries := w.Cameras()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(cam), entries[0].Entity)

	c, ok := w.Camera(uint64(cam))
	require.True(t, ok)
	assert.Equal(t, "camera_3d", c.Name)
	_, ok = w.Camera(1)
	assert.False(t, ok)

	ac := camera.NewActiveCameras("camera_3d")
	ac.Update(w)
	bound, ok := ac.Get("camera_3d")
	require.True(t, ok)
	assert.Equal(t, uint64(cam), bound)
}

func TestDrawableAndCandidate(t *testing.T) {
	e := NewRenderEntity(
		WithMesh(asset.Handle(1)),
		WithRenderPipeline(RenderPipeline{Descriptor: 2}),
		WithPosition(1, 2, 3),
		WithBounds(4),
		WithTransparent(true),
		WithShaderDefs("A"),
	)
	assert.True(t, e.Drawable())
	assert.True(t, e.ShaderDefs.Has("A"))

	cand := e.Candidate(7)
	assert.Equal(t, uint64(7), cand.Entity)
	assert.Equal(t, [3]float32{1, 2, 3}, cand.Center)
	assert.True(t, cand.HasBounds)
	assert.Equal(t, float32(4), cand.Radius)
	assert.True(t, cand.Transparent)

	assert.False(t, NewRenderEntity(WithMesh(1)).Drawable(), "no pipelines")
	assert.False(t, NewRenderEntity(WithRenderPipeline(RenderPipeline{Descriptor: 2})).Drawable(), "no mesh")
	assert.False(t, (&RenderEntity{Mesh: 1, RenderPipelines: []RenderPipeline{{}}}).Drawable(), "zero value is hidden")
}
