package render_resource

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buffer(name string, id uint64) Binding {
	return Binding{Name: name, Resource: ResourceID{Kind: ResourceKindBuffer, ID: id}, Size: 64}
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	tbl := NewTable()
	mesh := MeshScope(asset.Handle(3))

	tbl.Set(GlobalScope(), buffer("camera", 1))
	tbl.Set(GlobalScope(), buffer("albedo", 2))
	tbl.Set(mesh, buffer("albedo", 9))

	b, err := tbl.Resolve(mesh, "albedo")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.Resource.ID, "asset scope overrides global")

	b, err = tbl.Resolve(mesh, "camera")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Resource.ID)

	_, err = tbl.Resolve(mesh, "lights")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingBinding))

	var missing *MissingBindingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "lights", missing.Name)
	assert.Equal(t, mesh, missing.Scope)
}

func TestClearNodeScopesKeepsOtherScopes(t *testing.T) {
	tbl := NewTable()
	tbl.Set(GlobalScope(), buffer("camera", 1))
	tbl.Set(NodeScope("shadow"), buffer("shadow_map", 2))
	tbl.Set(EntityScope(4), buffer("transform", 3))

	tbl.ClearNodeScopes()

	_, ok := tbl.Get(NodeScope("shadow"), "shadow_map")
	assert.False(t, ok)
	assert.Equal(t, 2, tbl.Len())
}

func TestDynamicBindings(t *testing.T) {
	tbl := NewTable()
	entity := EntityScope(1)

	instances := buffer("instances", 1)
	instances.Dynamic = true
	tbl.Set(GlobalScope(), instances)

	lights := buffer("lights", 2)
	lights.Dynamic = true
	tbl.Set(GlobalScope(), lights)

	// the entity overrides lights with a static buffer
	tbl.Set(entity, buffer("lights", 3))

	bones := buffer("bones", 4)
	bones.Dynamic = true
	tbl.Set(entity, bones)

	assert.Equal(t, []string{"bones", "instances"}, tbl.DynamicBindings(entity))
	assert.Equal(t, []string{"instances", "lights"}, tbl.DynamicBindings(GlobalScope()))
}

func TestApplyMergesParallelWrites(t *testing.T) {
	tbl := NewTable()
	tbl.Set(GlobalScope(), buffer("stale", 1))

	var mu sync.Mutex
	var writes []BindingWrite
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := BindingWrite{Scope: MeshScope(asset.Handle(i + 1)), Binding: buffer("vertex_buffer", uint64(i+1))}
			mu.Lock()
			writes = append(writes, w)
			mu.Unlock()
		}()
	}
	wg.Wait()
	writes = append(writes, BindingWrite{Scope: GlobalScope(), Binding: Binding{Name: "stale"}, Remove: true})

	tbl.Apply(writes)

	assert.Equal(t, 16, tbl.Len())
	b, ok := tbl.Get(MeshScope(asset.Handle(5)), "vertex_buffer")
	require.True(t, ok)
	assert.Equal(t, uint64(5), b.Resource.ID)
}

func TestBindingsSortedCopy(t *testing.T) {
	tbl := NewTable()
	tbl.Set(GlobalScope(), buffer("b", 2))
	tbl.Set(GlobalScope(), buffer("a", 1))

	got := tbl.Bindings(GlobalScope())
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)

	assert.True(t, tbl.Remove(GlobalScope(), "a"))
	assert.False(t, tbl.Remove(GlobalScope(), "a"))
	assert.Len(t, tbl.Bindings(GlobalScope()), 1)
}

func TestAssetScopesIsolatedByClass(t *testing.T) {
	tbl := NewTable()
	tbl.Set(MeshScope(1), buffer("vertex_buffer", 1))
	tbl.Set(TextureScope(1), Binding{Name: "albedo", Resource: ResourceID{Kind: ResourceKindTexture, ID: 2}, Dynamic: true})

	assert.NotEqual(t, MeshScope(1), TextureScope(1))
	_, ok := tbl.Get(MeshScope(1), "albedo")
	assert.False(t, ok)
	_, ok = tbl.Get(TextureScope(1), "vertex_buffer")
	assert.False(t, ok)
	assert.Empty(t, tbl.DynamicBindings(MeshScope(1)))
	assert.Equal(t, []string{"albedo"}, tbl.DynamicBindings(TextureScope(1)))

	tbl.ClearScope(TextureScope(1))
	_, ok = tbl.Get(MeshScope(1), "vertex_buffer")
	assert.True(t, ok)
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "global", GlobalScope().String())
	assert.Equal(t, "asset:mesh:2", MeshScope(2).String())
	assert.Equal(t, "asset:texture:2", TextureScope(2).String())
	assert.Equal(t, "node:main_pass", NodeScope("main_pass").String())
	assert.Equal(t, "texture#4", ResourceID{Kind: ResourceKindTexture, ID: 4}.String())
}
