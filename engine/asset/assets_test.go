package asset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetsLifecycleEvents(t *testing.T) {
	store := NewAssets[string]()

	h := store.Add("v1")
	require.True(t, h.Valid())

	store.Set(h, "v2")
	got, ok := store.Get(h)
	require.True(t, ok)
	assert.Equal(t, "v2", got)

	assert.True(t, store.Remove(h))
	assert.False(t, store.Remove(h))

	_, ok = store.Get(h)
	assert.False(t, ok)

	assert.Equal(t, []Event{
		{Kind: EventCreated, Handle: h},
		{Kind: EventModified, Handle: h},
		{Kind: EventRemoved, Handle: h},
	}, store.DrainEvents())
	assert.Empty(t, store.DrainEvents())
}

func TestAssetsSetUnknownHandleCreates(t *testing.T) {
	store := NewAssets[int]()
	store.Set(Handle(7), 1)

	assert.Equal(t, []Event{{Kind: EventCreated, Handle: 7}}, store.DrainEvents())
	assert.Equal(t, Handle(8), store.Add(2))
}

func TestAssetsConcurrentAdd(t *testing.T) {
	store := NewAssets[int]()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Add(i)
		}()
	}
	wg.Wait()

	handles := store.Handles()
	assert.Len(t, handles, 64)
	assert.Equal(t, Handle(1), handles[0])
	assert.Equal(t, Handle(64), handles[63])
}
