// Package asset provides handle-addressed storage for the immutable assets the renderer
// consumes: shaders, pipeline descriptors, meshes and textures. Entities reference assets
// only by Handle, never by pointer.
package asset

import (
	"slices"
	"sync"
)

// Handle identifies an asset inside an Assets store. The zero Handle is never issued.
type Handle uint64

// Valid reports whether h was issued by a store.
func (h Handle) Valid() bool {
	return h != 0
}

// EventKind describes what happened to an asset.
type EventKind int

const (
	// EventCreated is recorded when an asset is added.
	EventCreated EventKind = iota
	// EventModified is recorded when an asset is replaced in place (a reload).
	EventModified
	// EventRemoved is recorded when an asset is dropped.
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event records a single mutation of an Assets store.
type Event struct {
	Kind   EventKind
	Handle Handle
}

// assets is the implementation of the Assets interface.
type assets[T any] struct {
	mu     sync.RWMutex
	next   Handle
	items  map[Handle]T
	events []Event
}

// Assets is a concurrency-safe store of assets of a single type.
// Every mutation is recorded as an Event which consumers (pipeline caches, resource
// providers) drain once per frame to react to reloads and removals.
type Assets[T any] interface {
	// Add stores a new asset and returns its handle.
	//
	// Parameters:
	//   - item: the asset to store
	//
	// Returns:
	//   - Handle: the handle addressing the stored asset
	Add(item T) Handle

	// Get returns the asset addressed by h.
	//
	// Parameters:
	//   - h: the asset handle
	//
	// Returns:
	//   - T: the asset, or the zero value if absent
	//   - bool: true if the asset exists
	Get(h Handle) (T, bool)

	// Set replaces the asset addressed by h, recording EventModified. If h was never
	// issued or has been removed the asset is stored and EventCreated is recorded instead.
	//
	// Parameters:
	//   - h: the asset handle
	//   - item: the replacement asset
	Set(h Handle, item T)

	// Remove drops the asset addressed by h.
	//
	// Parameters:
	//   - h: the asset handle
	//
	// Returns:
	//   - bool: true if an asset was removed
	Remove(h Handle) bool

	// Len returns the number of stored assets.
	Len() int

	// Handles returns the handles of all stored assets in ascending order.
	Handles() []Handle

	// DrainEvents returns all events recorded since the previous call, in mutation order.
	DrainEvents() []Event
}

var _ Assets[int] = &assets[int]{}

// NewAssets creates an empty asset store.
//
// Returns:
//   - Assets[T]: the new store
func NewAssets[T any]() Assets[T] {
	return &assets[T]{
		items: make(map[Handle]T),
	}
}

func (a *assets[T]) Add(item T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.next++
	a.items[a.next] = item
	a.events = append(a.events, Event{Kind: EventCreated, Handle: a.next})
	return a.next
}

func (a *assets[T]) Get(h Handle) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	item, ok := a.items[h]
	return item, ok
}

func (a *assets[T]) Set(h Handle, item T) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kind := EventModified
	if _, ok := a.items[h]; !ok {
		kind = EventCreated
	}
	a.items[h] = item
	if h > a.next {
		a.next = h
	}
	a.events = append(a.events, Event{Kind: kind, Handle: h})
}

func (a *assets[T]) Remove(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.items[h]; !ok {
		return false
	}
	delete(a.items, h)
	a.events = append(a.events, Event{Kind: EventRemoved, Handle: h})
	return true
}

func (a *assets[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

func (a *assets[T]) Handles() []Handle {
	a.mu.RLock()
	handles := make([]Handle, 0, len(a.items))
	for h := range a.items {
		handles = append(handles, h)
	}
	a.mu.RUnlock()

	slices.Sort(handles)
	return handles
}

func (a *assets[T]) DrainEvents() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	events := a.events
	a.events = nil
	return events
}
