package world

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
)

// Item pairs an entity id with its render components.
type Item struct {
	ID     Entity
	Entity *RenderEntity
}

// world is the implementation of the World interface.
type world struct {
	mu       *sync.RWMutex
	nextID   Entity
	order    []Entity
	entities map[Entity]*RenderEntity
}

// World stores render entities by id in spawn order. Components are read by the frame driver
// while a frame runs; mutate them between frames or through Update.
type World interface {
	// Spawn stores a new entity.
	//
	// Parameters:
	//   - e: the render components
	//
	// Returns:
	//   - Entity: the id of the new entity
	Spawn(e *RenderEntity) Entity

	// Get returns the render components of an entity.
	//
	// Parameters:
	//   - id: the entity id
	//
	// Returns:
	//   - *RenderEntity: the components
	//   - bool: false if the entity does not exist
	Get(id Entity) (*RenderEntity, bool)

	// Update runs fn on the components of an entity while holding the world's write lock.
	//
	// Parameters:
	//   - id: the entity id
	//   - fn: the mutation
	//
	// Returns:
	//   - bool: false if the entity does not exist
	Update(id Entity, fn func(e *RenderEntity)) bool

	// Despawn removes an entity.
	//
	// Parameters:
	//   - id: the entity id
	//
	// Returns:
	//   - bool: true if the entity existed
	Despawn(id Entity) bool

	// Entities returns the ids of all entities in spawn order.
	//
	// Returns:
	//   - []Entity: the entity ids
	Entities() []Entity

	// Snapshot returns every entity with its components in spawn order.
	//
	// Returns:
	//   - []Item: the entities
	Snapshot() []Item

	// Len returns the number of entities.
	Len() int

	camera.Source
}

var _ World = &world{}

// NewWorld creates an empty World.
//
// Returns:
//   - World: the entity store
func NewWorld() World {
	return &world{
		mu:       &sync.RWMutex{},
		entities: make(map[Entity]*RenderEntity),
	}
}

func (w *world) Spawn(e *RenderEntity) Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.entities[id] = e
	w.order = append(w.order, id)
	return id
}

func (w *world) Get(id Entity) (*RenderEntity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

func (w *world) Update(id Entity, fn func(e *RenderEntity)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

func (w *world) Despawn(id Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[id]; !ok {
		return false
	}
	delete(w.entities, id)
	w.order = slices.DeleteFunc(w.order, func(o Entity) bool { return o == id })
	return true
}

func (w *world) Entities() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.order)
}

func (w *world) Snapshot() []Item {
	w.mu.RLock()
	defer w.mu.RUnlock()
	items := make([]Item, len(w.order))
	for i, id := range w.order {
		items[i] = Item{ID: id, Entity: w.entities[id]}
	}
	return items
}

func (w *world) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

func (w *world) Cameras() []camera.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []camera.Entry
	for _, id := range w.order {
		if c := w.entities[id].Camera; c != nil {
			out = append(out, camera.Entry{Entity: uint64(id), Camera: *c})
		}
	}
	return out
}

func (w *world) Camera(entity uint64) (camera.Camera, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[Entity(entity)]
	if !ok || e.Camera == nil {
		return camera.Camera{}, false
	}
	return *e.Camera, true
}
