package camera

import (
	"slices"
	"sync"
)

// Entry is a camera component together with the entity that owns it.
type Entry struct {
	Entity uint64
	Camera Camera
}

// Source is the view of the entity store needed to bind camera slots.
type Source interface {
	// Cameras returns every entity that carries a camera component, in spawn order.
	//
	// Returns:
	//   - []Entry: the camera entities
	Cameras() []Entry

	// Camera returns the camera component of an entity.
	//
	// Parameters:
	//   - entity: the entity id
	//
	// Returns:
	//   - Camera: the camera component
	//   - bool: false if the entity is gone or has no camera
	Camera(entity uint64) (Camera, bool)
}

// slot is one named camera binding; bound is false while no entity fills it.
type slot struct {
	name   string
	entity uint64
	bound  bool
}

// activeCameras is the implementation of the ActiveCameras interface.
type activeCameras struct {
	mu    sync.RWMutex
	slots []*slot
	index map[string]*slot
}

// ActiveCameras maps named camera slots to the single entity currently driving each slot.
// Slots keep their registration order.
type ActiveCameras interface {
	// Add registers an empty camera slot. Adding an existing slot is a no-op.
	//
	// Parameters:
	//   - name: the slot name, e.g. "camera_3d"
	Add(name string)

	// Set binds an entity to a slot, registering the slot if needed and replacing any
	// previous binding.
	//
	// Parameters:
	//   - name: the slot name
	//   - entity: the camera entity
	Set(name string, entity uint64)

	// Get returns the entity bound to a slot.
	//
	// Parameters:
	//   - name: the slot name
	//
	// Returns:
	//   - uint64: the bound entity
	//   - bool: false if the slot is unknown or empty
	Get(name string) (uint64, bool)

	// Names returns the registered slot names in registration order.
	//
	// Returns:
	//   - []string: the slot names
	Names() []string

	// Remove unregisters a slot.
	//
	// Parameters:
	//   - name: the slot name
	//
	// Returns:
	//   - bool: true if the slot existed
	Remove(name string) bool

	// Update refreshes every slot against the entity store. A slot keeps its entity while
	// that entity still carries a camera with the slot's name; otherwise the first camera
	// entity with a matching name is bound, or the slot is emptied when none exists.
	//
	// Parameters:
	//   - src: the entity store
	Update(src Source)
}

var _ ActiveCameras = &activeCameras{}

// NewActiveCameras creates an ActiveCameras with the given slots registered.
//
// Parameters:
//   - names: the slot names to register
//
// Returns:
//   - ActiveCameras: the slot table
func NewActiveCameras(names ...string) ActiveCameras {
	a := &activeCameras{
		index: make(map[string]*slot),
	}
	for _, n := range names {
		a.Add(n)
	}
	return a
}

func (a *activeCameras) Add(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addLocked(name)
}

func (a *activeCameras) addLocked(name string) *slot {
	if s, ok := a.index[name]; ok {
		return s
	}
	s := &slot{name: name}
	a.slots = append(a.slots, s)
	a.index[name] = s
	return s
}

func (a *activeCameras) Set(name string, entity uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.addLocked(name)
	s.entity, s.bound = entity, true
}

func (a *activeCameras) Get(name string) (uint64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.index[name]
	if !ok || !s.bound {
		return 0, false
	}
	return s.entity, true
}

func (a *activeCameras) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.slots))
	for i, s := range a.slots {
		names[i] = s.name
	}
	return names
}

func (a *activeCameras) Remove(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.index[name]; !ok {
		return false
	}
	delete(a.index, name)
	a.slots = slices.DeleteFunc(a.slots, func(s *slot) bool { return s.name == name })
	return true
}

func (a *activeCameras) Update(src Source) {
	cameras := src.Cameras()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.slots {
		if s.bound {
			if c, ok := src.Camera(s.entity); ok && c.Name == s.name {
				continue
			}
		}
		s.entity, s.bound = 0, false
		for _, e := range cameras {
			if e.Camera.Name == s.name {
				s.entity, s.bound = e.Entity, true
				break
			}
		}
	}
}
