package camera

import (
	"cmp"
	"slices"
	"sync"
)

// Candidate is an entity considered for drawing by a camera.
type Candidate struct {
	Entity uint64
	// Center is the world-space center of the entity's bounding sphere, or its position when
	// HasBounds is false.
	Center [3]float32
	Radius float32
	// HasBounds is false for entities without a bounding sphere; they are never culled.
	HasBounds   bool
	Transparent bool
}

// VisibleEntities is the ordered set of entities a camera draws in one frame.
type VisibleEntities struct {
	// Opaque entities sorted front-to-back.
	Opaque []uint64
	// Transparent entities sorted back-to-front.
	Transparent []uint64
}

// All returns the draw order: opaque entities first, then transparent ones.
func (v VisibleEntities) All() []uint64 {
	out := make([]uint64, 0, len(v.Opaque)+len(v.Transparent))
	out = append(out, v.Opaque...)
	return append(out, v.Transparent...)
}

// Len returns the number of visible entities.
func (v VisibleEntities) Len() int {
	return len(v.Opaque) + len(v.Transparent)
}

// ComputeVisible culls candidates against the camera frustum and sorts the survivors by
// distance to the camera. Equal distances keep candidate order.
//
// Parameters:
//   - c: the camera
//   - candidates: the entities to test
//
// Returns:
//   - VisibleEntities: the visible entities in draw order
func ComputeVisible(c Camera, candidates []Candidate) VisibleEntities {
	type ranked struct {
		entity uint64
		dist   float32
	}

	frustum := c.Frustum()
	var opaque, transparent []ranked
	for _, cand := range candidates {
		if cand.HasBounds && !frustum.ContainsSphere(cand.Center, cand.Radius) {
			continue
		}
		r := ranked{entity: cand.Entity, dist: c.DistanceSquared(cand.Center)}
		if cand.Transparent {
			transparent = append(transparent, r)
		} else {
			opaque = append(opaque, r)
		}
	}

	slices.SortStableFunc(opaque, func(a, b ranked) int { return cmp.Compare(a.dist, b.dist) })
	slices.SortStableFunc(transparent, func(a, b ranked) int { return cmp.Compare(b.dist, a.dist) })

	var v VisibleEntities
	for _, r := range opaque {
		v.Opaque = append(v.Opaque, r.entity)
	}
	for _, r := range transparent {
		v.Transparent = append(v.Transparent, r.entity)
	}
	return v
}

// visibility is the implementation of the Visibility interface.
type visibility struct {
	mu      sync.RWMutex
	cameras map[string]VisibleEntities
}

// Visibility stores the visible entities of every active camera for the current frame.
type Visibility interface {
	// Set stores the visible entities of a camera slot.
	//
	// Parameters:
	//   - camera: the camera slot name
	//   - v: the visible entities
	Set(camera string, v VisibleEntities)

	// Get returns the visible entities of a camera slot.
	//
	// Parameters:
	//   - camera: the camera slot name
	//
	// Returns:
	//   - VisibleEntities: the visible entities
	//   - bool: false if nothing was computed for the camera this frame
	Get(camera string) (VisibleEntities, bool)

	// Reset forgets every camera's visible set.
	Reset()
}

var _ Visibility = &visibility{}

// NewVisibility creates an empty Visibility store.
//
// Returns:
//   - Visibility: the store
func NewVisibility() Visibility {
	return &visibility{cameras: make(map[string]VisibleEntities)}
}

func (v *visibility) Set(camera string, ve VisibleEntities) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cameras[camera] = ve
}

func (v *visibility) Get(camera string) (VisibleEntities, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ve, ok := v.cameras[camera]
	return ve, ok
}

func (v *visibility) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.cameras)
}
