package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// ModelBinding is the entity-scoped binding holding an entity's model matrix.
const ModelBinding = "model"

// modelUniformSize is the size of one column-major 4x4 float32 matrix.
const modelUniformSize = 64

// uniformProvider is the implementation of the UniformProvider interface.
type uniformProvider struct {
	mu        *sync.Mutex
	backend   Backend
	cameras   map[string]render_resource.ResourceID
	models    map[uint64]render_resource.ResourceID
	materials map[uint64]render_resource.ResourceID

	lights     render_resource.ResourceID
	lightsSize uint64
}

// UniformProvider owns the per-frame uniform buffers: one view uniform per active camera slot,
// published globally under the slot name, one model matrix and optional material per entity,
// published in the entity scope, and the light storage buffer published globally under
// light.Binding. Buffers are created on first use and rewritten each frame.
type UniformProvider interface {
	// PrepareCamera writes the view uniform of a camera slot. An empty slot releases its buffer
	// and removes the binding so the camera node produces nothing.
	//
	// Parameters:
	//   - slot: the active camera slot name
	//   - cam: the camera bound to the slot
	//   - active: false if the slot has no camera this frame
	//
	// Returns:
	//   - []render_resource.BindingWrite: the global binding update
	//   - error: an upload error
	PrepareCamera(slot string, cam camera.Camera, active bool) ([]render_resource.BindingWrite, error)

	// PrepareModel writes the model matrix of an entity, a translation to position.
	//
	// Parameters:
	//   - entity: the entity id
	//   - position: the entity position
	//
	// Returns:
	//   - []render_resource.BindingWrite: the entity binding update
	//   - error: an upload error
	PrepareModel(entity uint64, position [3]float32) ([]render_resource.BindingWrite, error)

	// PrepareMaterial writes the material uniform of an entity, published in the entity scope
	// under material.Binding.
	//
	// Parameters:
	//   - entity: the entity id
	//   - m: the entity material
	//
	// Returns:
	//   - []render_resource.BindingWrite: the entity binding update
	//   - error: an upload error
	PrepareMaterial(entity uint64, m material.Material) ([]render_resource.BindingWrite, error)

	// Retain releases the model buffers of every entity not in models and the material buffers
	// of every entity not in materials.
	//
	// Parameters:
	//   - models: the entities still drawn
	//   - materials: the drawn entities still carrying a material
	//
	// Returns:
	//   - []render_resource.BindingWrite: removals for the released buffers
	Retain(models, materials map[uint64]struct{}) []render_resource.BindingWrite

	// PrepareLights packs the lights into the light storage buffer, growing it when the light
	// count exceeds its capacity. The binding is always published so lit shaders resolve it
	// even when no light exists.
	//
	// Parameters:
	//   - ambient: the ambient color
	//   - lights: the lights, at most light.MaxGPULights are packed
	//
	// Returns:
	//   - []render_resource.BindingWrite: the global binding update
	//   - error: an upload error
	PrepareLights(ambient [3]float32, lights []light.GPULight) ([]render_resource.BindingWrite, error)

	// Release frees every buffer.
	Release()
}

var _ UniformProvider = &uniformProvider{}

// NewUniformProvider creates a uniform provider allocating through backend.
//
// Parameters:
//   - backend: the backend owning the buffers
//
// Returns:
//   - UniformProvider: the provider
func NewUniformProvider(backend Backend) UniformProvider {
	return &uniformProvider{
		mu:        &sync.Mutex{},
		backend:   backend,
		cameras:   make(map[string]render_resource.ResourceID),
		models:    make(map[uint64]render_resource.ResourceID),
		materials: make(map[uint64]render_resource.ResourceID),
	}
}

// bufferFor returns the buffer stored under key in m, creating it when missing.
func bufferFor[K comparable](p *uniformProvider, m map[K]render_resource.ResourceID, key K, label string, size uint64) (render_resource.ResourceID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := m[key]; ok {
		return id, nil
	}
	id, err := p.backend.CreateBuffer(label, wgpu.BufferUsageUniform, size, nil)
	if err != nil {
		return render_resource.ResourceID{}, err
	}
	m[key] = id
	return id, nil
}

func (p *uniformProvider) PrepareCamera(slot string, cam camera.Camera, active bool) ([]render_resource.BindingWrite, error) {
	global := render_resource.GlobalScope()
	if !active {
		p.mu.Lock()
		id, ok := p.cameras[slot]
		delete(p.cameras, slot)
		p.mu.Unlock()
		if ok {
			p.backend.ReleaseResource(id)
		}
		return []render_resource.BindingWrite{{Scope: global, Binding: render_resource.Binding{Name: slot}, Remove: true}}, nil
	}

	id, err := bufferFor(p, p.cameras, slot, slot+" Camera Uniform", camera.GPUCameraUniformSize)
	if err != nil {
		return nil, err
	}
	u := cam.Uniform()
	if err := p.backend.WriteBuffer(id, 0, u.Marshal()); err != nil {
		return nil, err
	}
	return []render_resource.BindingWrite{{
		Scope:   global,
		Binding: render_resource.Binding{Name: slot, Resource: id, Size: camera.GPUCameraUniformSize},
	}}, nil
}

func (p *uniformProvider) PrepareModel(entity uint64, position [3]float32) ([]render_resource.BindingWrite, error) {
	id, err := bufferFor(p, p.models, entity, "Model Uniform", modelUniformSize)
	if err != nil {
		return nil, err
	}
	var m [16]float32
	common.Identity(m[:])
	m[12], m[13], m[14] = position[0], position[1], position[2]
	if err := p.backend.WriteBuffer(id, 0, common.SliceToBytes(m[:])); err != nil {
		return nil, err
	}
	return []render_resource.BindingWrite{{
		Scope:   render_resource.EntityScope(entity),
		Binding: render_resource.Binding{Name: ModelBinding, Resource: id, Size: modelUniformSize},
	}}, nil
}

func (p *uniformProvider) PrepareMaterial(entity uint64, m material.Material) ([]render_resource.BindingWrite, error) {
	id, err := bufferFor(p, p.materials, entity, "Material Uniform", material.GPUMaterialSize)
	if err != nil {
		return nil, err
	}
	g := m.GPU()
	if err := p.backend.WriteBuffer(id, 0, g.Marshal()); err != nil {
		return nil, err
	}
	return []render_resource.BindingWrite{{
		Scope:   render_resource.EntityScope(entity),
		Binding: render_resource.Binding{Name: material.Binding, Resource: id, Size: material.GPUMaterialSize},
	}}, nil
}

func (p *uniformProvider) Retain(models, materials map[uint64]struct{}) []render_resource.BindingWrite {
	p.mu.Lock()
	defer p.mu.Unlock()

	writes := p.retainLocked(p.models, models, ModelBinding)
	return append(writes, p.retainLocked(p.materials, materials, material.Binding)...)
}

// retainLocked releases every buffer in m whose entity is not in keep and returns the removal
// of its binding.
func (p *uniformProvider) retainLocked(m map[uint64]render_resource.ResourceID, keep map[uint64]struct{}, name string) []render_resource.BindingWrite {
	var writes []render_resource.BindingWrite
	for entity, id := range m {
		if _, ok := keep[entity]; ok {
			continue
		}
		p.backend.ReleaseResource(id)
		delete(m, entity)
		writes = append(writes, render_resource.BindingWrite{
			Scope:   render_resource.EntityScope(entity),
			Binding: render_resource.Binding{Name: name},
			Remove:  true,
		})
	}
	return writes
}

func (p *uniformProvider) PrepareLights(ambient [3]float32, lights []light.GPULight) ([]render_resource.BindingWrite, error) {
	data := light.Pack(ambient, lights)
	size := uint64(len(data))

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lights.Valid() || size > p.lightsSize {
		if p.lights.Valid() {
			p.backend.ReleaseResource(p.lights)
		}
		// Capacity doubles on growth.
		capacity := max(size, 2*p.lightsSize)
		id, err := p.backend.CreateBuffer("Light Storage", wgpu.BufferUsageStorage, capacity, nil)
		if err != nil {
			p.lights, p.lightsSize = render_resource.ResourceID{}, 0
			return nil, err
		}
		p.lights, p.lightsSize = id, capacity
	}
	if err := p.backend.WriteBuffer(p.lights, 0, data); err != nil {
		return nil, err
	}
	return []render_resource.BindingWrite{{
		Scope:   render_resource.GlobalScope(),
		Binding: render_resource.Binding{Name: light.Binding, Resource: p.lights, Size: p.lightsSize},
	}}, nil
}

func (p *uniformProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lights.Valid() {
		p.backend.ReleaseResource(p.lights)
		p.lights, p.lightsSize = render_resource.ResourceID{}, 0
	}
	for slot, id := range p.cameras {
		p.backend.ReleaseResource(id)
		delete(p.cameras, slot)
	}
	for _, m := range []map[uint64]render_resource.ResourceID{p.models, p.materials} {
		for entity, id := range m {
			p.backend.ReleaseResource(id)
			delete(m, entity)
		}
	}
}
