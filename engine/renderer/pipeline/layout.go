package pipeline

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/vertex_layout"
)

// mergeBindings combines the bindings of several stages into one list sorted by group and
// binding. A slot declared by more than one stage must name the same resource of the same
// kind; its visibility becomes the union of the stages.
func mergeBindings(stages ...[]shader.BindingLayout) ([]shader.BindingLayout, error) {
	type slot struct{ group, binding uint32 }

	index := make(map[slot]int)
	var merged []shader.BindingLayout
	for _, bindings := range stages {
		for _, b := range bindings {
			key := slot{b.Group, b.Binding}
			i, ok := index[key]
			if !ok {
				index[key] = len(merged)
				merged = append(merged, b)
				continue
			}
			existing := &merged[i]
			if existing.Name != b.Name || existing.Kind != b.Kind {
				return nil, fmt.Errorf("%w: @group(%d) @binding(%d) declared as %s %q and %s %q",
					ErrBindingConflict, b.Group, b.Binding, existing.Kind, existing.Name, b.Kind, b.Name)
			}
			existing.Entry.Visibility |= b.Entry.Visibility
		}
	}
	slices.SortFunc(merged, func(a, b shader.BindingLayout) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})
	return merged, nil
}

// markDynamic enables dynamic offsets on the buffer bindings named in dynamic.
func markDynamic(bindings []shader.BindingLayout, dynamic []string) {
	for i := range bindings {
		if slices.Contains(dynamic, bindings[i].Name) && bindings[i].Kind == render_resource.ResourceKindBuffer {
			bindings[i].Entry.Buffer.HasDynamicOffset = true
		}
	}
}

// matchVertexLayout builds the layout a pipeline is created with: the attributes of layout
// that the shader consumes, matched by name and placed at the shader's locations. Offsets and
// stride come from the mesh layout so the mesh buffer is bound unchanged.
func matchVertexLayout(inputs []shader.VertexInput, layout vertex_layout.VertexBufferLayout) (vertex_layout.VertexBufferLayout, error) {
	out := vertex_layout.VertexBufferLayout{
		Name:       layout.Name,
		Stride:     layout.Stride,
		StepMode:   layout.StepMode,
		Attributes: make([]vertex_layout.VertexAttribute, 0, len(inputs)),
	}
	for _, in := range inputs {
		attr, ok := layout.Attribute(in.Name)
		if !ok {
			return vertex_layout.VertexBufferLayout{}, fmt.Errorf("%w: shader input %q (location %d) not in layout %q",
				ErrMissingVertexAttribute, in.Name, in.Location, layout.Name)
		}
		if attr.Format != in.Format {
			return vertex_layout.VertexBufferLayout{}, fmt.Errorf("pipeline: vertex attribute %q has format %v, shader expects %v",
				in.Name, attr.Format, in.Format)
		}
		attr.ShaderLocation = in.Location
		out.Attributes = append(out.Attributes, attr)
	}
	return out, nil
}
