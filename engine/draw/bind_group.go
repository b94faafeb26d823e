package draw

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/render_resource"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// BindGroupEntry is one resolved binding inside a BindGroup.
type BindGroupEntry struct {
	Binding  uint32
	Name     string
	Resource render_resource.ResourceID
	Size     uint64
}

// BindGroup is the set of resources bound to one @group index.
type BindGroup struct {
	Group   uint32
	Entries []BindGroupEntry
	// DynamicOffsets holds one offset per dynamic-offset entry, in binding order.
	DynamicOffsets []uint32
}

// Resolver looks up the binding a shader resource name refers to.
type Resolver func(name string) (render_resource.Binding, error)

// ResolveBindGroups resolves every reflected binding of a pipeline and groups the results by
// @group index. Layouts must be sorted by group then binding, as compiled pipelines are.
// Every failed lookup is reported; resolution continues past missing bindings so all of them
// surface at once.
//
// Parameters:
//   - layouts: the reflected bindings of a compiled pipeline
//   - resolve: the lookup for each binding name
//
// Returns:
//   - []BindGroup: the bind groups in ascending group order
//   - error: the joined lookup errors, or nil
func ResolveBindGroups(layouts []shader.BindingLayout, resolve Resolver) ([]BindGroup, error) {
	var (
		groups []BindGroup
		errs   []error
	)
	for _, l := range layouts {
		b, err := resolve(l.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(groups) == 0 || groups[len(groups)-1].Group != l.Group {
			groups = append(groups, BindGroup{Group: l.Group})
		}
		g := &groups[len(groups)-1]
		g.Entries = append(g.Entries, BindGroupEntry{
			Binding:  l.Binding,
			Name:     l.Name,
			Resource: b.Resource,
			Size:     b.Size,
		})
		if l.Entry.Buffer.HasDynamicOffset {
			g.DynamicOffsets = append(g.DynamicOffsets, 0)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return groups, nil
}

// MissingBindings returns the names of every missing binding reported in err, including
// errors joined by ResolveBindGroups.
func MissingBindings(err error) []string {
	var names []string
	var walk func(error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var missing *render_resource.MissingBindingError
		if errors.As(e, &missing) {
			names = append(names, missing.Name)
		}
	}
	if err != nil {
		walk(err)
	}
	return names
}
