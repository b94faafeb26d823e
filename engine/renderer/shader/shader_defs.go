package shader

import (
	"slices"
)

// ShaderDefs is the per-entity set of shader preprocessor defines for the current frame.
// Materials and other systems add defines while preparing a frame; the frame driver calls
// Reset once the frame has been rendered. The zero value is an empty set ready for use.
type ShaderDefs struct {
	defs map[string]struct{}
}

// Add inserts defines into the set. Empty names are ignored.
func (d *ShaderDefs) Add(names ...string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if d.defs == nil {
			d.defs = make(map[string]struct{}, len(names))
		}
		d.defs[n] = struct{}{}
	}
}

// Has reports whether a define is present.
func (d *ShaderDefs) Has(name string) bool {
	_, ok := d.defs[name]
	return ok
}

// Len returns the number of defines.
func (d *ShaderDefs) Len() int {
	return len(d.defs)
}

// List returns the defines in sorted order.
func (d *ShaderDefs) List() []string {
	if len(d.defs) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.defs))
	for n := range d.defs {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Reset clears all defines. The backing map is kept to avoid reallocating every frame.
func (d *ShaderDefs) Reset() {
	clear(d.defs)
}
