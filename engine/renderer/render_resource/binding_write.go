package render_resource

// BindingWrite is a deferred mutation of a Table. Parallel workers collect writes into a
// slice and a single goroutine merges them with Table.Apply once the workers have joined.
type BindingWrite struct {
	// Scope is the binding set being written.
	Scope Scope
	// Binding is the value to store. Only Binding.Name is read when Remove is set.
	Binding Binding
	// Remove deletes Binding.Name from Scope instead of storing it.
	Remove bool
}
