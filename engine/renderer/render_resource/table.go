package render_resource

import (
	"cmp"
	"slices"
	"sync"
)

// table is the implementation of the Table interface.
type table struct {
	mu     sync.RWMutex
	scopes map[Scope]map[string]Binding
}

// Table is the Render Resource Binding Set: named GPU resource bindings split into a global
// scope plus per-asset, per-entity and per-node scopes. Lookups through Resolve fall back
// from the requested scope to the global scope.
//
// Resource provisioning mutates the table each frame before graph execution; during graph
// execution the table is read-only except for node scopes written by the executor.
type Table interface {
	// Set stores a binding in a scope, replacing any binding with the same name.
	//
	// Parameters:
	//   - scope: the scope to write
	//   - b: the binding to store; b.Name is the key
	Set(scope Scope, b Binding)

	// Get returns the binding stored under name in exactly the given scope.
	//
	// Parameters:
	//   - scope: the scope to read
	//   - name: the binding name
	//
	// Returns:
	//   - Binding: the binding, or the zero value if absent
	//   - bool: true if the binding exists in scope
	Get(scope Scope, name string) (Binding, bool)

	// Resolve returns the binding visible from scope: the scope's own binding if present,
	// otherwise the global binding of the same name.
	//
	// Parameters:
	//   - scope: the scope to resolve from
	//   - name: the binding name
	//
	// Returns:
	//   - Binding: the resolved binding
	//   - error: a *MissingBindingError if neither scope defines name
	Resolve(scope Scope, name string) (Binding, error)

	// Remove deletes a binding from a scope.
	//
	// Parameters:
	//   - scope: the scope to modify
	//   - name: the binding name
	//
	// Returns:
	//   - bool: true if a binding was removed
	Remove(scope Scope, name string) bool

	// ClearScope removes every binding in a scope.
	//
	// Parameters:
	//   - scope: the scope to clear
	ClearScope(scope Scope)

	// ClearNodeScopes removes the outputs of every render graph node.
	// Called before each graph execution so a frame starts from a clean binding set.
	ClearNodeScopes()

	// Bindings returns a copy of the bindings stored in scope sorted by name.
	//
	// Parameters:
	//   - scope: the scope to list
	//
	// Returns:
	//   - []Binding: the bindings of the scope
	Bindings(scope Scope) []Binding

	// DynamicBindings returns the sorted names of dynamic bindings visible from scope,
	// taking scope bindings over global ones of the same name.
	//
	// Parameters:
	//   - scope: the scope to resolve from
	//
	// Returns:
	//   - []string: the dynamic binding names
	DynamicBindings(scope Scope) []string

	// Apply merges deferred writes in order under a single lock.
	//
	// Parameters:
	//   - writes: the writes collected by parallel workers
	Apply(writes []BindingWrite)

	// Len returns the total number of bindings across all scopes.
	Len() int
}

var _ Table = &table{}

// NewTable creates an empty binding table.
//
// Returns:
//   - Table: the new table
func NewTable() Table {
	return &table{
		scopes: make(map[Scope]map[string]Binding),
	}
}

func (t *table) Set(scope Scope, b Binding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(scope, b)
}

func (t *table) setLocked(scope Scope, b Binding) {
	set, ok := t.scopes[scope]
	if !ok {
		set = make(map[string]Binding)
		t.scopes[scope] = set
	}
	set[b.Name] = b
}

func (t *table) Get(scope Scope, name string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.scopes[scope][name]
	return b, ok
}

func (t *table) Resolve(scope Scope, name string) (Binding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if b, ok := t.scopes[scope][name]; ok {
		return b, nil
	}
	if b, ok := t.scopes[GlobalScope()][name]; ok {
		return b, nil
	}
	return Binding{}, &MissingBindingError{Scope: scope, Name: name}
}

func (t *table) Remove(scope Scope, name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(scope, name)
}

func (t *table) removeLocked(scope Scope, name string) bool {
	set, ok := t.scopes[scope]
	if !ok {
		return false
	}
	if _, ok := set[name]; !ok {
		return false
	}
	delete(set, name)
	if len(set) == 0 {
		delete(t.scopes, scope)
	}
	return true
}

func (t *table) ClearScope(scope Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scopes, scope)
}

func (t *table) ClearNodeScopes() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.scopes {
		if s.Kind == ScopeKindNode {
			delete(t.scopes, s)
		}
	}
}

func (t *table) Bindings(scope Scope) []Binding {
	t.mu.RLock()
	set := t.scopes[scope]
	out := make([]Binding, 0, len(set))
	for _, b := range set {
		out = append(out, b)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Binding) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func (t *table) DynamicBindings(scope Scope) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	visible := make(map[string]bool)
	for name, b := range t.scopes[GlobalScope()] {
		visible[name] = b.Dynamic
	}
	if scope != GlobalScope() {
		for name, b := range t.scopes[scope] {
			visible[name] = b.Dynamic
		}
	}

	var names []string
	for name, dynamic := range visible {
		if dynamic {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (t *table) Apply(writes []BindingWrite) {
	if len(writes) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range writes {
		if w.Remove {
			t.removeLocked(w.Scope, w.Binding.Name)
			continue
		}
		t.setLocked(w.Scope, w.Binding)
	}
}

func (t *table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, set := range t.scopes {
		n += len(set)
	}
	return n
}
