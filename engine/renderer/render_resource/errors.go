package render_resource

import (
	"errors"
	"fmt"
)

// ErrMissingBinding is matched by every MissingBindingError.
var ErrMissingBinding = errors.New("render_resource: missing binding")

// MissingBindingError reports a binding name that could not be resolved from a scope.
type MissingBindingError struct {
	Scope Scope
	Name  string
}

func (e *MissingBindingError) Error() string {
	return fmt.Sprintf("render_resource: missing binding %q in %s", e.Name, e.Scope)
}

func (e *MissingBindingError) Is(target error) bool {
	return target == ErrMissingBinding
}
