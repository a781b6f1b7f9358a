package cmdtree

import "fmt"

// UnresolvedVariableError reports a [Variable] with no binding during
// [Resolve]. Construction-time: fix the bindings, do not retry.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("cmdtree: no binding for variable %q", e.Name)
}

// DuplicateVariableError reports two distinct [Variable] instances
// sharing one name in a single tree.
type DuplicateVariableError struct {
	Name string
}

func (e *DuplicateVariableError) Error() string {
	return fmt.Sprintf(
		"cmdtree: variable name %q occurs in two separate objects", e.Name,
	)
}

// NotGroundError reports a node that is neither a string nor a
// command node in a tree about to be executed.
type NotGroundError struct {
	Kind string
}

func (e *NotGroundError) Error() string {
	return fmt.Sprintf(
		"cmdtree: tree is not ground, found node of type %s", e.Kind,
	)
}
