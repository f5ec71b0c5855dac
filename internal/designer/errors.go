package designer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDefinition reports a structurally broken definition file.
	ErrInvalidDefinition = errors.New("invalid pipeline definition")

	// ErrMissingParameter reports a required parameter with no value.
	ErrMissingParameter = errors.New("required parameter has no value")

	// ErrUnknownParameter reports a value for a parameter the node type does
	// not declare.
	ErrUnknownParameter = errors.New("parameter is not declared by the node type")

	// ErrUnknownNode reports an id that names no node of the definition.
	ErrUnknownNode = errors.New("unknown node")
)

// ParameterInitializationError is returned when a node's parameter cannot be
// bound. Err is the underlying cause, typically a *coerce.CoercionError.
type ParameterInitializationError struct {
	NodeID string
	Param  string
	Hint   string
	Err    error
}

func (e *ParameterInitializationError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("node %s: parameter %s: %v", e.NodeID, e.Param, e.Err)
	}
	return fmt.Sprintf("node %s: parameter %s (%s): %v", e.NodeID, e.Param, e.Hint, e.Err)
}

func (e *ParameterInitializationError) Unwrap() error {
	return e.Err
}

// IsParameterInitialization reports whether err is or wraps a
// ParameterInitializationError.
func IsParameterInitialization(err error) bool {
	var pe *ParameterInitializationError
	return errors.As(err, &pe)
}
