package interaction

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned by List.Sum for lists of different lengths.
var ErrLengthMismatch = errors.New("interaction lists must have the same number of interactions")

// UnresolvedParameterError reports an indirected field reference whose
// parameter is missing or not usable as a field name.
type UnresolvedParameterError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *UnresolvedParameterError) Error() string {
	return fmt.Sprintf("unresolved parameter %q: %s", e.Param, e.Reason)
}

// IsUnresolvedParameter reports whether err is, or wraps, an UnresolvedParameterError.
func IsUnresolvedParameter(err error) bool {
	var upe *UnresolvedParameterError
	return errors.As(err, &upe)
}
