package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidType   = errors.New("invalid node type")
	ErrDuplicateType = errors.New("node type already registered")
	ErrUnknownType   = errors.New("unknown node type")
	ErrUnknownNode   = errors.New("no such node")
)

// AmbiguousTypeError reports a bare type name registered in several modules.
type AmbiguousTypeError struct {
	Name       string
	Candidates []string
}

// Error implements the error interface.
func (e *AmbiguousTypeError) Error() string {
	return fmt.Sprintf("node type %q is ambiguous: %s", e.Name, strings.Join(e.Candidates, ", "))
}
