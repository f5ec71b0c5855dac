package interaction

import (
	"fmt"
	"regexp"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

var paramPattern = regexp.MustCompile(`^param\[(.*)\]$`)

// Istr encodes an indirected field reference: the field name is taken from
// the declaring node's parameter called param.
func Istr(param string) string {
	return fmt.Sprintf("param[%s]", param)
}

// FieldRef is a field name that is either literal or indirected through a
// parameter of the node declaring it.
type FieldRef struct {
	Name     string
	Indirect bool
}

// Lit returns a literal field reference.
func Lit(name string) FieldRef {
	return FieldRef{Name: name}
}

// ParamRef returns an indirected field reference.
func ParamRef(param string) FieldRef {
	return FieldRef{Name: param, Indirect: true}
}

// ParseFieldRef decodes the textual encoding produced by Istr. Any string
// that is not of the form param[<name>] is a literal.
func ParseFieldRef(s string) FieldRef {
	if m := paramPattern.FindStringSubmatch(s); m != nil {
		return ParamRef(m[1])
	}
	return Lit(s)
}

// String returns the textual encoding.
func (r FieldRef) String() string {
	if r.Indirect {
		return Istr(r.Name)
	}
	return r.Name
}

// Resolve produces the concrete field name. Literal references return
// themselves; indirected ones read the named parameter from params, which
// must be the parameters of the node that declares the reference.
//
// Resolution is pure. Callers re-resolve after any parameter change.
func (r FieldRef) Resolve(params ir.Object) (string, error) {
	if !r.Indirect {
		return r.Name, nil
	}

	v, ok := params.Get(r.Name)
	if !ok {
		return "", &UnresolvedParameterError{Param: r.Name, Reason: "parameter is not set"}
	}
	s, ok := ir.AsString(v)
	if !ok {
		return "", &UnresolvedParameterError{
			Param:  r.Name,
			Reason: fmt.Sprintf("value of type %T cannot be used as a field name", v),
		}
	}
	if s == "" {
		return "", &UnresolvedParameterError{Param: r.Name, Reason: "value is empty"}
	}
	return s, nil
}
