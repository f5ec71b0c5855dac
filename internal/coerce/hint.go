package coerce

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Kind is the base type a Hint describes.
type Kind string

const (
	KindAny    Kind = "any"
	KindString Kind = "str"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindDict   Kind = "dict"
)

// Hint is a parsed type hint.
type Hint struct {
	Kind Kind

	// Elem is the element hint of a list or the value hint of a dict.
	Elem *Hint

	// Optional hints also accept null.
	Optional bool
}

var classPattern = regexp.MustCompile(`<class '([^']*)'>`)

var listNames = map[string]bool{
	"Collection": true, "list": true, "List": true,
	"Sequence": true, "Iterable": true, "tuple": true, "Tuple": true,
}

var dictNames = map[string]bool{"dict": true, "Dict": true, "Mapping": true}

// ParseHint parses a type hint. The empty hint means Any.
func ParseHint(s string) (Hint, error) {
	clean := classPattern.ReplaceAllString(s, "$1")
	clean = strings.ReplaceAll(clean, "typing.", "")
	clean = strings.ReplaceAll(clean, "collections.abc.", "")
	clean = strings.TrimSpace(clean)

	h, err := parseHint(clean)
	if err != nil {
		return Hint{}, fmt.Errorf("parse hint %q: %w", s, err)
	}
	return h, nil
}

func parseHint(s string) (Hint, error) {
	name, args, err := splitGeneric(s)
	if err != nil {
		return Hint{}, err
	}

	switch {
	case name == "" || name == "Any" || name == "object":
		return Hint{Kind: KindAny}, nil
	case name == "str":
		return Hint{Kind: KindString}, nil
	case name == "int":
		return Hint{Kind: KindInt}, nil
	case name == "float":
		return Hint{Kind: KindFloat}, nil
	case name == "bool":
		return Hint{Kind: KindBool}, nil
	case name == "Optional":
		if len(args) != 1 {
			return Hint{}, fmt.Errorf("Optional takes one argument, got %d", len(args))
		}
		inner, err := parseHint(args[0])
		if err != nil {
			return Hint{}, err
		}
		inner.Optional = true
		return inner, nil
	case name == "Union":
		return parseUnion(args)
	case listNames[name]:
		elem := Hint{Kind: KindAny}
		if len(args) > 0 {
			if elem, err = parseHint(args[0]); err != nil {
				return Hint{}, err
			}
		}
		return Hint{Kind: KindList, Elem: &elem}, nil
	case dictNames[name]:
		elem := Hint{Kind: KindAny}
		switch len(args) {
		case 0:
		case 2:
			if key := strings.TrimSpace(args[0]); key != "str" && key != "Any" {
				return Hint{}, fmt.Errorf("dict keys must be str, got %s", key)
			}
			if elem, err = parseHint(args[1]); err != nil {
				return Hint{}, err
			}
		default:
			return Hint{}, fmt.Errorf("dict takes two arguments, got %d", len(args))
		}
		return Hint{Kind: KindDict, Elem: &elem}, nil
	default:
		return Hint{}, fmt.Errorf("unsupported type %q", name)
	}
}

// parseUnion accepts only Union[X, None], which is Optional[X].
func parseUnion(args []string) (Hint, error) {
	var rest []string
	hasNone := false
	for _, a := range args {
		if a == "None" || a == "NoneType" {
			hasNone = true
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) != 1 {
		return Hint{}, fmt.Errorf("only Union[X, None] is supported")
	}
	h, err := parseHint(rest[0])
	if err != nil {
		return Hint{}, err
	}
	h.Optional = h.Optional || hasNone
	return h, nil
}

// splitGeneric splits "Name[a, b[c, d]]" into Name and its top-level arguments.
func splitGeneric(s string) (string, []string, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", nil, fmt.Errorf("unbalanced brackets in %q", s)
	}
	name := strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]

	var args []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return "", nil, fmt.Errorf("unbalanced brackets in %q", s)
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, fmt.Errorf("unbalanced brackets in %q", s)
	}
	if last := strings.TrimSpace(inner[start:]); last != "" {
		args = append(args, last)
	}
	return name, args, nil
}

// String renders the hint in normalized notation.
func (h Hint) String() string {
	var base string
	switch h.Kind {
	case KindAny:
		base = "Any"
	case KindList:
		base = "Collection[" + h.elem().String() + "]"
	case KindDict:
		base = "dict[str, " + h.elem().String() + "]"
	default:
		base = string(h.Kind)
	}
	if h.Optional {
		return "Optional[" + base + "]"
	}
	return base
}

func (h Hint) elem() Hint {
	if h.Elem == nil {
		return Hint{Kind: KindAny}
	}
	return *h.Elem
}

// CtyType returns the cty type values of this hint convert to.
func (h Hint) CtyType() cty.Type {
	switch h.Kind {
	case KindString:
		return cty.String
	case KindInt, KindFloat:
		return cty.Number
	case KindBool:
		return cty.Bool
	case KindList:
		return cty.List(h.elem().CtyType())
	case KindDict:
		return cty.Map(h.elem().CtyType())
	default:
		return cty.DynamicPseudoType
	}
}
