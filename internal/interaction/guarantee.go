package interaction

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Pair is one resolved (attribute, field) fact.
type Pair struct {
	Attr  Attribute `json:"attribute"`
	Field string    `json:"field"`
}

// String renders the pair as (attr, field).
func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", p.Attr, p.Field)
}

func comparePairs(a, b Pair) int {
	if c := compareAttributes(a.Attr, b.Attr); c != 0 {
		return c
	}
	return strings.Compare(a.Field, b.Field)
}

// GuaranteeSet is the set of facts known to hold at a point in the graph.
// The zero value is an empty, read-only set; use NewGuaranteeSet to build one.
type GuaranteeSet struct {
	pairs map[Pair]struct{}
}

// NewGuaranteeSet builds a set holding the given pairs.
func NewGuaranteeSet(pairs ...Pair) GuaranteeSet {
	g := GuaranteeSet{pairs: make(map[Pair]struct{}, len(pairs))}
	for _, p := range pairs {
		g.pairs[p] = struct{}{}
	}
	return g
}

// Has reports whether p is guaranteed.
func (g GuaranteeSet) Has(p Pair) bool {
	_, ok := g.pairs[p]
	return ok
}

// Len returns the number of guaranteed pairs.
func (g GuaranteeSet) Len() int {
	return len(g.pairs)
}

// Union returns a new set holding the pairs of both sets.
// Neither operand is modified.
func (g GuaranteeSet) Union(other GuaranteeSet) GuaranteeSet {
	out := GuaranteeSet{pairs: make(map[Pair]struct{}, len(g.pairs)+len(other.pairs))}
	for p := range g.pairs {
		out.pairs[p] = struct{}{}
	}
	for p := range other.pairs {
		out.pairs[p] = struct{}{}
	}
	return out
}

// With returns a new set that also holds pairs.
func (g GuaranteeSet) With(pairs ...Pair) GuaranteeSet {
	return g.Union(NewGuaranteeSet(pairs...))
}

// Pairs returns the pairs in canonical order.
func (g GuaranteeSet) Pairs() []Pair {
	out := make([]Pair, 0, len(g.pairs))
	for p := range g.pairs {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePairs)
	return out
}

// Map groups the pairs by attribute with sorted field lists.
func (g GuaranteeSet) Map() map[string][]string {
	out := make(map[string][]string)
	for _, p := range g.Pairs() {
		out[string(p.Attr)] = append(out[string(p.Attr)], p.Field)
	}
	return out
}

// String renders the set as {attr: [fields], ...} in canonical order.
func (g GuaranteeSet) String() string {
	if len(g.pairs) == 0 {
		return "{}"
	}
	grouped := g.Map()
	parts := make([]string, 0, len(grouped))
	for _, a := range Attributes {
		if fields, ok := grouped[string(a)]; ok {
			parts = append(parts, fmt.Sprintf("%s: [%s]", a, strings.Join(fields, ", ")))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the set as an attribute to field-list object.
func (g GuaranteeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Map())
}

// UnmarshalJSON decodes the attribute to field-list form.
func (g *GuaranteeSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewGuaranteeSet()
	for attr, fields := range raw {
		a, err := ParseAttribute(attr)
		if err != nil {
			return err
		}
		for _, f := range fields {
			out.pairs[Pair{Attr: a, Field: f}] = struct{}{}
		}
	}
	*g = out
	return nil
}
