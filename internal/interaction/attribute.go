package interaction

import "fmt"

// Attribute names one container on an annotated dataset.
type Attribute string

// The fixed attribute set. Declaration order is the canonical display order.
const (
	AttrObs      Attribute = "obs"
	AttrVar      Attribute = "var"
	AttrVarNames Attribute = "var_names"
	AttrObsm     Attribute = "obsm"
	AttrVarm     Attribute = "varm"
	AttrUns      Attribute = "uns"
	AttrObsp     Attribute = "obsp"
	AttrLayers   Attribute = "layers"
)

// Attributes lists every valid attribute in canonical order.
var Attributes = []Attribute{
	AttrObs, AttrVar, AttrVarNames, AttrObsm, AttrVarm, AttrUns, AttrObsp, AttrLayers,
}

var attributeRank = func() map[Attribute]int {
	m := make(map[Attribute]int, len(Attributes))
	for i, a := range Attributes {
		m[a] = i
	}
	return m
}()

// ParseAttribute validates an attribute name.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(s)
	if _, ok := attributeRank[a]; !ok {
		return "", fmt.Errorf("unknown attribute %q: must be one of %v", s, Attributes)
	}
	return a, nil
}

// Valid reports whether a is one of the fixed attributes.
func (a Attribute) Valid() bool {
	_, ok := attributeRank[a]
	return ok
}

func compareAttributes(a, b Attribute) int {
	return attributeRank[a] - attributeRank[b]
}
