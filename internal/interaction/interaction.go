package interaction

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// Entry names the fields an Interaction lists for one attribute.
// Fields use the textual encoding: plain names are literal, Istr(...) names
// are indirected.
type Entry struct {
	Attr   Attribute
	Fields []string
}

// Obs lists fields in the row-annotation container.
func Obs(fields ...string) Entry { return Entry{Attr: AttrObs, Fields: fields} }

// Var lists fields in the column-annotation container.
func Var(fields ...string) Entry { return Entry{Attr: AttrVar, Fields: fields} }

// VarNames lists entries of the column index.
func VarNames(fields ...string) Entry { return Entry{Attr: AttrVarNames, Fields: fields} }

// Obsm lists row-aligned matrices.
func Obsm(fields ...string) Entry { return Entry{Attr: AttrObsm, Fields: fields} }

// Varm lists column-aligned matrices.
func Varm(fields ...string) Entry { return Entry{Attr: AttrVarm, Fields: fields} }

// Uns lists unstructured annotations.
func Uns(fields ...string) Entry { return Entry{Attr: AttrUns, Fields: fields} }

// Obsp lists pairwise row annotations.
func Obsp(fields ...string) Entry { return Entry{Attr: AttrObsp, Fields: fields} }

// Layers lists alternative data matrices.
func Layers(fields ...string) Entry { return Entry{Attr: AttrLayers, Fields: fields} }

// Interaction is a conjunction of field references grouped by attribute.
// The zero value is an empty Interaction, which every guarantee set satisfies.
type Interaction struct {
	fields map[Attribute]map[FieldRef]struct{}
}

// New builds an Interaction from entries. Repeated entries for the same
// attribute accumulate. New panics on an attribute outside the fixed set;
// use Parse for untrusted input.
func New(entries ...Entry) Interaction {
	var in Interaction
	for _, e := range entries {
		if !e.Attr.Valid() {
			panic(fmt.Sprintf("interaction: unknown attribute %q", e.Attr))
		}
		for _, f := range e.Fields {
			in.add(e.Attr, ParseFieldRef(f))
		}
	}
	return in
}

// Parse builds an Interaction from an attribute to field-list mapping,
// the form used in JSON and CUE declarations.
func Parse(m map[string][]string) (Interaction, error) {
	var in Interaction
	for attr, fields := range m {
		a, err := ParseAttribute(attr)
		if err != nil {
			return Interaction{}, err
		}
		for _, f := range fields {
			in.add(a, ParseFieldRef(f))
		}
	}
	return in, nil
}

func (in *Interaction) add(a Attribute, ref FieldRef) {
	if in.fields == nil {
		in.fields = make(map[Attribute]map[FieldRef]struct{})
	}
	set, ok := in.fields[a]
	if !ok {
		set = make(map[FieldRef]struct{})
		in.fields[a] = set
	}
	set[ref] = struct{}{}
}

// IsEmpty reports whether no field is listed.
func (in Interaction) IsEmpty() bool {
	for _, set := range in.fields {
		if len(set) > 0 {
			return false
		}
	}
	return true
}

// Attributes returns the attributes with at least one field, in canonical order.
func (in Interaction) Attributes() []Attribute {
	out := make([]Attribute, 0, len(in.fields))
	for _, a := range Attributes {
		if len(in.fields[a]) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Fields returns the references listed for attr, sorted by their encoding.
func (in Interaction) Fields(attr Attribute) []FieldRef {
	set := in.fields[attr]
	out := make([]FieldRef, 0, len(set))
	for ref := range set {
		out = append(out, ref)
	}
	slices.SortFunc(out, func(a, b FieldRef) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// Merge returns the attribute-wise union of in and other.
// Neither operand is modified.
func (in Interaction) Merge(other Interaction) Interaction {
	var out Interaction
	for _, src := range []Interaction{in, other} {
		for a, set := range src.fields {
			for ref := range set {
				out.add(a, ref)
			}
		}
	}
	return out
}

// Covers reports whether in lists every field other lists, attribute by
// attribute. References are compared unresolved.
func (in Interaction) Covers(other Interaction) bool {
	for a, set := range other.fields {
		for ref := range set {
			if _, ok := in.fields[a][ref]; !ok {
				return false
			}
		}
	}
	return true
}

// Equal reports whether both Interactions list exactly the same references.
func (in Interaction) Equal(other Interaction) bool {
	return in.Covers(other) && other.Covers(in)
}

// Resolve turns every reference into a concrete pair using the declaring
// node's params. Pairs come back in canonical order.
func (in Interaction) Resolve(params ir.Object) ([]Pair, error) {
	var out []Pair
	seen := make(map[Pair]struct{})
	for _, a := range in.Attributes() {
		for _, ref := range in.Fields(a) {
			field, err := ref.Resolve(params)
			if err != nil {
				return nil, err
			}
			p := Pair{Attr: a, Field: field}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	slices.SortFunc(out, comparePairs)
	return out, nil
}

// Missing returns the resolved pairs of in that g does not hold.
// in is satisfied by g iff Missing returns no pairs and no error.
func (in Interaction) Missing(g GuaranteeSet, params ir.Object) ([]Pair, error) {
	pairs, err := in.Resolve(params)
	if err != nil {
		return nil, err
	}
	var missing []Pair
	for _, p := range pairs {
		if !g.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// SatisfiedBy reports whether every pair of in is present in g.
func (in Interaction) SatisfiedBy(g GuaranteeSet, params ir.Object) (bool, error) {
	missing, err := in.Missing(g, params)
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}

// Map returns the attribute to encoded-field-list form.
func (in Interaction) Map() map[string][]string {
	out := make(map[string][]string)
	for _, a := range in.Attributes() {
		refs := in.Fields(a)
		fields := make([]string, len(refs))
		for i, ref := range refs {
			fields[i] = ref.String()
		}
		out[string(a)] = fields
	}
	return out
}

// String renders the Interaction as attr=[fields] groups in canonical order.
func (in Interaction) String() string {
	attrs := in.Attributes()
	if len(attrs) == 0 {
		return "{}"
	}
	m := in.Map()
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = fmt.Sprintf("%s=[%s]", a, strings.Join(m[string(a)], ", "))
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the Interaction in its attribute-map form.
func (in Interaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Map())
}

// UnmarshalJSON decodes the attribute-map form.
func (in *Interaction) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*in = parsed
	return nil
}
