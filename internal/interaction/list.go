package interaction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// List is an ordered disjunction of Interactions.
//
// As a requirement, a List is satisfied when any member is satisfied, and an
// empty List is trivially satisfied. As an effect, every member holds
// unconditionally once the node has run, and an empty List guarantees nothing.
type List struct {
	items []Interaction
}

// NewList builds a List from items, preserving order.
func NewList(items ...Interaction) List {
	return List{items: append([]Interaction(nil), items...)}
}

// ParseList builds a List from the attribute-map form of each member.
func ParseList(raw []map[string][]string) (List, error) {
	items := make([]Interaction, 0, len(raw))
	for i, m := range raw {
		in, err := Parse(m)
		if err != nil {
			return List{}, fmt.Errorf("interaction[%d]: %w", i, err)
		}
		items = append(items, in)
	}
	return List{items: items}, nil
}

// Len returns the number of members.
func (l List) Len() int {
	return len(l.items)
}

// IsEmpty reports whether the List has no members.
func (l List) IsEmpty() bool {
	return len(l.items) == 0
}

// IsZero reports whether the List has no members, so `omitzero` fields drop
// empty lists.
func (l List) IsZero() bool {
	return l.IsEmpty()
}

// At returns the i-th member.
func (l List) At(i int) Interaction {
	return l.items[i]
}

// Items returns a copy of the members.
func (l List) Items() []Interaction {
	return append([]Interaction(nil), l.items...)
}

// Product returns the pairwise merge of every (a, b) with a from l and b
// from other, in row-major order; the result has l.Len()*other.Len() members.
// An empty operand acts as the identity and a copy of the other is returned.
func (l List) Product(other List) List {
	if other.IsEmpty() {
		return NewList(l.items...)
	}
	if l.IsEmpty() {
		return NewList(other.items...)
	}
	out := make([]Interaction, 0, len(l.items)*len(other.items))
	for _, a := range l.items {
		for _, b := range other.items {
			out = append(out, a.Merge(b))
		}
	}
	return List{items: out}
}

// Sum merges members position by position. Both lists must have the same
// length.
func (l List) Sum(other List) (List, error) {
	if len(l.items) != len(other.items) {
		return List{}, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(l.items), len(other.items))
	}
	out := make([]Interaction, len(l.items))
	for i := range l.items {
		out[i] = l.items[i].Merge(other.items[i])
	}
	return List{items: out}, nil
}

// UnionEffects aggregates two effect lists by concatenation. Effects are not
// combined with the OR/AND algebra: all of them hold.
func (l List) UnionEffects(other List) List {
	out := make([]Interaction, 0, len(l.items)+len(other.items))
	out = append(out, l.items...)
	out = append(out, other.items...)
	return List{items: out}
}

// Covers reports whether some member of l covers some member of other.
// Every List covers the empty List.
func (l List) Covers(other List) bool {
	if other.IsEmpty() {
		return true
	}
	for _, a := range l.items {
		for _, b := range other.items {
			if a.Covers(b) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether both lists hold equal members in the same order.
func (l List) Equal(other List) bool {
	if len(l.items) != len(other.items) {
		return false
	}
	for i := range l.items {
		if !l.items[i].Equal(other.items[i]) {
			return false
		}
	}
	return true
}

// Branch is the outcome of checking one member against a guarantee set.
type Branch struct {
	Interaction Interaction `json:"interaction"`
	Missing     []Pair      `json:"missing,omitempty"`
}

// Satisfied reports whether nothing is missing.
func (b Branch) Satisfied() bool {
	return len(b.Missing) == 0
}

// Check is the full outcome of evaluating a List as a requirement.
type Check struct {
	Satisfied bool     `json:"satisfied"`
	Branches  []Branch `json:"branches,omitempty"`
}

// Closest returns the branch with the fewest missing pairs, or false when
// there are no branches.
func (c Check) Closest() (Branch, bool) {
	if len(c.Branches) == 0 {
		return Branch{}, false
	}
	best := c.Branches[0]
	for _, b := range c.Branches[1:] {
		if len(b.Missing) < len(best.Missing) {
			best = b
		}
	}
	return best, true
}

// Check evaluates every member against g so that a failure can report what
// each branch lacked. params are the declaring node's parameters.
func (l List) Check(g GuaranteeSet, params ir.Object) (Check, error) {
	if l.IsEmpty() {
		return Check{Satisfied: true}, nil
	}
	c := Check{Branches: make([]Branch, 0, len(l.items))}
	for i, in := range l.items {
		missing, err := in.Missing(g, params)
		if err != nil {
			return Check{}, fmt.Errorf("interaction[%d]: %w", i, err)
		}
		c.Branches = append(c.Branches, Branch{Interaction: in, Missing: missing})
		if len(missing) == 0 {
			c.Satisfied = true
		}
	}
	return c, nil
}

// IsSatisfiedBy reports whether at least one member is satisfied by g.
func (l List) IsSatisfiedBy(g GuaranteeSet, params ir.Object) (bool, error) {
	c, err := l.Check(g, params)
	if err != nil {
		return false, err
	}
	return c.Satisfied, nil
}

// Guarantees resolves an effect list into the facts it establishes: the
// union of every member's pairs.
func (l List) Guarantees(params ir.Object) (GuaranteeSet, error) {
	g := NewGuaranteeSet()
	for i, in := range l.items {
		pairs, err := in.Resolve(params)
		if err != nil {
			return GuaranteeSet{}, fmt.Errorf("interaction[%d]: %w", i, err)
		}
		for _, p := range pairs {
			g.pairs[p] = struct{}{}
		}
	}
	return g, nil
}

// Describe renders the List as a disjunction, e.g. "obs=[groups] OR obs=[leiden]".
func (l List) Describe() string {
	if l.IsEmpty() {
		return "(none)"
	}
	parts := make([]string, len(l.items))
	for i, in := range l.items {
		parts[i] = in.String()
	}
	return strings.Join(parts, " OR ")
}

// String implements fmt.Stringer.
func (l List) String() string {
	return l.Describe()
}

// Maps returns the attribute-map form of every member.
func (l List) Maps() []map[string][]string {
	out := make([]map[string][]string, len(l.items))
	for i, in := range l.items {
		out[i] = in.Map()
	}
	return out
}

// MarshalJSON encodes the List as an array of attribute maps.
func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Maps())
}

// UnmarshalJSON decodes an array of attribute maps.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseList(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
