// Package interaction implements the data-contract algebra nodes use to
// declare what they read and what they add.
//
// An Interaction maps container attributes (obs, var, uns, ...) to a set of
// field references and is a conjunction: every listed field must be present.
// A List is a disjunction of Interactions. Requirements are checked against a
// GuaranteeSet, the (attribute, field) pairs known to hold at a node.
//
// Field references may be indirected through the declaring node's own
// parameters:
//
//	req := interaction.NewList(interaction.New(interaction.Obs(interaction.Istr("groupby"))))
//	ok, err := req.IsSatisfiedBy(g, ir.Object{"groupby": ir.String("leiden")})
//
// resolves to requiring (obs, "leiden").
package interaction
