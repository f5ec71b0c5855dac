package interaction

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

func clusterings() List {
	return NewList(
		New(Obs("groups")),
		New(Obs("leiden")),
		New(Obs("louvain")),
	)
}

func TestListThreeWayOr(t *testing.T) {
	req := clusterings()

	for _, field := range []string{"groups", "leiden", "louvain"} {
		t.Run(field, func(t *testing.T) {
			ok, err := req.IsSatisfiedBy(NewGuaranteeSet(Pair{AttrObs, field}), nil)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	t.Run("none", func(t *testing.T) {
		ok, err := req.IsSatisfiedBy(NewGuaranteeSet(Pair{AttrObs, "batch"}), nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListCheckEvaluatesAllBranches(t *testing.T) {
	c, err := clusterings().Check(NewGuaranteeSet(Pair{AttrObs, "louvain"}), nil)
	require.NoError(t, err)

	assert.True(t, c.Satisfied)
	require.Len(t, c.Branches, 3)
	assert.False(t, c.Branches[0].Satisfied())
	assert.False(t, c.Branches[1].Satisfied())
	assert.True(t, c.Branches[2].Satisfied())
}

func TestListCheckClosest(t *testing.T) {
	req := NewList(
		New(Obs("leiden"), Uns("neighbors"), Obsm("X_pca")),
		New(Obs("louvain"), Uns("neighbors")),
	)

	c, err := req.Check(NewGuaranteeSet(Pair{AttrUns, "neighbors"}), nil)
	require.NoError(t, err)
	assert.False(t, c.Satisfied)

	best, ok := c.Closest()
	require.True(t, ok)
	assert.Equal(t, []Pair{{AttrObs, "louvain"}}, best.Missing)
}

func TestEmptyListSemantics(t *testing.T) {
	var req List
	ok, err := req.IsSatisfiedBy(GuaranteeSet{}, nil)
	require.NoError(t, err)
	assert.True(t, ok, "an empty requirement list is trivially satisfied")

	var effects List
	g, err := effects.Guarantees(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len(), "an empty effect list guarantees nothing")
}

func TestListProductCardinality(t *testing.T) {
	extra := NewList(New(Uns("neighbors")))

	prod := clusterings().Product(extra)

	require.Equal(t, 3, prod.Len())
	for i, base := range []string{"groups", "leiden", "louvain"} {
		assert.Equal(t, map[string][]string{
			"obs": {base},
			"uns": {"neighbors"},
		}, prod.At(i).Map())
	}

	twoByThree := NewList(New(Var("a")), New(Var("b"))).Product(clusterings())
	assert.Equal(t, 6, twoByThree.Len())
}

func TestListProductEmptyOperandIsIdentity(t *testing.T) {
	base := clusterings()

	assert.True(t, base.Product(List{}).Equal(base))
	assert.True(t, List{}.Product(base).Equal(base))
}

func TestListProductSemantics(t *testing.T) {
	req := clusterings().Product(NewList(New(Uns("neighbors"))))

	ok, err := req.IsSatisfiedBy(NewGuaranteeSet(Pair{AttrObs, "leiden"}), nil)
	require.NoError(t, err)
	assert.False(t, ok, "the shared extra condition applies to every branch")

	ok, err = req.IsSatisfiedBy(NewGuaranteeSet(Pair{AttrObs, "leiden"}, Pair{AttrUns, "neighbors"}), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListSum(t *testing.T) {
	a := NewList(New(Obs("a")), New(Obs("b")))
	b := NewList(New(Uns("x")), New(Uns("y")))

	sum, err := a.Sum(b)
	require.NoError(t, err)

	want := []map[string][]string{
		{"obs": {"a"}, "uns": {"x"}},
		{"obs": {"b"}, "uns": {"y"}},
	}
	if diff := cmp.Diff(want, sum.Maps()); diff != "" {
		t.Errorf("Sum mismatch (-want +got):\n%s", diff)
	}

	_, err = a.Sum(NewList(New(Uns("x"))))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestListUnionEffects(t *testing.T) {
	a := NewList(New(Var("coverage")))
	b := NewList(New(Uns("neighbors")), New(Obs("leiden")))

	u := a.UnionEffects(b)
	assert.Equal(t, 3, u.Len())

	g, err := u.Guarantees(nil)
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{AttrObs, "leiden"},
		{AttrVar, "coverage"},
		{AttrUns, "neighbors"},
	}, g.Pairs())
}

func TestListCovers(t *testing.T) {
	produced := NewList(New(Obs("leiden"), Uns("neighbors")))

	assert.True(t, produced.Covers(clusterings()))
	assert.True(t, produced.Covers(List{}))
	assert.False(t, NewList(New(Obs("batch"))).Covers(clusterings()))
}

func TestListCheckUnresolved(t *testing.T) {
	req := NewList(New(Obs(Istr("groupby"))))

	_, err := req.Check(NewGuaranteeSet(), ir.Object{})
	require.Error(t, err)
	assert.True(t, IsUnresolvedParameter(err))
}

func TestListDescribe(t *testing.T) {
	assert.Equal(t, "obs=[groups] OR obs=[leiden] OR obs=[louvain]", clusterings().Describe())
	assert.Equal(t, "(none)", List{}.Describe())
}

func TestListJSON(t *testing.T) {
	data, err := json.Marshal(clusterings())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"obs":["groups"]},{"obs":["leiden"]},{"obs":["louvain"]}]`, string(data))

	var back List
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(clusterings()))
}

func TestGuaranteeSetUnionDoesNotMutate(t *testing.T) {
	a := NewGuaranteeSet(Pair{AttrObs, "leiden"})
	b := NewGuaranteeSet(Pair{AttrUns, "neighbors"})

	u := a.Union(b)

	assert.Equal(t, 2, u.Len())
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, "{obs: [leiden], uns: [neighbors]}", u.String())
}

func TestGuaranteeSetJSON(t *testing.T) {
	g := NewGuaranteeSet(Pair{AttrObs, "leiden"}, Pair{AttrObs, "batch"})

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"obs":["batch","leiden"]}`, string(data))

	var back GuaranteeSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Pairs(), back.Pairs())
}
