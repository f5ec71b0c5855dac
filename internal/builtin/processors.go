package builtin

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// maxLabelRounds bounds label propagation when n_iterations is negative.
const maxLabelRounds = 100

func readDataset(_ context.Context, _ []any, params ir.Object) (any, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	return LoadDataset(path)
}

func writeDataset(_ context.Context, inputs []any, params ir.Object) (any, error) {
	ds, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}
	path, err := stringParam(params, "save")
	if err != nil {
		return nil, err
	}
	return nil, ds.Save(path)
}

func calculateCoverage(_ context.Context, inputs []any, _ ir.Object) (any, error) {
	ds, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}

	coverage := make([]any, ds.NumVars())
	for j := range coverage {
		detected := 0
		for _, row := range ds.X {
			if row[j] != 0 {
				detected++
			}
		}
		frac := 0.0
		if ds.NumObs() > 0 {
			frac = float64(detected) / float64(ds.NumObs())
		}
		coverage[j] = frac
	}
	ds.Set(interaction.AttrVar, "coverage", coverage)
	return ds, nil
}

func computeNeighbors(ctx context.Context, inputs []any, params ir.Object) (any, error) {
	ds, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}
	k, err := intParam(params, "n_neighbors")
	if err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("n_neighbors must be positive, got %d", k)
	}
	k = min(k, max(ds.NumObs()-1, 0))

	type candidate struct {
		idx  int
		dist float64
	}
	indices := make([]any, ds.NumObs())
	for i, row := range ds.X {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands := make([]candidate, 0, ds.NumObs()-1)
		for j, other := range ds.X {
			if j != i {
				cands = append(cands, candidate{j, euclidean(row, other)})
			}
		}
		slices.SortFunc(cands, func(a, b candidate) int {
			if c := cmp.Compare(a.dist, b.dist); c != 0 {
				return c
			}
			return cmp.Compare(a.idx, b.idx)
		})
		nearest := make([]any, k)
		for n := range nearest {
			nearest[n] = float64(cands[n].idx)
		}
		indices[i] = nearest
	}

	ds.Set(interaction.AttrUns, "neighbors", map[string]any{
		"n_neighbors": float64(k),
		"indices":     indices,
	})
	return ds, nil
}

func leiden(ctx context.Context, inputs []any, params ir.Object) (any, error) {
	ds, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}
	key, err := stringParam(params, "key_added")
	if err != nil {
		return nil, err
	}
	rounds, err := intParam(params, "n_iterations")
	if err != nil {
		return nil, err
	}
	if rounds < 0 {
		rounds = maxLabelRounds
	}
	adj, err := neighborGraph(ds)
	if err != nil {
		return nil, err
	}

	labels := make([]int, ds.NumObs())
	for i := range labels {
		labels[i] = i
	}
	for round := 0; round < rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := false
		for i, nbrs := range adj {
			if len(nbrs) == 0 {
				continue
			}
			if best := majorityLabel(labels, nbrs); best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Renumber clusters in order of first appearance.
	renamed := make(map[int]string)
	out := make([]any, len(labels))
	for i, l := range labels {
		name, ok := renamed[l]
		if !ok {
			name = strconv.Itoa(len(renamed))
			renamed[l] = name
		}
		out[i] = name
	}
	ds.Set(interaction.AttrObs, key, out)
	return ds, nil
}

// neighborGraph symmetrises the kNN indices stored by computeNeighbors.
func neighborGraph(ds *Dataset) ([][]int, error) {
	raw, ok := ds.Get(interaction.AttrUns, "neighbors")
	if !ok {
		return nil, fmt.Errorf("dataset has no neighbor graph")
	}
	nb, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("uns.neighbors has type %T", raw)
	}
	rows, ok := nb["indices"].([]any)
	if !ok || len(rows) != ds.NumObs() {
		return nil, fmt.Errorf("uns.neighbors.indices does not cover every cell")
	}

	linked := make([]map[int]bool, ds.NumObs())
	for i := range linked {
		linked[i] = make(map[int]bool)
	}
	for i, row := range rows {
		idx, ok := row.([]any)
		if !ok {
			return nil, fmt.Errorf("uns.neighbors.indices[%d] has type %T", i, row)
		}
		for _, v := range idx {
			f, ok := v.(float64)
			j := int(f)
			if !ok || j < 0 || j >= ds.NumObs() || float64(j) != f {
				return nil, fmt.Errorf("uns.neighbors.indices[%d] holds invalid index %v", i, v)
			}
			if j != i {
				linked[i][j] = true
				linked[j][i] = true
			}
		}
	}

	adj := make([][]int, len(linked))
	for i, set := range linked {
		for j := range set {
			adj[i] = append(adj[i], j)
		}
		slices.Sort(adj[i])
	}
	return adj, nil
}

// majorityLabel returns the most frequent label among nbrs, the smallest on
// ties.
func majorityLabel(labels []int, nbrs []int) int {
	counts := make(map[int]int, len(nbrs))
	for _, j := range nbrs {
		counts[labels[j]]++
	}
	best, bestCount := -1, 0
	for l, c := range counts {
		if c > bestCount || (c == bestCount && l < best) {
			best, bestCount = l, c
		}
	}
	return best
}

func rankGenes(_ context.Context, inputs []any, params ir.Object) (any, error) {
	ds, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}
	groupby, err := stringParam(params, "groupby")
	if err != nil {
		return nil, err
	}
	n, err := intParam(params, "n_genes")
	if err != nil {
		return nil, err
	}

	raw, ok := ds.Get(interaction.AttrObs, groupby)
	if !ok {
		return nil, fmt.Errorf("obs has no field %q", groupby)
	}
	col, ok := raw.([]any)
	if !ok || len(col) != ds.NumObs() {
		return nil, fmt.Errorf("obs.%s is not one value per cell", groupby)
	}
	groups := make([]string, len(col))
	for i, v := range col {
		groups[i] = fmt.Sprint(v)
	}

	distinct := slices.Clone(groups)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	genes := ds.VarNames()
	n = min(max(n, 0), len(genes))
	names := make(map[string]any, len(distinct))
	for _, group := range distinct {
		scores := make([]float64, len(genes))
		for j := range genes {
			var in, out float64
			var nin, nout int
			for i, row := range ds.X {
				if groups[i] == group {
					in += row[j]
					nin++
				} else {
					out += row[j]
					nout++
				}
			}
			scores[j] = mean(in, nin) - mean(out, nout)
		}

		order := make([]int, len(genes))
		for j := range order {
			order[j] = j
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(scores[b], scores[a])
		})
		top := make([]any, n)
		for r := range top {
			top[r] = genes[order[r]]
		}
		names[group] = top
	}

	ds.Set(interaction.AttrUns, "rank_genes_groups", map[string]any{
		"groupby": groupby,
		"names":   names,
	})
	return ds, nil
}

// perCell attributes hold one entry per cell and are stacked by
// concatenate; the others describe genes or the whole dataset.
var perCell = map[interaction.Attribute]bool{
	interaction.AttrObs:    true,
	interaction.AttrObsm:   true,
	interaction.AttrObsp:   true,
	interaction.AttrLayers: true,
}

func concatenate(_ context.Context, inputs []any, _ ir.Object) (any, error) {
	a, err := datasetInput(inputs, 0)
	if err != nil {
		return nil, err
	}
	b, err := datasetInput(inputs, 1)
	if err != nil {
		return nil, err
	}
	if a.NumObs() > 0 && b.NumObs() > 0 && a.NumVars() != b.NumVars() {
		return nil, fmt.Errorf("cannot concatenate datasets over %d and %d genes", a.NumVars(), b.NumVars())
	}

	out := NewDataset(append(slices.Clone(a.X), b.X...))
	for _, attr := range interaction.Attributes {
		for field := range union(a.Fields[attr], b.Fields[attr]) {
			av, aok := a.Get(attr, field)
			bv, bok := b.Get(attr, field)
			if perCell[attr] {
				out.Set(attr, field, append(column(av, aok, a.NumObs()), column(bv, bok, b.NumObs())...))
				continue
			}
			if aok {
				out.Set(attr, field, av)
			} else {
				out.Set(attr, field, bv)
			}
		}
	}
	return out, nil
}

// column returns a per-cell value as a list, padding with nulls when the
// dataset lacks the field.
func column(v any, ok bool, n int) []any {
	if list, isList := v.([]any); ok && isList && len(list) == n {
		return list
	}
	return make([]any, n)
}

func union(a, b map[string]any) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func datasetInput(inputs []any, slot int) (*Dataset, error) {
	if slot >= len(inputs) {
		return nil, fmt.Errorf("missing input %d", slot)
	}
	ds, ok := inputs[slot].(*Dataset)
	if !ok {
		return nil, fmt.Errorf("input %d: expected *builtin.Dataset, got %T", slot, inputs[slot])
	}
	return ds, nil
}

func stringParam(params ir.Object, name string) (string, error) {
	v, ok := params.Get(name)
	if !ok {
		return "", fmt.Errorf("parameter %s is not set", name)
	}
	s, ok := ir.AsString(v)
	if !ok {
		return "", fmt.Errorf("parameter %s: expected a string, got %T", name, v)
	}
	return s, nil
}

func intParam(params ir.Object, name string) (int, error) {
	v, ok := params.Get(name)
	if !ok {
		return 0, fmt.Errorf("parameter %s is not set", name)
	}
	i, ok := v.(ir.Int)
	if !ok {
		return 0, fmt.Errorf("parameter %s: expected an integer, got %T", name, v)
	}
	return int(i), nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
