package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// Dataset is an annotated cells × genes matrix.
type Dataset struct {
	// X holds one row per cell (observation) and one column per gene
	// (variable).
	X [][]float64

	// Fields maps attribute → field → value. Values are JSON-like.
	Fields map[interaction.Attribute]map[string]any
}

// NewDataset creates a dataset over x with no annotations.
func NewDataset(x [][]float64) *Dataset {
	return &Dataset{X: x, Fields: make(map[interaction.Attribute]map[string]any)}
}

// NumObs is the number of cells.
func (d *Dataset) NumObs() int {
	return len(d.X)
}

// NumVars is the number of genes.
func (d *Dataset) NumVars() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Get returns one annotation.
func (d *Dataset) Get(attr interaction.Attribute, field string) (any, bool) {
	v, ok := d.Fields[attr][field]
	return v, ok
}

// Set writes one annotation.
func (d *Dataset) Set(attr interaction.Attribute, field string, v any) {
	if d.Fields == nil {
		d.Fields = make(map[interaction.Attribute]map[string]any)
	}
	if d.Fields[attr] == nil {
		d.Fields[attr] = make(map[string]any)
	}
	d.Fields[attr][field] = v
}

// Guarantees lists every annotation present on the dataset.
func (d *Dataset) Guarantees() interaction.GuaranteeSet {
	var pairs []interaction.Pair
	for attr, fields := range d.Fields {
		for field := range fields {
			pairs = append(pairs, interaction.Pair{Attr: attr, Field: field})
		}
	}
	return interaction.NewGuaranteeSet(pairs...)
}

// VarNames returns gene names from var_names.names, or g0, g1, ... when
// the dataset has none.
func (d *Dataset) VarNames() []string {
	names := make([]string, d.NumVars())
	raw, _ := d.Get(interaction.AttrVarNames, "names")
	list, _ := raw.([]any)
	for i := range names {
		if i < len(list) {
			if s, ok := list[i].(string); ok {
				names[i] = s
				continue
			}
		}
		names[i] = fmt.Sprintf("g%d", i)
	}
	return names
}

// Clone returns a deep copy, so each consumer of a result can annotate
// its copy freely.
func (d *Dataset) Clone() any {
	out := &Dataset{
		X:      make([][]float64, len(d.X)),
		Fields: make(map[interaction.Attribute]map[string]any, len(d.Fields)),
	}
	for i, row := range d.X {
		out.X[i] = slices.Clone(row)
	}
	for attr, fields := range d.Fields {
		cp := make(map[string]any, len(fields))
		for k, v := range fields {
			cp[k] = cloneValue(v)
		}
		out.Fields[attr] = cp
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []float64:
		return slices.Clone(val)
	case []string:
		return slices.Clone(val)
	case [][]int:
		out := make([][]int, len(val))
		for i, row := range val {
			out[i] = slices.Clone(row)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes {"X": [...], "<attribute>": {...}, ...}.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	out["X"] = d.X
	for attr, fields := range d.Fields {
		if len(fields) > 0 {
			out[string(attr)] = fields
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON. Keys other than "X"
// must be attributes, and every row of X must have the same length.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ds := NewDataset(nil)
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "X" {
			if err := json.Unmarshal(raw[k], &ds.X); err != nil {
				return fmt.Errorf("X: %w", err)
			}
			continue
		}
		attr, err := interaction.ParseAttribute(k)
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw[k], &fields); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		ds.Fields[attr] = fields
	}

	for i, row := range ds.X {
		if len(row) != ds.NumVars() {
			return fmt.Errorf("X row %d has %d values, want %d", i, len(row), ds.NumVars())
		}
	}
	*d = *ds
	return nil
}

// LoadDataset reads a dataset from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return &d, nil
}

// Save writes the dataset to path as indented JSON.
func (d *Dataset) Save(path string) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}
