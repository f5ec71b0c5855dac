package builtin

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/compiler"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// PackageName is the catalog package the builtins are exported under.
const PackageName = "pscs"

//go:embed nodes.cue
var declarations []byte

var processors = map[string]pipeline.ProcessFunc{
	"io.ReadDataset":             readDataset,
	"io.WriteDataset":            writeDataset,
	"qc.CalculateCoverage":       calculateCoverage,
	"neighbors.ComputeNeighbors": computeNeighbors,
	"clustering.Leiden":          leiden,
	"markers.RankGenes":          rankGenes,
	"merge.Concatenate":          concatenate,
}

// NodeTypes compiles the builtin declarations. The returned types have no
// processor bound.
func NodeTypes() ([]*catalog.NodeType, error) {
	v := cuecontext.New().CompileBytes(declarations, cue.Filename("nodes.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("builtin declarations: %w", err)
	}
	types, errs := compiler.CompileNodes(v)
	if len(errs) > 0 {
		return nil, fmt.Errorf("builtin declarations: %w", errors.Join(errs...))
	}
	return types, nil
}

// Register adds every builtin type to reg and binds its processor.
func Register(reg *catalog.Registry) error {
	types, err := NodeTypes()
	if err != nil {
		return err
	}
	for _, nt := range types {
		if err := reg.Register(nt); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(processors))
	for name := range processors {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := reg.Bind(name, processors[name]); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}
