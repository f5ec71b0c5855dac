package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/designer"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// PipelineOptions are the flags shared by commands that build a pipeline.
type PipelineOptions struct {
	Specs     string
	Inputs    []string // node=path
	OutputDir string
}

// prepared is a pipeline ready for validation or execution.
type prepared struct {
	Registry   *catalog.Registry
	Definition *designer.Definition
	Graph      *pipeline.Graph
	Hash       string
}

// parseInputs turns node=path flags into an assignment map.
func parseInputs(flags []string) (map[string]string, error) {
	inputs := make(map[string]string, len(flags))
	for _, f := range flags {
		node, path, ok := strings.Cut(f, "=")
		if !ok || node == "" || path == "" {
			return nil, fmt.Errorf("invalid --input %q: want node=path", f)
		}
		inputs[node] = path
	}
	return inputs, nil
}

// preparePipeline loads the registry and the definition at path, assigns
// inputs and outputs, and builds the graph. Errors are *LoadError values.
func preparePipeline(path string, opts PipelineOptions) (*prepared, error) {
	inputs, err := parseInputs(opts.Inputs)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidPipeline, Message: err.Error()}
	}

	reg, err := LoadRegistry(opts.Specs)
	if err != nil {
		return nil, err
	}
	def, err := LoadPipeline(path, inputs)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir != "" {
		if err := designer.AssignOutputs(def, reg, opts.OutputDir); err != nil {
			return nil, &LoadError{Code: buildErrorCode(err), Message: err.Error()}
		}
	}

	g, err := designer.Build(def, reg, nil)
	if err != nil {
		return nil, &LoadError{Code: buildErrorCode(err), Message: err.Error()}
	}
	hash, err := def.Hash()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidPipeline, Message: fmt.Sprintf("hash pipeline: %v", err)}
	}
	return &prepared{Registry: reg, Definition: def, Graph: g, Hash: hash}, nil
}

// isCommandError reports whether a preparation error is about the command
// line or files rather than the pipeline's content.
func isCommandError(err error) bool {
	var le *LoadError
	if !errors.As(err, &le) {
		return true
	}
	switch le.Code {
	case ErrCodeParameter, ErrCodeUnknownType, ErrCodeGraph:
		return false
	default:
		return true
	}
}
