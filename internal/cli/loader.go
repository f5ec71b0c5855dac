package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/xomicsdatascience/pscs-api/internal/builtin"
	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/compiler"
	"github.com/xomicsdatascience/pscs-api/internal/designer"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// LoadMode controls how errors are handled while loading node-type declarations.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the node types loaded from a specs directory.
type LoadResult struct {
	Types     []*catalog.NodeType
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading specs or a
// pipeline.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs compiles the node-type declarations of every CUE file in dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	types, compileErrs := compiler.CompileNodes(value)
	result.Types = types

	var errs []error
	for _, ce := range compileErrs {
		errs = append(errs, convertCompileError(ce))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Types) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no node declarations found in specs"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// LoadRegistry returns a registry holding the builtin node types plus the
// declarations in specsDir, if given. Declared types have no processor
// unless they share a builtin's qualified name, which is an error.
func LoadRegistry(specsDir string) (*catalog.Registry, error) {
	reg := catalog.NewRegistry()
	if err := builtin.Register(reg); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("builtin node types: %v", err)}
	}
	if specsDir == "" {
		return reg, nil
	}

	result, errs := LoadSpecs(specsDir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	for _, nt := range result.Types {
		if err := reg.Register(nt); err != nil {
			return nil, &LoadError{Code: ErrCodeDuplicateType, Message: err.Error()}
		}
	}
	return reg, nil
}

// LoadPipeline loads a pipeline definition and assigns input files.
func LoadPipeline(path string, inputs map[string]string) (*designer.Definition, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("pipeline file not found: %s", path)}
	}
	def, err := designer.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidPipeline, Message: err.Error()}
	}
	if err := designer.AssignInputs(def, inputs, ""); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidPipeline, Message: err.Error()}
	}
	return def, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// buildErrorCode classifies an error returned by designer.Build.
func buildErrorCode(err error) string {
	switch {
	case errors.Is(err, designer.ErrInvalidDefinition):
		return ErrCodeInvalidPipeline
	case designer.IsParameterInitialization(err):
		return ErrCodeParameter
	case errors.Is(err, catalog.ErrUnknownType):
		return ErrCodeUnknownType
	case pipeline.IsCyclicGraph(err):
		return ErrCodeGraph
	default:
		var ambiguous *catalog.AmbiguousTypeError
		if errors.As(err, &ambiguous) {
			return ErrCodeUnknownType
		}
		return ErrCodeGraph
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Node declaration errors
	ErrCodeDeclaration   = "E101" // Declaration rejected by the node-type schema
	ErrCodeImportant     = "E102" // Important parameter not declared
	ErrCodeInteraction   = "E103" // Malformed requires/effects
	ErrCodeParamDefault  = "E104" // Parameter default not representable
	ErrCodeDuplicateType = "E105" // Type already registered

	// Pipeline errors
	ErrCodeInvalidPipeline = "E201" // Definition does not load
	ErrCodeParameter       = "E202" // Parameter initialization failed
	ErrCodeUnknownType     = "E203" // Node type not in the registry
	ErrCodeGraph           = "E204" // Edge rejected (cycle, slot, kind)
	ErrCodeValidation      = "E210" // Validation failed

	// Ledger errors
	ErrCodeLedger      = "E301" // Database error
	ErrCodeRunNotFound = "E302" // No such run
	ErrCodeRunFailed   = "E310" // A node failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeDeclaration
	case field == "important":
		return ErrCodeImportant
	case field == "requires", field == "effects":
		return ErrCodeInteraction
	case len(field) > len("params.") && field[:len("params.")] == "params.":
		return ErrCodeParamDefault
	default:
		return ErrCodeGeneric
	}
}
