package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	PipelineOptions
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                          `json:"valid"`
	Nodes    int                           `json:"nodes"`
	Hash     string                        `json:"pipeline_hash"`
	Failures []*validator.ValidationError `json:"failures,omitempty"`
	Blocked  []string                      `json:"blocked,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <pipeline>",
		Short: "Check a pipeline without running it",
		Long: `Check every node's requirements against the guarantees its upstream
nodes provide, without running any processor.

The pipeline may be a designer JSON export or an HCL file. Nodes
downstream of a failing node are reported as blocked.

Exit codes:
  0 - Pipeline valid
  1 - One or more nodes failed validation, or the pipeline does not build
  2 - Command error (missing files, bad flags)

Examples:
  pscs validate ./cluster.hcl
  pscs validate ./pipeline.json --input read=./pbmc.json
  pscs validate ./pipeline.json --specs ./nodes --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Specs, "specs", "", "directory of CUE node-type declarations")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "input file for a node, as node=path (repeatable)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	p, err := preparePipeline(path, opts.PipelineOptions)
	if err != nil {
		return formatter.prepareFailure(err)
	}
	formatter.VerboseLog("Loaded %d node(s) from %s", p.Graph.Len(), path)

	report, err := validator.Validate(p.Graph, validator.WithLogger(opts.logger()))
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGraph, err.Error(), err)
	}

	result := ValidationResult{
		Valid:    report.Passed(),
		Nodes:    p.Graph.Len(),
		Hash:     p.Hash,
		Failures: report.Failures,
		Blocked:  report.Blocked,
	}
	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationFailures(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Pipeline valid (%d nodes)\n", result.Nodes)
	return nil
}

// outputValidationFailures outputs every failing and blocked node.
func outputValidationFailures(formatter *OutputFormatter, result ValidationResult) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Failures)))

	if formatter.JSON() {
		first := result.Failures[0]
		if err := formatter.Failure(ErrCodeValidation, first.Error(), result); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  %s [%s]: %s\n", f.NodeID, f.Code, f.Message)
	}
	if len(result.Blocked) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Blocked:")
		for _, id := range result.Blocked {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
	return exitErr
}
