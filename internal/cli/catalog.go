package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xomicsdatascience/pscs-api/internal/builtin"
	"github.com/xomicsdatascience/pscs-api/internal/catalog"
)

// CatalogOptions holds flags for the catalog command.
type CatalogOptions struct {
	*RootOptions
	Specs   string
	Name    string
	Display string
	Output  string
	Summary bool
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Export the node-type catalog",
		Long: `Export every registered node type as a package document grouped by
module: ports, parameters, requirements and effects. The document is
what a pipeline designer loads to offer nodes.

Examples:
  pscs catalog
  pscs catalog --specs ./nodes -o ./catalog.json
  pscs catalog --name lab_nodes --display "Lab Nodes"
  pscs catalog --summary`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Specs, "specs", "", "directory of CUE node-type declarations")
	cmd.Flags().StringVar(&opts.Name, "name", builtin.PackageName, "package name")
	cmd.Flags().StringVar(&opts.Display, "display", "", "package display name (derived from --name if empty)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the package JSON to this file")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "print the module tree instead of JSON")

	return cmd
}

func runCatalog(opts *CatalogOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := LoadRegistry(opts.Specs)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Registered %d node type(s)", reg.Len())

	pkg, err := catalog.Export(reg, opts.Name, opts.Display)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
	}

	if opts.Summary {
		fmt.Fprintln(formatter.Writer, pkg.Modules.Summarize(true))
		return nil
	}

	data, err := pkg.JSON()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("encode catalog: %v", err), err)
	}

	if opts.Output == "" {
		_, err := fmt.Fprintln(formatter.Writer, string(data))
		return err
	}
	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", opts.Output, err), err)
	}
	if formatter.JSON() {
		return formatter.Success(map[string]any{"output": opts.Output, "types": reg.Len()})
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %d node type(s) to %s\n", reg.Len(), opts.Output)
	return nil
}
