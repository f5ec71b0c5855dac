// pscs validates and runs single-cell analysis pipelines.
//
// Usage:
//
//	pscs validate <pipeline> [--specs <dir>] [--input node=path]
//	pscs run <pipeline> --db <path> [--workers n] [--input node=path] [--output-dir <dir>]
//	pscs catalog [--specs <dir>] [-o <file>] [--summary]
//	pscs trace [run-id] --db <path>
//	pscs test <scenario.yaml|dir> [--update]
package main

import (
	"fmt"
	"os"

	"github.com/xomicsdatascience/pscs-api/internal/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.Version = version
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
