// Package cmd holds the stratus command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/pkg/profiling"
	"github.com/stratustools/core/version"
)

// NewRootCmd builds the stratus command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"stratus",
		"Client for the stratus workflow server",
	)
	root.Long = `Client for the stratus workflow server: follows the server's event
stream, keeps a reconciled view of the dashboard, drives self-updates and
gates tool invocations by workflow phase.`
	cli.SetVersionTemplate(root, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(root)
	profiler.Attach(root)

	root.AddCommand(
		NewStatusCmd(),
		NewWatchCmd(),
		NewUpdateCmd(),
		NewHookCmd(),
		NewConfigCmd(),
		NewLogsCmd(),
		NewPathsCmd(),
		cli.NewVersionCommand("stratus"),
	)
	cli.ApplyStyledHelp(root)
	return root
}
