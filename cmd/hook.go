package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/pkg/api"
	"github.com/stratustools/core/pkg/hooks"
)

// NewHookCmd creates the `hook` command group run by the automation host
// around tool invocations.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Policy hooks for tool invocations",
		Long: `Reads a tool invocation as JSON on stdin and writes a decision as JSON
on stdout. "pre" blocks mutating tools during the configured workflow
phases and delivery subagents while no workflow is active, and exits with
status 2 when it does. "post" reports written files
to the server's indexer and never blocks.

Examples:
  echo '{"tool":"write","args":{"filePath":"src/a.go"}}' | stratus hook pre
  echo '{"tool_name":"Task","tool_input":{"subagent_type":"delivery-backend"}}' | stratus hook pre`,
	}
	cmd.AddCommand(newHookRunCmd("pre", "Check a tool invocation before it runs", hooks.RunPre))
	cmd.AddCommand(newHookRunCmd("post", "Report a finished tool invocation", hooks.RunPost))
	return cmd
}

type hookFunc func(ctx context.Context, gate *hooks.Gate, r io.Reader, w io.Writer) error

func newHookRunCmd(use, short string, run hookFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd).WithField("hook", use)

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				// A broken configuration must not stall the host.
				logger.WithError(err).Warn("Configuration unavailable, allowing tool")
				fmt.Fprintln(cmd.OutOrStdout(), `{"continue":true}`)
				return nil
			}

			client := api.New(cfg.Config)
			gate, err := hooks.New(client, client, hooks.OptionsFromConfig(cfg.Config, projectRoot()))
			if err != nil {
				logger.WithError(err).Warn("Policy gate unavailable, allowing tool")
				fmt.Fprintln(cmd.OutOrStdout(), `{"continue":true}`)
				return nil
			}
			return run(cmd.Context(), gate, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// projectRoot is the directory of the project configuration, or the
// working directory when there is none.
func projectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	if path, err := config.FindConfigFile(cwd); err == nil {
		return filepath.Dir(path)
	}
	return cwd
}
