package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/tui/status"
	"golang.org/x/term"
)

// NewStatusCmd creates the `status` command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the server dashboard once",
		Long: `Fetches the dashboard from the stratus server and prints it.

Examples:
  # Human-readable summary
  stratus status

  # Full state as JSON
  stratus status --json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.Load(cmd.Context()); err != nil {
		s.logger.WithError(err).Debug("Dashboard fetch failed")
	}
	state := s.store.Get()
	// No stream is opened here; a fresh snapshot means the server is up.
	state.Connected = state.Snapshot != nil && state.Error == ""
	out := cmd.OutOrStdout()

	if cli.GetOptions(cmd).JSONOutput {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprintln(out, status.Render(state, terminalWidth(out)))
	}

	if state.Snapshot == nil && state.Error != "" {
		return errors.New(errors.ErrCodeFetchFailed, state.Error).WithDetail("url", s.client.BaseURL())
	}
	return nil
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
